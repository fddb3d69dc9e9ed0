package generate

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Builtin splitter names.
const (
	SplitParagraphs = "paragraphs"
	SplitSentences  = "sentences"
)

var blankLine = regexp.MustCompile(`\n[ \t\r]*\n`)

// RegexSplitter cuts content at every match of a regular expression, trims the
// pieces and drops the empty ones.
type RegexSplitter struct {
	re *regexp.Regexp
}

// NewRegexSplitter compiles expr.
func NewRegexSplitter(expr string) (*RegexSplitter, error) {
	if expr == "" {
		return nil, fmt.Errorf("generate: split pattern is empty")
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("generate: compile split pattern %q: %w", expr, err)
	}
	return &RegexSplitter{re: re}, nil
}

func (s *RegexSplitter) Split(_ context.Context, content string, _ Request) ([]string, error) {
	return trimChunks(s.re.Split(content, -1)), nil
}

// Paragraphs splits on blank lines.
func Paragraphs() Splitter {
	return &RegexSplitter{re: blankLine}
}

// Sentences splits after '.', '!' or '?' when whitespace follows. The
// terminator stays with its sentence.
func Sentences() Splitter {
	return SplitterFunc(func(_ context.Context, content string, _ Request) ([]string, error) {
		return splitSentences(content), nil
	})
}

func splitSentences(content string) []string {
	runes := []rune(strings.TrimSpace(content))
	var chunks []string
	start := 0
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '.', '!', '?':
		default:
			continue
		}
		if i+1 >= len(runes) || !unicode.IsSpace(runes[i+1]) {
			continue
		}
		chunks = append(chunks, string(runes[start:i+1]))
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		start = j
		i = j - 1
	}
	if start < len(runes) {
		chunks = append(chunks, string(runes[start:]))
	}
	return trimChunks(chunks)
}

func trimChunks(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// GeneratedSplitter asks a generator to restructure the content first and
// splits the generated text afterwards.
type GeneratedSplitter struct {
	Generator Generator
	Splitter  Splitter
}

func (s GeneratedSplitter) Split(ctx context.Context, content string, req Request) ([]string, error) {
	if s.Generator == nil || s.Splitter == nil {
		return nil, fmt.Errorf("generate: generated splitter requires a generator and a splitter")
	}
	generated, err := s.Generator.Generate(ctx, content, req)
	if err != nil {
		return nil, err
	}
	return s.Splitter.Split(ctx, generated, req)
}

// NewSplitter resolves a splitter by name. Builtin names win, then the named
// patterns (the [SPLIT PATTERN] section), and anything else is compiled as a
// literal regular expression.
func NewSplitter(name string, patterns map[string]string) (Splitter, error) {
	name = strings.TrimSpace(name)
	switch strings.ToLower(name) {
	case "", SplitParagraphs:
		return Paragraphs(), nil
	case SplitSentences:
		return Sentences(), nil
	}
	if expr, ok := lookupPattern(patterns, name); ok {
		return NewRegexSplitter(expr)
	}
	return NewRegexSplitter(name)
}

// SplitterNames lists the builtin splitters followed by the named patterns.
func SplitterNames(patterns map[string]string) []string {
	names := []string{SplitParagraphs, SplitSentences}
	extra := make([]string, 0, len(patterns))
	for name := range patterns {
		extra = append(extra, name)
	}
	sort.Strings(extra)
	return append(names, extra...)
}

func lookupPattern(patterns map[string]string, name string) (string, bool) {
	if expr, ok := patterns[name]; ok {
		return expr, true
	}
	for key, expr := range patterns {
		if strings.EqualFold(key, name) {
			return expr, true
		}
	}
	return "", false
}
