package generate

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinSplitters(t *testing.T) {
	tests := []struct {
		name     string
		splitter string
		content  string
		want     []string
	}{
		{
			name:     "paragraphs",
			splitter: SplitParagraphs,
			content:  "First para.\nStill first.\n\nSecond para.\n \n\n\nThird.",
			want:     []string{"First para.\nStill first.", "Second para.", "Third."},
		},
		{
			name:     "sentences",
			splitter: SplitSentences,
			content:  "He ran. She stayed!  Why?\nNobody knew",
			want:     []string{"He ran.", "She stayed!", "Why?", "Nobody knew"},
		},
		{
			name:     "sentences keep abbreviations without space",
			splitter: SplitSentences,
			content:  "Version 2.5 shipped. Done.",
			want:     []string{"Version 2.5 shipped.", "Done."},
		},
		{
			name:     "literal regex",
			splitter: `\n---\n`,
			content:  "one\n---\ntwo\n---\n",
			want:     []string{"one", "two"},
		},
		{
			name:     "blank content",
			splitter: SplitParagraphs,
			content:  "  \n\n ",
			want:     []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			splitter, err := NewSplitter(tt.splitter, nil)
			require.NoError(t, err)
			got, err := splitter.Split(context.Background(), tt.content, Request{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNamedSplitPattern(t *testing.T) {
	patterns := map[string]string{"scene": `(?m)^SCENE \d+$`}
	splitter, err := NewSplitter("Scene", patterns)
	require.NoError(t, err)
	got, err := splitter.Split(context.Background(), "SCENE 1\nIntro\nSCENE 2\nOutro", Request{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Intro", "Outro"}, got)
	assert.Equal(t, []string{SplitParagraphs, SplitSentences, "scene"}, SplitterNames(patterns))
}

func TestNewSplitterRejectsBadRegex(t *testing.T) {
	_, err := NewSplitter("([", nil)
	assert.Error(t, err)
}

func TestGeneratedSplitter(t *testing.T) {
	upper := GeneratorFunc(func(_ context.Context, content string, _ Request) (string, error) {
		return strings.ToUpper(content), nil
	})
	splitter := GeneratedSplitter{Generator: upper, Splitter: Paragraphs()}
	got, err := splitter.Split(context.Background(), "a\n\nb", Request{})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, got)
}
