package hierarchy

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// DefaultWidth is wide enough for 99 siblings per parent.
	DefaultWidth = 2
	// DefaultSeparator joins the prefix and every index token.
	DefaultSeparator = "_"
	// DefaultExtension is appended to every artifact filename.
	DefaultExtension = ".txt"

	maxWidth = 9
)

// OverflowError reports an index that cannot be rendered in the codec's fixed
// padding width.
type OverflowError struct {
	Index int
	Width int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("hierarchy: index %d does not fit in %d digits", e.Index, e.Width)
}

// Codec converts (prefix, ID) pairs to filenames and back:
//
//	<prefix>_<idx1>[_<idx2>[_...]].txt
//
// Every index is zero-padded to Width digits.
type Codec struct {
	Width     int
	Separator string
	Extension string
}

// DefaultCodec returns the two-digit "_" ".txt" codec.
func DefaultCodec() Codec {
	return Codec{Width: DefaultWidth, Separator: DefaultSeparator, Extension: DefaultExtension}
}

// WithWidth returns a copy of the codec using the given padding width. Values
// outside 1..9 fall back to DefaultWidth.
func (c Codec) WithWidth(width int) Codec {
	if width < 1 || width > maxWidth {
		width = DefaultWidth
	}
	c.Width = width
	return c
}

// MaxIndex is the largest index representable in the padding width.
func (c Codec) MaxIndex() int {
	max := 1
	for i := 0; i < c.normalized().Width; i++ {
		max *= 10
	}
	return max - 1
}

// NormalizePrefix trims whitespace and a trailing separator so "sentence_" and
// "sentence" name the same prefix.
func (c Codec) NormalizePrefix(prefix string) string {
	sep := c.normalized().Separator
	return strings.TrimSuffix(strings.TrimSpace(prefix), sep)
}

// Encode renders the filename for prefix and id.
func (c Codec) Encode(prefix string, id ID) (string, error) {
	c = c.normalized()
	prefix = c.NormalizePrefix(prefix)
	if prefix == "" {
		return "", fmt.Errorf("hierarchy: prefix is required")
	}
	if len(id) == 0 {
		return "", fmt.Errorf("hierarchy: id is required for prefix %s", prefix)
	}
	max := c.MaxIndex()
	var b strings.Builder
	b.WriteString(prefix)
	for _, idx := range id {
		if idx < 1 {
			return "", fmt.Errorf("hierarchy: index %d in %s is not positive", idx, id)
		}
		if idx > max {
			return "", &OverflowError{Index: idx, Width: c.Width}
		}
		b.WriteString(c.Separator)
		fmt.Fprintf(&b, "%0*d", c.Width, idx)
	}
	b.WriteString(c.Extension)
	return b.String(), nil
}

// Decode recovers the ID of filename for prefix at the expected depth. The
// boolean is false (no match) when the prefix differs, the token count differs
// from depth, a token is not exactly Width decimal digits, or an index is 0.
func (c Codec) Decode(filename, prefix string, depth int) (ID, bool) {
	c = c.normalized()
	prefix = c.NormalizePrefix(prefix)
	if prefix == "" || depth < 1 {
		return nil, false
	}
	stem, ok := strings.CutSuffix(filename, c.Extension)
	if !ok {
		return nil, false
	}
	rest, ok := strings.CutPrefix(stem, prefix+c.Separator)
	if !ok {
		return nil, false
	}
	tokens := strings.Split(rest, c.Separator)
	if len(tokens) != depth {
		return nil, false
	}
	id := make(ID, 0, depth)
	for _, token := range tokens {
		if len(token) != c.Width || !allDigits(token) {
			return nil, false
		}
		n, err := strconv.Atoi(token)
		if err != nil {
			return nil, false
		}
		id = append(id, n)
	}
	if !id.Valid() {
		return nil, false
	}
	return id, true
}

func (c Codec) normalized() Codec {
	if c.Width < 1 || c.Width > maxWidth {
		c.Width = DefaultWidth
	}
	if c.Separator == "" {
		c.Separator = DefaultSeparator
	}
	if c.Extension == "" {
		c.Extension = DefaultExtension
	}
	return c
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
