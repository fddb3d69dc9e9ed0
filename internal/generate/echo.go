package generate

import "context"

// Echo returns the content unchanged. Rename-only stages and dry runs use it.
type Echo struct{}

func (Echo) Generate(_ context.Context, content string, _ Request) (string, error) {
	return content, nil
}
