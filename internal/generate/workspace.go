package generate

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxResponseSize = 8 << 20

// WorkspaceConfig points the generator at a chat workspace endpoint.
type WorkspaceConfig struct {
	URL      string
	Bearer   string
	Insecure bool
	Timeout  time.Duration
}

// WorkspaceGenerator posts the prompt and content to a workspace chat
// endpoint and returns its textResponse field.
type WorkspaceGenerator struct {
	url    string
	bearer string
	client *http.Client
}

type workspaceRequest struct {
	Message string `json:"message"`
	Mode    string `json:"mode"`
}

type workspaceResponse struct {
	TextResponse string `json:"textResponse"`
	Error        string `json:"error,omitempty"`
}

// NewWorkspaceGenerator validates cfg and builds the HTTP client.
func NewWorkspaceGenerator(cfg WorkspaceConfig) (*WorkspaceGenerator, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, fmt.Errorf("generate: workspace url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // self-hosted workspaces ship self-signed certs
	}
	return &WorkspaceGenerator{
		url:    url,
		bearer: strings.TrimSpace(cfg.Bearer),
		client: &http.Client{Timeout: timeout, Transport: transport},
	}, nil
}

func (w *WorkspaceGenerator) Generate(ctx context.Context, content string, req Request) (string, error) {
	body, err := json.Marshal(workspaceRequest{Message: req.Prompt + content, Mode: "chat"})
	if err != nil {
		return "", NewPermanentError(fmt.Errorf("encode request: %w", err))
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return "", NewPermanentError(fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if w.bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+w.bearer)
	}
	resp, err := w.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", NewTransientError(fmt.Errorf("post %s: %w", w.url, err))
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", NewTransientError(fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(resp.StatusCode, raw)
	}
	var decoded workspaceResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", NewPermanentError(fmt.Errorf("decode response: %w", err))
	}
	if decoded.Error != "" {
		return "", NewPermanentError(fmt.Errorf("workspace error: %s", decoded.Error))
	}
	if strings.TrimSpace(decoded.TextResponse) == "" {
		return "", NewTransientError(fmt.Errorf("empty textResponse"))
	}
	return decoded.TextResponse, nil
}

func classifyStatus(code int, body []byte) error {
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	err := fmt.Errorf("workspace status %d: %s", code, text)
	switch {
	case code == http.StatusTooManyRequests, code >= 500:
		return NewTransientError(err)
	default:
		return NewPermanentError(err)
	}
}
