package generate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspaceGeneratorProtocol(t *testing.T) {
	var got workspaceRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]string{"textResponse": "A paragraph."})
	}))
	defer server.Close()

	gen, err := NewWorkspaceGenerator(WorkspaceConfig{URL: server.URL, Bearer: "secret"})
	require.NoError(t, err)

	out, err := gen.Generate(context.Background(), "A sentence.", Request{Stage: "paragraph", Prompt: "Expand: "})
	require.NoError(t, err)
	assert.Equal(t, "A paragraph.", out)
	assert.Equal(t, "Expand: A sentence.", got.Message)
	assert.Equal(t, "chat", got.Mode)
}

func TestWorkspaceGeneratorClassifiesStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, transient: true},
		{name: "server error", status: http.StatusBadGateway, transient: true},
		{name: "unauthorized", status: http.StatusUnauthorized, transient: false},
		{name: "bad request", status: http.StatusBadRequest, transient: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer server.Close()

			gen, err := NewWorkspaceGenerator(WorkspaceConfig{URL: server.URL})
			require.NoError(t, err)
			_, err = gen.Generate(context.Background(), "x", Request{})
			require.Error(t, err)
			assert.Equal(t, tt.transient, IsTransient(err))
			assert.Equal(t, !tt.transient, IsPermanent(err))
		})
	}
}

func TestWorkspaceGeneratorRequiresURL(t *testing.T) {
	_, err := NewWorkspaceGenerator(WorkspaceConfig{})
	assert.Error(t, err)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	var calls atomic.Int32
	inner := GeneratorFunc(func(context.Context, string, Request) (string, error) {
		calls.Add(1)
		return "", NewPermanentError(errors.New("bad key"))
	})
	_, err := Retry(5, time.Millisecond)(inner).Generate(context.Background(), "x", Request{})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetryRecoversFromTransientError(t *testing.T) {
	var calls atomic.Int32
	inner := GeneratorFunc(func(context.Context, string, Request) (string, error) {
		if calls.Add(1) < 3 {
			return "", NewTransientError(errors.New("busy"))
		}
		return "ok", nil
	})
	out, err := Retry(3, time.Millisecond)(inner).Generate(context.Background(), "x", Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	inner := GeneratorFunc(func(context.Context, string, Request) (string, error) {
		cancel()
		return "", NewTransientError(errors.New("busy"))
	})
	_, err := Retry(3, time.Hour)(inner).Generate(ctx, "x", Request{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRateLimitAllowsBurst(t *testing.T) {
	gen := RateLimit(1000, 2)(Echo{})
	for i := 0; i < 2; i++ {
		out, err := gen.Generate(context.Background(), "same", Request{})
		require.NoError(t, err)
		assert.Equal(t, "same", out)
	}
}

func TestRegistryResolveWrapsFailures(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("broken", func(context.Context, Settings) (Generator, error) {
		return GeneratorFunc(func(context.Context, string, Request) (string, error) {
			return "", NewPermanentError(errors.New("boom"))
		}), nil
	}))
	assert.Error(t, reg.Register("Broken", func(context.Context, Settings) (Generator, error) { return Echo{}, nil }))

	gen, err := reg.Resolve(context.Background(), Settings{Backend: "broken"})
	require.NoError(t, err)
	_, err = gen.Generate(context.Background(), "x", Request{Stage: "scenes", ID: "2.1"})
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "broken", genErr.Backend)
	assert.Equal(t, "2.1", genErr.ID)

	_, err = reg.Resolve(context.Background(), Settings{Backend: "missing"})
	assert.Error(t, err)
}

func TestDefaultRegistryEchoIsDefault(t *testing.T) {
	reg := DefaultRegistry()
	assert.Equal(t, []string{BackendEcho, BackendGemini, BackendWorkspace}, reg.Names())
	gen, err := reg.Resolve(context.Background(), Settings{})
	require.NoError(t, err)
	out, err := gen.Generate(context.Background(), "unchanged", Request{})
	require.NoError(t, err)
	assert.Equal(t, "unchanged", out)
}
