package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestParseAddress(t *testing.T) {
	cases := map[string]Settings{
		"":               {Host: DefaultHost, Port: DefaultPort},
		":9000":          {Host: DefaultHost, Port: 9000},
		"0.0.0.0:9100":   {Host: "0.0.0.0", Port: 9100},
		"9200":           {Host: DefaultHost, Port: 9200},
		"127.0.0.1:0":    {Host: "127.0.0.1", Port: 0},
		"localhost:nope": {Host: "localhost", Port: DefaultPort},
	}
	for addr, want := range cases {
		got := ParseAddress(addr)
		if got.Host != want.Host || got.Port != want.Port {
			t.Fatalf("ParseAddress(%q) = %s:%d, want %s:%d", addr, got.Host, got.Port, want.Host, want.Port)
		}
		if got.ReadTimeout != DefaultReadTimeout {
			t.Fatalf("ParseAddress(%q) left timeouts unset", addr)
		}
	}
}

func TestParseAddressHonorsEnv(t *testing.T) {
	t.Setenv("STORYFORGE_STATUS_HOST", "0.0.0.0")
	t.Setenv("STORYFORGE_STATUS_PORT", "9001")
	got := ParseAddress(":8000")
	if got.Host != "0.0.0.0" || got.Port != 9001 {
		t.Fatalf("env overrides ignored: %s", got.Address())
	}
}

func startServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	srv := New(Settings{Host: "127.0.0.1", Port: 0}, opts...)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read %s: %v", url, err)
	}
	return resp.StatusCode, string(body)
}

func TestServerServesHealthMetricsAndState(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "storyforge_test_total", Help: "test"})
	registry.MustRegister(counter)
	counter.Add(3)

	srv := startServer(t,
		WithGatherer(registry),
		WithState(func() (any, bool, error) {
			return map[string]string{"status": "complete"}, true, nil
		}),
	)
	if srv.Status() != StatusReady {
		t.Fatalf("status = %s", srv.Status())
	}
	base := srv.BaseURL()

	code, body := get(t, base+"/health")
	if code != http.StatusOK {
		t.Fatalf("health = %d", code)
	}
	var health healthResponse
	if err := json.Unmarshal([]byte(body), &health); err != nil || health.Status != string(StatusReady) {
		t.Fatalf("health body %q (%v)", body, err)
	}

	code, body = get(t, base+"/metrics")
	if code != http.StatusOK || !strings.Contains(body, "storyforge_test_total 3") {
		t.Fatalf("metrics = %d\n%s", code, body)
	}

	code, body = get(t, base+"/state")
	if code != http.StatusOK || !strings.Contains(body, `"complete"`) {
		t.Fatalf("state = %d %s", code, body)
	}

	resp, err := http.Post(base+"/state", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("POST /state = %d", resp.StatusCode)
	}
}

func TestServerStateMissingAndFailing(t *testing.T) {
	srv := startServer(t)
	if code, _ := get(t, srv.BaseURL()+"/state"); code != http.StatusNotFound {
		t.Fatalf("empty state = %d", code)
	}

	failing := startServer(t, WithState(func() (any, bool, error) {
		return nil, false, errors.New("disk gone")
	}))
	if code, _ := get(t, failing.BaseURL()+"/state"); code != http.StatusInternalServerError {
		t.Fatalf("failing state = %d", code)
	}
}

func TestServerShutdown(t *testing.T) {
	srv := New(Settings{Host: "127.0.0.1", Port: 0})
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := srv.Start(context.Background()); err == nil {
		t.Fatalf("second start should fail")
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if srv.Addr() != "" || srv.Status() != StatusDraining {
		t.Fatalf("after shutdown addr=%q status=%s", srv.Addr(), srv.Status())
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
}
