package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ductile-dev/ductile/internal/progress"
	"github.com/ductile-dev/ductile/internal/provision"
	"github.com/ductile-dev/ductile/internal/secrets"
	"github.com/ductile-dev/ductile/internal/store"
	"github.com/ductile-dev/ductile/internal/tasks"
)

// scriptedRunner records every command instead of executing it. fail returns
// an error for commands it matches.
type scriptedRunner struct {
	mu       sync.Mutex
	commands []string
	fail     func(command string) error
}

func (f *scriptedRunner) Run(ctx context.Context, command, dir string) ([]byte, error) {
	f.mu.Lock()
	f.commands = append(f.commands, command)
	f.mu.Unlock()

	if f.fail != nil {
		if err := f.fail(command); err != nil {
			return []byte("boom"), err
		}
	}
	return nil, nil
}

func newTestServer(t *testing.T) *Server {
	srv, _ := newTestServerWithRunner(t)
	return srv
}

// newTestServerWithRunner additionally exposes the scripted command runner so
// tests can assert on or fail specific provisioning commands.
func newTestServerWithRunner(t *testing.T) (*Server, *scriptedRunner) {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	sec, err := secrets.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	broker := progress.NewBroker()
	reporter := progress.NewReporter(s, broker, logger)
	run := &scriptedRunner{}
	fetcher := provision.NewFetcher(run, reporter, logger)
	prov := provision.NewProvisioner(s, sec, run, reporter, fetcher, t.TempDir(), logger)
	runner := tasks.NewRunner(broker, logger)

	return NewServer(":0", s, reporter, runner, prov, logger), run
}

func TestPanicRecovery(t *testing.T) {
	srv := newTestServer(t)
	srv.Router().Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/panic")
	if err != nil {
		t.Fatalf("GET /panic: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestCORSHeaders(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	req, _ := http.NewRequest("OPTIONS", ts.URL+"/healthz", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS /healthz: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}
