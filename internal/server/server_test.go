package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackzampolin/rentshelf/internal/api"
	"github.com/jackzampolin/rentshelf/internal/config"
	"github.com/jackzampolin/rentshelf/internal/home"
	"github.com/jackzampolin/rentshelf/internal/ingest"
	"github.com/jackzampolin/rentshelf/internal/library"
	"github.com/jackzampolin/rentshelf/internal/reader"
	"github.com/jackzampolin/rentshelf/internal/server/endpoints"
	"github.com/jackzampolin/rentshelf/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testHome(t *testing.T) *home.Dir {
	t.Helper()
	h, err := home.New(t.TempDir())
	if err != nil {
		t.Fatalf("home.New() error = %v", err)
	}
	return h
}

func freePort(t *testing.T) string {
	t.Helper()
	port, err := testutil.FindFreePort()
	if err != nil {
		t.Fatalf("FindFreePort() error = %v", err)
	}
	return port
}

// startServer runs srv until the test ends. It returns the base URL and a
// stop function that cancels Start and returns its result.
func startServer(t *testing.T, srv *Server) (string, func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	var (
		once    sync.Once
		stopErr error
	)
	stop := func() error {
		once.Do(func() {
			cancel()
			select {
			case stopErr = <-errCh:
			case <-time.After(10 * time.Second):
				stopErr = errors.New("server did not stop")
			}
		})
		return stopErr
	}
	t.Cleanup(func() { stop() })

	baseURL := "http://" + srv.Addr()
	if err := waitForServer(ctx, baseURL, 10*time.Second); err != nil {
		t.Fatalf("server did not start: %v", err)
	}
	return baseURL, stop
}

func TestServer_ExternalDefraLifecycle(t *testing.T) {
	db, defraURL := testutil.NewMemDefra(t)
	h := testHome(t)

	srv, err := New(Config{
		Port:     freePort(t),
		Home:     h,
		DefraURL: defraURL,
		Logger:   discardLogger(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	baseURL, stop := startServer(t, srv)
	ctx := context.Background()
	client := api.NewClient(baseURL).WithUser("ana")

	t.Run("schemas_applied", func(t *testing.T) {
		if got := len(db.Schemas()); got != 5 {
			t.Errorf("applied %d schemas, want 5", got)
		}
	})

	t.Run("ready_endpoint", func(t *testing.T) {
		var resp endpoints.HealthResponse
		if err := client.Get(ctx, "/ready", &resp); err != nil {
			t.Fatalf("ready error = %v", err)
		}
		if resp.Status != "ok" || resp.Defra != "ok" {
			t.Errorf("ready = %+v", resp)
		}
	})

	t.Run("status_endpoint", func(t *testing.T) {
		var resp endpoints.StatusResponse
		if err := client.Get(ctx, "/status", &resp); err != nil {
			t.Fatalf("status error = %v", err)
		}
		if resp.Defra.Container != "external" || resp.Defra.Health != "healthy" {
			t.Errorf("defra status = %+v", resp.Defra)
		}
	})

	t.Run("pid_file", func(t *testing.T) {
		if _, err := os.Stat(h.PidPath()); err != nil {
			t.Errorf("pid file missing while running: %v", err)
		}
	})

	var result ingest.Result
	pdf := testutil.MinimalPDF(612, 792, "Call me Ishmael", "Some years ago")
	if err := client.Upload(ctx, "/api/books", "file", "moby-dick.pdf", bytes.NewReader(pdf), nil, &result); err != nil {
		t.Fatalf("upload error = %v", err)
	}
	if err := client.Post(ctx, "/api/rentals", endpoints.RentRequest{BookID: result.BookID}, nil); err != nil {
		t.Fatalf("rent error = %v", err)
	}

	positionPath := "/api/books/" + result.BookID + "/position"
	for page := 1; page <= 3; page++ {
		if err := client.Put(ctx, positionPath, reader.Position{Page: 2, ScrollOffset: float64(page * 100)}, nil); err != nil {
			t.Fatalf("save position error = %v", err)
		}
	}
	var pos endpoints.PositionResponse
	if err := client.Get(ctx, positionPath, &pos); err != nil {
		t.Fatalf("get position error = %v", err)
	}
	if pos.Position == nil || pos.Position.ScrollOffset != 300 {
		t.Errorf("position = %+v, want the latest save", pos.Position)
	}

	if err := stop(); err != nil {
		t.Fatalf("Start() returned %v after cancel", err)
	}

	if srv.IsRunning() {
		t.Error("IsRunning() = true after shutdown")
	}
	if _, err := os.Stat(h.PidPath()); !os.IsNotExist(err) {
		t.Errorf("pid file still present after shutdown: %v", err)
	}

	// Pending position writes are flushed on shutdown.
	saved := db.Docs("ReadingPosition")
	if len(saved) != 1 {
		t.Fatalf("stored %d positions, want 1", len(saved))
	}
	if saved[0]["scroll_offset"] != float64(300) {
		t.Errorf("stored position = %v, want scroll_offset 300", saved[0])
	}
}

func TestServer_RequireInitBeforeStart(t *testing.T) {
	_, defraURL := testutil.NewMemDefra(t)
	srv, err := New(Config{Home: testHome(t), DefraURL: defraURL, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		path string
		want int
	}{
		{"/health", http.StatusOK},
		{"/api/books", http.StatusServiceUnavailable},
		{"/ready", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest("GET", tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.want)
		}
	}
}

func TestServer_DoubleStart(t *testing.T) {
	_, defraURL := testutil.NewMemDefra(t)
	srv, err := New(Config{
		Port:     freePort(t),
		Home:     testHome(t),
		DefraURL: defraURL,
		Logger:   discardLogger(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	startServer(t, srv)

	if err := srv.Start(context.Background()); err == nil || !strings.Contains(err.Error(), "already running") {
		t.Errorf("second Start() error = %v, want already running", err)
	}
}

func TestServer_DefraUnreachable(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	url := dead.URL
	dead.Close()

	srv, err := New(Config{
		Port:     freePort(t),
		Home:     testHome(t),
		DefraURL: url,
		Logger:   discardLogger(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Start(ctx); err == nil || !strings.Contains(err.Error(), "health check") {
		t.Errorf("Start() error = %v, want health check failure", err)
	}
	if srv.IsRunning() {
		t.Error("IsRunning() = true after failed start")
	}
}

func TestServer_RentalDaysFromConfig(t *testing.T) {
	_, defraURL := testutil.NewMemDefra(t)
	h := testHome(t)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("rentals:\n  default_days: 7\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	mgr, err := config.NewManager(cfgPath)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	srv, err := New(Config{
		Port:          freePort(t),
		Home:          h,
		DefraURL:      defraURL,
		ConfigManager: mgr,
		Logger:        discardLogger(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	baseURL, _ := startServer(t, srv)
	ctx := context.Background()
	client := api.NewClient(baseURL)

	var result ingest.Result
	pdf := testutil.MinimalPDF(300, 400, "only page")
	if err := client.Upload(ctx, "/api/books", "file", "short.pdf", bytes.NewReader(pdf), nil, &result); err != nil {
		t.Fatalf("upload error = %v", err)
	}

	var rental library.Rental
	if err := client.Post(ctx, "/api/rentals", endpoints.RentRequest{BookID: result.BookID}, &rental); err != nil {
		t.Fatalf("rent error = %v", err)
	}
	if got := rental.ExpiresAt.Sub(rental.StartedAt); got != 7*24*time.Hour {
		t.Errorf("rental length = %v, want 7 days", got)
	}

	var status endpoints.StatusResponse
	if err := client.Get(ctx, "/status", &status); err != nil {
		t.Fatalf("status error = %v", err)
	}
	if status.Reader == nil || status.Reader.RentalDays != 7 {
		t.Errorf("status reader = %+v, want rental_days 7", status.Reader)
	}
}

// waitForServer polls the server until it responds or timeout.
func waitForServer(ctx context.Context, baseURL string, timeout time.Duration) error {
	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		req, err := http.NewRequestWithContext(ctx, "GET", baseURL+"/ready", nil)
		if err != nil {
			return err
		}

		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		time.Sleep(50 * time.Millisecond)
	}

	return fmt.Errorf("server not ready after %s", timeout)
}
