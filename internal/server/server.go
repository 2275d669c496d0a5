package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jackzampolin/rentshelf/internal/api"
	"github.com/jackzampolin/rentshelf/internal/config"
	"github.com/jackzampolin/rentshelf/internal/defra"
	"github.com/jackzampolin/rentshelf/internal/home"
	"github.com/jackzampolin/rentshelf/internal/library"
	"github.com/jackzampolin/rentshelf/internal/pdfdoc"
	"github.com/jackzampolin/rentshelf/internal/schema"
	"github.com/jackzampolin/rentshelf/internal/server/endpoints"
	"github.com/jackzampolin/rentshelf/internal/svcctx"
)

// Server is the rentshelf HTTP server.
// Unless pointed at an external DefraDB, it manages the DefraDB container
// lifecycle: starting it on server start and stopping it on shutdown.
type Server struct {
	httpServer     *http.Server
	home           *home.Dir
	defraURL       string
	defraContainer *defra.Container
	defraClient    *defra.Client
	sink           *defra.Sink
	library        *library.Library
	documents      *pdfdoc.Store
	configMgr      *config.Manager
	logger         *slog.Logger

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
	// releasePid gives up the home's pid file; set while running.
	releasePid func()
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// Home is the rentshelf home directory (default: ~/.rentshelf)
	Home *home.Dir
	// Defra describes the DefraDB container to run when DefraURL is empty.
	Defra defra.ContainerSpec
	// DefraURL points at an external DefraDB. When set no container is managed.
	DefraURL string
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Home == nil {
		h, err := home.New("")
		if err != nil {
			return nil, err
		}
		cfg.Home = h
	}
	if err := cfg.Home.EnsureExists(); err != nil {
		return nil, fmt.Errorf("failed to create home directory: %w", err)
	}

	s := &Server{
		home:      cfg.Home,
		defraURL:  cfg.DefraURL,
		configMgr: cfg.ConfigManager,
		logger:    cfg.Logger,
	}

	if s.defraURL == "" {
		if cfg.Defra.DataPath == "" {
			cfg.Defra.DataPath = cfg.Home.DefraDataPath()
		}
		defraContainer, err := defra.NewContainer(cfg.Defra)
		if err != nil {
			return nil, fmt.Errorf("failed to create defra container: %w", err)
		}
		s.defraContainer = defraContainer
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{DefraContainer: s.defraContainer}) {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:        net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:     s.withServices(mux),
		ReadTimeout: 30 * time.Second,
		// Uploads and PDF downloads stream whole documents.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start starts DefraDB (when managed) and the HTTP server.
// It blocks until the context is cancelled or an error occurs.
// If an existing DefraDB container exists, it validates the configuration matches.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	release, err := s.home.ClaimServer()
	if err != nil {
		s.setNotRunning()
		return err
	}
	s.mu.Lock()
	s.releasePid = release
	s.mu.Unlock()

	url := s.defraURL
	if s.defraContainer != nil {
		// Validate any existing container matches our config
		if err := s.defraContainer.CheckExisting(ctx); err != nil {
			s.setNotRunning()
			return fmt.Errorf("existing DefraDB container incompatible: %w", err)
		}

		s.logger.Info("starting DefraDB")
		if err := s.defraContainer.Start(ctx); err != nil {
			s.setNotRunning()
			return fmt.Errorf("failed to start DefraDB: %w", err)
		}
		url = s.defraContainer.URL()
	}

	// Create client after DefraDB is up
	s.defraClient = defra.NewClient(url)

	// Verify DefraDB is healthy
	if err := s.defraClient.HealthCheck(ctx); err != nil {
		_ = s.shutdown() // Clean up DefraDB on failure
		return fmt.Errorf("DefraDB health check failed: %w", err)
	}
	s.logger.Info("DefraDB is ready", "url", url)

	s.logger.Info("initializing schemas")
	if err := schema.Initialize(ctx, s.defraClient, s.logger); err != nil {
		_ = s.shutdown()
		return fmt.Errorf("schema initialization failed: %w", err)
	}

	// Position saves are write-behind; the sink coalesces them per reader.
	s.sink = defra.NewSink(defra.SinkConfig{
		Client:        s.defraClient,
		Logger:        s.logger,
		FlushInterval: time.Second,
	})
	s.sink.Start(context.WithoutCancel(ctx))

	rentalDays := 0
	if s.configMgr != nil {
		rentalDays = s.configMgr.Get().Rentals.DefaultDays
	}
	s.library = library.New(library.Config{
		Client:     s.defraClient,
		Sink:       s.sink,
		RentalDays: rentalDays,
		Logger:     s.logger,
	})
	s.documents = pdfdoc.NewStore(s.home)

	if s.configMgr != nil {
		lib := s.library
		s.configMgr.OnChange(func(c *config.Config) {
			lib.SetRentalDays(c.Rentals.DefaultDays)
			s.logger.Info("rental defaults reloaded from config", "days", c.Rentals.DefaultDays)
		})
	}

	// Create services struct for context enrichment
	s.services = &svcctx.Services{
		DefraClient: s.defraClient,
		DefraSink:   s.sink,
		Library:     s.library,
		Documents:   s.documents,
		Config:      s.configMgr,
		Logger:      s.logger,
		Home:        s.home,
	}

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown() // Clean up DefraDB on HTTP error
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown stops the HTTP server, flushes pending writes and stops DefraDB.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	// Flush reading positions before DefraDB goes away.
	if s.sink != nil {
		s.sink.Stop()
	}
	if s.documents != nil {
		if err := s.documents.Close(); err != nil {
			s.logger.Error("document store close error", "error", err)
		}
	}

	if s.defraContainer != nil {
		s.logger.Info("stopping DefraDB")
		if err := s.defraContainer.Stop(shutdownCtx); err != nil {
			s.logger.Error("DefraDB stop error", "error", err)
		}
		if err := s.defraContainer.Close(); err != nil {
			s.logger.Error("DefraDB docker client close error", "error", err)
		}
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	if s.releasePid != nil {
		s.releasePid()
		s.releasePid = nil
	}
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// DefraClient returns the DefraDB client.
// Returns nil if the server hasn't started yet.
func (s *Server) DefraClient() *defra.Client {
	return s.defraClient
}

// Library returns the catalog. Returns nil if the server hasn't started yet.
func (s *Server) Library() *library.Library {
	return s.library
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.services != nil {
			ctx = svcctx.WithServices(ctx, s.services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable until DefraDB and the catalog are ready.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.defraClient == nil || s.library == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
