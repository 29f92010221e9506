// Package api serves the studio HTTP and websocket preview API.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/tcmartin/flowstudio/pkg/config"
	"github.com/tcmartin/flowstudio/pkg/flowchart"
	"github.com/tcmartin/flowstudio/pkg/loader"
	"github.com/tcmartin/flowstudio/pkg/logging"
	"github.com/tcmartin/flowstudio/pkg/middleware"
	"github.com/tcmartin/flowstudio/pkg/models"
	"github.com/tcmartin/flowstudio/pkg/registry"
)

// Services are the backends the API exposes. Publisher and Fetcher may be
// nil when no engine is configured; their routes then answer 503.
type Services struct {
	Registry  registry.DefinitionRegistry
	Publisher *registry.Publisher
	Fetcher   *registry.Fetcher
}

// Server represents the HTTP API server
type Server struct {
	config    *config.Config
	router    *mux.Router
	server    *http.Server
	registry  registry.DefinitionRegistry
	publisher *registry.Publisher
	fetcher   *registry.Fetcher
	loader    loader.DocumentLoader
	catalog   models.FieldCatalog
	logger    logging.Logger
	preview   *PreviewManager
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, services Services, logger logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	docLoader, err := loader.NewLoader()
	if err != nil {
		return nil, fmt.Errorf("failed to create loader: %w", err)
	}

	s := &Server{
		config:    cfg,
		router:    mux.NewRouter(),
		registry:  services.Registry,
		publisher: services.Publisher,
		fetcher:   services.Fetcher,
		loader:    docLoader,
		catalog:   models.DefaultFieldCatalog().With(cfg.Normalizer.ExtraFields...),
		logger:    logger,
	}
	s.preview = NewPreviewManager(s, logger)

	proxies, err := middleware.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("failed to parse trusted proxies: %w", err)
	}

	s.setupRoutes(proxies)
	return s, nil
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.LogSystemEvent("server_starting", map[string]any{
		"addr": addr,
		"tls":  s.config.Server.TLS.Enabled,
	})

	var err error
	if s.config.Server.TLS.Enabled {
		err = s.server.ListenAndServeTLS(
			s.config.Server.TLS.CertFile,
			s.config.Server.TLS.KeyFile,
		)
	} else {
		err = s.server.ListenAndServe()
	}

	// If the server was shut down gracefully, this error is expected
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop stops the HTTP server gracefully
func (s *Server) Stop(ctx context.Context) error {
	s.preview.CloseAll()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes(proxies *middleware.TrustedProxies) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logging(s.logger))
	s.router.Use(middleware.CORS(s.config.Server.AllowedOrigins))

	// API router with version prefix
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/normalize", s.handleNormalize).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/render", s.handleRender).Methods(http.MethodPost, http.MethodOptions)

	// Definition routes
	definitions := api.PathPrefix("/definitions").Subrouter()
	definitions.HandleFunc("", s.handleListDefinitions).Methods(http.MethodGet, http.MethodOptions)
	definitions.HandleFunc("", s.handleCreateDefinition).Methods(http.MethodPost, http.MethodOptions)
	definitions.HandleFunc("/search", s.handleSearchDefinitions).Methods(http.MethodPost, http.MethodOptions)
	definitions.HandleFunc("/{id}", s.handleGetDefinition).Methods(http.MethodGet, http.MethodOptions)
	definitions.HandleFunc("/{id}", s.handleUpdateDefinition).Methods(http.MethodPut, http.MethodOptions)
	definitions.HandleFunc("/{id}", s.handleDeleteDefinition).Methods(http.MethodDelete, http.MethodOptions)
	definitions.HandleFunc("/{id}/versions", s.handleListVersions).Methods(http.MethodGet, http.MethodOptions)
	definitions.HandleFunc("/{id}/versions/{version:[0-9]+}", s.handleGetVersion).Methods(http.MethodGet, http.MethodOptions)
	definitions.HandleFunc("/{id}/metadata", s.handleUpdateMetadata).Methods(http.MethodPatch, http.MethodOptions)
	definitions.HandleFunc("/{id}/diagram", s.handleDefinitionDiagram).Methods(http.MethodGet, http.MethodOptions)

	publish := definitions.PathPrefix("/{id}/publish").Subrouter()
	publish.Use(middleware.RateLimit(middleware.NewRateLimiter(publishLimit, time.Minute), proxies))
	publish.HandleFunc("", s.handlePublishDefinition).Methods(http.MethodPost, http.MethodOptions)

	// Engine routes
	api.HandleFunc("/engine/workflows/{name}", s.handleFetchEngineWorkflow).Methods(http.MethodGet, http.MethodOptions)

	// Live preview
	api.HandleFunc("/preview/ws", s.preview.HandleWebSocket).Methods(http.MethodGet)
}

// publishLimit is the number of publish calls a client may make per minute
const publishLimit = 30

// renderOptions fills unset rendering options from config
func (s *Server) renderOptions(direction string, showStatus bool, statuses map[string]models.TaskStatus) flowchart.Options {
	if direction == "" {
		direction = s.config.Renderer.Direction
	}
	return flowchart.Options{
		Direction:  flowchart.Direction(direction),
		ShowStatus: showStatus,
		Statuses:   statuses,
		MaxDepth:   s.config.Renderer.MaxDepth,
	}
}
