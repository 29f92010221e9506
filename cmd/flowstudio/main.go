// Package main is the entry point for the flowstudio server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tcmartin/flowstudio/pkg/api"
	"github.com/tcmartin/flowstudio/pkg/conductor"
	"github.com/tcmartin/flowstudio/pkg/config"
	"github.com/tcmartin/flowstudio/pkg/logging"
	"github.com/tcmartin/flowstudio/pkg/models"
	"github.com/tcmartin/flowstudio/pkg/registry"
	"github.com/tcmartin/flowstudio/pkg/storage"
)

var (
	// Command-line flags
	configPath = flag.String("config", "", "Path to config file")
	version    = flag.Bool("version", false, "Print version information")
)

// Version information
const (
	AppVersion = "0.1.0"
	AppName    = "flowstudio"
)

func main() {
	// Load environment variables from .env file
	_ = godotenv.Load()

	flag.Parse()

	if *version {
		fmt.Printf("%s version %s\n", AppName, AppVersion)
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := NewApp(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Handle graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			app.logger.Error("server failed", logging.F("error", err.Error()))
			os.Exit(1)
		}
	case <-stop:
		app.logger.LogSystemEvent("shutdown", nil)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.Stop(ctx); err != nil {
			log.Fatalf("Error during shutdown: %v", err)
		}
	}
}

// loadConfig loads the configuration from the flag path, the standard
// locations or a freshly saved default, then applies the environment
func loadConfig() (*config.Config, error) {
	var cfg *config.Config

	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", *configPath, err)
		}
		cfg = loaded
	} else if loaded, _, err := config.Discover(config.DefaultSearchPaths()); err == nil {
		cfg = loaded
	} else {
		cfg = config.DefaultConfig()

		defaultPath := filepath.Join(os.Getenv("HOME"), ".flowstudio", "config.json")
		if err := config.SaveConfig(cfg, defaultPath); err != nil {
			return nil, fmt.Errorf("failed to save default config: %w", err)
		}
		fmt.Printf("Created default configuration at %s\n", defaultPath)
	}

	config.ApplyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// App represents the flowstudio application
type App struct {
	config          *config.Config
	server          *api.Server
	storageProvider storage.StorageProvider
	logger          *logging.CharmLogger
}

// NewApp creates a new application instance
func NewApp(cfg *config.Config) (*App, error) {
	logger, err := logging.NewLogger(cfg.Logging.LogConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	storageProvider, err := storage.NewProvider(cfg.Storage.ProviderConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create storage provider: %w", err)
	}
	if err := storageProvider.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	logger.Info("storage initialized", logging.F("type", cfg.Storage.Type))

	definitions := registry.NewDefinitionRegistry(storageProvider.GetDefinitionStore(), registry.Options{
		Catalog: models.DefaultFieldCatalog().With(cfg.Normalizer.ExtraFields...),
	})

	services := api.Services{Registry: definitions}
	if cfg.Engine.BaseURL != "" {
		client, err := conductor.NewClient(cfg.Engine.ClientConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create engine client: %w", err)
		}
		services.Publisher = registry.NewPublisher(definitions, client, logger)
		services.Fetcher = registry.NewFetcher(client, storageProvider.GetCacheStore(), cfg.Storage.CacheTTL(), logger)
		logger.Info("engine configured", logging.F("base_url", client.BaseURL()))
	} else {
		logger.Warn("no engine configured; publish and fetch are disabled")
	}

	server, err := api.NewServer(cfg, services, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	return &App{
		config:          cfg,
		server:          server,
		storageProvider: storageProvider,
		logger:          logger,
	}, nil
}

// Start starts the application
func (a *App) Start() error {
	a.logger.LogSystemEvent("startup", map[string]any{
		"app":     AppName,
		"version": AppVersion,
	})
	return a.server.Start()
}

// Stop stops the application gracefully
func (a *App) Stop(ctx context.Context) error {
	defer a.logger.Close()

	if err := a.server.Stop(ctx); err != nil {
		return err
	}

	if err := a.storageProvider.Close(); err != nil {
		return fmt.Errorf("failed to close storage: %w", err)
	}
	return nil
}
