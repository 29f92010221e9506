package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tcmartin/flowstudio/pkg/conductor"
	"github.com/tcmartin/flowstudio/pkg/logging"
	"github.com/tcmartin/flowstudio/pkg/models"
	"github.com/tcmartin/flowstudio/pkg/storage"
)

// FetchResult is a definition read from the engine or, when the engine is
// unreachable, from the cache
type FetchResult struct {
	Definition *models.WorkflowDefinition `json:"definition"`
	FromCache  bool                       `json:"from_cache"`
}

// Fetcher reads definitions from the engine through a cache
type Fetcher struct {
	engine EngineClient
	cache  storage.CacheStore
	ttl    time.Duration
	logger logging.Logger
}

// NewFetcher creates a fetcher; a zero ttl keeps cached entries forever
func NewFetcher(engine EngineClient, cache storage.CacheStore, ttl time.Duration, logger logging.Logger) *Fetcher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Fetcher{
		engine: engine,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

// Fetch reads a definition from the engine and refreshes the cache.
// Version 0 asks for the latest version. A definition the engine reports
// missing is never served from the cache.
func (f *Fetcher) Fetch(ctx context.Context, name string, version int) (FetchResult, error) {
	def, err := f.engine.GetWorkflow(ctx, name, version)
	if err == nil {
		f.store(name, version, def)
		return FetchResult{Definition: def}, nil
	}

	if !unreachable(err) {
		return FetchResult{}, err
	}

	data, cacheErr := f.cache.GetDefinition(name, version)
	if cacheErr != nil {
		if !errors.Is(cacheErr, storage.ErrCacheMiss) {
			f.logger.Warn("engine cache read failed", logging.F("workflow", name), logging.F("error", cacheErr.Error()))
		}
		return FetchResult{}, err
	}

	var cached models.WorkflowDefinition
	if decodeErr := json.Unmarshal(data, &cached); decodeErr != nil {
		return FetchResult{}, fmt.Errorf("%w (cached copy unreadable: %v)", err, decodeErr)
	}

	f.logger.Warn("engine unreachable, serving cached definition",
		logging.F("workflow", name), logging.F("version", version), logging.F("error", err.Error()))
	return FetchResult{Definition: &cached, FromCache: true}, nil
}

func (f *Fetcher) store(name string, version int, def *models.WorkflowDefinition) {
	data, err := json.Marshal(def)
	if err != nil {
		return
	}
	if err := f.cache.PutDefinition(name, version, data, f.ttl); err != nil {
		f.logger.Warn("engine cache write failed", logging.F("workflow", name), logging.F("error", err.Error()))
	}
}

// unreachable reports transport failures and engine server errors
func unreachable(err error) bool {
	if errors.Is(err, conductor.ErrWorkflowNotFound) {
		return false
	}
	var apiErr *conductor.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError
	}
	return true
}
