package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/tcmartin/flowstudio/pkg/logging"
	"github.com/tcmartin/flowstudio/pkg/models"
)

// PublishResult describes a definition sent to the engine
type PublishResult struct {
	DefinitionID  string    `json:"definition_id,omitempty"`
	Name          string    `json:"name"`
	Revision      int       `json:"revision,omitempty"`
	EngineVersion int       `json:"engine_version"`
	PublishedAt   time.Time `json:"published_at"`
}

// Publisher sends definitions to the engine
type Publisher struct {
	registry DefinitionRegistry
	engine   EngineClient
	logger   logging.Logger
	now      func() time.Time
}

// NewPublisher creates a publisher; registry may be nil when only
// PublishDefinition is used
func NewPublisher(registry DefinitionRegistry, engine EngineClient, logger logging.Logger) *Publisher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Publisher{
		registry: registry,
		engine:   engine,
		logger:   logger,
		now:      time.Now,
	}
}

// Publish sends the latest revision of a stored definition and marks it
// published. The engine version is the definition's own version, or the
// revision number when the definition leaves it at 0.
func (p *Publisher) Publish(ctx context.Context, id string) (PublishResult, error) {
	if p.registry == nil {
		return PublishResult{}, fmt.Errorf("publisher has no registry")
	}

	info, err := p.registry.GetInfo(id)
	if err != nil {
		return PublishResult{}, err
	}
	def, err := p.registry.Get(id)
	if err != nil {
		return PublishResult{}, err
	}
	if def.Version == 0 {
		def.Version = info.Version
	}

	if err := p.put(ctx, id, def); err != nil {
		return PublishResult{}, err
	}

	at := p.now()
	if err := p.registry.MarkPublished(id, info.Version, at); err != nil {
		return PublishResult{}, fmt.Errorf("published but failed to record status: %w", err)
	}

	return PublishResult{
		DefinitionID:  id,
		Name:          def.Name,
		Revision:      info.Version,
		EngineVersion: def.Version,
		PublishedAt:   at,
	}, nil
}

// PublishDefinition sends a definition that is not stored in the registry
func (p *Publisher) PublishDefinition(ctx context.Context, def *models.WorkflowDefinition) (PublishResult, error) {
	if def == nil || def.Name == "" {
		return PublishResult{}, fmt.Errorf("%w: workflow name is required", ErrInvalidDefinition)
	}
	if err := models.CheckTree(def.Tasks); err != nil {
		return PublishResult{}, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}
	if def.Version == 0 {
		def.Version = 1
	}

	if err := p.put(ctx, "", def); err != nil {
		return PublishResult{}, err
	}

	return PublishResult{
		Name:          def.Name,
		EngineVersion: def.Version,
		PublishedAt:   p.now(),
	}, nil
}

func (p *Publisher) put(ctx context.Context, id string, def *models.WorkflowDefinition) error {
	err := p.engine.PutWorkflows(ctx, def)
	p.logger.LogPublish(id, def.Name, def.Version, err)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", def.Name, err)
	}
	return nil
}
