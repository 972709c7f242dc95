package initializer

import (
	"context"
	"errors"

	"github.com/linkflow-go/templates/internal/domain/template"
	"github.com/linkflow-go/templates/pkg/logger"
	"github.com/linkflow-go/templates/pkg/metrics"
)

const DefaultStartingVersion = "1.0.0"

// TemplateCreator is the part of the version manager the initializer needs.
type TemplateCreator interface {
	Categories() []string
	ListTemplates(ctx context.Context) ([]template.TemplateInfo, error)
	CreateTemplateFromFactory(ctx context.Context, category, initialVersion string) (*template.Template, *template.TemplateVersion, error)
}

type Config struct {
	StartingVersion string
	// Categories restricts seeding to a subset of the factory's catalog.
	Categories []string
}

// Summary reports what a seeding run did per category.
type Summary struct {
	Created []string          `json:"created"`
	Skipped []string          `json:"skipped"`
	Failed  map[string]string `json:"failed"`
}

func (s Summary) HasFailures() bool {
	return len(s.Failed) > 0
}

// Initializer seeds a template for every known category that does not have
// one yet. Each category is created in its own transaction, so one failure
// never blocks the rest.
type Initializer struct {
	creator TemplateCreator
	config  Config
	logger  logger.Logger
}

func New(creator TemplateCreator, cfg Config, log logger.Logger) *Initializer {
	if cfg.StartingVersion == "" {
		cfg.StartingVersion = DefaultStartingVersion
	}
	return &Initializer{creator: creator, config: cfg, logger: log}
}

func (i *Initializer) Run(ctx context.Context) Summary {
	summary := Summary{
		Created: []string{},
		Skipped: []string{},
		Failed:  map[string]string{},
	}

	categories := i.categories()

	existing, err := i.creator.ListTemplates(ctx)
	if err != nil {
		i.logger.Error("Failed to list existing templates", "error", err)
		for _, category := range categories {
			i.fail(&summary, category, err)
		}
		return summary
	}

	present := make(map[string]bool, len(existing))
	for _, info := range existing {
		present[info.Template.Category] = true
	}

	for _, category := range categories {
		if err := ctx.Err(); err != nil {
			i.fail(&summary, category, err)
			continue
		}

		if present[category] {
			summary.Skipped = append(summary.Skipped, category)
			metrics.RecordBootstrapResult("skipped")
			continue
		}

		_, _, err := i.creator.CreateTemplateFromFactory(ctx, category, i.config.StartingVersion)
		switch {
		case err == nil:
			summary.Created = append(summary.Created, category)
			metrics.RecordBootstrapResult("created")
		case errors.Is(err, template.ErrTemplateAlreadyExists):
			// Another instance seeded it first.
			summary.Skipped = append(summary.Skipped, category)
			metrics.RecordBootstrapResult("skipped")
		default:
			i.fail(&summary, category, err)
		}
	}

	i.logger.Info("Default templates initialized",
		"created", len(summary.Created),
		"skipped", len(summary.Skipped),
		"failed", len(summary.Failed),
	)

	return summary
}

func (i *Initializer) categories() []string {
	if len(i.config.Categories) > 0 {
		return i.config.Categories
	}
	return i.creator.Categories()
}

func (i *Initializer) fail(summary *Summary, category string, err error) {
	summary.Failed[category] = err.Error()
	metrics.RecordBootstrapResult("failed")
	i.logger.Error("Failed to create default template", "category", category, "error", err)
}
