package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/linkflow-go/templates/internal/domain/template"
	"github.com/linkflow-go/templates/internal/services/template/factory"
	"github.com/linkflow-go/templates/internal/services/template/repository"
	"github.com/linkflow-go/templates/pkg/cache"
	"github.com/linkflow-go/templates/pkg/events"
	"github.com/linkflow-go/templates/pkg/logger"
	"github.com/linkflow-go/templates/pkg/metrics"
	"github.com/linkflow-go/templates/pkg/semver"
	"github.com/linkflow-go/templates/pkg/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultCacheTTL = 5 * time.Minute

	opCreateTemplate   = "create_template"
	opCreateVersion    = "create_version"
	opDeprecateVersion = "deprecate_version"
)

// Manager owns the template version lifecycle. It keeps no mutable state
// between calls; every guarantee about the current version comes from the
// store's transactions and unique indexes.
type Manager struct {
	repo     *repository.TemplateRepository
	factory  factory.ContentFactory
	cache    cache.Cache
	eventBus events.EventBus
	logger   logger.Logger
	tracer   trace.Tracer
	keys     *cache.KeyBuilder
	cacheTTL time.Duration
}

type Option func(*Manager)

// WithCacheTTL sets how long a current version stays in the read cache.
func WithCacheTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.cacheTTL = ttl
		}
	}
}

func NewManager(
	repo *repository.TemplateRepository,
	contentFactory factory.ContentFactory,
	versionCache cache.Cache,
	eventBus events.EventBus,
	log logger.Logger,
	opts ...Option,
) *Manager {
	if log == nil {
		log = logger.NewNop()
	}
	if versionCache == nil {
		versionCache = cache.NewNop()
	}
	if eventBus == nil {
		eventBus = events.NewLogEventBus(log)
	}

	m := &Manager{
		repo:     repo,
		factory:  contentFactory,
		cache:    versionCache,
		eventBus: eventBus,
		logger:   log,
		tracer:   otel.Tracer(telemetry.TracerName),
		keys:     cache.NewKeyBuilder("templates"),
		cacheTTL: defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Categories lists the categories the content factory can build.
func (m *Manager) Categories() []string {
	return m.factory.Categories()
}

// CreateTemplateFromFactory creates the template for category together with
// its first version, which becomes current.
func (m *Manager) CreateTemplateFromFactory(ctx context.Context, category, initialVersion string) (_ *template.Template, _ *template.TemplateVersion, err error) {
	ctx, span := m.tracer.Start(ctx, "templates.CreateTemplateFromFactory",
		trace.WithAttributes(telemetry.CategoryAttribute(category), telemetry.VersionAttribute(initialVersion)))
	defer func() {
		telemetry.RecordError(span, err)
		metrics.RecordTemplateOperation(opCreateTemplate, outcome(err))
		span.End()
	}()

	existing, err := m.repo.FindTemplate(ctx, category)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		return nil, nil, fmt.Errorf("%w: %s", template.ErrTemplateAlreadyExists, category)
	}

	if _, err := semver.Parse(initialVersion); err != nil {
		return nil, nil, err
	}

	blueprint, err := m.factory.GetDefinition(ctx, category)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build template content: %w", err)
	}

	tmpl := template.NewTemplate(category, blueprint.Name, blueprint.Description)
	tmpl.SupportedRegions = blueprint.SupportedRegions
	tmpl.SupportedCurrencies = blueprint.SupportedCurrencies
	tmpl.SupportedLanguages = blueprint.SupportedLanguages

	version := template.NewTemplateVersion(tmpl.ID, initialVersion, blueprint.Definition)
	version.Changelog = template.StringPtr(template.InitialChangelog)

	err = m.repo.Transaction(ctx, func(tx *repository.TemplateRepository) error {
		if err := tx.CreateTemplate(ctx, tmpl); err != nil {
			return err
		}
		return tx.CreateVersion(ctx, version)
	})
	if err != nil {
		if errors.Is(err, template.ErrDuplicateKey) {
			return nil, nil, fmt.Errorf("%w: %s", template.ErrTemplateAlreadyExists, category)
		}
		return nil, nil, err
	}

	span.SetAttributes(telemetry.TemplateIDAttribute(tmpl.ID))
	m.invalidateCurrent(ctx, tmpl)
	metrics.RecordVersionCreated(category, false)

	m.publish(ctx, m.event(ctx, events.TemplateCreated, tmpl.ID).
		WithPayload("category", category).
		WithPayload("name", tmpl.Name).
		WithPayload("version", initialVersion).
		Build())
	m.publish(ctx, m.event(ctx, events.TemplateVersionCreated, tmpl.ID).
		WithPayload("category", category).
		WithPayload("versionId", version.ID).
		WithPayload("version", initialVersion).
		WithPayload("breakingChanges", false).
		Build())

	m.logger.Info("Template created",
		"category", category,
		"templateId", tmpl.ID,
		"version", initialVersion,
	)

	return tmpl, version, nil
}

// CreateNewVersion inserts req as the new current version of the category's
// template. Demoting the previous current version and inserting the new one
// commit together or not at all.
func (m *Manager) CreateNewVersion(ctx context.Context, category string, req template.CreateVersionRequest) (_ *template.TemplateVersion, err error) {
	ctx, span := m.tracer.Start(ctx, "templates.CreateNewVersion",
		trace.WithAttributes(telemetry.CategoryAttribute(category), telemetry.VersionAttribute(req.Version)))
	defer func() {
		telemetry.RecordError(span, err)
		metrics.RecordTemplateOperation(opCreateVersion, outcome(err))
		span.End()
	}()

	tmpl, err := m.repo.FindTemplate(ctx, category)
	if err != nil {
		return nil, err
	}
	if tmpl == nil {
		return nil, fmt.Errorf("%w: %s", template.ErrTemplateNotFound, category)
	}
	span.SetAttributes(telemetry.TemplateIDAttribute(tmpl.ID))

	if _, err := semver.Parse(req.Version); err != nil {
		return nil, err
	}
	if req.TemplateDefinition == nil {
		return nil, fmt.Errorf("%w: %s %s", template.ErrDefinitionRequired, category, req.Version)
	}

	version := template.NewTemplateVersion(tmpl.ID, req.Version, req.TemplateDefinition)
	version.Changelog = req.Changelog
	version.BreakingChanges = req.BreakingChanges
	version.MigrationNotes = req.MigrationNotes

	var previous string
	err = m.repo.Transaction(ctx, func(tx *repository.TemplateRepository) error {
		existing, err := tx.FindVersion(ctx, tmpl.ID, req.Version)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: %s %s", template.ErrVersionAlreadyExists, category, req.Version)
		}

		current, err := tx.FindCurrentVersionForUpdate(ctx, tmpl.ID)
		if err != nil {
			return err
		}

		if current != nil {
			if !semver.IsNewer(req.Version, current.Version) {
				return fmt.Errorf("%w: %s is not newer than %s", template.ErrNotNewerThanCurrent, req.Version, current.Version)
			}
			previous = current.Version
			current.IsCurrent = false
			if err := tx.SaveVersionFlags(ctx, current); err != nil {
				return err
			}
		}

		if err := tx.CreateVersion(ctx, version); err != nil {
			return err
		}
		return tx.TouchTemplate(ctx, tmpl.ID)
	})
	if err != nil {
		if errors.Is(err, template.ErrDuplicateKey) || errors.Is(err, template.ErrWriteConflict) {
			metrics.RecordPromotionConflict(category)
			m.logger.Warn("Concurrent promotion rejected",
				"category", category,
				"version", req.Version,
				"error", err,
			)
			return nil, fmt.Errorf("%w: %s %s", template.ErrPromotionConflict, category, req.Version)
		}
		return nil, err
	}

	// Readers of later generations never see the old entry; dropping it
	// only frees the slot early.
	m.invalidateCurrent(ctx, tmpl)
	metrics.RecordVersionCreated(category, req.BreakingChanges)

	m.publish(ctx, m.event(ctx, events.TemplateVersionCreated, tmpl.ID).
		WithPayload("category", category).
		WithPayload("versionId", version.ID).
		WithPayload("version", version.Version).
		WithPayload("breakingChanges", version.BreakingChanges).
		Build())
	m.publish(ctx, m.event(ctx, events.TemplateVersionPromoted, tmpl.ID).
		WithPayload("category", category).
		WithPayload("version", version.Version).
		WithPayload("previousVersion", previous).
		Build())

	m.logger.Info("Template version promoted",
		"category", category,
		"version", version.Version,
		"previousVersion", previous,
		"breakingChanges", version.BreakingChanges,
	)

	return version, nil
}

// GetCurrentVersion returns nil when the template or its current version
// does not exist. Cached entries are keyed by the template generation, so an
// entry written by a read that overlapped a promotion is never served after
// the promotion commits.
func (m *Manager) GetCurrentVersion(ctx context.Context, category string) (_ *template.TemplateVersion, err error) {
	ctx, span := m.tracer.Start(ctx, "templates.GetCurrentVersion",
		trace.WithAttributes(telemetry.CategoryAttribute(category)))
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	tmpl, err := m.repo.FindTemplate(ctx, category)
	if err != nil || tmpl == nil {
		return nil, err
	}

	key := m.currentKey(tmpl)

	var cached template.TemplateVersion
	switch cacheErr := m.cache.Get(ctx, key, &cached); {
	case cacheErr == nil:
		return &cached, nil
	case !errors.Is(cacheErr, cache.ErrCacheMiss):
		m.logger.Warn("Failed to read current version from cache", "category", category, "error", cacheErr)
	}

	current, err := m.repo.FindCurrentVersion(ctx, tmpl.ID)
	if err != nil || current == nil {
		return nil, err
	}

	if err := m.cache.Set(ctx, key, current, m.cacheTTL); err != nil {
		m.logger.Warn("Failed to cache current version", "category", category, "error", err)
	}
	return current, nil
}

// GetVersionHistory returns every version of the category's template,
// newest first. The result is empty when the template does not exist.
func (m *Manager) GetVersionHistory(ctx context.Context, category string) (_ []template.VersionSummary, err error) {
	ctx, span := m.tracer.Start(ctx, "templates.GetVersionHistory",
		trace.WithAttributes(telemetry.CategoryAttribute(category)))
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	history := []template.VersionSummary{}

	tmpl, err := m.repo.FindTemplate(ctx, category)
	if err != nil {
		return nil, err
	}
	if tmpl == nil {
		return history, nil
	}

	versions, err := m.repo.ListVersions(ctx, tmpl.ID)
	if err != nil {
		return nil, err
	}
	for _, v := range versions {
		history = append(history, v.Summary())
	}
	return history, nil
}

// DeprecateVersion marks a non-current version deprecated. It reports false
// when the template or version does not exist.
func (m *Manager) DeprecateVersion(ctx context.Context, category, version string) (_ bool, err error) {
	ctx, span := m.tracer.Start(ctx, "templates.DeprecateVersion",
		trace.WithAttributes(telemetry.CategoryAttribute(category), telemetry.VersionAttribute(version)))
	defer func() {
		telemetry.RecordError(span, err)
		metrics.RecordTemplateOperation(opDeprecateVersion, outcome(err))
		span.End()
	}()

	tmpl, err := m.repo.FindTemplate(ctx, category)
	if err != nil || tmpl == nil {
		return false, err
	}

	var target *template.TemplateVersion
	changed := false
	err = m.repo.Transaction(ctx, func(tx *repository.TemplateRepository) error {
		v, err := tx.FindVersion(ctx, tmpl.ID, version)
		if err != nil || v == nil {
			return err
		}
		target = v

		if v.IsCurrent {
			return fmt.Errorf("%w: %s %s", template.ErrCannotDeprecateCurrent, category, version)
		}
		if v.IsDeprecated {
			return nil
		}

		v.IsDeprecated = true
		changed = true
		return tx.SaveVersionFlags(ctx, v)
	})
	if err != nil {
		return false, err
	}
	if target == nil {
		return false, nil
	}

	if changed {
		m.publish(ctx, m.event(ctx, events.TemplateVersionDeprecated, tmpl.ID).
			WithPayload("category", category).
			WithPayload("versionId", target.ID).
			WithPayload("version", version).
			Build())
		m.logger.Info("Template version deprecated", "category", category, "version", version)
	}

	return true, nil
}

// GetTemplateDefinition returns the definition of version, or of the current
// version when version is nil. It returns nil when nothing matches.
func (m *Manager) GetTemplateDefinition(ctx context.Context, category string, version *string) (template.Definition, error) {
	if version == nil {
		current, err := m.GetCurrentVersion(ctx, category)
		if err != nil || current == nil {
			return nil, err
		}
		return current.TemplateDefinition, nil
	}

	tmpl, err := m.repo.FindTemplate(ctx, category)
	if err != nil || tmpl == nil {
		return nil, err
	}
	v, err := m.repo.FindVersion(ctx, tmpl.ID, *version)
	if err != nil || v == nil {
		return nil, err
	}
	return v.TemplateDefinition, nil
}

// ListTemplates returns every template with its current version string.
func (m *Manager) ListTemplates(ctx context.Context) ([]template.TemplateInfo, error) {
	templates, err := m.repo.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]template.TemplateInfo, 0, len(templates))
	for _, tmpl := range templates {
		info := template.TemplateInfo{Template: tmpl}
		current, err := m.repo.FindCurrentVersion(ctx, tmpl.ID)
		if err != nil {
			return nil, err
		}
		if current != nil {
			info.CurrentVersion = current.Version
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (m *Manager) currentKey(tmpl *template.Template) string {
	return m.keys.Build("current", tmpl.Category, strconv.FormatInt(tmpl.Generation, 10))
}

func (m *Manager) invalidateCurrent(ctx context.Context, tmpl *template.Template) {
	if err := m.cache.Delete(ctx, m.currentKey(tmpl)); err != nil {
		m.logger.Warn("Failed to invalidate current version cache", "category", tmpl.Category, "error", err)
	}
}

func (m *Manager) event(ctx context.Context, eventType, templateID string) *events.EventBuilder {
	b := events.NewEventBuilder(eventType).
		WithAggregateID(templateID).
		WithAggregateType(events.AggregateTemplate)
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		b.WithTraceID(sc.TraceID().String())
	}
	return b
}

// publish never fails the caller; the state change has already committed.
func (m *Manager) publish(ctx context.Context, event events.Event) {
	if err := m.eventBus.Publish(ctx, event); err != nil {
		m.logger.Error("Failed to publish template event",
			"type", event.Type,
			"aggregateId", event.AggregateID,
			"error", err,
		)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, template.ErrTemplateAlreadyExists), errors.Is(err, template.ErrVersionAlreadyExists):
		return "already_exists"
	case errors.Is(err, template.ErrTemplateNotFound), errors.Is(err, template.ErrDefinitionNotFound):
		return "not_found"
	case errors.Is(err, template.ErrInvalidVersionFormat):
		return "invalid_version"
	case errors.Is(err, template.ErrDefinitionRequired):
		return "invalid_definition"
	case errors.Is(err, template.ErrNotNewerThanCurrent):
		return "not_newer"
	case errors.Is(err, template.ErrCannotDeprecateCurrent):
		return "current"
	case errors.Is(err, template.ErrPromotionConflict):
		return "conflict"
	default:
		return "error"
	}
}
