package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/linkflow-go/templates/internal/domain/template"
	"github.com/linkflow-go/templates/pkg/database"
	"github.com/linkflow-go/templates/pkg/semver"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TemplateRepository is the only component that talks to storage. It holds
// no business rules; invariants are enforced by the manager and by the
// unique indexes declared on the models.
type TemplateRepository struct {
	db *database.DB
}

func NewTemplateRepository(db *database.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// Migrate creates the templates and template_versions tables together with
// the (template_id, version) unique index and the partial index that allows
// a single is_current row per template.
func (r *TemplateRepository) Migrate() error {
	return r.db.Migrate(&template.Template{}, &template.TemplateVersion{})
}

// Transaction runs fn as one unit of work. Every write made through the
// repository passed to fn commits together, or none does.
func (r *TemplateRepository) Transaction(ctx context.Context, fn func(tx *TemplateRepository) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&TemplateRepository{db: &database.DB{DB: tx}})
	})
	if err != nil && !errors.Is(err, template.ErrWriteConflict) && isWriteConflict(err) {
		return fmt.Errorf("%w: %v", template.ErrWriteConflict, err)
	}
	return err
}

// FindTemplate returns nil when no template exists for category.
func (r *TemplateRepository) FindTemplate(ctx context.Context, category string) (*template.Template, error) {
	var t template.Template
	err := r.db.WithContext(ctx).
		Where("category = ?", category).
		Take(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find template: %w", err)
	}
	return &t, nil
}

// ListTemplates returns every template ordered by category.
func (r *TemplateRepository) ListTemplates(ctx context.Context) ([]*template.Template, error) {
	var templates []*template.Template
	if err := r.db.WithContext(ctx).Order("category ASC").Find(&templates).Error; err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	return templates, nil
}

// FindCurrentVersion returns nil when the template has no current version.
func (r *TemplateRepository) FindCurrentVersion(ctx context.Context, templateID string) (*template.TemplateVersion, error) {
	return r.findCurrent(r.db.WithContext(ctx), templateID)
}

// FindCurrentVersionForUpdate is FindCurrentVersion with a row lock on
// dialects that support SELECT ... FOR UPDATE. Call it inside Transaction.
func (r *TemplateRepository) FindCurrentVersionForUpdate(ctx context.Context, templateID string) (*template.TemplateVersion, error) {
	query := r.db.WithContext(ctx)
	if database.SupportsRowLocking(query) {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.findCurrent(query, templateID)
}

func (r *TemplateRepository) findCurrent(query *gorm.DB, templateID string) (*template.TemplateVersion, error) {
	var v template.TemplateVersion
	err := query.
		Where("template_id = ? AND is_current = ?", templateID, true).
		Take(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find current version: %w", err)
	}
	return &v, nil
}

// FindVersion returns nil when the version string does not exist for the template.
func (r *TemplateRepository) FindVersion(ctx context.Context, templateID, version string) (*template.TemplateVersion, error) {
	var v template.TemplateVersion
	err := r.db.WithContext(ctx).
		Where("template_id = ? AND version = ?", templateID, version).
		Take(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find version: %w", err)
	}
	return &v, nil
}

// ListVersions returns every version of the template, newest created_at
// first. Versions created at the same instant are ordered by semantic
// version, highest first.
func (r *TemplateRepository) ListVersions(ctx context.Context, templateID string) ([]*template.TemplateVersion, error) {
	var versions []*template.TemplateVersion
	err := r.db.WithContext(ctx).
		Where("template_id = ?", templateID).
		Order("created_at DESC").
		Find(&versions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}

	sort.SliceStable(versions, func(i, j int) bool {
		a, b := versions[i], versions[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return semver.IsNewer(a.Version, b.Version)
	})

	return versions, nil
}

func (r *TemplateRepository) CreateTemplate(ctx context.Context, t *template.Template) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(t).Error; err != nil {
		return translateError("failed to create template", err)
	}
	return nil
}

func (r *TemplateRepository) CreateVersion(ctx context.Context, v *template.TemplateVersion) error {
	if err := r.db.WithContext(ctx).Create(v).Error; err != nil {
		return translateError("failed to create template version", err)
	}
	return nil
}

// SaveVersionFlags persists is_current and is_deprecated only; the other
// columns of a version never change after insert.
func (r *TemplateRepository) SaveVersionFlags(ctx context.Context, v *template.TemplateVersion) error {
	result := r.db.WithContext(ctx).
		Model(&template.TemplateVersion{}).
		Where("id = ?", v.ID).
		Updates(map[string]interface{}{
			"is_current":    v.IsCurrent,
			"is_deprecated": v.IsDeprecated,
		})
	if result.Error != nil {
		return translateError("failed to update template version", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to update template version %s: %w", v.ID, gorm.ErrRecordNotFound)
	}
	return nil
}

// TouchTemplate bumps updated_at and the generation after a promotion.
func (r *TemplateRepository) TouchTemplate(ctx context.Context, templateID string) error {
	result := r.db.WithContext(ctx).
		Model(&template.Template{}).
		Where("id = ?", templateID).
		Updates(map[string]interface{}{
			"updated_at": r.db.NowFunc(),
			"generation": gorm.Expr("generation + ?", 1),
		})
	if result.Error != nil {
		return translateError("failed to touch template", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to touch template %s: %w", templateID, gorm.ErrRecordNotFound)
	}
	return nil
}

func translateError(msg string, err error) error {
	switch {
	case isDuplicateKey(err):
		return fmt.Errorf("%s: %w", msg, template.ErrDuplicateKey)
	case isWriteConflict(err):
		return fmt.Errorf("%s: %w: %v", msg, template.ErrWriteConflict, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

// isWriteConflict reports errors raised when another transaction holds the
// rows or the database lock: sqlite busy, postgres serialization failures
// and deadlocks.
func isWriteConflict(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "could not serialize access") ||
		strings.Contains(msg, "deadlock detected")
}
