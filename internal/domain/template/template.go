package template

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/linkflow-go/templates/pkg/semver"
	"gorm.io/datatypes"
)

var (
	ErrTemplateAlreadyExists  = errors.New("template already exists for category")
	ErrTemplateNotFound       = errors.New("template not found")
	ErrVersionAlreadyExists   = errors.New("template version already exists")
	ErrInvalidVersionFormat   = semver.ErrInvalidVersionFormat
	ErrNotNewerThanCurrent    = errors.New("version is not newer than the current version")
	ErrCannotDeprecateCurrent = errors.New("cannot deprecate the current version")
	ErrPromotionConflict      = errors.New("concurrent version promotion, retry the request")
	ErrDefinitionNotFound     = errors.New("no template definition for category")
	ErrDefinitionRequired     = errors.New("template definition is required")

	// ErrDuplicateKey is returned by the store when a unique constraint rejects a write.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrWriteConflict is returned by the store when a concurrent transaction
	// blocked or aborted a write.
	ErrWriteConflict = errors.New("write conflict")
)

// InitialChangelog is recorded on the first version created for a template.
const InitialChangelog = "Initial template version"

// Definition is the opaque template document (form fields, node graph, rules).
type Definition = datatypes.JSONMap

// Template is one row per template category.
type Template struct {
	ID                  string   `json:"id" gorm:"primaryKey"`
	Category            string   `json:"category" gorm:"not null;uniqueIndex"`
	Name                string   `json:"name" gorm:"not null"`
	Description         string   `json:"description"`
	SupportedRegions    []string `json:"supportedRegions" gorm:"serializer:json"`
	SupportedCurrencies []string `json:"supportedCurrencies" gorm:"serializer:json"`
	SupportedLanguages  []string `json:"supportedLanguages" gorm:"serializer:json"`
	// Generation increases with every promotion. Cached reads are keyed by it.
	Generation int64     `json:"generation" gorm:"not null;default:1"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`

	Versions []TemplateVersion `json:"-" gorm:"foreignKey:TemplateID;constraint:OnDelete:CASCADE"`
}

// TemplateVersion is one released version of a template. Only IsCurrent and
// IsDeprecated change after insert.
type TemplateVersion struct {
	ID                 string     `json:"id" gorm:"primaryKey"`
	TemplateID         string     `json:"templateId" gorm:"not null;uniqueIndex:idx_template_versions_version,priority:1;uniqueIndex:idx_template_versions_single_current,where:is_current"`
	Version            string     `json:"version" gorm:"not null;uniqueIndex:idx_template_versions_version,priority:2"`
	IsCurrent          bool       `json:"isCurrent" gorm:"not null;default:false"`
	IsDeprecated       bool       `json:"isDeprecated" gorm:"not null;default:false"`
	CreatedAt          time.Time  `json:"createdAt" gorm:"not null;index"`
	Changelog          *string    `json:"changelog,omitempty"`
	BreakingChanges    bool       `json:"breakingChanges" gorm:"not null;default:false"`
	MigrationNotes     *string    `json:"migrationNotes,omitempty"`
	TemplateDefinition Definition `json:"templateDefinition"`
}

// VersionSummary is the read-only history view of a TemplateVersion.
type VersionSummary struct {
	ID              string    `json:"id"`
	TemplateID      string    `json:"templateId"`
	Version         string    `json:"version"`
	IsCurrent       bool      `json:"isCurrent"`
	IsDeprecated    bool      `json:"isDeprecated"`
	CreatedAt       time.Time `json:"createdAt"`
	Changelog       *string   `json:"changelog,omitempty"`
	BreakingChanges bool      `json:"breakingChanges"`
	MigrationNotes  *string   `json:"migrationNotes,omitempty"`
}

// CreateVersionRequest carries the data for a new template version.
type CreateVersionRequest struct {
	Version            string     `json:"version" binding:"required"`
	Changelog          *string    `json:"changelog"`
	BreakingChanges    bool       `json:"breakingChanges"`
	MigrationNotes     *string    `json:"migrationNotes"`
	TemplateDefinition Definition `json:"templateDefinition" binding:"required"`
}

// TemplateInfo pairs a template with its current version string.
type TemplateInfo struct {
	Template       *Template `json:"template"`
	CurrentVersion string    `json:"currentVersion,omitempty"`
}

// NewTemplate creates a template for a category.
func NewTemplate(category, name, description string) *Template {
	now := time.Now().UTC()
	return &Template{
		ID:                  uuid.New().String(),
		Category:            category,
		Name:                name,
		Description:         description,
		SupportedRegions:    []string{},
		SupportedCurrencies: []string{},
		SupportedLanguages:  []string{},
		Generation:          1,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// NewTemplateVersion creates a current, non-deprecated version row.
func NewTemplateVersion(templateID, version string, definition Definition) *TemplateVersion {
	return &TemplateVersion{
		ID:                 uuid.New().String(),
		TemplateID:         templateID,
		Version:            version,
		IsCurrent:          true,
		IsDeprecated:       false,
		CreatedAt:          time.Now().UTC(),
		TemplateDefinition: definition,
	}
}

// Summary returns the read-only view of the version.
func (v *TemplateVersion) Summary() VersionSummary {
	return VersionSummary{
		ID:              v.ID,
		TemplateID:      v.TemplateID,
		Version:         v.Version,
		IsCurrent:       v.IsCurrent,
		IsDeprecated:    v.IsDeprecated,
		CreatedAt:       v.CreatedAt,
		Changelog:       v.Changelog,
		BreakingChanges: v.BreakingChanges,
		MigrationNotes:  v.MigrationNotes,
	}
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
