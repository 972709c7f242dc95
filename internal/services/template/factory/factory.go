package factory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/linkflow-go/templates/internal/domain/template"
)

// Field types used by industry form definitions
const (
	FieldTypeString   = "string"
	FieldTypeNumber   = "number"
	FieldTypeBoolean  = "boolean"
	FieldTypeDate     = "date"
	FieldTypeEmail    = "email"
	FieldTypePhone    = "phone"
	FieldTypeCurrency = "currency"
	FieldTypeSelect   = "select"
)

// Industry categories
const (
	CategoryConsulting = "consulting"
	CategoryHealthcare = "healthcare"
	CategoryRealEstate = "real_estate"
	CategoryEcommerce  = "ecommerce"
	CategoryRestaurant = "restaurant"
	CategoryFitness    = "fitness"
	CategoryEducation  = "education"
	CategoryLegal      = "legal"
)

// Blueprint is what the factory produces for a category: template metadata
// plus the initial definition document.
type Blueprint struct {
	Category            string
	Name                string
	Description         string
	SupportedRegions    []string
	SupportedCurrencies []string
	SupportedLanguages  []string
	Definition          template.Definition
}

// ContentFactory supplies initial template content per category.
type ContentFactory interface {
	GetDefinition(ctx context.Context, category string) (*Blueprint, error)
	Categories() []string
}

// FormField is one input collected by the template's intake form.
type FormField struct {
	Key          string      `json:"key"`
	Label        string      `json:"label"`
	Type         string      `json:"type"`
	Required     bool        `json:"required"`
	DefaultValue interface{} `json:"defaultValue,omitempty"`
	Options      []Option    `json:"options,omitempty"`
	Validation   *Validation `json:"validation,omitempty"`
}

type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type Validation struct {
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`
}

// Node is a step in the template's workflow graph.
type Node struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Name       string                 `json:"name"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// Edge connects two nodes.
type Edge struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Condition string `json:"condition,omitempty"`
}

// BusinessRule is a declarative rule evaluated by downstream execution.
type BusinessRule struct {
	ID        string `json:"id"`
	When      string `json:"when"`
	Then      string `json:"then"`
	Threshold string `json:"threshold,omitempty"`
}

type content struct {
	FormFields    []FormField    `json:"form_fields"`
	Nodes         []Node         `json:"nodes"`
	Edges         []Edge         `json:"edges"`
	BusinessRules []BusinessRule `json:"business_rules"`
}

type entry struct {
	blueprint Blueprint
	content   content
}

// Catalog is the built-in, in-memory ContentFactory.
type Catalog struct {
	entries map[string]entry
}

// NewCatalog returns the catalog of built-in industry templates.
func NewCatalog() *Catalog {
	c := &Catalog{entries: make(map[string]entry)}
	registerBuiltIns(c)
	return c
}

func (c *Catalog) register(b Blueprint, body content) {
	c.entries[b.Category] = entry{blueprint: b, content: body}
}

// Categories returns the known categories in sorted order.
func (c *Catalog) Categories() []string {
	categories := make([]string, 0, len(c.entries))
	for category := range c.entries {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	return categories
}

// GetDefinition returns a fresh blueprint for category. Callers own the
// returned document.
func (c *Catalog) GetDefinition(ctx context.Context, category string) (*Blueprint, error) {
	e, ok := c.entries[category]
	if !ok {
		return nil, fmt.Errorf("%w: %s", template.ErrDefinitionNotFound, category)
	}

	definition, err := toDefinition(category, e.content)
	if err != nil {
		return nil, err
	}

	b := e.blueprint
	b.SupportedRegions = append([]string(nil), b.SupportedRegions...)
	b.SupportedCurrencies = append([]string(nil), b.SupportedCurrencies...)
	b.SupportedLanguages = append([]string(nil), b.SupportedLanguages...)
	b.Definition = definition
	return &b, nil
}

// toDefinition renders typed content into a plain JSON document.
func toDefinition(category string, body content) (template.Definition, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode definition for %s: %w", category, err)
	}
	var definition template.Definition
	if err := json.Unmarshal(data, &definition); err != nil {
		return nil, fmt.Errorf("failed to decode definition for %s: %w", category, err)
	}
	definition["category"] = category
	return definition, nil
}

func floatPtr(f float64) *float64 {
	return &f
}

func intPtr(i int) *int {
	return &i
}
