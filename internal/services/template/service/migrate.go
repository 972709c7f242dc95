package service

import (
	"time"

	"github.com/linkflow-go/templates/internal/domain/template"
)

// MigrationInfoKey is the reserved definition key recording a migration.
const MigrationInfoKey = "_migration_info"

// MigrateTemplateDefinition returns a copy of old annotated with the version
// transition. old is never modified. Structural transforms between versions
// are not applied; the copy carries the original content unchanged.
func (m *Manager) MigrateTemplateDefinition(old template.Definition, fromVersion, toVersion string) template.Definition {
	return migrateDefinition(old, fromVersion, toVersion, time.Now().UTC())
}

func migrateDefinition(old template.Definition, fromVersion, toVersion string, at time.Time) template.Definition {
	migrated := make(template.Definition, len(old)+1)
	for k, v := range old {
		migrated[k] = deepCopy(v)
	}
	migrated[MigrationInfoKey] = map[string]interface{}{
		"from_version": fromVersion,
		"to_version":   toVersion,
		"migrated_at":  at.Format(time.RFC3339),
	}
	return migrated
}

func deepCopy(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, item := range v {
			out[k] = deepCopy(item)
		}
		return out
	case template.Definition:
		out := make(template.Definition, len(v))
		for k, item := range v {
			out[k] = deepCopy(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = deepCopy(item)
		}
		return out
	case []map[string]interface{}:
		out := make([]map[string]interface{}, len(v))
		for i, item := range v {
			out[i] = deepCopy(item).(map[string]interface{})
		}
		return out
	case []string:
		return append([]string(nil), v...)
	default:
		return v
	}
}
