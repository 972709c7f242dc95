package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/linkflow-go/templates/internal/domain/template"
	"github.com/linkflow-go/templates/internal/services/template/factory"
	"github.com/linkflow-go/templates/internal/services/template/repository"
	"github.com/linkflow-go/templates/pkg/cache"
	"github.com/linkflow-go/templates/pkg/database"
	"github.com/linkflow-go/templates/pkg/events"
	"github.com/linkflow-go/templates/pkg/logger"
	"github.com/linkflow-go/templates/pkg/semver"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testEnv struct {
	manager *Manager
	db      *database.DB
	bus     *events.MemoryEventBus
}

func setupTestManager(t *testing.T, opts ...Option) *testEnv {
	return setupTestManagerWithCache(t, cache.NewNop(), opts...)
}

func setupTestManagerWithCache(t *testing.T, c cache.Cache, opts ...Option) *testEnv {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	return newTestEnv(t, dsn, 1, c, opts...)
}

// setupPooledTestManager uses a WAL sqlite file so several connections can
// run transactions at the same time.
func setupPooledTestManager(t *testing.T, conns int) *testEnv {
	dsn := "file:" + filepath.Join(t.TempDir(), "templates.db") + "?_busy_timeout=5000&_journal_mode=WAL"
	return newTestEnv(t, dsn, conns, cache.NewNop())
}

func newTestEnv(t *testing.T, dsn string, conns int, c cache.Cache, opts ...Option) *testEnv {
	db, err := database.Open(sqlite.Open(dsn), logger.NewNop(), 0)
	require.NoError(t, err)

	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(conns)
	t.Cleanup(func() { _ = db.Close() })

	repo := repository.NewTemplateRepository(db)
	require.NoError(t, repo.Migrate())

	bus := events.NewMemoryEventBus()
	return &testEnv{
		manager: NewManager(repo, factory.NewCatalog(), c, bus, logger.NewNop(), opts...),
		db:      db,
		bus:     bus,
	}
}

func newVersionRequest(version string) template.CreateVersionRequest {
	return template.CreateVersionRequest{
		Version:   version,
		Changelog: template.StringPtr("Release " + version),
		TemplateDefinition: template.Definition{
			"release": version,
			"nodes":   []interface{}{map[string]interface{}{"id": "start", "retries": 3}},
		},
	}
}

func assertSameDocument(t *testing.T, expected, actual template.Definition) {
	t.Helper()
	want, err := json.Marshal(expected)
	require.NoError(t, err)
	got, err := json.Marshal(actual)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))
}

func countCurrent(t *testing.T, env *testEnv, category string) int {
	t.Helper()
	history, err := env.manager.GetVersionHistory(context.Background(), category)
	require.NoError(t, err)
	n := 0
	for _, v := range history {
		if v.IsCurrent {
			n++
		}
		assert.False(t, v.IsCurrent && v.IsDeprecated, "version %s is current and deprecated", v.Version)
	}
	return n
}

func TestManager_CreateTemplateFromFactory(t *testing.T) {
	env := setupTestManager(t)
	ctx := context.Background()

	tmpl, version, err := env.manager.CreateTemplateFromFactory(ctx, factory.CategoryConsulting, "1.0.0")
	require.NoError(t, err)

	assert.Equal(t, factory.CategoryConsulting, tmpl.Category)
	assert.NotEmpty(t, tmpl.Name)
	assert.NotEmpty(t, tmpl.SupportedRegions)
	assert.Equal(t, tmpl.ID, version.TemplateID)
	assert.Equal(t, "1.0.0", version.Version)
	assert.True(t, version.IsCurrent)
	assert.False(t, version.IsDeprecated)
	require.NotNil(t, version.Changelog)
	assert.Equal(t, template.InitialChangelog, *version.Changelog)

	current, err := env.manager.GetCurrentVersion(ctx, factory.CategoryConsulting)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "1.0.0", current.Version)
	assert.True(t, current.IsCurrent)

	blueprint, err := factory.NewCatalog().GetDefinition(ctx, factory.CategoryConsulting)
	require.NoError(t, err)
	assertSameDocument(t, blueprint.Definition, current.TemplateDefinition)

	assert.Len(t, env.bus.OfType(events.TemplateCreated), 1)
	assert.Len(t, env.bus.OfType(events.TemplateVersionCreated), 1)
}

func TestManager_CreateTemplateFromFactory_Errors(t *testing.T) {
	env := setupTestManager(t)
	ctx := context.Background()

	_, _, err := env.manager.CreateTemplateFromFactory(ctx, factory.CategoryLegal, "1.0.0")
	require.NoError(t, err)

	_, _, err = env.manager.CreateTemplateFromFactory(ctx, factory.CategoryLegal, "2.0.0")
	assert.ErrorIs(t, err, template.ErrTemplateAlreadyExists)

	_, _, err = env.manager.CreateTemplateFromFactory(ctx, factory.CategoryHealthcare, "v1.0.0")
	assert.ErrorIs(t, err, template.ErrInvalidVersionFormat)

	_, _, err = env.manager.CreateTemplateFromFactory(ctx, "space-mining", "1.0.0")
	assert.ErrorIs(t, err, template.ErrDefinitionNotFound)

	infos, err := env.manager.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, factory.CategoryLegal, infos[0].Template.Category)
	assert.Equal(t, "1.0.0", infos[0].CurrentVersion)
}

func TestManager_CreateNewVersion(t *testing.T) {
	env := setupTestManager(t)
	ctx := context.Background()

	_, _, err := env.manager.CreateTemplateFromFactory(ctx, factory.CategoryConsulting, "1.0.0")
	require.NoError(t, err)

	req := newVersionRequest("2.0.0")
	req.BreakingChanges = true
	req.MigrationNotes = template.StringPtr("Rename budget to estimated_budget")

	created, err := env.manager.CreateNewVersion(ctx, factory.CategoryConsulting, req)
	require.NoError(t, err)
	assert.True(t, created.IsCurrent)
	assert.True(t, created.BreakingChanges)

	current, err := env.manager.GetCurrentVersion(ctx, factory.CategoryConsulting)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", current.Version)

	history, err := env.manager.GetVersionHistory(ctx, factory.CategoryConsulting)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "2.0.0", history[0].Version)
	assert.True(t, history[0].IsCurrent)
	require.NotNil(t, history[0].MigrationNotes)
	assert.Equal(t, "Rename budget to estimated_budget", *history[0].MigrationNotes)
	assert.Equal(t, "1.0.0", history[1].Version)
	assert.False(t, history[1].IsCurrent)

	promoted := env.bus.OfType(events.TemplateVersionPromoted)
	require.Len(t, promoted, 1)
	assert.Equal(t, "2.0.0", promoted[0].Payload["version"])
	assert.Equal(t, "1.0.0", promoted[0].Payload["previousVersion"])
}

func TestManager_CreateNewVersion_Errors(t *testing.T) {
	env := setupTestManager(t)
	ctx := context.Background()

	_, err := env.manager.CreateNewVersion(ctx, "nonexistent-category", newVersionRequest("1.0.0"))
	assert.ErrorIs(t, err, template.ErrTemplateNotFound)

	// Not found takes precedence over a malformed version.
	_, err = env.manager.CreateNewVersion(ctx, "nonexistent-category", newVersionRequest("banana"))
	assert.ErrorIs(t, err, template.ErrTemplateNotFound)

	_, _, err = env.manager.CreateTemplateFromFactory(ctx, factory.CategoryConsulting, "1.0.0")
	require.NoError(t, err)
	_, err = env.manager.CreateNewVersion(ctx, factory.CategoryConsulting, newVersionRequest("2.0.0"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		version string
		wantErr error
	}{
		{"malformed", "2.1", template.ErrInvalidVersionFormat},
		{"trailing separator", "2.1.0-", template.ErrInvalidVersionFormat},
		{"leading v", "v2.1.0", template.ErrInvalidVersionFormat},
		{"existing current", "2.0.0", template.ErrVersionAlreadyExists},
		{"existing superseded", "1.0.0", template.ErrVersionAlreadyExists},
		{"older than current", "1.5.0", template.ErrNotNewerThanCurrent},
		{"prerelease of current", "2.0.0-rc.1", template.ErrNotNewerThanCurrent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.manager.CreateNewVersion(ctx, factory.CategoryConsulting, newVersionRequest(tt.version))
			assert.ErrorIs(t, err, tt.wantErr)

			current, err := env.manager.GetCurrentVersion(ctx, factory.CategoryConsulting)
			require.NoError(t, err)
			assert.Equal(t, "2.0.0", current.Version)
		})
	}

	assert.Equal(t, 1, countCurrent(t, env, factory.CategoryConsulting))
}

func TestManager_CreateNewVersion_RequiresDefinition(t *testing.T) {
	env := setupTestManager(t)
	ctx := context.Background()

	_, _, err := env.manager.CreateTemplateFromFactory(ctx, factory.CategoryRestaurant, "1.0.0")
	require.NoError(t, err)

	req := newVersionRequest("2.0.0")
	req.TemplateDefinition = nil
	_, err = env.manager.CreateNewVersion(ctx, factory.CategoryRestaurant, req)
	assert.ErrorIs(t, err, template.ErrDefinitionRequired)

	current, err := env.manager.GetCurrentVersion(ctx, factory.CategoryRestaurant)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", current.Version)

	history, err := env.manager.GetVersionHistory(ctx, factory.CategoryRestaurant)
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Empty(t, env.bus.OfType(events.TemplateVersionPromoted))
}

func TestManager_SingleCurrentAcrossManyPromotions(t *testing.T) {
	env := setupTestManager(t)
	ctx := context.Background()

	_, _, err := env.manager.CreateTemplateFromFactory(ctx, factory.CategoryFitness, "0.1.0")
	require.NoError(t, err)

	for _, v := range []string{"0.2.0", "0.2.1", "1.0.0-alpha", "1.0.0-beta.2", "1.0.0", "1.10.0"} {
		_, err := env.manager.CreateNewVersion(ctx, factory.CategoryFitness, newVersionRequest(v))
		require.NoError(t, err, v)
		assert.Equal(t, 1, countCurrent(t, env, factory.CategoryFitness))
	}

	current, err := env.manager.GetCurrentVersion(ctx, factory.CategoryFitness)
	require.NoError(t, err)
	assert.Equal(t, "1.10.0", current.Version)
}

func TestManager_DefinitionRoundTrip(t *testing.T) {
	env := setupTestManager(t)
	ctx := context.Background()

	_, first, err := env.manager.CreateTemplateFromFactory(ctx, factory.CategoryRestaurant, "1.0.0")
	require.NoError(t, err)

	created := []*template.TemplateVersion{first}
	for _, v := range []string{"1.1.0", "1.2.0", "2.0.0"} {
		version, err := env.manager.CreateNewVersion(ctx, factory.CategoryRestaurant, newVersionRequest(v))
		require.NoError(t, err)
		created = append(created, version)
	}

	for _, v := range created {
		version := v.Version
		definition, err := env.manager.GetTemplateDefinition(ctx, factory.CategoryRestaurant, &version)
		require.NoError(t, err)
		assertSameDocument(t, v.TemplateDefinition, definition)
	}

	current, err := env.manager.GetTemplateDefinition(ctx, factory.CategoryRestaurant, nil)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", current["release"])

	missing := "9.9.9"
	definition, err := env.manager.GetTemplateDefinition(ctx, factory.CategoryRestaurant, &missing)
	require.NoError(t, err)
	assert.Nil(t, definition)

	definition, err = env.manager.GetTemplateDefinition(ctx, "nonexistent-category", nil)
	require.NoError(t, err)
	assert.Nil(t, definition)
}

func TestManager_DeprecateVersion(t *testing.T) {
	env := setupTestManager(t)
	ctx := context.Background()

	_, _, err := env.manager.CreateTemplateFromFactory(ctx, factory.CategoryConsulting, "1.0.0")
	require.NoError(t, err)
	_, err = env.manager.CreateNewVersion(ctx, factory.CategoryConsulting, newVersionRequest("2.0.0"))
	require.NoError(t, err)

	ok, err := env.manager.DeprecateVersion(ctx, factory.CategoryConsulting, "2.0.0")
	assert.ErrorIs(t, err, template.ErrCannotDeprecateCurrent)
	assert.False(t, ok)

	ok, err = env.manager.DeprecateVersion(ctx, factory.CategoryConsulting, "1.0.0")
	require.NoError(t, err)
	assert.True(t, ok)

	// Already deprecated is still a success and publishes nothing new.
	ok, err = env.manager.DeprecateVersion(ctx, factory.CategoryConsulting, "1.0.0")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, env.bus.OfType(events.TemplateVersionDeprecated), 1)

	ok, err = env.manager.DeprecateVersion(ctx, factory.CategoryConsulting, "3.0.0")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = env.manager.DeprecateVersion(ctx, "nonexistent-category", "1.0.0")
	require.NoError(t, err)
	assert.False(t, ok)

	history, err := env.manager.GetVersionHistory(ctx, factory.CategoryConsulting)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.False(t, history[0].IsDeprecated)
	assert.True(t, history[1].IsDeprecated)
	assert.Equal(t, 1, countCurrent(t, env, factory.CategoryConsulting))
}

func TestManager_LookupsOnMissingTemplate(t *testing.T) {
	env := setupTestManager(t)
	ctx := context.Background()

	current, err := env.manager.GetCurrentVersion(ctx, "nonexistent-category")
	require.NoError(t, err)
	assert.Nil(t, current)

	history, err := env.manager.GetVersionHistory(ctx, "nonexistent-category")
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}

func TestManager_PromotionRollsBackOnInsertFailure(t *testing.T) {
	env := setupTestManager(t)
	ctx := context.Background()

	_, _, err := env.manager.CreateTemplateFromFactory(ctx, factory.CategoryEducation, "1.0.0")
	require.NoError(t, err)

	failInsert := errors.New("disk full")
	require.NoError(t, env.db.Callback().Create().Before("gorm:create").Register("test:fail_version_insert", func(tx *gorm.DB) {
		if tx.Statement.Table == "template_versions" {
			_ = tx.AddError(failInsert)
		}
	}))

	_, err = env.manager.CreateNewVersion(ctx, factory.CategoryEducation, newVersionRequest("2.0.0"))
	assert.ErrorIs(t, err, failInsert)

	_, _, err = env.manager.CreateTemplateFromFactory(ctx, factory.CategoryLegal, "1.0.0")
	assert.ErrorIs(t, err, failInsert)

	require.NoError(t, env.db.Callback().Create().Remove("test:fail_version_insert"))

	current, err := env.manager.GetCurrentVersion(ctx, factory.CategoryEducation)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "1.0.0", current.Version)
	assert.True(t, current.IsCurrent)
	assert.Equal(t, 1, countCurrent(t, env, factory.CategoryEducation))

	// The template row was rolled back with its first version.
	infos, err := env.manager.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, factory.CategoryEducation, infos[0].Template.Category)
}

func TestManager_LostRaceIsPromotionConflict(t *testing.T) {
	env := setupTestManager(t)
	ctx := context.Background()

	tmpl, _, err := env.manager.CreateTemplateFromFactory(ctx, factory.CategoryEcommerce, "1.0.0")
	require.NoError(t, err)

	// Another writer commits a current version between the current-version
	// read and the insert.
	var once sync.Once
	require.NoError(t, env.db.Callback().Create().Before("gorm:create").Register("test:competing_writer", func(tx *gorm.DB) {
		if tx.Statement.Table != "template_versions" {
			return
		}
		once.Do(func() {
			rival := template.NewTemplateVersion(tmpl.ID, "1.5.0", template.Definition{"rival": true})
			_ = tx.Session(&gorm.Session{NewDB: true}).Exec(
				"INSERT INTO template_versions (id, template_id, version, is_current, is_deprecated, created_at, breaking_changes, template_definition) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
				rival.ID, rival.TemplateID, rival.Version, true, false, rival.CreatedAt, false, "{}",
			).Error
		})
	}))
	t.Cleanup(func() { _ = env.db.Callback().Create().Remove("test:competing_writer") })

	_, err = env.manager.CreateNewVersion(ctx, factory.CategoryEcommerce, newVersionRequest("2.0.0"))
	assert.ErrorIs(t, err, template.ErrPromotionConflict)

	current, err := env.manager.GetCurrentVersion(ctx, factory.CategoryEcommerce)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", current.Version)
	assert.Equal(t, 1, countCurrent(t, env, factory.CategoryEcommerce))
}

func TestManager_ConcurrentPromotions(t *testing.T) {
	const writers = 8
	env := setupPooledTestManager(t, writers)
	ctx := context.Background()

	_, _, err := env.manager.CreateTemplateFromFactory(ctx, factory.CategoryRealEstate, "1.0.0")
	require.NoError(t, err)

	start := make(chan struct{})
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded []string
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			version := fmt.Sprintf("2.0.%d", i)
			_, err := env.manager.CreateNewVersion(ctx, factory.CategoryRealEstate, newVersionRequest(version))
			if err != nil {
				assert.True(t,
					errors.Is(err, template.ErrNotNewerThanCurrent) || errors.Is(err, template.ErrPromotionConflict),
					"unexpected error: %v", err)
				return
			}
			mu.Lock()
			succeeded = append(succeeded, version)
			mu.Unlock()
		}(i)
	}
	close(start)
	wg.Wait()

	require.NotEmpty(t, succeeded)
	assert.Equal(t, 1, countCurrent(t, env, factory.CategoryRealEstate))
	assert.Len(t, env.bus.OfType(events.TemplateVersionPromoted), len(succeeded))

	history, err := env.manager.GetVersionHistory(ctx, factory.CategoryRealEstate)
	require.NoError(t, err)
	assert.Len(t, history, len(succeeded)+1)

	current, err := env.manager.GetCurrentVersion(ctx, factory.CategoryRealEstate)
	require.NoError(t, err)
	for _, v := range succeeded {
		cmp, err := semver.Compare(current.Version, v)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, cmp, 0, "current %s is older than promoted %s", current.Version, v)
	}
}

func TestManager_CurrentVersionCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	env := setupTestManagerWithCache(t, cache.NewRedisCache(client, cache.DefaultOptions()), WithCacheTTL(time.Minute))
	ctx := context.Background()

	key := "templates:current:" + factory.CategoryHealthcare + ":1"

	_, _, err = env.manager.CreateTemplateFromFactory(ctx, factory.CategoryHealthcare, "1.0.0")
	require.NoError(t, err)
	assert.False(t, mr.Exists(key))

	first, err := env.manager.GetCurrentVersion(ctx, factory.CategoryHealthcare)
	require.NoError(t, err)
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Minute, mr.TTL(key))

	cached, err := env.manager.GetCurrentVersion(ctx, factory.CategoryHealthcare)
	require.NoError(t, err)
	assert.Equal(t, first.ID, cached.ID)
	assertSameDocument(t, first.TemplateDefinition, cached.TemplateDefinition)

	_, err = env.manager.CreateNewVersion(ctx, factory.CategoryHealthcare, newVersionRequest("1.1.0"))
	require.NoError(t, err)
	assert.False(t, mr.Exists(key))

	current, err := env.manager.GetCurrentVersion(ctx, factory.CategoryHealthcare)
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", current.Version)
	assert.True(t, mr.Exists("templates:current:"+factory.CategoryHealthcare+":2"))
}

type pauseReaderKey struct{}

func TestManager_CacheFillRacingPromotionIsNotServed(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	env := setupTestManagerWithCache(t, cache.NewRedisCache(client, cache.DefaultOptions()), WithCacheTTL(time.Minute))
	ctx := context.Background()

	_, _, err = env.manager.CreateTemplateFromFactory(ctx, factory.CategoryFitness, "1.0.0")
	require.NoError(t, err)

	// Hold the reader after it has loaded the current version row and before
	// it writes the cache.
	reached := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	require.NoError(t, env.db.Callback().Query().After("gorm:query").Register("test:pause_reader", func(tx *gorm.DB) {
		if tx.Statement.Table != "template_versions" || tx.Statement.Context.Value(pauseReaderKey{}) == nil {
			return
		}
		once.Do(func() {
			close(reached)
			<-release
		})
	}))
	t.Cleanup(func() { _ = env.db.Callback().Query().Remove("test:pause_reader") })

	type result struct {
		version *template.TemplateVersion
		err     error
	}
	done := make(chan result, 1)
	go func() {
		v, err := env.manager.GetCurrentVersion(context.WithValue(ctx, pauseReaderKey{}, true), factory.CategoryFitness)
		done <- result{v, err}
	}()

	<-reached
	_, err = env.manager.CreateNewVersion(ctx, factory.CategoryFitness, newVersionRequest("2.0.0"))
	require.NoError(t, err)
	close(release)

	overlapping := <-done
	require.NoError(t, overlapping.err)
	require.NotNil(t, overlapping.version)
	assert.Equal(t, "1.0.0", overlapping.version.Version)
	assert.True(t, mr.Exists("templates:current:"+factory.CategoryFitness+":1"))

	current, err := env.manager.GetCurrentVersion(ctx, factory.CategoryFitness)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "2.0.0", current.Version)

	definition, err := env.manager.GetTemplateDefinition(ctx, factory.CategoryFitness, nil)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", definition["release"])
}

func TestManager_CacheFailureFallsBackToStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	env := setupTestManagerWithCache(t, cache.NewRedisCache(client, cache.DefaultOptions()))
	ctx := context.Background()

	_, _, err = env.manager.CreateTemplateFromFactory(ctx, factory.CategoryConsulting, "1.0.0")
	require.NoError(t, err)

	mr.Close()

	current, err := env.manager.GetCurrentVersion(ctx, factory.CategoryConsulting)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "1.0.0", current.Version)
}

func TestManager_MigrateTemplateDefinition(t *testing.T) {
	env := setupTestManager(t)

	original := template.Definition{
		"nodes": []interface{}{
			map[string]interface{}{"id": "intake", "parameters": map[string]interface{}{"delay": 5}},
		},
		"name": "intake",
	}
	before, err := json.Marshal(original)
	require.NoError(t, err)

	migrated := env.manager.MigrateTemplateDefinition(original, "1.0.0", "1.1.0")

	after, err := json.Marshal(original)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
	assert.NotContains(t, original, MigrationInfoKey)

	for k, v := range original {
		assert.Equal(t, v, migrated[k])
	}

	info, ok := migrated[MigrationInfoKey].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "1.0.0", info["from_version"])
	assert.Equal(t, "1.1.0", info["to_version"])
	_, err = time.Parse(time.RFC3339, info["migrated_at"].(string))
	assert.NoError(t, err)

	// The copy is deep.
	node := migrated["nodes"].([]interface{})[0].(map[string]interface{})
	node["id"] = "changed"
	node["parameters"].(map[string]interface{})["delay"] = 10
	originalNode := original["nodes"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "intake", originalNode["id"])
	assert.Equal(t, 5, originalNode["parameters"].(map[string]interface{})["delay"])
}

func TestMigrateDefinition_Timestamp(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 30, 0, 0, time.FixedZone("CET", 3600))
	migrated := migrateDefinition(template.Definition{}, "1.0.0", "2.0.0", at.UTC())

	info := migrated[MigrationInfoKey].(map[string]interface{})
	assert.Equal(t, "2024-03-01T11:30:00Z", info["migrated_at"])
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", outcome(nil))
	assert.Equal(t, "not_found", outcome(fmt.Errorf("%w: x", template.ErrTemplateNotFound)))
	assert.Equal(t, "conflict", outcome(template.ErrPromotionConflict))
	assert.Equal(t, "invalid_version", outcome(template.ErrInvalidVersionFormat))
	assert.Equal(t, "invalid_definition", outcome(template.ErrDefinitionRequired))
	assert.Equal(t, "conflict", outcome(fmt.Errorf("%w: realestate 2.0.1", template.ErrPromotionConflict)))
	assert.Equal(t, "error", outcome(errors.New("boom")))
}
