package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/linkflow-go/templates/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	memorySQLite = "file::memory:?cache=shared"
)

type DB struct {
	*gorm.DB
}

type Config struct {
	Driver       string
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	Path         string // sqlite file path or DSN
	MaxOpenConns int
	MaxIdleConns int
	SlowQuery    time.Duration
}

func (c Config) dialector() (gorm.Dialector, error) {
	switch c.Driver {
	case "", DriverPostgres:
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
		return postgres.Open(dsn), nil
	case DriverSQLite:
		path := c.Path
		if path == "" {
			path = memorySQLite
		}
		return sqlite.Open(path), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

// InMemory reports whether the store lives only as long as its connections.
func (c Config) InMemory() bool {
	if c.Driver != DriverSQLite {
		return false
	}
	return c.Path == "" || strings.Contains(c.Path, ":memory:") || strings.Contains(c.Path, "mode=memory")
}

func New(cfg Config, log logger.Logger) (*DB, error) {
	dialector, err := cfg.dialector()
	if err != nil {
		return nil, err
	}

	db, err := Open(dialector, log, cfg.SlowQuery)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if cfg.InMemory() {
		// An in-memory database is dropped with its last connection, so the
		// pool holds exactly one and never recycles it.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
		sqlDB.SetConnMaxIdleTime(0)
	} else {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Open wraps an already chosen dialector. Unique violations are translated
// to gorm.ErrDuplicatedKey.
func Open(dialector gorm.Dialector, log logger.Logger, slowQuery time.Duration) (*DB, error) {
	if log == nil {
		log = logger.NewNop()
	}

	gormConfig := &gorm.Config{
		Logger: NewGormLogger(log, slowQuery),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		TranslateError: true,
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &DB{DB: db}, nil
}

func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (db *DB) Migrate(models ...interface{}) error {
	return db.AutoMigrate(models...)
}

func (db *DB) WithContext(ctx context.Context) *gorm.DB {
	return db.DB.WithContext(ctx)
}

// Ping checks connectivity.
func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// SupportsRowLocking reports whether SELECT ... FOR UPDATE is available.
func SupportsRowLocking(tx *gorm.DB) bool {
	return tx.Dialector.Name() == DriverPostgres
}
