package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"kitchenprint/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver
	_ "github.com/mattn/go-sqlite3"    // sqlite3 driver
	"github.com/rs/zerolog"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type DB struct {
	*sql.DB
	driver  string
	dialect Dialect
	logger  *zerolog.Logger
	now     func() time.Time
}

// Open connects to the configured job store and creates the schema.
func Open(cfg config.DatabaseConfig, logger *zerolog.Logger) (*DB, error) {
	switch cfg.Driver {
	case "", DriverSQLite:
		return NewDB(cfg.Path, logger)
	case DriverPostgres:
		return openPostgres(cfg.Postgres, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// NewDB opens a sqlite job store at path (":memory:" is accepted).
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dsn := path
	if path != ":memory:" {
		// Создаем директорию для БД, если её нет
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	}

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite serializes writers; a single connection also keeps :memory: databases shared.
	sqlDB.SetMaxOpenConns(1)

	return initDB(sqlDB, DriverSQLite, sqliteDialect{}, logger)
}

func openPostgres(cfg config.PostgresConfig, logger *zerolog.Logger) (*DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.DBName, cfg.User, cfg.Password, cfg.SSLMode)
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if cfg.MaxConnections > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxConnections)
	}

	return initDB(sqlDB, DriverPostgres, postgresDialect{}, logger)
}

func initDB(sqlDB *sql.DB, driver string, dialect Dialect, logger *zerolog.Logger) (*DB, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	// Проверяем соединение
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{
		DB:      sqlDB,
		driver:  driver,
		dialect: dialect,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}

	if err := db.createTables(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("driver", driver).Msg("job store initialized")
	return db, nil
}

func (db *DB) createTables() error {
	for _, query := range schema(db.dialect) {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", strings.TrimSpace(query), err)
		}
	}
	return nil
}

func (db *DB) Driver() string { return db.driver }

// Q rewrites ? placeholders for postgres and passes sqlite queries through.
func (db *DB) Q(query string) string {
	if db.driver == DriverPostgres {
		return Rebind(query)
	}
	return query
}

// SetClock overrides the time source used for status timestamps.
func (db *DB) SetClock(now func() time.Time) {
	db.now = func() time.Time { return now().UTC() }
}

// HealthCheck reports whether the store answers.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.PingContext(ctx)
}
