package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
)

func init() {
	Register("postgres", func() Adapter { return NewPostgresAdapter() })
}

// PostgresAdapter implements the Adapter interface for PostgreSQL via
// the pgx stdlib driver.
type PostgresAdapter struct {
	db     *sql.DB
	config Config
}

// NewPostgresAdapter creates a new PostgreSQL adapter instance.
func NewPostgresAdapter() *PostgresAdapter {
	return &PostgresAdapter{}
}

// Connect establishes a connection to PostgreSQL.
func (a *PostgresAdapter) Connect(ctx context.Context, cfg Config) error {
	db, err := sql.Open("pgx", buildDSN(cfg))
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	a.db = db
	a.config = cfg
	return nil
}

// buildDSN builds a key=value connection string from the config.
func buildDSN(cfg Config) string {
	parts := []string{}
	add := func(key, val string) {
		if val != "" {
			parts = append(parts, fmt.Sprintf("%s=%s", key, val))
		}
	}

	add("host", cfg.Host)
	if cfg.Port != 0 {
		add("port", fmt.Sprintf("%d", cfg.Port))
	}
	add("user", cfg.Username)
	add("password", cfg.Password)
	add("dbname", cfg.Database)
	if cfg.Schema != "" {
		add("search_path", cfg.Schema)
	}
	for key, val := range cfg.Options {
		add(key, val)
	}

	return strings.Join(parts, " ")
}

// Close closes the PostgreSQL connection.
func (a *PostgresAdapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Exec executes a SQL statement that doesn't return rows.
func (a *PostgresAdapter) Exec(ctx context.Context, sqlStr string) error {
	if a.db == nil {
		return fmt.Errorf("database connection not established")
	}
	if _, err := a.db.ExecContext(ctx, sqlStr); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// DB returns the underlying connection pool.
func (a *PostgresAdapter) DB() *sql.DB { return a.db }

// DialectName returns "postgres".
func (a *PostgresAdapter) DialectName() string { return "postgres" }
