package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gov-decisions-workers/internal/common/config"

	_ "github.com/lib/pq"
)

// PostgresClient wraps the decisions database connection.
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres opens the decisions database. The pool is sized from cfg.
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

// NewPostgresFromDB wraps an already opened handle.
func NewPostgresFromDB(db *sql.DB) *PostgresClient {
	return &PostgresClient{DB: db}
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// QueryReadOnly runs query inside a read-only transaction and hands the rows
// to scan before the transaction is closed. Compiled queries are SELECT-only;
// the read-only transaction makes the database enforce that too.
func (c *PostgresClient) QueryReadOnly(ctx context.Context, scan func(*sql.Rows) error, query string, args ...interface{}) error {
	tx, err := c.DB.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("begin read-only transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	if err := scan(rows); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if err := rows.Close(); err != nil {
		return err
	}
	return tx.Commit()
}
