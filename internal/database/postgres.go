package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// PoolOptions bounds the Postgres connection pool.
type PoolOptions struct {
	MaxOpenConns   int
	ConnMaxIdle    time.Duration
	AcquireTimeout time.Duration
}

// DB wraps the pooled client together with the acquisition timeout used by WithTx.
type DB struct {
	*sql.DB
	acquireTimeout time.Duration
}

// Wrap adapts an existing *sql.DB (tests hand in sqlmock here).
func Wrap(db *sql.DB, acquireTimeout time.Duration) *DB {
	if acquireTimeout <= 0 {
		acquireTimeout = 5 * time.Second
	}
	return &DB{DB: db, acquireTimeout: acquireTimeout}
}

// ConnectPostgres opens the pool, pings it and applies the schema.
func ConnectPostgres(ctx context.Context, postgresURI string, opts PoolOptions, log *logrus.Logger) (*DB, error) {
	sqlDB, err := sql.Open("postgres", postgresURI)
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetMaxIdleConns(opts.MaxOpenConns)
	sqlDB.SetConnMaxIdleTime(opts.ConnMaxIdle)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err = sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, err
	}
	log.Info("Connected to PostgreSQL")

	if err = Migrate(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}
	log.Info("PostgreSQL schema initialized")

	return Wrap(sqlDB, opts.AcquireTimeout), nil
}

// IsUniqueViolation reports whether err is a Postgres unique_violation (23505).
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// IsForeignKeyViolation reports whether err is a Postgres foreign_key_violation (23503).
func IsForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}
