package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"surveysearch/internal/model"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresRepository owns the connection pool and the static statements
// (respondent lookup, search log, feedback). Dynamic retrieval SQL goes
// through SafeExecutor.
type PostgresRepository struct {
	db *sqlx.DB
}

// PoolOptions configures the shared connection pool.
type PoolOptions struct {
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
	ConnMaxIdleTime    time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(dsn string, opts PoolOptions) (*PostgresRepository, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(opts.MaxConnections)
	db.SetMaxIdleConns(opts.MaxIdleConnections)
	if opts.ConnMaxLifetime <= 0 {
		opts.ConnMaxLifetime = 5 * time.Minute
	}
	if opts.ConnMaxIdleTime <= 0 {
		opts.ConnMaxIdleTime = 2 * time.Minute
	}
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{db: db}, nil
}

// NewPostgresRepositoryFromDB wraps an existing handle (tests, shared pools).
func NewPostgresRepositoryFromDB(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// DB exposes the pool so the executor can share it.
func (r *PostgresRepository) DB() *sqlx.DB {
	return r.db
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// GetRespondent retrieves a single respondent by its ID
func (r *PostgresRepository) GetRespondent(ctx context.Context, id int64) (*model.Respondent, error) {
	var respondent model.Respondent
	query := `
		SELECT
			respondent_id, gender, birth_year,
			CAST(date_part('year', CURRENT_DATE) - birth_year AS integer) AS age,
			region, answer_text
		FROM respondents
		WHERE respondent_id = $1
	`
	err := r.db.GetContext(ctx, &respondent, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.WrapError(model.ErrNotFound, fmt.Sprintf("respondent %d", id), nil)
		}
		return nil, model.WrapError(model.ErrExecutionFailure, "get respondent", err)
	}
	return &respondent, nil
}

// SearchLogEntry is one row of search_logs.
type SearchLogEntry struct {
	SearchID       string
	Query          string
	Strategy       model.StrategyDecision
	Fallback       *string
	Keywords       []string
	ResultCount    int
	ResponseTimeMs int
}

// LogSearch logs a search query
func (r *PostgresRepository) LogSearch(ctx context.Context, entry SearchLogEntry) error {
	logQuery := `
		INSERT INTO search_logs (search_id, query, strategy, fallback, semantic_keywords, result_count, response_time_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, logQuery,
		entry.SearchID, entry.Query, string(entry.Strategy), entry.Fallback,
		pq.Array(entry.Keywords), entry.ResultCount, entry.ResponseTimeMs,
	)
	if err != nil {
		return fmt.Errorf("failed to log search: %w", err)
	}
	return nil
}

// LogFeedback logs user feedback/action
func (r *PostgresRepository) LogFeedback(ctx context.Context, searchID string, respondentID int64, action string) error {
	query := `
		UPDATE search_logs
		SET clicked_respondent_id = $2, action = $3
		WHERE search_id = $1
	`
	res, err := r.db.ExecContext(ctx, query, searchID, respondentID, strings.ToLower(action))
	if err != nil {
		return fmt.Errorf("failed to log feedback: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.WrapError(model.ErrNotFound, "search "+searchID, nil)
	}
	return nil
}
