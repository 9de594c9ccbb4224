package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"surveysearch/internal/model"
)

// ExecutorLimits bounds every statement the executor runs.
type ExecutorLimits struct {
	DefaultMaxRows int
	MaxRowsCeiling int
	DefaultTimeout time.Duration
	TimeoutCeiling time.Duration
}

// DefaultExecutorLimits mirrors the configuration defaults.
func DefaultExecutorLimits() ExecutorLimits {
	return ExecutorLimits{
		DefaultMaxRows: 200,
		MaxRowsCeiling: 10000,
		DefaultTimeout: 5 * time.Second,
		TimeoutCeiling: 20 * time.Second,
	}
}

func (l ExecutorLimits) normalize() ExecutorLimits {
	def := DefaultExecutorLimits()
	if l.DefaultMaxRows <= 0 {
		l.DefaultMaxRows = def.DefaultMaxRows
	}
	if l.MaxRowsCeiling <= 0 {
		l.MaxRowsCeiling = def.MaxRowsCeiling
	}
	if l.DefaultMaxRows > l.MaxRowsCeiling {
		l.DefaultMaxRows = l.MaxRowsCeiling
	}
	if l.DefaultTimeout <= 0 {
		l.DefaultTimeout = def.DefaultTimeout
	}
	if l.TimeoutCeiling <= 0 {
		l.TimeoutCeiling = def.TimeoutCeiling
	}
	if l.DefaultTimeout > l.TimeoutCeiling {
		l.DefaultTimeout = l.TimeoutCeiling
	}
	return l
}

// QuerySpec is one read-only statement with named bindings (":name").
// Postgres casts must be written as CAST(x AS t); "::" is consumed by the
// named-parameter compiler.
type QuerySpec struct {
	SQL     string
	Params  map[string]any
	MaxRows int
	Timeout time.Duration
}

// Row is a result row in statement-declared column order.
type Row struct {
	Columns []string
	Values  []any
}

// Get returns the value of a column by name.
func (r Row) Get(column string) (any, bool) {
	for i, c := range r.Columns {
		if c == column {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Map returns the row as a name → value map (order is lost).
func (r Row) Map() map[string]any {
	out := make(map[string]any, len(r.Columns))
	for i, c := range r.Columns {
		out[c] = r.Values[i]
	}
	return out
}

// QueryRunner is what retrieval code depends on.
type QueryRunner interface {
	Query(ctx context.Context, spec QuerySpec) ([]Row, error)
}

// SafeExecutor is the only path that runs dynamically assembled SQL.
//
// Validation is a lexical guard against stacked statements and comment
// tricks. It is not a SQL parser: it does not prove the statement is free of
// side effects, which is why every statement also runs inside a READ ONLY
// transaction.
type SafeExecutor struct {
	db     *sqlx.DB
	limits ExecutorLimits
	logger *zap.Logger
}

// NewSafeExecutor creates an executor over a pooled connection.
func NewSafeExecutor(db *sqlx.DB, limits ExecutorLimits, logger *zap.Logger) *SafeExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SafeExecutor{db: db, limits: limits.normalize(), logger: logger}
}

var forbiddenFragments = []struct {
	token  string
	reason string
}{
	{";", "statement separator"},
	{"--", "line comment"},
	{"/*", "block comment"},
	{`\`, "backslash"},
}

// ValidateStatement applies the lexical guard without touching the store.
func ValidateStatement(stmt string) error {
	trimmed := strings.TrimSpace(stmt)
	if trimmed == "" {
		return fmt.Errorf("%w: empty statement", model.ErrRejectedQuery)
	}
	if !hasLeadingKeyword(trimmed, "SELECT") && !hasLeadingKeyword(trimmed, "WITH") {
		return fmt.Errorf("%w: statement must start with SELECT or WITH", model.ErrRejectedQuery)
	}
	for _, f := range forbiddenFragments {
		if strings.Contains(trimmed, f.token) {
			return fmt.Errorf("%w: %s not allowed", model.ErrRejectedQuery, f.reason)
		}
	}
	return nil
}

func hasLeadingKeyword(stmt, keyword string) bool {
	if len(stmt) < len(keyword) || !strings.EqualFold(stmt[:len(keyword)], keyword) {
		return false
	}
	if len(stmt) == len(keyword) {
		return true
	}
	next := stmt[len(keyword)]
	isIdent := next == '_' || (next >= 'a' && next <= 'z') || (next >= 'A' && next <= 'Z') || (next >= '0' && next <= '9')
	return !isIdent
}

// Query validates, caps and runs spec, returning rows in order.
func (e *SafeExecutor) Query(ctx context.Context, spec QuerySpec) ([]Row, error) {
	if err := ValidateStatement(spec.SQL); err != nil {
		e.logger.Warn("query rejected", zap.Error(err))
		return nil, err
	}

	maxRows := e.maxRows(spec.MaxRows)
	timeout := e.timeout(spec.Timeout)

	// An inner ORDER BY decides which rows the LIMIT keeps because the
	// single-reference CTE is inlined (Postgres 12+).
	wrapped := fmt.Sprintf("WITH _orig AS (%s) SELECT * FROM _orig LIMIT %d", strings.TrimSpace(spec.SQL), maxRows)
	params := spec.Params
	if params == nil {
		params = map[string]any{}
	}
	query, args, err := sqlx.Named(wrapped, params)
	if err != nil {
		e.logger.Warn("query rejected", zap.Error(err))
		return nil, model.WrapError(model.ErrRejectedQuery, "bind parameters", err)
	}

	// The server-side statement timeout fires first; the context deadline is
	// the backstop for a stuck connection.
	ctx, cancel := context.WithTimeout(ctx, timeout+time.Second)
	defer cancel()

	start := time.Now()
	rows, err := e.run(ctx, query, args, timeout)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = errors.Join(err, ctxErr)
		}
		e.logger.Error("query failed",
			zap.Bool("timeout", model.IsTimeout(err)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, model.WrapError(model.ErrExecutionFailure, "execute query", err)
	}

	e.logger.Debug("query executed",
		zap.Int("rows", len(rows)),
		zap.Int("max_rows", maxRows),
		zap.Duration("elapsed", time.Since(start)),
	)
	return rows, nil
}

func (e *SafeExecutor) run(ctx context.Context, query string, args []any, timeout time.Duration) ([]Row, error) {
	tx, err := e.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read-only tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT set_config('statement_timeout', $1, true)`, strconv.FormatInt(timeout.Milliseconds(), 10)); err != nil {
		return nil, fmt.Errorf("set statement timeout: %w", err)
	}

	rs, err := tx.QueryxContext(ctx, tx.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	columns, err := rs.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	var out []Row
	for rs.Next() {
		values, err := rs.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out = append(out, Row{Columns: columns, Values: values})
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

func (e *SafeExecutor) maxRows(requested int) int {
	if requested <= 0 {
		return e.limits.DefaultMaxRows
	}
	if requested > e.limits.MaxRowsCeiling {
		return e.limits.MaxRowsCeiling
	}
	return requested
}

func (e *SafeExecutor) timeout(requested time.Duration) time.Duration {
	if requested <= 0 {
		return e.limits.DefaultTimeout
	}
	if requested > e.limits.TimeoutCeiling {
		return e.limits.TimeoutCeiling
	}
	return requested
}
