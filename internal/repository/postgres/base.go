package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/referral-api/internal/repository"
)

type txKey struct{}

// executor is satisfied by both *sqlx.DB and *sqlx.Tx
type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	Rebind(query string) string
}

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	db *sqlx.DB
}

// NewBaseRepository creates a new base repository
func NewBaseRepository(db *sqlx.DB) BaseRepository {
	return BaseRepository{db: db}
}

// GetDB returns the database instance
func (r BaseRepository) GetDB() *sqlx.DB {
	return r.db
}

// conn returns the transaction carried by ctx, or the pool
func (r BaseRepository) conn(ctx context.Context) executor {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return r.db
}

// WithinTx executes fn within a transaction. Nested calls join the outer one.
func (r BaseRepository) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (r BaseRepository) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	c := r.conn(ctx)
	err := c.GetContext(ctx, dest, c.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	return mapError(err)
}

func (r BaseRepository) selectAll(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	c := r.conn(ctx)
	return mapError(c.SelectContext(ctx, dest, c.Rebind(query), args...))
}

func (r BaseRepository) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	c := r.conn(ctx)
	res, err := c.ExecContext(ctx, c.Rebind(query), args...)
	if err != nil {
		return 0, mapError(err)
	}
	return res.RowsAffected()
}

// exists reports whether a row with id is present in table
func (r BaseRepository) exists(ctx context.Context, table string, id uuid.UUID) (bool, error) {
	var ok bool
	err := r.get(ctx, &ok, `SELECT EXISTS(SELECT 1 FROM `+table+` WHERE id = ?)`, id)
	return ok, err
}

// mapError turns constraint violations into repository sentinels
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", repository.ErrDuplicate, pqErr.Constraint)
		case "23503":
			return fmt.Errorf("%w: %s", repository.ErrNotFound, pqErr.Constraint)
		}
	}
	return err
}

func uuidArray(ids []uuid.UUID) pq.StringArray {
	out := make(pq.StringArray, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// where accumulates AND-ed conditions with ? placeholders
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	s := " WHERE " + w.conds[0]
	for _, c := range w.conds[1:] {
		s += " AND " + c
	}
	return s
}
