package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type txKey struct{}

// Conn returns the transaction stored in ctx, or db bound to ctx when there is none.
// Repositories call it for every statement so they join an enclosing transaction.
func Conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return db.WithContext(ctx)
}

// TxManager runs a function inside a single database transaction.
type TxManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type GormTxManager struct {
	db         *gorm.DB
	opts       *sql.TxOptions
	maxRetries int
}

// NewTxManager builds a manager using the given isolation level name. An empty name
// or "default" leaves isolation to the driver.
func NewTxManager(db *gorm.DB, isolation string, maxRetries int) (*GormTxManager, error) {
	level, err := ParseIsolation(isolation)
	if err != nil {
		return nil, err
	}
	m := &GormTxManager{db: db, maxRetries: maxRetries}
	if level != sql.LevelDefault {
		m.opts = &sql.TxOptions{Isolation: level}
	}
	return m, nil
}

func ParseIsolation(name string) (sql.IsolationLevel, error) {
	switch name {
	case "", "default":
		return sql.LevelDefault, nil
	case "read_committed":
		return sql.LevelReadCommitted, nil
	case "repeatable_read":
		return sql.LevelRepeatableRead, nil
	case "serializable":
		return sql.LevelSerializable, nil
	default:
		return sql.LevelDefault, fmt.Errorf("unknown isolation level %q", name)
	}
}

// WithinTransaction commits when fn returns nil and rolls back otherwise.
// Serialization failures and deadlocks are retried with exponential backoff;
// nested calls reuse the outer transaction.
func (m *GormTxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxElapsedTime = 0
	var b backoff.BackOff = backoff.WithMaxRetries(policy, uint64(m.maxRetries))
	b = backoff.WithContext(b, ctx)

	return backoff.Retry(func() error {
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(context.WithValue(ctx, txKey{}, tx))
		}, m.txOptions()...)
		if err != nil && !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}

func (m *GormTxManager) txOptions() []*sql.TxOptions {
	if m.opts == nil {
		return nil
	}
	return []*sql.TxOptions{m.opts}
}

// IsRetryable reports whether err is a transient concurrency failure worth replaying.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return true
		}
	}
	return false
}
