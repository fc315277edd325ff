package engine

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"guyub/internal/audit"
	"guyub/internal/config"
	"guyub/internal/repo"
)

// StockObserver is told the outcome of every loan approve/reject/return.
type StockObserver interface {
	ObserveStock(action, outcome string)
}

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Audit  audit.Writer
	Config *config.Config
	Stock  StockObserver
	Now    func() time.Time

	clock *msClock
}

// msClock hands out strictly increasing millisecond timestamps, so no two
// records written through one engine share a createdAt cursor key.
type msClock struct {
	mu   sync.Mutex
	last int64
}

func (c *msClock) next(t time.Time) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ms := t.UnixMilli()
	if ms <= c.last {
		ms = c.last + 1
	}
	c.last = ms
	return time.UnixMilli(ms).UTC()
}

func New(db *sql.DB, cfg *config.Config) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Audit:  audit.Writer{},
		Config: cfg,
		Now:    time.Now,
		clock:  &msClock{},
	}
}

func (e Engine) now() time.Time {
	t := time.Now()
	if e.Now != nil {
		t = e.Now()
	}
	if e.clock == nil {
		return t.UTC()
	}
	return e.clock.next(t)
}

func newID() string {
	return uuid.NewString()
}

// withTx runs fn in one transaction. Code inside fn must only touch tx:
// the pool holds a single connection.
func (e Engine) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) record(ctx context.Context, tx *sql.Tx, entry audit.Entry) error {
	w := e.Audit
	if w.Now == nil {
		w.Now = e.now
	}
	return w.Append(ctx, tx, entry)
}

func (e Engine) observeStock(action, outcome string) {
	if e.Stock != nil {
		e.Stock.ObserveStock(action, outcome)
	}
}
