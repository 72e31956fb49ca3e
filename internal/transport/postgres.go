package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

const (
	notifyChannel = "tabletrack_documents"

	createDocumentsTable = `
CREATE TABLE IF NOT EXISTS documents (
	path       text PRIMARY KEY,
	value      jsonb NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now()
)`

	upsertDocument = `
INSERT INTO documents (path, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (path) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`

	selectDocument = `SELECT value FROM documents WHERE path = $1`
)

// Postgres implements Transport on a single jsonb documents table.
// Writes NOTIFY a shared channel with the changed path; one dedicated
// LISTEN connection re-reads the document and fans the snapshot out to
// subscribers.
type Postgres struct {
	pool *pgxpool.Pool
	log  *logrus.Entry

	mu   sync.Mutex
	subs map[string]map[chan []byte]struct{}
}

// NewPostgres creates the documents table if needed and starts the
// notification listener.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool, log *logrus.Entry) (*Postgres, error) {
	if _, err := pool.Exec(ctx, createDocumentsTable); err != nil {
		return nil, fmt.Errorf("create documents table: %w", err)
	}

	p := &Postgres{
		pool: pool,
		log:  log,
		subs: make(map[string]map[chan []byte]struct{}),
	}
	go p.listen(ctx)
	return p, nil
}

// Write upserts the whole document and notifies listeners in one
// transaction, so a delivered notification always sees the new value.
func (p *Postgres) Write(ctx context.Context, path string, value []byte) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, upsertDocument, path, value); err != nil {
		return fmt.Errorf("upsert document %s: %w", path, err)
	}
	if _, err := tx.Exec(ctx, "SELECT pg_notify($1, $2)", notifyChannel, path); err != nil {
		return fmt.Errorf("notify %s: %w", path, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Subscribe reads the current document value and registers for snapshots
// of subsequent writes to the path.
func (p *Postgres) Subscribe(ctx context.Context, path string) (*Subscription, error) {
	var initial []byte
	err := p.pool.QueryRow(ctx, selectDocument, path).Scan(&initial)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("read document %s: %w", path, err)
	}

	ch := make(chan []byte, snapshotBuffer)
	p.mu.Lock()
	if p.subs[path] == nil {
		p.subs[path] = make(map[chan []byte]struct{})
	}
	p.subs[path][ch] = struct{}{}
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		p.mu.Lock()
		if set, ok := p.subs[path]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(p.subs, path)
			}
		}
		p.mu.Unlock()
		close(ch)
	}()

	return &Subscription{Initial: initial, Updates: ch}, nil
}

// listen holds one connection on LISTEN and dispatches snapshots until
// the context is cancelled.
func (p *Postgres) listen(ctx context.Context) {
	for ctx.Err() == nil {
		if err := p.listenOnce(ctx); err != nil && ctx.Err() == nil {
			p.log.WithError(err).Warn("document listener lost, reconnecting")
		}
	}
}

func (p *Postgres) listenOnce(ctx context.Context) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen conn: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		p.dispatch(ctx, notification.Payload)
	}
}

func (p *Postgres) dispatch(ctx context.Context, path string) {
	p.mu.Lock()
	n := len(p.subs[path])
	p.mu.Unlock()
	if n == 0 {
		return
	}

	var value []byte
	if err := p.pool.QueryRow(ctx, selectDocument, path).Scan(&value); err != nil {
		p.log.WithError(err).WithField("path", path).Warn("read notified document")
		return
	}

	p.mu.Lock()
	for ch := range p.subs[path] {
		pushSnapshot(ch, value)
	}
	p.mu.Unlock()
}
