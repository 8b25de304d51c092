// Package journal records gateway outcomes, transitions and resyncs in DuckDB.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"quotagate/pkg/gateway"
)

const (
	driverName        = "duckdb"
	defaultBufferSize = 1024
	writeTimeout      = 5 * time.Second
)

// Option customizes a Journal.
type Option func(*Journal)

// WithLogger sets the logger used for write failures.
func WithLogger(logger *zap.Logger) Option {
	return func(j *Journal) {
		if logger != nil {
			j.log = logger
		}
	}
}

// WithBufferSize bounds the number of queued rows. Events arriving while the
// buffer is full are dropped and counted.
func WithBufferSize(size int) Option {
	return func(j *Journal) {
		if size > 0 {
			j.bufferSize = size
		}
	}
}

// Journal is a gateway.Observer persisting events from one session. Rows
// are written by a background goroutine so observer calls never block.
type Journal struct {
	db         *sql.DB
	ownsDB     bool
	session    string
	log        *zap.Logger
	bufferSize int

	mu       sync.RWMutex
	closed   bool
	rows     chan row
	done     chan struct{}
	closeErr error
	dropped  atomic.Int64
}

// row is one pending insert, or a flush marker when ack is set.
type row struct {
	query string
	args  []any
	ack   chan struct{}
}

// Open opens (or creates) the DuckDB file at path and starts a session. An
// empty path opens an in-memory database.
func Open(ctx context.Context, path string, opts ...Option) (*Journal, error) {
	db, err := OpenDB(ctx, path)
	if err != nil {
		return nil, err
	}
	j, err := New(ctx, db, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	j.ownsDB = true
	return j, nil
}

// OpenDB opens the DuckDB file at path and applies the schema without
// starting a session.
func OpenDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping journal: %w", err)
	}
	if err := EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}
	return db, nil
}

// New starts a session on an existing connection. Close leaves db open.
func New(ctx context.Context, db *sql.DB, opts ...Option) (*Journal, error) {
	if err := EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}
	j := &Journal{
		db:         db,
		session:    uuid.NewString(),
		log:        zap.NewNop(),
		bufferSize: defaultBufferSize,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(j)
	}
	j.rows = make(chan row, j.bufferSize)
	go j.run()
	return j, nil
}

// Session returns the id stamped on every row of this journal.
func (j *Journal) Session() string {
	return j.session
}

// DB exposes the underlying connection for queries.
func (j *Journal) DB() *sql.DB {
	return j.db
}

// Dropped returns the number of events discarded because the buffer was full.
func (j *Journal) Dropped() int64 {
	return j.dropped.Load()
}

// OnCall records one upstream call.
func (j *Journal) OnCall(outcome gateway.Outcome) {
	j.enqueue(row{
		query: `INSERT INTO calls (call_id, session_id, at, core, probe, kind, code, error, latency_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args: []any{
			uuid.NewString(), j.session, outcome.At.UTC(), outcome.Core, outcome.Probe,
			string(outcome.Kind), nullable(outcome.Code), nullable(outcome.Err), millis(outcome.Latency),
		},
	})
}

// OnTransition records one state change.
func (j *Journal) OnTransition(transition gateway.Transition) {
	j.enqueue(row{
		query: `INSERT INTO transitions (transition_id, session_id, at, from_state, to_state, reason)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		args: []any{
			uuid.NewString(), j.session, transition.At.UTC(),
			transition.From.String(), transition.To.String(), nullable(transition.Reason),
		},
	})
}

// OnSync records one finished resynchronization.
func (j *Journal) OnSync(result gateway.SyncResult) {
	j.enqueue(row{
		query: `INSERT INTO syncs (sync_id, session_id, at, ok, probes, miss, drift_ms, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		args: []any{
			uuid.NewString(), j.session, result.At.UTC(), result.OK, result.Probes, result.Miss,
			millis(result.Drift), millis(result.Duration),
		},
	})
}

// Flush blocks until every queued row has been written or ctx ends.
func (j *Journal) Flush(ctx context.Context) error {
	ack := make(chan struct{})
	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return nil
	}
	select {
	case j.rows <- row{ack: ack}:
		j.mu.RUnlock()
	case <-ctx.Done():
		j.mu.RUnlock()
		return ctx.Err()
	}
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains pending rows and stops the writer. The database is closed
// only when the journal opened it.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return j.closeErr
	}
	j.closed = true
	close(j.rows)
	j.mu.Unlock()

	<-j.done
	if j.ownsDB {
		j.closeErr = j.db.Close()
	}
	if dropped := j.dropped.Load(); dropped > 0 {
		j.log.Warn("journal dropped events", zap.Int64("dropped", dropped))
	}
	return j.closeErr
}

// enqueue hands r to the writer without blocking.
func (j *Journal) enqueue(r row) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		j.dropped.Add(1)
		return
	}
	select {
	case j.rows <- r:
	default:
		j.dropped.Add(1)
	}
}

// run writes rows until the channel closes.
func (j *Journal) run() {
	defer close(j.done)
	for r := range j.rows {
		if r.ack != nil {
			close(r.ack)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if _, err := j.db.ExecContext(ctx, r.query, r.args...); err != nil {
			j.log.Error("journal write failed", zap.Error(err))
		}
		cancel()
	}
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
