// Package session implements the Session Table (component D, spec.md
// §4.D): a single-writer map from flow key to per-connection MySQL decode
// state, with inactivity-timeout sweeping and FIN/RST teardown.
package session

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flowlens/flowlens/internal/flow"
	"github.com/flowlens/flowlens/internal/mysql"
)

// Context is the per-flow state the Session Table owns: the flow's decoder,
// its two framers, and timestamps. Values learned from the greeting and the
// login are not stored here; they are emitted in the HandshakeV10 and
// HandshakeResponse41 event payloads, where each value has its own named
// field, and the decoder keeps only the capability flags.
type Context struct {
	ID  string
	Key flow.Key

	Decoder *mysql.Decoder
	ReqFramer *mysql.Framer
	RespFramer *mysql.Framer

	CreatedAt    time.Time
	LastActivity time.Time
	Closed       bool
}

// Table is the single-writer session map. Every method must be called from
// the one coordinator goroutine that owns it; there is no internal locking
// because spec.md §4.D and §5 specify single-writer discipline precisely so
// none is needed.
type Table struct {
	sessions        map[flow.Key]*Context
	maxBufferedRows int
	idleTimeout     time.Duration
	logger          *zap.Logger
}

// NewTable returns an empty Session Table.
func NewTable(maxBufferedRows int, idleTimeout time.Duration, logger *zap.Logger) *Table {
	return &Table{
		sessions:        make(map[flow.Key]*Context),
		maxBufferedRows: maxBufferedRows,
		idleTimeout:     idleTimeout,
		logger:          logger,
	}
}

// FindOrCreate returns the existing session for key, or creates one if this
// is the first packet seen for it (spec.md §4.D "creates on first PSH+ACK,
// destroys on FIN/RST").
func (t *Table) FindOrCreate(key flow.Key, now time.Time) *Context {
	if ctx, ok := t.sessions[key]; ok {
		ctx.LastActivity = now
		return ctx
	}
	id := uuid.NewString()
	ctx := &Context{
		ID:         id,
		Key:        key,
		Decoder:    mysql.NewDecoder(id, t.maxBufferedRows),
		ReqFramer:  mysql.NewFramer(),
		RespFramer: mysql.NewFramer(),
		CreatedAt:  now,
		LastActivity: now,
	}
	t.sessions[key] = ctx
	t.logger.Debug("session created", zap.String("session_id", id), zap.String("key", key.String()))
	return ctx
}

// Lookup returns the existing session for key without creating one.
func (t *Table) Lookup(key flow.Key) (*Context, bool) {
	ctx, ok := t.sessions[key]
	return ctx, ok
}

// Close marks ctx closed and removes it from the table. Per spec.md §3 "A
// session transitions to Closed exactly once; no further events are emitted
// for a closed session", Close is idempotent: calling it twice (e.g. FIN
// then RST on the same connection) is a no-op the second time.
func (t *Table) Close(key flow.Key) {
	ctx, ok := t.sessions[key]
	if !ok || ctx.Closed {
		return
	}
	ctx.Closed = true
	delete(t.sessions, key)
	t.logger.Debug("session closed", zap.String("session_id", ctx.ID), zap.String("key", key.String()))
}

// Sweep removes and returns every session whose last activity is older than
// the configured idle timeout (spec.md §4.D "Periodic sweep").
func (t *Table) Sweep(now time.Time) []*Context {
	var expired []*Context
	for key, ctx := range t.sessions {
		if now.Sub(ctx.LastActivity) >= t.idleTimeout {
			ctx.Closed = true
			expired = append(expired, ctx)
			delete(t.sessions, key)
		}
	}
	if len(expired) > 0 {
		t.logger.Debug("session sweep evicted idle sessions", zap.Int("count", len(expired)))
	}
	return expired
}

// Len returns the number of live sessions, used by internal/api's /status
// route.
func (t *Table) Len() int {
	return len(t.sessions)
}
