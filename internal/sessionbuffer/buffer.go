// Package sessionbuffer is the write-behind accounting engine: a
// single in-process queue that absorbs Start/Update/Stop accounting
// events at wire speed and periodically collapses and commits them to
// the persistent session and user stores in one transaction.
//
// A Buffer is constructed once in main and passed by pointer to every
// collaborator that needs it (the accounting engine to enqueue, the
// auth engine to read pending counts, the scheduler to flush and to
// drain on shutdown). It is never a package-level singleton.
package sessionbuffer

import (
	"context"
	"log"
	"sync"

	"github.com/proisp/radiusd/internal/sessionstore"
	"github.com/proisp/radiusd/internal/userstore"
	"gorm.io/gorm"
)

type Buffer struct {
	mu      sync.Mutex
	queue   []*Operation
	pending map[Key]*Operation

	db       *gorm.DB
	sessions *sessionstore.Store
	users    *userstore.Store
	logger   *log.Logger
}

func New(db *gorm.DB, sessions *sessionstore.Store, users *userstore.Store) *Buffer {
	return &Buffer{
		pending:  make(map[Key]*Operation),
		db:       db,
		sessions: sessions,
		users:    users,
		logger:   log.New(log.Writer(), "sessionbuffer: ", log.LstdFlags),
	}
}

// AddStart enqueues a session start. The map entry is overwritten
// unconditionally; a duplicate start against an already-open session
// is detected downstream, at flush time.
func (b *Buffer) AddStart(key Key, username, nasIdentifier, framedIP, callingStationID string) {
	op := newOperation(OpStart, key, username)
	op.NASIdentifier = nasIdentifier
	op.FramedIP = framedIP
	op.CallingStationID = callingStationID

	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = append(b.queue, op)
	b.pending[key] = op
}

// AddUpdate enqueues an interim counter refresh. If a pending Start or
// Update already exists for this key its counters/timestamp are
// refreshed in place without changing its lifecycle type — a pending
// Start stays a pending Start for concurrency-counting purposes. A
// pending Stop is left untouched.
func (b *Buffer) AddUpdate(key Key, username string, counters Counters) {
	op := newOperation(OpUpdate, key, username)
	op.Counters = counters

	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = append(b.queue, op)
	if existing, ok := b.pending[key]; ok {
		if existing.Type != OpStop {
			existing.Counters = counters
			existing.Timestamp = op.Timestamp
		}
	} else {
		b.pending[key] = op
	}
}

// AddStop enqueues a session stop. Stop always wins: the map entry is
// overwritten regardless of what was pending before.
func (b *Buffer) AddStop(key Key, username string, terminateCause *int, counters Counters) {
	op := newOperation(OpStop, key, username)
	op.Counters = counters
	op.TerminateCause = terminateCause

	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = append(b.queue, op)
	b.pending[key] = op
}

// IsSessionPending reports whether a session key has an operation
// in-flight that has not yet reached Stop.
func (b *Buffer) IsSessionPending(key Key) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	op, ok := b.pending[key]
	return ok && op.Type != OpStop
}

// PendingActiveCountForUser returns (# pending Starts) − (# pending
// Stops) for a user, used by the auth engine's concurrency check to
// account for sessions that have been accepted but not yet flushed.
func (b *Buffer) PendingActiveCountForUser(username string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	count := 0
	for _, op := range b.pending {
		if op.Username != username {
			continue
		}
		switch op.Type {
		case OpStart:
			count++
		case OpStop:
			count--
		}
	}
	return count
}

// Len reports the number of operations currently queued, for tests and
// diagnostics.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// drain atomically takes ownership of the current queue and clears the
// pending map entries whose last observed operation is in the drained
// batch (an operation that arrived after the drain started is left
// untouched, since it was never part of this batch).
func (b *Buffer) drain() []*Operation {
	b.mu.Lock()
	defer b.mu.Unlock()

	local := b.queue
	b.queue = nil

	lastInBatch := make(map[Key]*Operation, len(local))
	for _, op := range local {
		lastInBatch[op.Key] = op
	}
	for key, op := range lastInBatch {
		if current, ok := b.pending[key]; ok && current == op {
			delete(b.pending, key)
		}
	}
	return local
}

// requeue pushes operations back onto the head of the queue and
// restores their pending map entries, used when a flush transaction
// fails and must be retried on the next tick. An entry is restored
// only if nothing newer has claimed that key in the meantime — a
// Start or Stop that arrived after the failed drain already holds the
// map entry, and a stale requeued op must not clobber it.
func (b *Buffer) requeue(ops []*Operation) {
	if len(ops) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = append(ops, b.queue...)
	for _, op := range ops {
		if _, exists := b.pending[op.Key]; !exists {
			b.pending[op.Key] = op
		}
	}
}

// Shutdown performs one final synchronous flush so no Stop queued
// before a graceful exit is lost.
func (b *Buffer) Shutdown(ctx context.Context) {
	if err := b.Flush(ctx); err != nil {
		b.logger.Printf("ERROR final flush on shutdown failed: %v", err)
	}
}
