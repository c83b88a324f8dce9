// Package audit persists router audit entries without ever blocking or
// failing the request that produced them. Entries go onto a buffered queue
// drained by a background goroutine; write failures are logged and dropped.
package audit

import (
	"context"
	"database/sql"
	"log"
	"sync"
	"time"

	"fleetline/internal/action"
)

const defaultQueueSize = 256

// Recorder writes audit entries to the audit_log table.
type Recorder struct {
	db     *sql.DB
	logger *log.Logger

	queue chan action.AuditEntry
	done  chan struct{}
	once  sync.Once

	mu     sync.Mutex
	closed bool
}

// NewRecorder starts a recorder draining into db.
func NewRecorder(db *sql.DB, logger *log.Logger) *Recorder {
	if logger == nil {
		logger = log.Default()
	}
	r := &Recorder{
		db:     db,
		logger: logger,
		queue:  make(chan action.AuditEntry, defaultQueueSize),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

// Record enqueues an entry. It never blocks and never fails the caller: when
// the queue is full, or the recorder is already closed, the entry is dropped
// and the drop is logged. Requests still in flight during shutdown may land
// here after Close.
func (r *Recorder) Record(entry action.AuditEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		r.logger.Printf("audit: recorder closed, dropping entry action=%s actor=%s", entry.Action, entry.ActorID)
		return
	}
	select {
	case r.queue <- entry:
	default:
		r.logger.Printf("audit: queue full, dropping entry action=%s actor=%s", entry.Action, entry.ActorID)
	}
}

// Close stops the recorder after draining queued entries.
func (r *Recorder) Close() {
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		close(r.queue)
		<-r.done
	})
}

func (r *Recorder) run() {
	defer close(r.done)
	for entry := range r.queue {
		if err := r.write(entry); err != nil {
			r.logger.Printf("audit: write failed action=%s actor=%s: %v", entry.Action, entry.ActorID, err)
		}
	}
}

func (r *Recorder) write(entry action.AuditEntry) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `INSERT INTO audit_log(ts, action, actor_id, yacht_id, outcome, error_code) VALUES (?,?,?,?,?,?)`,
		entry.TS.Format(time.RFC3339), entry.Action, entry.ActorID, entry.YachtID, entry.Outcome, nullable(entry.Code))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
