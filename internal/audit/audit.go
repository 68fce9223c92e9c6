// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

// Package audit records terminal routing decisions asynchronously, with an
// optional Postgres sink. Grounded on orchestrator/audit_logger.go's
// AuditLogger/BatchWriter pattern: a buffered channel decouples logging
// from the request path, a background goroutine drains it on a ticker or
// batch-size threshold, and a failed or absent database never blocks or
// fails a routing decision.
package audit

import (
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"nexus/internal/domain"
	"nexus/internal/logger"
)

// Entry is one terminal routing decision: the agent selected (if any),
// every rejection recorded along the way, the fallback chain traversed,
// and the realized cost estimate.
type Entry struct {
	RequestID         string    `json:"request_id"`
	Timestamp         time.Time `json:"timestamp"`
	RequestedModel    string    `json:"requested_model"`
	ResolvedModel     string    `json:"resolved_model"`
	Decision          string    `json:"decision"` // "route" | "queue" | "reject"
	SelectedBackend   string    `json:"selected_backend"`
	FallbackModelUsed string    `json:"fallback_model_used"`
	RejectionCodes    []string  `json:"rejection_codes"`
	CostCents         int64     `json:"cost_cents"`
	RetryAfterSeconds int       `json:"retry_after_seconds"`
}

// NewEntryFromIntent builds an Entry from a reconciled Intent and its
// Result Encoder outcome fields, the same attribution the error envelope
// in internal/routing/encoder.go already carries.
func NewEntryFromIntent(intent *domain.RoutingIntent, decision string, cost domain.CostEstimate, retryAfterSeconds int) *Entry {
	codes := make([]string, 0, len(intent.RejectionReasons))
	for _, r := range intent.RejectionReasons {
		codes = append(codes, r.Reason.Code())
	}
	return &Entry{
		RequestID:         intent.RequestID,
		Timestamp:         time.Now().UTC(),
		RequestedModel:    intent.RequestedModel,
		ResolvedModel:     intent.ResolvedModel,
		Decision:          decision,
		SelectedBackend:   intent.SelectedBackend,
		FallbackModelUsed: intent.FallbackModelUsed,
		RejectionCodes:    codes,
		CostCents:         cost.CostCents,
		RetryAfterSeconds: retryAfterSeconds,
	}
}

// Logger buffers Entries on a channel and flushes them in batches. It is
// safe for concurrent Record calls.
type Logger struct {
	db           *sql.DB
	batchWriter  *BatchWriter
	queue        chan *Entry
	wg           sync.WaitGroup
	shutdownChan chan struct{}
	log          *logger.Logger
}

const queueCapacity = 10000

// New constructs a Logger. An empty databaseURL, or one that fails to
// connect, produces a queue-only no-op sink: Record still accepts
// entries (so callers never branch on whether persistence is configured)
// but nothing is written to disk.
func New(databaseURL string) *Logger {
	l := &Logger{
		queue:        make(chan *Entry, queueCapacity),
		shutdownChan: make(chan struct{}),
		log:          logger.New("audit"),
	}

	if databaseURL != "" {
		db, err := sql.Open("postgres", databaseURL)
		if err != nil {
			l.log.Warn("", "", "failed to connect to audit database, falling back to no-op", map[string]interface{}{"error": err.Error()})
		} else if err := createAuditTables(db); err != nil {
			l.log.Warn("", "", "failed to create audit tables, falling back to no-op", map[string]interface{}{"error": err.Error()})
		} else {
			l.db = db
			l.batchWriter = NewBatchWriter(db, 100)
		}
	}

	l.wg.Add(1)
	go l.drainQueue()
	return l
}

// Record enqueues an Entry without blocking the routing hot path. If the
// queue is saturated, the entry is written directly rather than dropped.
func (l *Logger) Record(entry *Entry) {
	select {
	case l.queue <- entry:
	default:
		l.log.Warn("", entry.RequestID, "audit queue full, writing directly", nil)
		if l.batchWriter != nil {
			_ = l.batchWriter.Write([]*Entry{entry})
		}
	}
}

// Close flushes any buffered entries and stops the background worker.
func (l *Logger) Close() {
	close(l.shutdownChan)
	l.wg.Wait()
	if l.db != nil {
		_ = l.db.Close()
	}
}

func (l *Logger) drainQueue() {
	defer l.wg.Done()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case entry := <-l.queue:
			if l.batchWriter != nil {
				l.batchWriter.Add(entry)
			}
		case <-ticker.C:
			if l.batchWriter != nil {
				l.batchWriter.Flush()
			}
		case <-l.shutdownChan:
			if l.batchWriter != nil {
				for drained := false; !drained; {
					select {
					case entry := <-l.queue:
						l.batchWriter.Add(entry)
					default:
						drained = true
					}
				}
				l.batchWriter.Flush()
			}
			return
		}
	}
}

// BatchWriter buffers Entries and writes them to Postgres in transactional
// batches, flushing on a size threshold or a ticker, whichever comes
// first.
type BatchWriter struct {
	db          *sql.DB
	batchSize   int
	flushTicker *time.Ticker
	entries     []*Entry
	mu          sync.Mutex
}

// NewBatchWriter constructs a BatchWriter and starts its periodic flush.
func NewBatchWriter(db *sql.DB, batchSize int) *BatchWriter {
	w := &BatchWriter{
		db:          db,
		batchSize:   batchSize,
		entries:     make([]*Entry, 0, batchSize),
		flushTicker: time.NewTicker(10 * time.Second),
	}
	go w.periodicFlush()
	return w
}

// Add appends an entry, flushing immediately once the batch fills.
func (w *BatchWriter) Add(entry *Entry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = append(w.entries, entry)
	if len(w.entries) >= w.batchSize {
		w.flush()
	}
}

// Flush writes the current batch regardless of size.
func (w *BatchWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flush()
}

func (w *BatchWriter) flush() {
	if len(w.entries) == 0 {
		return
	}
	_ = w.Write(w.entries)
	w.entries = w.entries[:0]
}

// Write inserts entries in one transaction. A nil db (no-op sink) is a
// silent success, so callers never need to branch on configuration.
func (w *BatchWriter) Write(entries []*Entry) error {
	if w.db == nil {
		return nil
	}

	tx, err := w.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO audit_logs (
			request_id, timestamp, requested_model, resolved_model, decision,
			selected_backend, fallback_model_used, rejection_codes,
			cost_cents, retry_after_seconds
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, entry := range entries {
		codesJSON, _ := json.Marshal(entry.RejectionCodes)
		if _, err := stmt.Exec(
			entry.RequestID,
			entry.Timestamp,
			entry.RequestedModel,
			entry.ResolvedModel,
			entry.Decision,
			entry.SelectedBackend,
			entry.FallbackModelUsed,
			codesJSON,
			entry.CostCents,
			entry.RetryAfterSeconds,
		); err != nil {
			continue
		}
	}

	return tx.Commit()
}

func (w *BatchWriter) periodicFlush() {
	for range w.flushTicker.C {
		w.Flush()
	}
}

// createAuditTables creates the audit schema if it doesn't already exist.
func createAuditTables(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_logs (
		id SERIAL PRIMARY KEY,
		request_id VARCHAR(255) NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		requested_model VARCHAR(255) NOT NULL,
		resolved_model VARCHAR(255) NOT NULL,
		decision VARCHAR(20) NOT NULL,
		selected_backend VARCHAR(255),
		fallback_model_used VARCHAR(255),
		rejection_codes JSONB,
		cost_cents BIGINT,
		retry_after_seconds INTEGER,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs(timestamp);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_request_id ON audit_logs(request_id);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_decision ON audit_logs(decision);
	`
	_, err := db.Exec(query)
	return err
}
