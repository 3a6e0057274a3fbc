// Package audit provides append-only clinical audit sinks.
//
// Every finalized triage turn is recorded for later review. The core never
// reads audit data back; a recording failure is logged and must not block a
// response to the clinician.
package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/models"
)

// Recorder is an append-only sink for clinical audit records.
type Recorder interface {
	Record(rec models.AuditRecord) error
	Close() error
}

// Opts holds audit backend configuration.
type Opts struct {
	// DSN is the backend-specific connection string or file path.
	DSN string
}

// Option configures an audit backend.
type Option func(*Opts)

// WithDSN sets the backend DSN.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// Stamp fills the generated fields of a record: a fresh UUID and the current
// time when the caller left them zero.
func Stamp(rec models.AuditRecord) models.AuditRecord {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	return rec
}

// InMemoryRecorder keeps records in memory, used by tests.
type InMemoryRecorder struct {
	mu      sync.Mutex
	records []models.AuditRecord
}

// NewInMemoryRecorder creates an empty in-memory recorder.
func NewInMemoryRecorder() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Record implements Recorder.
func (r *InMemoryRecorder) Record(rec models.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, Stamp(rec))
	return nil
}

// Records returns a copy of everything recorded so far.
func (r *InMemoryRecorder) Records() []models.AuditRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.AuditRecord, len(r.records))
	copy(out, r.records)
	return out
}

// Close implements Recorder.
func (r *InMemoryRecorder) Close() error { return nil }
