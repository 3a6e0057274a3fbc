// This file implements a PostgreSQL-backed audit recorder.
package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "embed"

	_ "github.com/lib/pq"

	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/models"
)

// Database connection pool configuration constants
const (
	DefaultMaxOpenConns    = 25
	DefaultMaxIdleConns    = 25
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresRecorder struct {
	db *sql.DB
}

// NewPostgresRecorder creates a Postgres audit recorder from the provided options.
func NewPostgresRecorder(opts ...Option) (*PostgresRecorder, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresRecorder: creating Postgres audit recorder", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresRecorder DSN not set")
		return nil, fmt.Errorf("audit DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run audit migrations", "error", err)
		return nil, fmt.Errorf("failed to run audit migrations: %w", err)
	}
	slog.Debug("Postgres audit migrations applied successfully")

	return &PostgresRecorder{db: db}, nil
}

// Record implements Recorder.
func (r *PostgresRecorder) Record(rec models.AuditRecord) error {
	rec = Stamp(rec)
	facts, err := json.Marshal(rec.PatientContext)
	if err != nil {
		return fmt.Errorf("failed to marshal patient context: %w", err)
	}
	_, err = r.db.Exec(
		`INSERT INTO audit_records (id, timestamp, sender_id, raw_query, detected_intent, patient_context, cited_sources, response_text)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.Timestamp, rec.SenderID, rec.RawQuery, rec.DetectedIntent,
		string(facts), strings.Join(rec.CitedSources, "\n"), rec.ResponseText,
	)
	if err != nil {
		slog.Error("PostgresRecorder.Record failed", "error", err, "sender", rec.SenderID)
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	slog.Debug("PostgresRecorder.Record succeeded", "id", rec.ID, "sender", rec.SenderID)
	return nil
}

// Close implements Recorder.
func (r *PostgresRecorder) Close() error {
	return r.db.Close()
}
