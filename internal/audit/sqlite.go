// This file implements an SQLite-backed audit recorder.
package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/models"
)

// DefaultDirPermissions defines the permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteRecorder struct {
	db *sql.DB
}

// NewSQLiteRecorder creates an SQLite audit recorder. The DSN is a file path;
// its directory is created if it does not exist.
func NewSQLiteRecorder(opts ...Option) (*SQLiteRecorder, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteRecorder invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteRecorder DSN not set")
		return nil, fmt.Errorf("audit DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create audit database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create audit database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run audit migrations", "error", err)
		return nil, fmt.Errorf("failed to run audit migrations: %w", err)
	}
	slog.Debug("SQLite audit migrations applied successfully")

	return &SQLiteRecorder{db: db}, nil
}

// Record implements Recorder.
func (r *SQLiteRecorder) Record(rec models.AuditRecord) error {
	rec = Stamp(rec)
	facts, err := json.Marshal(rec.PatientContext)
	if err != nil {
		return fmt.Errorf("failed to marshal patient context: %w", err)
	}
	_, err = r.db.Exec(
		`INSERT INTO audit_records (id, timestamp, sender_id, raw_query, detected_intent, patient_context, cited_sources, response_text)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Timestamp, rec.SenderID, rec.RawQuery, rec.DetectedIntent,
		string(facts), strings.Join(rec.CitedSources, "\n"), rec.ResponseText,
	)
	if err != nil {
		slog.Error("SQLiteRecorder.Record failed", "error", err, "sender", rec.SenderID)
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	slog.Debug("SQLiteRecorder.Record succeeded", "id", rec.ID, "sender", rec.SenderID)
	return nil
}

// Close implements Recorder.
func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
