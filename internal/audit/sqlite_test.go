package audit

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/models"
)

func TestSQLiteRecorderRoundTrip(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "audit.db")
	r, err := NewSQLiteRecorder(WithDSN(dsn))
	if err != nil {
		t.Fatalf("NewSQLiteRecorder: %v", err)
	}
	defer r.Close()

	rec := models.AuditRecord{
		SenderID:       "919812345678",
		RawQuery:       "purulent discharge for 9 days",
		DetectedIntent: "CASE",
		PatientContext: models.FactSet{"duration_days": 9},
		CitedSources:   []string{"ICMR STW ENT", "ICMR STW ENT Annex"},
		ResponseText:   "BACTERIAL ARS",
	}
	if err := r.Record(rec); err != nil {
		t.Fatalf("Record: %v", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	var sender, intent, sources, response string
	row := db.QueryRow(`SELECT sender_id, detected_intent, cited_sources, response_text FROM audit_records`)
	if err := row.Scan(&sender, &intent, &sources, &response); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if sender != rec.SenderID || intent != "CASE" || response != "BACTERIAL ARS" {
		t.Errorf("persisted row = %s / %s / %s", sender, intent, response)
	}
	if sources != "ICMR STW ENT\nICMR STW ENT Annex" {
		t.Errorf("cited sources = %q", sources)
	}
}

func TestNewSQLiteRecorderRequiresDSN(t *testing.T) {
	if _, err := NewSQLiteRecorder(); err == nil {
		t.Error("expected an error when no DSN is configured")
	}
}
