package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/models"
)

func TestStampFillsGeneratedFields(t *testing.T) {
	rec := Stamp(models.AuditRecord{SenderID: "whatsapp:+911234567890"})
	if rec.ID == "" {
		t.Error("stamped record should have an ID")
	}
	if rec.Timestamp.IsZero() {
		t.Error("stamped record should have a timestamp")
	}

	again := Stamp(rec)
	if again.ID != rec.ID || !again.Timestamp.Equal(rec.Timestamp) {
		t.Error("stamping must not overwrite fields the caller already set")
	}
}

func TestFileRecorderAppendsJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "clinical.jsonl")
	r, err := NewFileRecorder(WithDSN(path))
	if err != nil {
		t.Fatalf("NewFileRecorder: %v", err)
	}
	defer r.Close()

	records := []models.AuditRecord{
		{
			SenderID:       "919812345678",
			RawQuery:       "child 4y fever 3 days with seizures",
			DetectedIntent: "CASE",
			PatientContext: models.FactSet{"fever_days": float64(3), "seizures_present": true},
			CitedSources:   []string{"ICMR STW Pediatrics"},
			ResponseText:   "ADMIT AND TREAT",
		},
		{
			SenderID:       "919812345678",
			RawQuery:       "what is first line for bacterial ARS",
			DetectedIntent: "SEARCH",
			ResponseText:   "Amoxycillin is first line.",
		},
	}
	for _, rec := range records {
		if err := r.Record(rec); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit file: %v", err)
	}
	defer f.Close()

	var got []models.AuditRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec models.AuditRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("line is not valid JSON: %v", err)
		}
		got = append(got, rec)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 JSONL lines, got %d", len(got))
	}
	if got[0].ID == "" || got[0].Timestamp.IsZero() {
		t.Error("persisted record missing generated fields")
	}
	if got[1].RawQuery != records[1].RawQuery || got[1].DetectedIntent != "SEARCH" {
		t.Errorf("second record does not round-trip: %+v", got[1])
	}
}

func TestInMemoryRecorderCopiesOut(t *testing.T) {
	r := NewInMemoryRecorder()
	if err := r.Record(models.AuditRecord{SenderID: "a"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	out := r.Records()
	out[0].SenderID = "mutated"
	if r.Records()[0].SenderID != "a" {
		t.Error("Records must return a copy")
	}
}

func TestNewFileRecorderRequiresPath(t *testing.T) {
	if _, err := NewFileRecorder(); err == nil {
		t.Error("expected an error when no path is configured")
	}
}
