// This file implements a JSONL file audit recorder, the zero-dependency
// fallback when no database is configured.
package audit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/models"
)

// FileRecorder appends one JSON object per line to a local file.
type FileRecorder struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileRecorder opens (or creates) the JSONL audit file at the DSN path.
func NewFileRecorder(opts ...Option) (*FileRecorder, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	path := cfg.DSN
	if path == "" {
		return nil, fmt.Errorf("audit file path not set")
	}

	if err := os.MkdirAll(filepath.Dir(path), DefaultDirPermissions); err != nil {
		slog.Error("Failed to create audit log directory", "error", err, "path", path)
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		slog.Error("Failed to open audit log file", "error", err, "path", path)
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}
	slog.Debug("FileRecorder opened", "path", path)
	return &FileRecorder{file: f}, nil
}

// Record implements Recorder.
func (r *FileRecorder) Record(rec models.AuditRecord) error {
	line, err := json.Marshal(Stamp(rec))
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.file.Write(append(line, '\n')); err != nil {
		slog.Error("FileRecorder.Record failed", "error", err, "sender", rec.SenderID)
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	return nil
}

// Close implements Recorder.
func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}
