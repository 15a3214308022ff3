package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var checkLogMutex sync.Mutex

// CheckLogEntry is one completed check cycle, appended to a daily JSONL file.
type CheckLogEntry struct {
	Timestamp  time.Time          `json:"timestamp"`
	TargetKind string             `json:"target_kind"` // database, filesystem
	TargetID   uint               `json:"target_id"`
	TargetName string             `json:"target_name"`
	Host       string             `json:"host"`
	Status     string             `json:"status"`
	LatencyMS  int64              `json:"latency_ms,omitempty"`
	Alerts     int                `json:"alerts"`
	Message    string             `json:"message,omitempty"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
}

// InitCheckLog creates the check log directory.
func InitCheckLog(logDir string) error {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

// WriteCheckLog appends one check result to the dated log file,
// e.g. logs/check-2026-08-31.jsonl.
func WriteCheckLog(logDir string, entry *CheckLogEntry) error {
	checkLogMutex.Lock()
	defer checkLogMutex.Unlock()

	date := time.Now().Format("2006-01-02")
	logFilePath := filepath.Join(logDir, fmt.Sprintf("check-%s.jsonl", date))

	file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal log entry: %w", err)
	}

	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write log entry: %w", err)
	}

	return nil
}
