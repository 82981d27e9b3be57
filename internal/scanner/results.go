package scanner

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vfs19/edlscan/internal/model"
)

// ResultsWriter mirrors non-zero discoveries to a durable log file in
// real time, one line per word: "0xXXXXXXXX: aa bb cc dd". Each line is
// synced as it is written so the file reflects every discovery made
// before a crash, and a tailing reader always sees whole lines.
type ResultsWriter struct {
	f    *os.File
	path string
}

// NewResultsWriter opens (or creates) the results log for appending.
func NewResultsWriter(path string) (*ResultsWriter, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create results log directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600) //nolint:gosec // Results path comes from config
	if err != nil {
		return nil, fmt.Errorf("failed to open results log: %w", err)
	}
	return &ResultsWriter{f: f, path: path}, nil
}

// Append writes one discovery line and syncs it to disk.
func (w *ResultsWriter) Append(d model.Discovery) error {
	if _, err := fmt.Fprintln(w.f, d.String()); err != nil {
		return err
	}
	return w.f.Sync()
}

// Path returns the log file path.
func (w *ResultsWriter) Path() string { return w.path }

// Close closes the underlying file.
func (w *ResultsWriter) Close() error { return w.f.Close() }
