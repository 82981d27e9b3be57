package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/vfs19/edlscan/internal/analyze"
)

// writeTestImage creates a small non-boot payload on disk.
func writeTestImage(t *testing.T, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, make([]byte, 4096), 0600); err != nil {
		t.Fatalf("failed to write test image: %v", err)
	}
	return path
}

// TestBatchAnalyzer tests concurrent multi-image analysis.
func TestBatchAnalyzer(t *testing.T) {
	t.Parallel()

	t.Run("analyzes all images preserving input order", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		paths := []string{
			writeTestImage(t, dir, "a.img"),
			writeTestImage(t, dir, "b.img"),
			writeTestImage(t, dir, "c.img"),
		}

		outDir := t.TempDir()
		ba := NewBatchAnalyzer(
			func() *analyze.Analyzer { return analyze.NewAnalyzer(outDir, quietLogger()) },
			WithBatchLogger(quietLogger()),
			WithConcurrency(2),
		)

		reports, err := ba.AnalyzeBatch(context.Background(), paths)
		if err != nil {
			t.Fatalf("batch analysis failed: %v", err)
		}
		if len(reports) != 3 {
			t.Fatalf("got %d reports, want 3", len(reports))
		}
		for i, report := range reports {
			if report == nil {
				t.Fatalf("report %d is nil", i)
			}
			if report.ImagePath != paths[i] {
				t.Errorf("report %d path = %q, want %q", i, report.ImagePath, paths[i])
			}
		}
	})

	t.Run("missing image fails the batch", func(t *testing.T) {
		t.Parallel()

		ba := NewBatchAnalyzer(
			func() *analyze.Analyzer { return analyze.NewAnalyzer(t.TempDir(), quietLogger()) },
			WithBatchLogger(quietLogger()),
		)

		if _, err := ba.AnalyzeBatch(context.Background(), []string{"/nonexistent/boot.img"}); err == nil {
			t.Fatal("expected error for missing image")
		}
	})
}
