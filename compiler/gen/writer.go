package gen

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/imports"

	"github.com/syssam/prax/compiler"
)

// Writer formats generated files and writes them to disk in parallel.
type Writer struct {
	outDir  string
	workers int
	logger  *slog.Logger

	// Metrics for performance monitoring
	mu      sync.Mutex
	metrics *WriterMetrics
}

// WriterMetrics tracks generation performance
type WriterMetrics struct {
	FilesWritten int
	TotalBytes   int64
	FormatTime   time.Duration
	WriteTime    time.Duration
}

// NewWriter creates a writer for the given output directory.
func NewWriter(outDir string) *Writer {
	return &Writer{
		outDir:  outDir,
		workers: runtime.GOMAXPROCS(0),
		logger:  slog.Default(),
		metrics: &WriterMetrics{},
	}
}

// WithWorkers sets the number of parallel workers.
func (w *Writer) WithWorkers(n int) *Writer {
	if n > 0 {
		w.workers = n
	}
	return w
}

// WithLogger sets the logger.
func (w *Writer) WithLogger(l *slog.Logger) *Writer {
	if l != nil {
		w.logger = l
	}
	return w
}

// Metrics returns the generation metrics.
func (w *Writer) Metrics() WriterMetrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	return *w.metrics
}

// Write writes files under the output directory. Go files are formatted
// with goimports first. Paths must be local to the output directory.
func (w *Writer) Write(ctx context.Context, files []compiler.File) error {
	if w.outDir == "" {
		return NewConfigError("Target", nil, "missing target directory")
	}
	for _, f := range files {
		if !filepath.IsLocal(f.Path) {
			return NewGenerationError("", f.Path, "path escapes the output directory", nil)
		}
	}
	if err := os.MkdirAll(w.outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(w.workers)
	for _, f := range files {
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return w.writeFile(f)
			}
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	m := w.Metrics()
	w.logger.Info("generated files written", "dir", w.outDir, "files", m.FilesWritten, "bytes", m.TotalBytes)
	return nil
}

// writeFile writes a single file.
func (w *Writer) writeFile(f compiler.File) error {
	fullPath := filepath.Join(w.outDir, f.Path)
	content := f.Content

	start := time.Now()
	if strings.HasSuffix(f.Path, ".go") {
		formatted, err := imports.Process(fullPath, content, nil)
		if err != nil {
			// Keep the unformatted source next to the target for debugging.
			debugPath := fullPath + ".error"
			_ = os.MkdirAll(filepath.Dir(debugPath), 0o755)
			_ = os.WriteFile(debugPath, content, 0o644)
			return NewGenerationError("", f.Path, "format (unformatted written to "+debugPath+")", err)
		}
		content = formatted
	}
	formatTime := time.Since(start)

	start = time.Now()
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", f.Path, err)
	}
	if err := os.WriteFile(fullPath, content, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", f.Path, err)
	}
	w.logger.Debug("file written", "path", fullPath, "bytes", len(content))

	w.mu.Lock()
	w.metrics.FilesWritten++
	w.metrics.TotalBytes += int64(len(content))
	w.metrics.FormatTime += formatTime
	w.metrics.WriteTime += time.Since(start)
	w.mu.Unlock()
	return nil
}
