// Package intake watches a spool directory for package files delivered out
// of band (couriered disks, office LAN drops) and feeds them through the
// same import pipeline as device uploads.
package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"terrasync/internal/container"
	"terrasync/internal/ingest"
	id "terrasync/pkg/domain"
)

// settleDelay gives the courier tooling time to finish writing a file
// before we read it. fsnotify fires on create, not on close.
const settleDelay = 500 * time.Millisecond

// spoolFile is the on-disk envelope: the manifest plus base64 payload bytes,
// identical to the sync upload body.
type spoolFile struct {
	Manifest *container.Manifest `json:"manifest"`
	Payload  []byte              `json:"payload"`
}

// Watcher tails the spool directory and imports every dropped package file.
type Watcher struct {
	dir      string
	importer *ingest.Service
	logger   *slog.Logger
}

func NewWatcher(dir string, importer *ingest.Service, logger *slog.Logger) *Watcher {
	return &Watcher{dir: dir, importer: importer, logger: logger}
}

// Run processes files already in the spool, then blocks watching for new
// ones until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create spool watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch spool dir %s: %w", w.dir, err)
	}

	w.drainExisting(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			if !isSpoolFile(event.Name) {
				continue
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(settleDelay):
			}
			w.process(ctx, event.Name)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.ErrorContext(ctx, "spool watcher error", "dir", w.dir, "error", err)
		}
	}
}

func (w *Watcher) drainExisting(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.ErrorContext(ctx, "spool scan failed", "dir", w.dir, "error", err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !isSpoolFile(entry.Name()) {
			continue
		}
		w.process(ctx, filepath.Join(w.dir, entry.Name()))
	}
}

func isSpoolFile(name string) bool {
	return strings.HasSuffix(name, ".json")
}

// process imports one spool file. The file is renamed afterwards so a crash
// mid-import leaves it in place for a retry; the checksum idempotency check
// makes the retry safe.
func (w *Watcher) process(ctx context.Context, path string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		w.logger.ErrorContext(ctx, "spool file read failed", "file", path, "error", err)
		return
	}

	var sf spoolFile
	if err := json.Unmarshal(raw, &sf); err != nil {
		w.logger.ErrorContext(ctx, "spool file is not a package envelope", "file", path, "error", err)
		w.sideline(ctx, path, ".failed")
		return
	}
	if sf.Manifest == nil || len(sf.Payload) == 0 {
		w.logger.ErrorContext(ctx, "spool file missing manifest or payload", "file", path)
		w.sideline(ctx, path, ".failed")
		return
	}
	collectorID, err := id.ParseCollectorID(sf.Manifest.CollectorID)
	if err != nil {
		w.logger.ErrorContext(ctx, "spool file has malformed collector id",
			"file", path, "collector_id", sf.Manifest.CollectorID, "error", err)
		w.sideline(ctx, path, ".failed")
		return
	}

	outcome, err := w.importer.Accept(ctx, sf.Manifest, sf.Payload, collectorID)
	if err != nil {
		w.logger.ErrorContext(ctx, "spool import failed", "file", path, "error", err)
		w.sideline(ctx, path, ".failed")
		return
	}

	w.logger.InfoContext(ctx, "spool file imported",
		"file", path,
		"package_id", outcome.PackageID,
		"status", outcome.Status,
		"duplicate", outcome.Duplicate,
		"quarantined", outcome.Quarantined,
	)
	w.sideline(ctx, path, ".done")
}

func (w *Watcher) sideline(ctx context.Context, path, suffix string) {
	if err := os.Rename(path, path+suffix); err != nil {
		w.logger.ErrorContext(ctx, "spool file rename failed", "file", path, "error", err)
	}
}
