package digest

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// WatchOptions tunes the rebuild loop.
type WatchOptions struct {
	// Interval is the database polling frequency. Default: 5s.
	Interval time.Duration
	// Debounce is the quiet period after a detected change before the
	// digest is rewritten, so a burst of assessments triggers one rebuild.
	// Default: 2s.
	Debounce time.Duration
	// Path is where the digest file is written. Default: digest.md.
	Path string
}

func (o *WatchOptions) defaults() {
	if o.Interval <= 0 {
		o.Interval = 5 * time.Second
	}
	if o.Debounce <= 0 {
		o.Debounce = 2 * time.Second
	}
	if o.Path == "" {
		o.Path = "digest.md"
	}
}

// Watch polls PRAGMA data_version and rewrites the weekly digest file when
// the database changes. It blocks until ctx is cancelled. A failed rebuild
// keeps the last observed version unchanged so the next poll retries.
func (b *Builder) Watch(ctx context.Context, db *sql.DB, opts WatchOptions) {
	opts.defaults()
	log := b.logger.With("path", opts.Path)

	last, err := dataVersion(ctx, db)
	if err != nil {
		log.Warn("digest: initial version check failed", "error", err)
	}

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	var debounce *time.Timer
	var debounceCh <-chan time.Time
	pending := int64(-1)

	log.Info("digest: watch started", "interval", opts.Interval, "debounce", opts.Debounce)
	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			log.Info("digest: watch stopped")
			return

		case <-ticker.C:
			cur, err := dataVersion(ctx, db)
			if err != nil {
				log.Warn("digest: version check failed", "error", err)
				continue
			}
			if cur != last && cur != pending {
				pending = cur
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.NewTimer(opts.Debounce)
				debounceCh = debounce.C
			}

		case <-debounceCh:
			debounceCh = nil
			if err := b.rebuild(ctx, opts.Path); err != nil {
				log.Warn("digest: rebuild failed", "error", err)
				continue
			}
			last = pending
			pending = -1
		}
	}
}

// rebuild writes the trailing-week digest atomically via a temp file rename.
func (b *Builder) rebuild(ctx context.Context, path string) error {
	content, err := b.BuildWeekly(ctx, time.Now())
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("digest dir: %w", err)
	}
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write digest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename digest: %w", err)
	}
	b.logger.Debug("digest: rewritten", "path", path, "bytes", len(content))
	return nil
}

// dataVersion reads SQLite's connection-independent change counter.
func dataVersion(ctx context.Context, db *sql.DB) (int64, error) {
	var v int64
	err := db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v)
	return v, err
}
