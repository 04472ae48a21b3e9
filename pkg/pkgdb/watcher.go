package pkgdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watch invalidates the cached snapshot when another process writes the
// database file, so the next Snapshot call observes the external change.
// It returns immediately; watching stops when ctx is cancelled. In-memory
// databases have nothing to watch.
func (s *SQLiteStore) Watch(ctx context.Context, logger zerolog.Logger) error {
	if s.path == ":memory:" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := watcher.Add(s.path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch database file: %w", err)
	}

	log := logger.With().Str("component", "pkgdb-watcher").Logger()
	go s.processEvents(ctx, watcher, log)

	log.Debug().Str("path", s.path).Msg("Watching package database for external writes")
	return nil
}

// processEvents drains watcher events, debouncing bursts of writes into a
// single cache invalidation.
func (s *SQLiteStore) processEvents(ctx context.Context, watcher *fsnotify.Watcher, log zerolog.Logger) {
	var invalidateTimer *time.Timer
	const debounce = 250 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			_ = watcher.Close()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) == 0 {
				continue
			}
			// WAL side files churn constantly; only the main database
			// file signals a committed external change.
			if strings.HasSuffix(event.Name, "-wal") || strings.HasSuffix(event.Name, "-shm") {
				continue
			}

			log.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Package database changed externally")

			if invalidateTimer != nil {
				invalidateTimer.Stop()
			}
			invalidateTimer = time.AfterFunc(debounce, s.invalidateSnapshot)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Watcher error")
		}
	}
}
