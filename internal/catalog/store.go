package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"
)

// watchDebounce coalesces the burst of events editors emit for one save.
const watchDebounce = 250 * time.Millisecond

// Store holds the current catalog snapshot and swaps it atomically on reload.
// Readers never see a partially loaded catalog.
type Store struct {
	path   string
	opts   LoadOptions
	logger hclog.Logger

	current    atomic.Pointer[Catalog]
	generation atomic.Uint64

	// Serializes reloads so two watchers cannot interleave file reads.
	mu sync.Mutex
}

// NewStore loads the catalog at path. A load failure is returned as is so
// callers can treat it as fatal at startup.
func NewStore(path string, opts LoadOptions, logger hclog.Logger) (*Store, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	s := &Store{
		path:   path,
		opts:   opts,
		logger: logger.Named("catalog"),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewStaticStore wraps an in-memory catalog. Reload and Watch are not
// available on a static store.
func NewStaticStore(c *Catalog) *Store {
	s := &Store{logger: hclog.NewNullLogger()}
	s.current.Store(c)
	s.generation.Store(1)
	return s
}

// Path returns the file the store loads from, empty for static stores.
func (s *Store) Path() string {
	return s.path
}

// Snapshot returns the current catalog. The returned value is immutable and
// stays valid after later reloads.
func (s *Store) Snapshot() *Catalog {
	return s.current.Load()
}

// Generation counts successful loads, starting at 1 for the initial load.
func (s *Store) Generation() uint64 {
	return s.generation.Load()
}

// Reload reads the catalog file again and installs it. On failure the
// previous snapshot stays in place.
func (s *Store) Reload() error {
	if s.path == "" {
		return fmt.Errorf("catalog store has no backing file")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	c, err := LoadWithOptions(s.path, s.opts)
	if err != nil {
		if s.current.Load() != nil {
			s.logger.Error("catalog reload failed, keeping previous snapshot", "path", s.path, "error", err)
		}
		return fmt.Errorf("failed to load catalog %s: %w", s.path, err)
	}

	s.current.Store(c)
	gen := s.generation.Add(1)
	s.logger.Info("catalog loaded",
		"path", s.path,
		"entries", c.Len(),
		"in_stock", c.InStock(),
		"generation", gen,
		"duration", time.Since(start))
	return nil
}

// Watch reloads the catalog whenever its file is written, created or renamed
// into place. It blocks until ctx is cancelled.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		return fmt.Errorf("catalog store has no backing file")
	}

	abs, err := filepath.Abs(s.path)
	if err != nil {
		return fmt.Errorf("failed to resolve catalog path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so atomic rename-over saves are seen.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch catalog directory: %w", err)
	}
	s.logger.Debug("watching catalog for changes", "path", abs)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			// Failure is logged by Reload and the old snapshot is kept.
			_ = s.Reload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("catalog watcher error", "error", err)
		}
	}
}
