package config

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// reloadInterval is the fixed cadence for re-reading the config source even
// when no filesystem event fires (editors that replace files atomically can
// defeat watches).
const reloadInterval = 30 * time.Second

// Store serves immutable Config snapshots and swaps them atomically on
// reload. A failed reload leaves the active snapshot untouched.
type Store struct {
	path string
	cur  atomic.Pointer[Config]
	log  *zap.SugaredLogger
}

// NewStore creates a store serving cfg, reloading from path.
func NewStore(path string, cfg *Config, log *zap.SugaredLogger) *Store {
	s := &Store{path: path, log: log}
	s.cur.Store(cfg)
	return s
}

// Current returns the active snapshot. The returned value must be treated as
// read-only.
func (s *Store) Current() *Config {
	return s.cur.Load()
}

// Reload re-reads the config source and swaps the snapshot in. A malformed
// or invalid file is rejected in full: the previous snapshot stays active
// and the error is returned for reporting.
func (s *Store) Reload() error {
	cfg, err := Load(s.path)
	if err != nil {
		return err
	}
	s.cur.Store(cfg)
	return nil
}

// Watch re-reads the config every 30 seconds and additionally on filesystem
// events. It blocks until ctx is cancelled. Reload failures are logged at
// warn and never terminate the watch.
func (s *Store) Watch(ctx context.Context) {
	ticker := time.NewTicker(reloadInterval)
	defer ticker.Stop()

	var events chan fsnotify.Event
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		defer watcher.Close()
		if s.path != "" {
			if err := watcher.Add(s.path); err != nil {
				s.log.Debugw("config watch unavailable, timer reload only", "path", s.path, "error", err)
			}
		}
		events = make(chan fsnotify.Event)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-watcher.Events:
					if !ok {
						return
					}
					if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
						select {
						case events <- ev:
						case <-ctx.Done():
							return
						}
					}
				case <-watcher.Errors:
				}
			}
		}()
	} else {
		s.log.Debugw("fsnotify unavailable, timer reload only", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-events:
		}
		if err := s.Reload(); err != nil {
			s.log.Warnw("config reload rejected, previous config remains active",
				"path", s.path, "error", err)
		}
	}
}
