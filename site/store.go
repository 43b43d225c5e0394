package site

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Store serves the last good version of the content file.
type Store struct {
	path     string
	logger   *zap.Logger
	debounce time.Duration

	mu       sync.RWMutex
	content  *Content
	loadedAt time.Time
}

func NewStore(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, logger: logger, debounce: 250 * time.Millisecond}
}

// Load reads the file. On failure the previous content stays in place.
func (s *Store) Load() error {
	c, err := LoadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", s.path, err)
	}
	s.mu.Lock()
	s.content = c
	s.loadedAt = time.Now()
	s.mu.Unlock()
	return nil
}

// Current returns the loaded content, or nil before the first good load.
func (s *Store) Current() *Content {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.content
}

func (s *Store) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// Watch reloads the file whenever it changes until ctx is done. The parent
// directory is watched so editors that replace the file are seen too.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	target := filepath.Clean(s.path)
	s.logger.Info("watching site content", zap.String("path", target))

	var (
		timer  *time.Timer
		reload <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Saves arrive as bursts of events; reload once they settle.
			if timer == nil {
				timer = time.NewTimer(s.debounce)
			} else {
				timer.Reset(s.debounce)
			}
			reload = timer.C
		case <-reload:
			reload = nil
			if err := s.Load(); err != nil {
				s.logger.Warn("site content reload failed, keeping previous version", zap.Error(err))
				continue
			}
			s.logger.Info("site content reloaded", zap.String("path", target))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("site content watcher error", zap.Error(err))
		}
	}
}
