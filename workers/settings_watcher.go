// workers/settings_watcher.go
package workers

import (
	"context"
	"sync"
	"time"

	"conference-portal/feed"
	"conference-portal/models"

	"go.uber.org/zap"
)

// SettingsLoader reads settings/general from the store.
type SettingsLoader interface {
	Load(ctx context.Context) (models.Settings, error)
}

// SettingsWatcher keeps the current settings/general value in memory. It
// polls the store and, when a hub is given, applies pushed snapshots as soon
// as an admin saves. Readers get an immutable copy through Current and can
// Subscribe for changes.
type SettingsWatcher struct {
	loader   SettingsLoader
	hub      *feed.Hub
	interval time.Duration
	logger   *zap.Logger

	mu      sync.RWMutex
	current models.Settings
	subs    map[int]chan models.Settings
	nextID  int
	closed  bool
}

func NewSettingsWatcher(loader SettingsLoader, hub *feed.Hub, interval time.Duration, logger *zap.Logger) *SettingsWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsWatcher{
		loader:   loader,
		hub:      hub,
		interval: interval,
		logger:   logger,
		current:  models.DefaultSettings(),
		subs:     make(map[int]chan models.Settings),
	}
}

func (w *SettingsWatcher) Current() models.Settings {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Subscribe returns a channel that first carries the current value and then
// every change. Slow readers only see the latest value. The channel is closed
// by cancel, by ctx, or when the watcher stops.
func (w *SettingsWatcher) Subscribe(ctx context.Context) (<-chan models.Settings, func()) {
	ch := make(chan models.Settings, 1)

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := w.nextID
	w.nextID++
	w.subs[id] = ch
	ch <- w.current
	w.mu.Unlock()

	var once sync.Once
	done := make(chan struct{})
	cancel := func() {
		once.Do(func() {
			close(done)
			w.mu.Lock()
			if sub, ok := w.subs[id]; ok {
				delete(w.subs, id)
				close(sub)
			}
			w.mu.Unlock()
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return ch, cancel
}

// Refresh reloads settings from the store.
func (w *SettingsWatcher) Refresh(ctx context.Context) error {
	settings, err := w.loader.Load(ctx)
	if err != nil {
		return err
	}
	w.set(settings)
	return nil
}

func (w *SettingsWatcher) set(settings models.Settings) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || sameSettings(w.current, settings) {
		return
	}
	w.current = settings
	for _, ch := range w.subs {
		select {
		case <-ch:
		default:
		}
		ch <- settings
	}
}

// Start runs the watcher in the background until ctx is done.
func (w *SettingsWatcher) Start(ctx context.Context) {
	w.logger.Info("starting settings watcher", zap.Duration("interval", w.interval))
	go w.Run(ctx)
}

// Run blocks until ctx is done, then closes all subscriptions.
func (w *SettingsWatcher) Run(ctx context.Context) {
	defer w.stop()

	if err := w.Refresh(ctx); err != nil {
		w.logger.Warn("initial settings load failed, using defaults", zap.Error(err))
	}

	var pushed <-chan feed.Snapshot
	if w.hub != nil {
		snaps, cancel, err := w.hub.Subscribe(ctx, models.SettingsCollection, nil)
		if err != nil {
			w.logger.Warn("settings push disabled", zap.Error(err))
		} else {
			defer cancel()
			pushed = snaps
		}
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.Refresh(ctx); err != nil && ctx.Err() == nil {
				w.logger.Warn("settings refresh failed", zap.Error(err))
			}
		case snap, ok := <-pushed:
			if !ok {
				pushed = nil
				continue
			}
			if settings, ok := snap.Data.(models.Settings); ok {
				w.set(settings)
			}
		case <-ctx.Done():
			w.logger.Info("settings watcher stopped")
			return
		}
	}
}

func (w *SettingsWatcher) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	for id, ch := range w.subs {
		delete(w.subs, id)
		close(ch)
	}
}

func sameSettings(a, b models.Settings) bool {
	if a.EventStatus != b.EventStatus || a.RegistrationOpen != b.RegistrationOpen ||
		a.UpdatedBy != b.UpdatedBy || !a.UpdatedAt.Equal(b.UpdatedAt) {
		return false
	}
	switch {
	case a.RegistrationClosesAt == nil && b.RegistrationClosesAt == nil:
		return true
	case a.RegistrationClosesAt == nil || b.RegistrationClosesAt == nil:
		return false
	}
	return a.RegistrationClosesAt.Equal(*b.RegistrationClosesAt)
}
