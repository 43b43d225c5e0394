package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"conference-portal/feed"
	"conference-portal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

type fakeLoader struct {
	mu       sync.Mutex
	settings models.Settings
	err      error
}

func (f *fakeLoader) Load(context.Context) (models.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settings, f.err
}

func (f *fakeLoader) set(s models.Settings, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings, f.err = s, err
}

func closedSettings() models.Settings {
	s := models.DefaultSettings()
	s.RegistrationOpen = false
	s.UpdatedBy = "admin"
	s.UpdatedAt = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	return s
}

func receive(t *testing.T, ch <-chan models.Settings) models.Settings {
	t.Helper()
	select {
	case s, ok := <-ch:
		require.True(t, ok, "channel closed")
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for settings")
	}
	return models.Settings{}
}

func TestSubscribeReceivesInitialAndChanges(t *testing.T) {
	defer goleak.VerifyNone(t)

	loader := &fakeLoader{settings: models.DefaultSettings()}
	w := NewSettingsWatcher(loader, nil, time.Hour, zaptest.NewLogger(t))

	ch, cancel := w.Subscribe(context.Background())
	defer cancel()
	assert.True(t, receive(t, ch).RegistrationOpen)

	loader.set(closedSettings(), nil)
	require.NoError(t, w.Refresh(context.Background()))
	assert.False(t, receive(t, ch).RegistrationOpen)
	assert.False(t, w.Current().RegistrationOpen)

	// Reloading the same value does not notify.
	require.NoError(t, w.Refresh(context.Background()))
	select {
	case s := <-ch:
		t.Fatalf("unexpected notification: %+v", s)
	default:
	}
}

func TestRefreshErrorKeepsCurrent(t *testing.T) {
	loader := &fakeLoader{}
	loader.set(models.Settings{}, errors.New("db down"))
	w := NewSettingsWatcher(loader, nil, time.Hour, zaptest.NewLogger(t))

	assert.Error(t, w.Refresh(context.Background()))
	assert.Equal(t, models.DefaultSettings(), w.Current())
}

func TestSlowSubscriberSeesLatest(t *testing.T) {
	loader := &fakeLoader{}
	w := NewSettingsWatcher(loader, nil, time.Hour, zaptest.NewLogger(t))

	ch, cancel := w.Subscribe(context.Background())
	defer cancel()

	first := closedSettings()
	loader.set(first, nil)
	require.NoError(t, w.Refresh(context.Background()))
	second := first
	second.EventStatus = models.EventOngoing
	loader.set(second, nil)
	require.NoError(t, w.Refresh(context.Background()))

	assert.Equal(t, models.EventOngoing, receive(t, ch).EventStatus)
}

func TestRunAppliesPushedSettings(t *testing.T) {
	defer goleak.VerifyNone(t)

	logger := zaptest.NewLogger(t)
	loader := &fakeLoader{settings: models.DefaultSettings()}
	hub := feed.NewHub(logger)
	hub.Register(models.SettingsCollection, func(ctx context.Context) (any, error) {
		return loader.Load(ctx)
	})
	w := NewSettingsWatcher(loader, hub, time.Hour, logger)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		w.Run(ctx)
	}()

	ch, unsubscribe := w.Subscribe(ctx)
	defer unsubscribe()
	receive(t, ch)

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	loader.set(closedSettings(), nil)
	hub.Publish(feed.Event{Collection: models.SettingsCollection, Type: feed.EventUpdated, ID: models.GeneralSettingsID})

	assert.False(t, receive(t, ch).RegistrationOpen)

	cancel()
	wg.Wait()

	_, ok := <-ch
	assert.False(t, ok, "subscription closed when the watcher stops")
}

func TestSubscribeAfterStopIsClosed(t *testing.T) {
	w := NewSettingsWatcher(&fakeLoader{settings: models.DefaultSettings()}, nil, time.Hour, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	ch, unsubscribe := w.Subscribe(context.Background())
	defer unsubscribe()
	_, ok := <-ch
	assert.False(t, ok)
}
