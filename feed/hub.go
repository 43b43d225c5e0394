// Package feed turns store writes into live snapshot streams.
//
// Writers Publish an Event after a successful write. Subscribers receive a
// fresh Snapshot of the whole collection each time a matching event arrives,
// plus one immediately on subscribe. A subscription ends when its cancel func
// is called, its context is done, or the hub is closed.
package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

var (
	ErrUnknownCollection = errors.New("feed: unknown collection")
	ErrClosed            = errors.New("feed: hub closed")
)

// Event describes one write to a collection.
type Event struct {
	Collection string    `json:"collection"`
	Type       string    `json:"type"`
	ID         string    `json:"id"`
	Data       any       `json:"data,omitempty"`
	At         time.Time `json:"at"`
}

// Snapshot is the current state of a collection. Cause is nil for the
// initial snapshot.
type Snapshot struct {
	Collection string    `json:"collection"`
	Cause      *Event    `json:"cause,omitempty"`
	Data       any       `json:"data"`
	At         time.Time `json:"at"`
}

// Filter selects which events trigger a new snapshot. A nil Filter matches all.
type Filter func(Event) bool

// Loader reads the current state of a collection.
type Loader func(ctx context.Context) (any, error)

// Forwarder receives every published event after local fan-out.
type Forwarder interface {
	Forward(ctx context.Context, ev Event) error
}

type subscription struct {
	collection string
	filter     Filter
	ch         chan Snapshot
	done       chan struct{}
	once       sync.Once
}

type Hub struct {
	logger *zap.Logger

	mu        sync.Mutex
	loaders   map[string]Loader
	subs      map[uint64]*subscription
	nextID    uint64
	closed    bool
	forwarder Forwarder

	events chan Event
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:  logger,
		loaders: make(map[string]Loader),
		subs:    make(map[uint64]*subscription),
		events:  make(chan Event, 64),
	}
}

// Register makes a collection subscribable.
func (h *Hub) Register(collection string, load Loader) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loaders[collection] = load
}

// SetForwarder attaches an external sink such as the NATS bridge.
func (h *Hub) SetForwarder(f Forwarder) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.forwarder = f
}

// Subscribe returns a stream of snapshots for collection. The first snapshot
// is delivered before Subscribe returns. Cancel is idempotent and always
// closes the channel.
func (h *Hub) Subscribe(ctx context.Context, collection string, filter Filter) (<-chan Snapshot, func(), error) {
	h.mu.Lock()
	load, ok := h.loaders[collection]
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return nil, nil, ErrClosed
	}
	if !ok {
		return nil, nil, ErrUnknownCollection
	}

	data, err := load(ctx)
	if err != nil {
		return nil, nil, err
	}

	sub := &subscription{
		collection: collection,
		filter:     filter,
		ch:         make(chan Snapshot, 1),
		done:       make(chan struct{}),
	}
	sub.ch <- Snapshot{Collection: collection, Data: data, At: time.Now().UTC()}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, nil, ErrClosed
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = sub
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs, id)
		sub.close()
	}

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				cancel()
			case <-sub.done:
			}
		}()
	}

	return sub.ch, cancel, nil
}

func (s *subscription) close() {
	s.once.Do(func() {
		close(s.ch)
		close(s.done)
	})
}

// Publish queues an event. It never blocks the writer: when the queue is full
// the event is dropped and logged, and the next event refreshes subscribers.
func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	select {
	case h.events <- ev:
	default:
		h.logger.Warn("feed queue full, dropping event",
			zap.String("collection", ev.Collection),
			zap.String("type", ev.Type),
			zap.String("id", ev.ID))
	}
}

// Run delivers queued events until ctx is done, then closes the hub.
func (h *Hub) Run(ctx context.Context) {
	defer h.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-h.events:
			h.dispatch(ctx, ev)
		}
	}
}

func (h *Hub) dispatch(ctx context.Context, ev Event) {
	h.mu.Lock()
	load := h.loaders[ev.Collection]
	forwarder := h.forwarder
	targets := make(map[uint64]*subscription)
	for id, sub := range h.subs {
		if sub.collection == ev.Collection && (sub.filter == nil || sub.filter(ev)) {
			targets[id] = sub
		}
	}
	h.mu.Unlock()

	if len(targets) > 0 && load != nil {
		data, err := load(ctx)
		if err != nil {
			h.logger.Error("feed snapshot load failed",
				zap.String("collection", ev.Collection), zap.Error(err))
		} else {
			cause := ev
			snap := Snapshot{Collection: ev.Collection, Cause: &cause, Data: data, At: time.Now().UTC()}
			h.mu.Lock()
			for id, sub := range targets {
				if h.subs[id] == sub {
					offer(sub.ch, snap)
				}
			}
			h.mu.Unlock()
		}
	}

	if forwarder != nil {
		if err := forwarder.Forward(ctx, ev); err != nil {
			h.logger.Warn("feed forward failed",
				zap.String("collection", ev.Collection), zap.Error(err))
		}
	}
}

// offer replaces any undelivered snapshot with the newer one. Callers hold h.mu
// so the channel cannot be closed underneath.
func offer(ch chan Snapshot, snap Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}

// Close ends every subscription. Publish after Close is a no-op for
// subscribers.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		sub.close()
		delete(h.subs, id)
	}
}

// Subscribers reports the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
