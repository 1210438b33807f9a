package bolt

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/asdine/storm/v3"
	"github.com/getsentry/sentry-go"
	"github.com/go-errors/errors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	uuid "github.com/satori/go.uuid"

	"github.com/ndhoang/digestbus"
)

const defaultRetryDelay = time.Minute

// PendingEvent is one not-yet-delivered event. Rows only exist between
// Emit and dispatch; the row is deleted before the handler runs, so a
// Cancel arriving after that point is a no-op and delivery wins.
type PendingEvent struct {
	ID      string `storm:"id"`
	Name    string `storm:"index"`
	Key     string `storm:"index"`
	Payload json.RawMessage
	FireAt  time.Time
}

// Bus is a durable scheduler backed by storm. Pending events survive
// restarts; timers are re-armed on Open and a cron sweep catches anything
// the timers missed.
type Bus struct {
	db     *DB
	logger zerolog.Logger

	mu       sync.Mutex
	handlers map[string]digestbus.Handler
	timers   map[string]*time.Timer
	cron     *cron.Cron

	// RetryDelay is how long a failed delivery waits before the event is
	// re-queued. Zero means defaultRetryDelay.
	RetryDelay time.Duration
}

// NewBus returns a bus persisting its queue in db
func NewBus(db *DB, logger zerolog.Logger) *Bus {
	return &Bus{
		db:       db,
		logger:   logger,
		handlers: make(map[string]digestbus.Handler),
		timers:   make(map[string]*time.Timer),
	}
}

// OnEvent registers the handler for an event name
func (b *Bus) OnEvent(name string, h digestbus.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = h
}

// Emit queues an event for delivery at fireAt (zero: as soon as possible).
// A non-empty key supersedes any pending event with the same name and key,
// which keeps at most one pending run per user.
func (b *Bus) Emit(ctx context.Context, name, key string, payload interface{}, fireAt time.Time) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Errorf("failed to marshal payload: %v", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if key != "" {
		if err := b.removePendingLocked(name, func(e *PendingEvent) bool { return e.Key == key }); err != nil {
			return err
		}
	}

	e := &PendingEvent{
		ID:      uuid.NewV4().String(),
		Name:    name,
		Key:     key,
		Payload: data,
		FireAt:  fireAt,
	}
	if err := b.db.stormDB.Save(e); err != nil {
		return errors.Errorf("failed to save pending event: %v", err)
	}

	b.armLocked(e)

	b.logger.Info().Str("event", name).Str("key", key).Time("fire_at", fireAt).Msg("event queued")

	return nil
}

// Cancel removes every pending event of that name whose payload matches.
// Events already being dispatched are not affected.
func (b *Bus) Cancel(name string, match digestbus.Predicate) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.removePendingLocked(name, func(e *PendingEvent) bool { return match(e.Payload) })
}

func (b *Bus) removePendingLocked(name string, match func(*PendingEvent) bool) error {
	var pending []PendingEvent
	if err := b.db.stormDB.Find("Name", name, &pending); err != nil {
		if errors.Is(err, storm.ErrNotFound) {
			return nil
		}
		return errors.Errorf("failed to list pending events: %v", err)
	}

	for i := range pending {
		e := &pending[i]
		if !match(e) {
			continue
		}
		if err := b.db.stormDB.DeleteStruct(e); err != nil {
			return errors.Errorf("failed to delete pending event: %v", err)
		}
		if t, ok := b.timers[e.ID]; ok {
			t.Stop()
			delete(b.timers, e.ID)
		}
		b.logger.Info().Str("event", e.Name).Str("key", e.Key).Msg("pending event cancelled")
	}

	return nil
}

// Start re-arms timers for events persisted before a restart and begins
// the periodic overdue sweep.
func (b *Bus) Start(cronSpec string) error {
	b.mu.Lock()
	if err := b.sweepLocked(); err != nil {
		b.mu.Unlock()
		return err
	}
	b.mu.Unlock()

	if cronSpec == "" {
		cronSpec = "@every 1m"
	}

	b.cron = cron.New()
	if _, err := b.cron.AddFunc(cronSpec, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if err := b.sweepLocked(); err != nil {
			b.logger.Error().Err(err).Msg("sweep failed")
		}
	}); err != nil {
		return errors.Errorf("failed to schedule sweep: %v", err)
	}
	b.cron.Start()

	return nil
}

// Stop halts the sweep and all armed timers; pending rows stay on disk
func (b *Bus) Stop() {
	if b.cron != nil {
		b.cron.Stop()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, t := range b.timers {
		t.Stop()
		delete(b.timers, id)
	}
}

func (b *Bus) hasPendingLocked(name, key string) bool {
	var pending []PendingEvent
	if err := b.db.stormDB.Find("Name", name, &pending); err != nil {
		return false
	}

	for i := range pending {
		if pending[i].Key == key {
			return true
		}
	}

	return false
}

func (b *Bus) sweepLocked() error {
	var pending []PendingEvent
	if err := b.db.stormDB.All(&pending); err != nil {
		if errors.Is(err, storm.ErrNotFound) {
			return nil
		}
		return errors.Errorf("failed to list pending events: %v", err)
	}

	for i := range pending {
		e := pending[i]
		if _, ok := b.timers[e.ID]; ok {
			continue
		}
		b.armLocked(&e)
	}

	return nil
}

func (b *Bus) armLocked(e *PendingEvent) {
	delay := time.Until(e.FireAt)
	if delay < 0 {
		delay = 0
	}

	id := e.ID
	b.timers[id] = time.AfterFunc(delay, func() {
		b.dispatch(id)
	})
}

func (b *Bus) dispatch(id string) {
	b.mu.Lock()

	delete(b.timers, id)

	var e PendingEvent
	if err := b.db.stormDB.One("ID", id, &e); err != nil {
		// Cancelled or superseded between the timer firing and now.
		b.mu.Unlock()
		return
	}

	// Delete before invoking the handler: from here on delivery wins over
	// any concurrent cancel.
	if err := b.db.stormDB.DeleteStruct(&e); err != nil {
		b.mu.Unlock()
		b.logger.Error().Err(err).Str("event", e.Name).Msg("failed to claim pending event")
		return
	}

	h, ok := b.handlers[e.Name]
	b.mu.Unlock()

	if !ok {
		b.logger.Warn().Str("event", e.Name).Msg("no handler registered, event dropped")
		return
	}

	if err := h(context.Background(), e.Payload); err != nil {
		b.logger.Error().Err(err).Str("event", e.Name).Str("key", e.Key).Msg("handler failed, requeueing")
		sentry.CaptureException(err)

		retry := b.RetryDelay
		if retry == 0 {
			retry = defaultRetryDelay
		}

		b.mu.Lock()
		// A newer event may have been queued for this key while the
		// handler was executing; last pending event wins, the failed one
		// is not resurrected next to it.
		if e.Key != "" && b.hasPendingLocked(e.Name, e.Key) {
			b.mu.Unlock()
			b.logger.Info().Str("event", e.Name).Str("key", e.Key).Msg("superseded during delivery, dropping requeue")
			return
		}
		e.FireAt = time.Now().Add(retry)
		if err := b.db.stormDB.Save(&e); err != nil {
			b.logger.Error().Err(err).Str("event", e.Name).Msg("failed to requeue event")
		} else {
			b.armLocked(&e)
		}
		b.mu.Unlock()
		return
	}

	b.logger.Info().Str("event", e.Name).Str("key", e.Key).Msg("event delivered")
}
