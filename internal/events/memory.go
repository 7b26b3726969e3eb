// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ErrBusClosed is returned when operating on a closed bus.
var ErrBusClosed = errors.New("event bus is closed")

// ErrSubscriptionNotFound is returned when unsubscribing with invalid ID.
var ErrSubscriptionNotFound = errors.New("subscription not found")

// defaultAsyncBuffer is the queue length of an async subscriber created
// without an explicit size.
const defaultAsyncBuffer = 100

// MemoryBusConfig configures the memory event bus.
type MemoryBusConfig struct {
	HistoryMaxEvents int
	HistoryMaxAge    time.Duration

	// SkipHistory lists patterns for events delivered to subscribers but
	// never retained, such as high-volume terminal output.
	SkipHistory []string
}

// MemoryEventBus is an in-process EventBus. Synchronous subscribers run on
// the publisher's goroutine; async subscribers each own a queue and a
// goroutine, and lose events when their queue is full.
type MemoryEventBus struct {
	mu   sync.RWMutex
	subs map[SubscriptionID]*subscription

	history     *EventHistory
	skipHistory []Pattern

	closed atomic.Bool
	stop   chan struct{}
	wg     sync.WaitGroup

	drops dropCounter
}

// subscription is one registered handler. queue is nil for synchronous
// subscribers.
type subscription struct {
	id      SubscriptionID
	pattern Pattern
	handler EventHandler
	queue   chan Event
	quit    chan struct{}
}

// dropCounter tallies events lost to full async queues, per event type.
type dropCounter struct {
	total  atomic.Uint64
	mu     sync.Mutex
	byType map[string]uint64
}

// add records a drop and returns how many events of that type have been
// dropped so far.
func (d *dropCounter) add(eventType string) uint64 {
	d.total.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.byType == nil {
		d.byType = make(map[string]uint64)
	}
	d.byType[eventType]++
	return d.byType[eventType]
}

func (d *dropCounter) of(eventType string) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.byType[eventType]
}

// NewMemoryEventBus creates a bus and starts its history pruner.
func NewMemoryEventBus(cfg MemoryBusConfig) *MemoryEventBus {
	bus := &MemoryEventBus{
		subs: make(map[SubscriptionID]*subscription),
		history: NewEventHistory(EventHistoryConfig{
			MaxEvents: cfg.HistoryMaxEvents,
			MaxAge:    cfg.HistoryMaxAge,
		}),
		skipHistory: compileAll(cfg.SkipHistory),
		stop:        make(chan struct{}),
	}

	bus.wg.Add(1)
	go bus.pruneEvery(pruneInterval(cfg.HistoryMaxAge))
	return bus
}

// pruneInterval derives how often history is swept from its maximum age,
// bounded to between a minute and an hour.
func pruneInterval(maxAge time.Duration) time.Duration {
	interval := maxAge / 10
	switch {
	case interval < time.Minute:
		return time.Minute
	case interval > time.Hour:
		return time.Hour
	}
	return interval
}

func (bus *MemoryEventBus) pruneEvery(interval time.Duration) {
	defer bus.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			bus.history.Prune()
		case <-bus.stop:
			return
		}
	}
}

// stamp fills in the fields a publisher may leave empty.
func stamp(event Event) Event {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Version == "" {
		event.Version = "1.0"
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return event
}

// Publish records the event in history unless its type is skipped and
// hands it to every subscriber whose pattern matches.
func (bus *MemoryEventBus) Publish(ctx context.Context, event Event) error {
	if bus.closed.Load() {
		return ErrBusClosed
	}
	event = stamp(event)

	if !matchAny(bus.skipHistory, event.Type) {
		bus.history.Add(event)
	}

	for _, sub := range bus.matching(event.Type) {
		if sub.queue == nil {
			invoke(ctx, sub.handler, event)
			continue
		}
		select {
		case sub.queue <- event:
		default:
			// Log the first drop of a type and every hundredth after it.
			if n := bus.drops.add(event.Type); n%100 == 1 {
				log.Printf("EventBus: dropped %s, async subscriber buffer full (%d dropped so far)", event.Type, n)
			}
		}
	}
	return nil
}

// matching returns the subscriptions whose pattern matches eventType.
func (bus *MemoryEventBus) matching(eventType string) []*subscription {
	bus.mu.RLock()
	defer bus.mu.RUnlock()
	var out []*subscription
	for _, sub := range bus.subs {
		if sub.pattern.Match(eventType) {
			out = append(out, sub)
		}
	}
	return out
}

// invoke runs a handler, containing any panic.
func invoke(ctx context.Context, handler EventHandler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("EventBus: handler panic for %s: %v", event.Type, r)
		}
	}()
	handler(ctx, event)
}

// Subscribe registers a synchronous handler for events matching pattern.
func (bus *MemoryEventBus) Subscribe(pattern string, handler EventHandler) (SubscriptionID, error) {
	sub, err := bus.register(pattern, handler, 0)
	if err != nil {
		return "", err
	}
	return sub.id, nil
}

// SubscribeAsync registers a handler that runs on its own goroutine fed by
// a queue of bufferSize events.
func (bus *MemoryEventBus) SubscribeAsync(pattern string, handler EventHandler, bufferSize int) (SubscriptionID, error) {
	if bufferSize <= 0 {
		bufferSize = defaultAsyncBuffer
	}
	sub, err := bus.register(pattern, handler, bufferSize)
	if err != nil {
		return "", err
	}

	bus.wg.Add(1)
	go func() {
		defer bus.wg.Done()
		for {
			select {
			case event := <-sub.queue:
				invoke(context.Background(), sub.handler, event)
			case <-sub.quit:
				return
			}
		}
	}()
	return sub.id, nil
}

// register adds a subscription. A positive queueLen makes it async.
func (bus *MemoryEventBus) register(pattern string, handler EventHandler, queueLen int) (*subscription, error) {
	if bus.closed.Load() {
		return nil, ErrBusClosed
	}
	compiled, err := Compile(pattern)
	if err != nil {
		return nil, err
	}

	sub := &subscription{
		id:      SubscriptionID(uuid.NewString()),
		pattern: compiled,
		handler: handler,
	}
	if queueLen > 0 {
		sub.queue = make(chan Event, queueLen)
		sub.quit = make(chan struct{})
	}

	bus.mu.Lock()
	bus.subs[sub.id] = sub
	bus.mu.Unlock()
	return sub, nil
}

// Unsubscribe removes a subscription and stops its goroutine if it has one.
func (bus *MemoryEventBus) Unsubscribe(id SubscriptionID) error {
	bus.mu.Lock()
	sub, ok := bus.subs[id]
	delete(bus.subs, id)
	bus.mu.Unlock()

	if !ok {
		return ErrSubscriptionNotFound
	}
	sub.halt()
	return nil
}

func (sub *subscription) halt() {
	if sub.quit != nil {
		close(sub.quit)
	}
}

// History retrieves past events matching filter.
func (bus *MemoryEventBus) History(filter EventFilter) ([]Event, error) {
	return bus.history.Query(filter)
}

// Close stops the pruner and every async subscriber, then releases the
// history. Calling it again is a no-op.
func (bus *MemoryEventBus) Close() error {
	if bus.closed.Swap(true) {
		return nil
	}
	close(bus.stop)

	bus.mu.Lock()
	subs := bus.subs
	bus.subs = make(map[SubscriptionID]*subscription)
	bus.mu.Unlock()
	for _, sub := range subs {
		sub.halt()
	}

	bus.wg.Wait()
	bus.history.Close()
	return nil
}

// Dropped returns how many events were discarded because an async
// subscriber's buffer was full.
func (bus *MemoryEventBus) Dropped() uint64 {
	return bus.drops.total.Load()
}

// DroppedOf returns how many events of eventType were discarded.
func (bus *MemoryEventBus) DroppedOf(eventType string) uint64 {
	return bus.drops.of(eventType)
}
