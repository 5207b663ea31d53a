// internal/events/bus.go
// Package events carries the pipeline's lifecycle notifications between
// the queue, pool, monitor and storage layers.
package events

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Handler consumes events of one type.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Subscription identifies one registered handler so it can be removed.
type Subscription struct {
	bus *Bus
	typ EventType
	id  uint64
}

// Unsubscribe removes the handler from the bus.
func (s *Subscription) Unsubscribe() {
	s.bus.remove(s.typ, s.id)
}

type registration struct {
	id      uint64
	handler Handler
}

// Bus fans pipeline events out to their subscribers. Publish is
// asynchronous and lossy under pressure: when the buffer fills, the
// event is dropped rather than stalling the admission or monitoring
// path. A nil *Bus swallows everything, so wiring one up is optional.
type Bus struct {
	mu     sync.RWMutex
	subs   map[EventType][]registration
	nextID uint64

	queue  chan Event
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *zap.Logger
}

func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		subs:   make(map[EventType][]registration),
		queue:  make(chan Event, bufferSize),
		ctx:    ctx,
		cancel: cancel,
		logger: logger.Named("event_bus"),
	}

	b.wg.Add(1)
	go b.dispatchLoop()

	return b
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[eventType] = append(b.subs[eventType], registration{id: id, handler: handler})

	b.logger.Debug("handler subscribed",
		zap.String("event_type", string(eventType)),
		zap.Uint64("subscription_id", id))

	return &Subscription{bus: b, typ: eventType, id: id}
}

// SubscribeFunc registers a plain function as a handler.
func (b *Bus) SubscribeFunc(eventType EventType, fn func(context.Context, Event) error) *Subscription {
	return b.Subscribe(eventType, HandlerFunc(fn))
}

// Publish enqueues an event for asynchronous delivery. Safe on a nil
// bus; returns an error when shutting down or the buffer is full.
func (b *Bus) Publish(event Event) error {
	if b == nil {
		return nil
	}
	select {
	case <-b.ctx.Done():
		return fmt.Errorf("event bus is shutting down")
	case b.queue <- event:
		return nil
	default:
		b.logger.Warn("event buffer full, dropping event",
			zap.String("event_type", string(event.Type())))
		return fmt.Errorf("event buffer full")
	}
}

// PublishSync delivers an event to every subscriber before returning,
// collecting handler errors.
func (b *Bus) PublishSync(ctx context.Context, event Event) error {
	if b == nil {
		return nil
	}

	b.mu.RLock()
	regs := make([]registration, len(b.subs[event.Type()]))
	copy(regs, b.subs[event.Type()])
	b.mu.RUnlock()

	var errs []error
	for _, reg := range regs {
		if err := reg.handler.Handle(ctx, event); err != nil {
			b.logger.Error("event handler failed",
				zap.String("event_type", string(event.Type())),
				zap.Uint64("subscription_id", reg.id),
				zap.Error(err))
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("handlers failed: %v", errs)
	}
	return nil
}

func (b *Bus) dispatchLoop() {
	defer b.wg.Done()

	for {
		select {
		case <-b.ctx.Done():
			// Deliver whatever is still buffered before exiting.
			for {
				select {
				case event := <-b.queue:
					_ = b.PublishSync(context.Background(), event)
				default:
					return
				}
			}
		case event := <-b.queue:
			b.wg.Add(1)
			go func(e Event) {
				defer b.wg.Done()
				if err := b.PublishSync(b.ctx, e); err != nil {
					b.logger.Error("event dispatch failed",
						zap.String("event_type", string(e.Type())),
						zap.Error(err))
				}
			}(event)
		}
	}
}

func (b *Bus) remove(eventType EventType, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	regs := b.subs[eventType]
	for i, reg := range regs {
		if reg.id == id {
			b.subs[eventType] = append(regs[:i], regs[i+1:]...)
			break
		}
	}
	if len(b.subs[eventType]) == 0 {
		delete(b.subs, eventType)
	}
}

// Shutdown stops dispatch after draining buffered events.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.logger.Info("shutting down event bus")

	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("event bus shutdown complete")
		return nil
	case <-ctx.Done():
		b.logger.Warn("event bus shutdown timeout")
		return ctx.Err()
	}
}
