// Package events fans run events out to live subscribers.
//
// Delivery is best effort: publishing never blocks the caller, a subscriber whose
// buffer is full misses the message, and subscribers never see events published
// before they subscribed.
package events

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/vulture/internal/logger"
)

// DefaultBuffer is the per-subscriber channel capacity
const DefaultBuffer = 64

// Payload is the broadcast form of a run event
type Payload struct {
	EventID          uuid.UUID      `json:"event_id"`
	RunID            uuid.UUID      `json:"run_id"`
	Stage            string         `json:"stage"`
	Action           string         `json:"action"`
	Payload          map[string]any `json:"payload"`
	RequiresApproval bool           `json:"requires_approval"`
	ApprovalState    string         `json:"approval_state"`
	CreatedAt        time.Time      `json:"created_at"`
}

// terminalPrefixes mark actions that end a run: a rejected approval or a
// blocked or failed browser outcome.
var terminalPrefixes = []string{"approval_rejected:", "blocked:", "failed:"}

// Terminal reports whether p is the last transition of its run. Streams use it
// to stop only after the final event has been delivered.
func (p Payload) Terminal() bool {
	if p.Stage == "run" && (p.Action == "completed" || p.Action == "error") {
		return true
	}
	for _, prefix := range terminalPrefixes {
		if strings.HasPrefix(p.Action, prefix) {
			return true
		}
	}
	return false
}

// Publisher accepts event payloads for a run
type Publisher interface {
	Publish(ctx context.Context, runID uuid.UUID, p Payload) error
}

// Subscriber opens a live stream of a run's events
type Subscriber interface {
	Subscribe(ctx context.Context, runID uuid.UUID) (<-chan Payload, func())
}

type subscription struct {
	ch   chan Payload
	done chan struct{}
	once sync.Once
}

// Bus is an in-process per-run fan-out notifier
type Bus struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]map[*subscription]struct{}
	buffer int
	log    *logger.Logger
}

// NewBus creates a bus. buffer <= 0 selects DefaultBuffer.
func NewBus(log *logger.Logger, buffer int) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Bus{
		subs:   make(map[uuid.UUID]map[*subscription]struct{}),
		buffer: buffer,
		log:    log,
	}
}

// Subscribe registers a subscriber for runID. The channel is closed when cancel is
// called or ctx is done.
func (b *Bus) Subscribe(ctx context.Context, runID uuid.UUID) (<-chan Payload, func()) {
	sub := &subscription{ch: make(chan Payload, b.buffer), done: make(chan struct{})}

	b.mu.Lock()
	if b.subs[runID] == nil {
		b.subs[runID] = make(map[*subscription]struct{})
	}
	b.subs[runID][sub] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		sub.once.Do(func() {
			b.mu.Lock()
			delete(b.subs[runID], sub)
			if len(b.subs[runID]) == 0 {
				delete(b.subs, runID)
			}
			close(sub.ch)
			b.mu.Unlock()
			close(sub.done)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-sub.done:
		}
	}()

	return sub.ch, cancel
}

// Publish delivers p to every current subscriber of runID without blocking.
func (b *Bus) Publish(_ context.Context, runID uuid.UUID, p Payload) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs[runID] {
		select {
		case sub.ch <- p:
		default:
			b.log.Warn("subscriber buffer full, dropping event",
				"run_id", runID.String(), "action", p.Action)
		}
	}
	return nil
}

// SubscriberCount returns the number of live subscribers for runID.
func (b *Bus) SubscriberCount(runID uuid.UUID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[runID])
}
