package events

import (
	"sync"

	"github.com/web3guy0/positioncore/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE EVENT BUS - typed, bounded, multi-producer/multi-consumer fan-out
// ═══════════════════════════════════════════════════════════════════════════════
//
// Models the engine's lifecycle events (positionAdded, positionExited,
// positionExitFailed) as a small set of named broadcast
// channels. No per-subscriber identity tracking is required, so Subscribe
// just hands back a receive-only channel; a slow consumer drops the oldest
// queued event rather than blocking the publisher (the monitor tick must
// never stall on a subscriber).
//
// ═══════════════════════════════════════════════════════════════════════════════

const defaultBuffer = 64

// PositionAdded is published once a position is inserted into the registry,
// whether via RegisterPosition, Start's rehydrate, or reconciliation.
type PositionAdded struct {
	Position *types.MonitoredPosition
	Source   string // "register" | "rehydrate" | "reconcile"
}

// PositionExited is published on a successful active->exited transition.
type PositionExited struct {
	Position *types.MonitoredPosition
	Exit     types.ExitRecord
}

// PositionExitFailed is published when the executor or store fails during
// the exit state machine.
type PositionExitFailed struct {
	Position *types.MonitoredPosition
	Err      error
}

// Bus is a typed fan-out for the three lifecycle topics.
type Bus struct {
	mu sync.Mutex

	added       []chan PositionAdded
	exited      []chan PositionExited
	exitFailed  []chan PositionExitFailed
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{}
}

// SubscribeAdded returns a channel receiving PositionAdded events.
func (b *Bus) SubscribeAdded() <-chan PositionAdded {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan PositionAdded, defaultBuffer)
	b.added = append(b.added, ch)
	return ch
}

// SubscribeExited returns a channel receiving PositionExited events.
func (b *Bus) SubscribeExited() <-chan PositionExited {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan PositionExited, defaultBuffer)
	b.exited = append(b.exited, ch)
	return ch
}

// SubscribeExitFailed returns a channel receiving PositionExitFailed events.
func (b *Bus) SubscribeExitFailed() <-chan PositionExitFailed {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan PositionExitFailed, defaultBuffer)
	b.exitFailed = append(b.exitFailed, ch)
	return ch
}

// PublishAdded fans a PositionAdded event out to every subscriber.
func (b *Bus) PublishAdded(evt PositionAdded) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.added {
		sendDropOldest(ch, evt)
	}
}

// PublishExited fans a PositionExited event out to every subscriber.
func (b *Bus) PublishExited(evt PositionExited) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.exited {
		sendDropOldest(ch, evt)
	}
}

// PublishExitFailed fans a PositionExitFailed event out to every subscriber.
func (b *Bus) PublishExitFailed(evt PositionExitFailed) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.exitFailed {
		sendDropOldest(ch, evt)
	}
}

// sendDropOldest performs a non-blocking send; if the channel is full, the
// oldest queued event is discarded to make room rather than blocking the
// publisher on a slow consumer.
func sendDropOldest[T any](ch chan T, evt T) {
	select {
	case ch <- evt:
		return
	default:
	}

	select {
	case <-ch:
	default:
	}

	select {
	case ch <- evt:
	default:
	}
}
