// Package events buffers per-session detection events and exports them as one batch.
package events

import (
	"errors"
	"sync"

	"github.com/andresmejia3/rollcall/internal/types"
)

// ErrSealed is returned by Append once the owning session has left Running.
var ErrSealed = errors.New("event buffer sealed")

// Buffer is the ordered event log of exactly one session.
type Buffer struct {
	mu     sync.Mutex
	events []types.DetectionEvent
	sealed bool
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

// Append adds ev at the end of the buffer.
func (b *Buffer) Append(ev types.DetectionEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return ErrSealed
	}
	b.events = append(b.events, ev)
	return nil
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// Events returns a copy of the buffered events in append order.
func (b *Buffer) Events() []types.DetectionEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]types.DetectionEvent, len(b.events))
	copy(out, b.events)
	return out
}

// Seal rejects further appends and returns the final contents.
func (b *Buffer) Seal() []types.DetectionEvent {
	b.mu.Lock()
	b.sealed = true
	b.mu.Unlock()
	return b.Events()
}

func (b *Buffer) Sealed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sealed
}
