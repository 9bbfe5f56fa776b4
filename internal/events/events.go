/*

This file contains the event sink collaborator. The engine emits one event
per completed operation; the journal built from these events is the only
persisted history the core relies on, so every event carries enough fields
for an external indexer to reconstruct state.

*/

package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type names every event the engine emits.
type Type string

const (
	PoolCreated          Type = "PoolCreated"
	SharesMinted         Type = "SharesMinted"
	ShareTransferred     Type = "ShareTransferred"
	ProducedDistributed  Type = "ProducedDistributed"
	RewardDistributed    Type = "RewardDistributed"
	ProducedClaimed      Type = "ProducedClaimed"
	RewardClaimed        Type = "RewardClaimed"
	OrderCreated         Type = "OrderCreated"
	OrderCancelled       Type = "OrderCancelled"
	OrderFilled          Type = "OrderFilled"
	DissolutionProposed  Type = "DissolutionProposed"
	DissolutionApproved  Type = "DissolutionApproved"
	DissolutionCompleted Type = "DissolutionCompleted"
	UnlockedWithdrawn    Type = "UnlockedWithdrawn"
)

// Event is a single completed state change. Numeric amounts travel as decimal
// strings so arbitrary-precision values survive JSON round-trips.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Type      Type      `json:"type"`
	PoolID    uint64    `json:"pool_id"`
	Timestamp time.Time `json:"timestamp"`

	Holder       string `json:"holder,omitempty"`
	Counterparty string `json:"counterparty,omitempty"`
	Token        string `json:"token,omitempty"`
	Amount       string `json:"amount,omitempty"`
	Shares       uint64 `json:"shares,omitempty"`
	OrderID      uint64 `json:"order_id,omitempty"`
}

// New builds an event with a fresh id and the given timestamp.
func New(t Type, poolID uint64, at time.Time) Event {
	return Event{
		ID:        uuid.New(),
		Type:      t,
		PoolID:    poolID,
		Timestamp: at,
	}
}

// Sink receives events after each completed operation. Implementations must
// not fail the originating operation; delivery problems are theirs to log.
type Sink interface {
	Emit(Event)
}

// Nop discards all events.
type Nop struct{}

// Emit implements Sink.
func (Nop) Emit(Event) {}

// Multi fans an event out to several sinks in order.
type Multi []Sink

// Emit implements Sink.
func (m Multi) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// Recorder is an in-memory sink for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements Sink.
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// All returns a copy of the recorded events in emission order.
func (r *Recorder) All() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns recorded events matching t.
func (r *Recorder) OfType(t Type) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
