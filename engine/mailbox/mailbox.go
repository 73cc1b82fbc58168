package mailbox

import (
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// Type of a mailbox
type Type string

// Mailbox types
const (
	Unbounded         Type = "unbounded"
	Bounded           Type = "bounded"
	PriorityUnbounded Type = "priority-unbounded"
	PriorityBounded   Type = "priority-bounded"
)

// ErrUnknownType is returned when constructing a mailbox of unknown type
var ErrUnknownType = errors.New("mailbox: unknown mailbox type")

// Envelope carries one immutable message plus routing metadata. Envelopes are
// produced by senders, handed to the mailbox and consumed exactly once by the
// dispatcher on behalf of the receiving actor.
type Envelope struct {
	Message     interface{}
	Sender      string // sender actor path, may be empty
	Priority    int    // larger is more urgent; only priority mailboxes look at it
	EnqueueTime time.Time

	arrival uint64 // FIFO tiebreak within a priority class
}

var arrivalCounter uint64

func nextArrival() uint64 {
	return atomic.AddUint64(&arrivalCounter, 1)
}

// Mailbox is the per-actor message queue.
//
// A mailbox is safe for concurrent producers; consuming the same mailbox from
// multiple workers concurrently is the dispatcher's job to prevent.
type Mailbox interface {
	// Offer enqueues the envelope; returns false when the mailbox is closed
	// or at capacity (the backpressure signal, never a panic)
	Offer(env *Envelope) bool
	// Poll removes and returns the head envelope; false when empty or closed
	Poll() (*Envelope, bool)
	// Take blocks until an envelope arrives or the mailbox closes; false on close
	Take() (*Envelope, bool)
	// Close marks the mailbox terminal and returns the envelopes left inside
	Close() []*Envelope
	// IsClosed checks if the mailbox was closed
	IsClosed() bool
	// Size is the number of queued envelopes
	Size() int64
	// TotalReceived is the total number of successfully offered envelopes
	TotalReceived() int64
	// TotalProcessed is the total number of polled/taken envelopes
	TotalProcessed() int64
	// Capacity returns the capacity bound, 0 for unbounded
	Capacity() int64
	// Type returns the mailbox type
	Type() Type
}

// Spec selects a mailbox type and capacity for construction
type Spec struct {
	Type     Type
	Capacity int
}

// New constructs a mailbox from the spec. Bounded variants require a positive
// capacity.
func New(spec Spec) (Mailbox, error) {
	switch spec.Type {
	case Unbounded:
		return newFIFOMailbox(0), nil
	case Bounded:
		if spec.Capacity <= 0 {
			return nil, errors.Errorf("mailbox: bounded mailbox requires positive capacity, got %d", spec.Capacity)
		}
		return newFIFOMailbox(spec.Capacity), nil
	case PriorityUnbounded:
		return newPriorityMailbox(0), nil
	case PriorityBounded:
		if spec.Capacity <= 0 {
			return nil, errors.Errorf("mailbox: priority-bounded mailbox requires positive capacity, got %d", spec.Capacity)
		}
		return newPriorityMailbox(spec.Capacity), nil
	}
	return nil, errors.Wrapf(ErrUnknownType, "%q", spec.Type)
}

// NewEnvelope creates an envelope stamped with the current time
func NewEnvelope(message interface{}, sender string, priority int) *Envelope {
	return &Envelope{
		Message:     message,
		Sender:      sender,
		Priority:    priority,
		EnqueueTime: time.Now(),
		arrival:     nextArrival(),
	}
}
