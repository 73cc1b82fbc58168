package mailbox

import (
	"sync"

	"github.com/petar/GoLLRB/llrb"
)

// priorityMailbox orders envelopes by priority class (larger first) with FIFO
// order within a class, optionally capacity-bounded
type priorityMailbox struct {
	mu       sync.Mutex
	nonEmpty *sync.Cond
	btree    *llrb.LLRB
	capacity int64

	closed    bool
	received  int64
	processed int64
}

type priorityItem struct {
	env *Envelope
}

func (it *priorityItem) Less(_other llrb.Item) bool {
	other := _other.(*priorityItem)
	if it.env.Priority != other.env.Priority {
		// more urgent envelopes sort first
		return it.env.Priority > other.env.Priority
	}
	return it.env.arrival < other.env.arrival
}

func newPriorityMailbox(capacity int) *priorityMailbox {
	mb := &priorityMailbox{
		btree:    llrb.New(),
		capacity: int64(capacity),
	}
	mb.nonEmpty = sync.NewCond(&mb.mu)
	return mb
}

func (mb *priorityMailbox) Offer(env *Envelope) bool {
	mb.mu.Lock()
	if mb.closed || (mb.capacity > 0 && int64(mb.btree.Len()) >= mb.capacity) {
		mb.mu.Unlock()
		return false
	}
	mb.btree.ReplaceOrInsert(&priorityItem{env: env})
	mb.received += 1
	mb.nonEmpty.Signal()
	mb.mu.Unlock()
	return true
}

func (mb *priorityMailbox) Poll() (*Envelope, bool) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.closed || mb.btree.Len() == 0 {
		return nil, false
	}
	return mb.pop(), true
}

func (mb *priorityMailbox) Take() (*Envelope, bool) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	for !mb.closed && mb.btree.Len() == 0 {
		mb.nonEmpty.Wait()
	}
	if mb.closed {
		return nil, false
	}
	return mb.pop(), true
}

// pop must be called with mb.mu held and a non-empty tree
func (mb *priorityMailbox) pop() *Envelope {
	item := mb.btree.DeleteMin().(*priorityItem)
	mb.processed += 1
	return item.env
}

func (mb *priorityMailbox) Close() []*Envelope {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.closed {
		return nil
	}
	mb.closed = true
	remaining := make([]*Envelope, 0, mb.btree.Len())
	for mb.btree.Len() > 0 {
		item := mb.btree.DeleteMin().(*priorityItem)
		remaining = append(remaining, item.env)
	}
	mb.nonEmpty.Broadcast()
	return remaining
}

func (mb *priorityMailbox) IsClosed() bool {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return mb.closed
}

func (mb *priorityMailbox) Size() int64 {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return int64(mb.btree.Len())
}

func (mb *priorityMailbox) TotalReceived() int64 {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return mb.received
}

func (mb *priorityMailbox) TotalProcessed() int64 {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return mb.processed
}

func (mb *priorityMailbox) Capacity() int64 {
	return mb.capacity
}

func (mb *priorityMailbox) Type() Type {
	if mb.capacity > 0 {
		return PriorityBounded
	}
	return PriorityUnbounded
}
