package mailbox

import "sync"

// fifoMailbox is a plain FIFO queue, optionally capacity-bounded
type fifoMailbox struct {
	mu       sync.Mutex
	nonEmpty *sync.Cond
	queue    []*Envelope
	capacity int64

	closed    bool
	received  int64
	processed int64
}

func newFIFOMailbox(capacity int) *fifoMailbox {
	mb := &fifoMailbox{
		capacity: int64(capacity),
	}
	mb.nonEmpty = sync.NewCond(&mb.mu)
	return mb
}

func (mb *fifoMailbox) Offer(env *Envelope) bool {
	mb.mu.Lock()
	if mb.closed || (mb.capacity > 0 && int64(len(mb.queue)) >= mb.capacity) {
		mb.mu.Unlock()
		return false
	}
	mb.queue = append(mb.queue, env)
	mb.received += 1
	mb.nonEmpty.Signal()
	mb.mu.Unlock()
	return true
}

func (mb *fifoMailbox) Poll() (*Envelope, bool) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.closed || len(mb.queue) == 0 {
		return nil, false
	}
	return mb.pop(), true
}

func (mb *fifoMailbox) Take() (*Envelope, bool) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	for !mb.closed && len(mb.queue) == 0 {
		mb.nonEmpty.Wait()
	}
	if mb.closed {
		return nil, false
	}
	return mb.pop(), true
}

// pop must be called with mb.mu held and a non-empty queue
func (mb *fifoMailbox) pop() *Envelope {
	env := mb.queue[0]
	mb.queue[0] = nil
	mb.queue = mb.queue[1:]
	mb.processed += 1
	return env
}

func (mb *fifoMailbox) Close() []*Envelope {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.closed {
		return nil
	}
	mb.closed = true
	remaining := mb.queue
	mb.queue = nil
	mb.nonEmpty.Broadcast()
	return remaining
}

func (mb *fifoMailbox) IsClosed() bool {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return mb.closed
}

func (mb *fifoMailbox) Size() int64 {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return int64(len(mb.queue))
}

func (mb *fifoMailbox) TotalReceived() int64 {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return mb.received
}

func (mb *fifoMailbox) TotalProcessed() int64 {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return mb.processed
}

func (mb *fifoMailbox) Capacity() int64 {
	return mb.capacity
}

func (mb *fifoMailbox) Type() Type {
	if mb.capacity > 0 {
		return Bounded
	}
	return Unbounded
}
