package actor

import (
	"sync"
	"time"

	"github.com/actorworld/actorworld/engine/awlog"
	"github.com/actorworld/actorworld/engine/consts"
)

// DeadLettersPath is the reserved address of the dead-letter sink
const DeadLettersPath = "/system/deadLetters"

// DeadLetter records one undeliverable message
type DeadLetter struct {
	TargetPath string
	Sender     string
	Reason     string
	Message    interface{}
	Time       time.Time
}

// deadLetterSink retains a bounded ring of recent dead letters plus a running
// count. Undeliverable sends are recorded here synchronously; the sink is also
// registered as a normal actor at DeadLettersPath so it can be messaged
// directly.
type deadLetterSink struct {
	mu    sync.Mutex
	ring  []*DeadLetter
	next  int
	count int64
}

func newDeadLetterSink() *deadLetterSink {
	return &deadLetterSink{
		ring: make([]*DeadLetter, 0, consts.DEADLETTER_KEEP_COUNT),
	}
}

func (sink *deadLetterSink) record(targetPath string, message interface{}, sender string, reason string) {
	awlog.Warnf("dead letter: %s -> %s (%s): %v", sender, targetPath, reason, message)

	dl := &DeadLetter{
		TargetPath: targetPath,
		Sender:     sender,
		Reason:     reason,
		Message:    message,
		Time:       time.Now(),
	}

	sink.mu.Lock()
	if len(sink.ring) < consts.DEADLETTER_KEEP_COUNT {
		sink.ring = append(sink.ring, dl)
	} else {
		sink.ring[sink.next] = dl
	}
	sink.next = (sink.next + 1) % consts.DEADLETTER_KEEP_COUNT
	sink.count += 1
	sink.mu.Unlock()
}

// Count returns the total number of dead letters recorded so far
func (sink *deadLetterSink) Count() int64 {
	sink.mu.Lock()
	defer sink.mu.Unlock()
	return sink.count
}

// Recent returns the retained dead letters, oldest first
func (sink *deadLetterSink) Recent() []*DeadLetter {
	sink.mu.Lock()
	defer sink.mu.Unlock()

	res := make([]*DeadLetter, 0, len(sink.ring))
	if len(sink.ring) < consts.DEADLETTER_KEEP_COUNT {
		res = append(res, sink.ring...)
	} else {
		res = append(res, sink.ring[sink.next:]...)
		res = append(res, sink.ring[:sink.next]...)
	}
	return res
}

// deadLetterActor makes the sink addressable like any other actor
type deadLetterActor struct {
	sink *deadLetterSink
}

func (dla *deadLetterActor) OnReceive(ctx *Context) {
	dla.sink.record(DeadLettersPath, ctx.Message(), ctx.Sender(), "sent to dead letters")
}
