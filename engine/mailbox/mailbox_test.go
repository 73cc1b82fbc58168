package mailbox

import (
	"sync"
	"testing"
	"time"

	"github.com/bmizerany/assert"
)

func TestNew(t *testing.T) {
	for _, spec := range []Spec{
		{Unbounded, 0},
		{Bounded, 10},
		{PriorityUnbounded, 0},
		{PriorityBounded, 10},
	} {
		mb, err := New(spec)
		assert.Equal(t, err, nil)
		assert.Equal(t, mb.Type(), spec.Type)
		assert.Equal(t, mb.Capacity(), int64(spec.Capacity))
	}

	if _, err := New(Spec{Bounded, 0}); err == nil {
		t.Errorf("bounded mailbox with no capacity should fail")
	}
	if _, err := New(Spec{Type: "weird"}); err == nil {
		t.Errorf("unknown mailbox type should fail")
	}
}

func TestFIFOOrder(t *testing.T) {
	mb, _ := New(Spec{Unbounded, 0})
	for i := 0; i < 10; i++ {
		assert.T(t, mb.Offer(NewEnvelope(i, "", 0)))
	}
	for i := 0; i < 10; i++ {
		env, ok := mb.Poll()
		assert.T(t, ok)
		assert.Equal(t, env.Message.(int), i)
	}
	_, ok := mb.Poll()
	assert.T(t, !ok)
}

func TestConservation(t *testing.T) {
	for _, mbtype := range []Type{Unbounded, PriorityUnbounded} {
		mb, _ := New(Spec{mbtype, 0})
		for i := 0; i < 20; i++ {
			mb.Offer(NewEnvelope(i, "", i%3))
		}
		for i := 0; i < 7; i++ {
			mb.Poll()
		}
		assert.Equal(t, mb.TotalReceived(), int64(20))
		assert.Equal(t, mb.TotalProcessed(), int64(7))
		assert.Equal(t, mb.TotalReceived()-mb.TotalProcessed(), mb.Size())
	}
}

func TestBoundedBackpressure(t *testing.T) {
	const capacity = 5
	mb, _ := New(Spec{Bounded, capacity})
	for i := 0; i < capacity; i++ {
		assert.T(t, mb.Offer(NewEnvelope(i, "", 0)))
	}
	assert.T(t, !mb.Offer(NewEnvelope("overflow", "", 0)))
	assert.Equal(t, mb.TotalReceived(), int64(capacity))

	_, ok := mb.Poll()
	assert.T(t, ok)
	assert.T(t, mb.Offer(NewEnvelope("fits-now", "", 0)))
}

func TestPriorityOrder(t *testing.T) {
	mb, _ := New(Spec{PriorityUnbounded, 0})
	mb.Offer(NewEnvelope("low-1", "", 1))
	mb.Offer(NewEnvelope("high-1", "", 10))
	mb.Offer(NewEnvelope("low-2", "", 1))
	mb.Offer(NewEnvelope("high-2", "", 10))
	mb.Offer(NewEnvelope("mid", "", 5))

	expect := []string{"high-1", "high-2", "mid", "low-1", "low-2"}
	for _, want := range expect {
		env, ok := mb.Poll()
		assert.T(t, ok)
		assert.Equal(t, env.Message.(string), want)
	}
}

func TestPriorityBounded(t *testing.T) {
	mb, _ := New(Spec{PriorityBounded, 2})
	assert.T(t, mb.Offer(NewEnvelope(1, "", 0)))
	assert.T(t, mb.Offer(NewEnvelope(2, "", 9)))
	assert.T(t, !mb.Offer(NewEnvelope(3, "", 100)))
}

func TestClose(t *testing.T) {
	mb, _ := New(Spec{Unbounded, 0})
	mb.Offer(NewEnvelope(1, "", 0))
	mb.Offer(NewEnvelope(2, "", 0))

	remaining := mb.Close()
	assert.Equal(t, len(remaining), 2)
	assert.T(t, mb.IsClosed())

	// terminal: no more offers, no more polls, second close yields nothing
	assert.T(t, !mb.Offer(NewEnvelope(3, "", 0)))
	_, ok := mb.Poll()
	assert.T(t, !ok)
	assert.Equal(t, len(mb.Close()), 0)
}

func TestTakeBlocks(t *testing.T) {
	mb, _ := New(Spec{Unbounded, 0})

	var wg sync.WaitGroup
	wg.Add(1)
	var got interface{}
	go func() {
		env, ok := mb.Take()
		if ok {
			got = env.Message
		}
		wg.Done()
	}()

	time.Sleep(time.Millisecond * 10)
	mb.Offer(NewEnvelope("wakeup", "", 0))
	wg.Wait()
	assert.Equal(t, got.(string), "wakeup")
}

func TestTakeUnblocksOnClose(t *testing.T) {
	mb, _ := New(Spec{PriorityUnbounded, 0})

	var wg sync.WaitGroup
	wg.Add(1)
	var ok bool
	go func() {
		_, ok = mb.Take()
		wg.Done()
	}()

	time.Sleep(time.Millisecond * 10)
	mb.Close()
	wg.Wait()
	assert.T(t, !ok)
}

func TestConcurrentProducers(t *testing.T) {
	mb, _ := New(Spec{Unbounded, 0})
	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func() {
			for i := 0; i < 100; i++ {
				mb.Offer(NewEnvelope(i, "", 0))
			}
			wg.Done()
		}()
	}
	wg.Wait()
	assert.Equal(t, mb.TotalReceived(), int64(800))
	assert.Equal(t, mb.Size(), int64(800))
}
