package dispatch

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bmizerany/assert"
)

type countTask struct {
	mu        sync.Mutex
	pending   int
	processed int
	reentered bool
	running   int32
	done      *sync.WaitGroup
}

func (t *countTask) Process(limit int) bool {
	if !atomic.CompareAndSwapInt32(&t.running, 0, 1) {
		t.reentered = true
	}
	defer atomic.StoreInt32(&t.running, 0)

	t.mu.Lock()
	defer t.mu.Unlock()
	n := t.pending
	if n > limit {
		n = limit
	}
	t.pending -= n
	t.processed += n
	for i := 0; i < n; i++ {
		t.done.Done()
	}
	return t.pending > 0
}

func TestDispatcherProcessesAll(t *testing.T) {
	d := NewDispatcher(4, 10)
	d.Start()
	defer d.Shutdown()

	var wg sync.WaitGroup
	wg.Add(35)
	task := &countTask{pending: 35, done: &wg}
	d.Schedule(task)
	wg.Wait()

	assert.Equal(t, task.processed, 35)
	assert.T(t, !task.reentered, "task ran on two workers at once")
}

func TestDispatcherFairness(t *testing.T) {
	// one persistently busy task must not starve the other
	d := NewDispatcher(1, 5)
	d.Start()
	defer d.Shutdown()

	var wg sync.WaitGroup
	wg.Add(100 + 5)
	busy := &countTask{pending: 100, done: &wg}
	light := &countTask{pending: 5, done: &wg}
	d.Schedule(busy)
	d.Schedule(light)
	wg.Wait()

	assert.Equal(t, busy.processed, 100)
	assert.Equal(t, light.processed, 5)
}

type panicTask struct {
	calls int32
	wg    *sync.WaitGroup
}

func (t *panicTask) Process(limit int) bool {
	n := atomic.AddInt32(&t.calls, 1)
	defer t.wg.Done()
	if n == 1 {
		panic("handler blew up")
	}
	return false
}

func TestWorkerSurvivesPanic(t *testing.T) {
	d := NewDispatcher(1, 10)
	d.Start()
	defer d.Shutdown()

	var wg sync.WaitGroup
	wg.Add(2)
	task := &panicTask{wg: &wg}
	d.Schedule(task)
	time.Sleep(time.Millisecond * 10)
	d.Schedule(task) // same worker must still be alive
	wg.Wait()

	assert.Equal(t, atomic.LoadInt32(&task.calls), int32(2))
}

func TestShutdownIdempotent(t *testing.T) {
	d := NewDispatcher(2, 10)
	d.Start()
	d.Shutdown()
	d.Shutdown()
}

func TestNotStartedNoProcessing(t *testing.T) {
	d := NewDispatcher(2, 10)

	var wg sync.WaitGroup
	wg.Add(3)
	task := &countTask{pending: 3, done: &wg}
	d.Schedule(task)

	time.Sleep(time.Millisecond * 20)
	task.mu.Lock()
	processed := task.processed
	task.mu.Unlock()
	assert.Equal(t, processed, 0)

	d.Start()
	wg.Wait()
	d.Shutdown()
}
