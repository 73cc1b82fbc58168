package dispatch

import (
	"sync"

	"github.com/actorworld/actorworld/engine/awlog"
	"github.com/actorworld/actorworld/engine/awutils"
	"github.com/actorworld/actorworld/engine/consts"
	"github.com/xiaonanln/go-xnsyncutil/xnsyncutil"
)

// Task is one schedulable unit of actor work. Process drains up to limit
// envelopes and reports whether more work is immediately available; the
// dispatcher then requeues the task so other ready actors get a fair share.
//
// The dispatcher never runs the same Task on two workers at once as long as
// the task is only scheduled through its own CAS guard (see actor.ActorRef).
type Task interface {
	Process(limit int) (more bool)
}

// Dispatcher multiplexes many ready actors onto a fixed pool of workers
type Dispatcher struct {
	readyQueue *xnsyncutil.SyncQueue
	numWorkers int
	throughput int

	started           xnsyncutil.AtomicBool
	numWorkersRunning sync.WaitGroup
}

// NewDispatcher creates a dispatcher with the given worker pool size and
// per-schedule throughput limit; workers do not run until Start
func NewDispatcher(workers int, throughput int) *Dispatcher {
	if workers <= 0 {
		awlog.Panicf("dispatcher workers must be positive, but is %d", workers)
	}
	if throughput <= 0 {
		throughput = consts.DISPATCHER_DEFAULT_THROUGHPUT
	}
	return &Dispatcher{
		readyQueue: xnsyncutil.NewSyncQueue(),
		numWorkers: workers,
		throughput: throughput,
	}
}

// Start spawns the worker pool
func (d *Dispatcher) Start() {
	if d.started.Load() {
		return
	}
	d.started.Store(true)
	for i := 0; i < d.numWorkers; i++ {
		d.numWorkersRunning.Add(1)
		go d.workerRoutine(i)
	}
}

// Schedule queues the task for some idle worker. Callers must guarantee the
// task is not already queued (one schedule in flight per actor).
func (d *Dispatcher) Schedule(t Task) {
	d.readyQueue.Push(t)
}

// NumWorkers returns the worker pool size
func (d *Dispatcher) NumWorkers() int {
	return d.numWorkers
}

// Throughput returns the per-schedule envelope limit
func (d *Dispatcher) Throughput() int {
	return d.throughput
}

// Shutdown stops all workers after the ready queue drains in-flight tasks.
// Idempotent.
func (d *Dispatcher) Shutdown() {
	if !d.started.Load() {
		return
	}
	d.readyQueue.Close()
	d.numWorkersRunning.Wait()
	d.started.Store(false)
}

func (d *Dispatcher) workerRoutine(workerID int) {
	defer d.numWorkersRunning.Done()

	for {
		t := d.readyQueue.Pop()
		if t == nil { // ready queue closed
			break
		}

		task := t.(Task)
		more := false
		// a panic escaping Process must not kill the worker
		awutils.RunPanicless(func() {
			more = task.Process(d.throughput)
		})
		if more {
			if consts.DEBUG_DISPATCH {
				awlog.Debugf("dispatch: worker %d requeues busy task %v", workerID, task)
			}
			d.readyQueue.Push(task)
		}
	}
}
