package actor

import (
	"sync/atomic"

	"github.com/xiaonanln/go-xnsyncutil/xnsyncutil"

	"github.com/actorworld/actorworld/engine/awlog"
	"github.com/actorworld/actorworld/engine/awutils"
	"github.com/actorworld/actorworld/engine/config"
	"github.com/actorworld/actorworld/engine/mailbox"
	"github.com/actorworld/actorworld/engine/persist"
	"github.com/actorworld/actorworld/engine/persist/persistcommon"
	"github.com/pkg/errors"
)

// ErrNotPersistent is returned when persistence helpers are used on an actor
// created without persistent props
var ErrNotPersistent = errors.New("actor: not a persistent actor")

// ErrNotSnapshotter is returned when saving a snapshot of an actor that does
// not implement Snapshotter
var ErrNotSnapshotter = errors.New("actor: actor does not implement Snapshotter")

// PersistResult is delivered to OnReceive after a PersistEvents call
// completes. On a sequence conflict Err wraps the conflict sentinel (check
// with persistcommon.IsSequenceConflict) and the actor must reconcile; the
// runtime never auto-retries an append.
type PersistResult struct {
	LastSequenceNr int64
	NumEvents      int
	Err            error
}

// internal control messages routed through the actor's own mailbox so all
// state access stays on the processing worker
type startMessage struct{}

type persistDoneMessage struct {
	newSeqNr  int64
	numEvents int
	err       error
}

// ActorRef binds one actor path to one mailbox and one actor instance. Refs
// are owned by the system registry, one per path.
type ActorRef struct {
	system *System
	path   string
	actor  Actor
	mb     mailbox.Mailbox

	// scheduled keeps at most one dispatcher schedule in flight per actor,
	// which is what guarantees sequential processing
	scheduled   int32
	onStopState int32
	suspended   xnsyncutil.AtomicBool
	stopped     xnsyncutil.AtomicBool

	// persistence fields, only touched while processing on the worker (or on
	// the service goroutine before the actor is resumed)
	persistent             bool
	headSeqNr              int64 // store head including in-flight appends
	lastSeqNr              int64 // last acknowledged persisted seq
	eventsSinceSnapshot    int
	snapshotEnabled        bool
	snapshotEveryNEvents   int
	maxSnapshotsToKeep     int
	deleteEventsOnSnapshot bool
}

func newActorRef(system *System, path string, a Actor, mb mailbox.Mailbox, persistent bool) *ActorRef {
	ref := &ActorRef{
		system:     system,
		path:       path,
		actor:      a,
		mb:         mb,
		persistent: persistent,
	}
	if persistent {
		cfg := config.GetPersistence()
		ref.snapshotEnabled = cfg.SnapshotEnabled
		ref.snapshotEveryNEvents = cfg.SnapshotEveryNEvents
		ref.maxSnapshotsToKeep = cfg.MaxSnapshotsToKeep
		ref.deleteEventsOnSnapshot = cfg.DeleteEventsOnSnapshot
	}
	return ref
}

// Path returns the actor path
func (ref *ActorRef) Path() string {
	return ref.path
}

// Mailbox returns the actor's mailbox, mostly for counter inspection
func (ref *ActorRef) Mailbox() mailbox.Mailbox {
	return ref.mb
}

// IsStopped checks if the actor was stopped
func (ref *ActorRef) IsStopped() bool {
	return ref.stopped.Load()
}

// LastSequenceNr returns the last acknowledged persisted sequence number
func (ref *ActorRef) LastSequenceNr() int64 {
	return atomic.LoadInt64(&ref.lastSeqNr)
}

// Send delivers a fire-and-forget message with no sender
func (ref *ActorRef) Send(message interface{}) bool {
	return ref.SendEx(message, "", 0)
}

// SendEx delivers a fire-and-forget message with an explicit sender path and
// priority. A send to a stopped actor goes to dead letters and returns false;
// a full bounded mailbox returns false only, which is the backpressure signal
// for the caller to drop, retry or escalate.
func (ref *ActorRef) SendEx(message interface{}, sender string, priority int) bool {
	if ref.stopped.Load() {
		ref.system.sink.record(ref.path, message, sender, "actor stopped")
		return false
	}

	if !ref.mb.Offer(mailbox.NewEnvelope(message, sender, priority)) {
		if ref.mb.IsClosed() {
			ref.system.sink.record(ref.path, message, sender, "actor stopped")
		}
		return false
	}

	ref.schedule()
	return true
}

// schedule queues the ref on the dispatcher unless it is already queued or
// the actor is suspended waiting for recovery
func (ref *ActorRef) schedule() {
	if ref.suspended.Load() {
		return
	}
	if atomic.CompareAndSwapInt32(&ref.scheduled, 0, 1) {
		ref.system.dispatcher.Schedule(ref)
	}
}

// resume lifts the recovery suspension and schedules any queued messages
func (ref *ActorRef) resume() {
	ref.suspended.Store(false)
	if ref.mb.Size() > 0 {
		ref.schedule()
	}
}

// Process drains up to limit envelopes on a dispatcher worker. Returning true
// keeps the ref on the ready queue so a busy actor cannot starve others.
func (ref *ActorRef) Process(limit int) bool {
	n := 0
	for n < limit {
		env, ok := ref.mb.Poll()
		if !ok {
			break
		}
		ref.invoke(env)
		n += 1
	}

	if !ref.mb.IsClosed() && ref.mb.Size() > 0 {
		return true
	}

	ref.tryRunOnStop()
	atomic.StoreInt32(&ref.scheduled, 0)

	// a producer may have offered between the emptiness check and the flag
	// reset without managing to schedule; reclaim the flag for it
	if !ref.mb.IsClosed() && ref.mb.Size() > 0 && atomic.CompareAndSwapInt32(&ref.scheduled, 0, 1) {
		return true
	}
	// same race for a stop that arrived while this worker was draining
	if ref.needsOnStop() && atomic.CompareAndSwapInt32(&ref.scheduled, 0, 1) {
		ref.tryRunOnStop()
		atomic.StoreInt32(&ref.scheduled, 0)
	}
	return false
}

func (ref *ActorRef) needsOnStop() bool {
	return ref.stopped.Load() && atomic.LoadInt32(&ref.onStopState) == 0
}

// tryRunOnStop runs the OnStop hook exactly once after the actor stopped.
// Callers hold the scheduled flag so the hook never overlaps OnReceive.
func (ref *ActorRef) tryRunOnStop() {
	if !ref.stopped.Load() || !atomic.CompareAndSwapInt32(&ref.onStopState, 0, 1) {
		return
	}
	if stopper, ok := ref.actor.(Stopper); ok {
		ctx := &Context{system: ref.system, self: ref, envelope: mailbox.NewEnvelope(nil, "", 0)}
		awutils.RunPanicless(func() {
			stopper.OnStop(ctx)
		})
	}
}

func (ref *ActorRef) invoke(env *mailbox.Envelope) {
	switch msg := env.Message.(type) {
	case *startMessage:
		if starter, ok := ref.actor.(Starter); ok {
			ctx := &Context{system: ref.system, self: ref, envelope: env}
			awutils.RunPanicless(func() {
				starter.OnStart(ctx)
			})
		}
		return
	case *persistDoneMessage:
		ref.handlePersistDone(env, msg)
		return
	}

	ctx := &Context{system: ref.system, self: ref, envelope: env}
	// a panic in the handler is isolated to this message; processing resumes
	// with the next envelope and the actor is neither restarted nor stopped
	paniced := awutils.RunPanicless(func() {
		ref.actor.OnReceive(ctx)
	})
	if paniced {
		awlog.Errorf("actor %s: handler paniced on %T, resuming with next message", ref.path, env.Message)
	}
}

// PersistEvents appends events to the actor's event log. Must only be called
// from inside the actor's own message processing. The append is asynchronous;
// the actor receives a *PersistResult once it completes.
func (ref *ActorRef) PersistEvents(events ...interface{}) error {
	if !ref.persistent {
		return errors.Wrapf(ErrNotPersistent, "%s", ref.path)
	}
	if len(events) == 0 {
		return nil
	}

	blobs := make([][]byte, len(events))
	for i, ev := range events {
		blob, err := persist.PackData(ev)
		if err != nil {
			return errors.Wrapf(err, "%s: packing event %d", ref.path, i)
		}
		blobs[i] = blob
	}

	// the expected head covers appends still in flight so back-to-back
	// persists from one actor never conflict with themselves
	expected := ref.headSeqNr
	ref.headSeqNr += int64(len(events))
	numEvents := len(events)

	persist.PersistEvents(ref.path, blobs, expected, func(newSeqNr int64, err error) {
		ref.enqueueInternal(&persistDoneMessage{
			newSeqNr:  newSeqNr,
			numEvents: numEvents,
			err:       err,
		})
	})
	return nil
}

// enqueueInternal routes a runtime control message through the actor's own
// mailbox so it is observed on the processing worker like everything else
func (ref *ActorRef) enqueueInternal(message interface{}) {
	if !ref.mb.Offer(mailbox.NewEnvelope(message, DeadLettersPath, 0)) {
		awlog.Warnf("actor %s: dropping internal %T, mailbox closed or full", ref.path, message)
		return
	}
	ref.schedule()
}

func (ref *ActorRef) handlePersistDone(env *mailbox.Envelope, msg *persistDoneMessage) {
	if msg.err != nil {
		if persistcommon.IsSequenceConflict(msg.err) {
			// another writer owns the head now; adopt it so the actor can
			// reconcile and persist again
			ref.headSeqNr = msg.newSeqNr
		}
		awlog.Errorf("actor %s: persist failed: %s", ref.path, msg.err)
	} else {
		atomic.StoreInt64(&ref.lastSeqNr, msg.newSeqNr)
		ref.eventsSinceSnapshot += msg.numEvents
		ref.maybeAutoSnapshot()
	}

	result := &PersistResult{
		LastSequenceNr: msg.newSeqNr,
		NumEvents:      msg.numEvents,
		Err:            msg.err,
	}
	ctx := &Context{system: ref.system, self: ref, envelope: &mailbox.Envelope{
		Message:     result,
		Sender:      env.Sender,
		EnqueueTime: env.EnqueueTime,
	}}
	awutils.RunPanicless(func() {
		ref.actor.OnReceive(ctx)
	})
}

func (ref *ActorRef) maybeAutoSnapshot() {
	if !ref.snapshotEnabled || ref.snapshotEveryNEvents <= 0 {
		return
	}
	if ref.eventsSinceSnapshot < ref.snapshotEveryNEvents {
		return
	}
	if _, ok := ref.actor.(Snapshotter); !ok {
		return
	}

	ref.eventsSinceSnapshot = 0
	if err := ref.SaveSnapshot(); err != nil {
		awlog.Errorf("actor %s: auto snapshot failed: %s", ref.path, err)
	}
}

// SaveSnapshot saves a snapshot of the actor's state at the last acknowledged
// sequence number. Must only be called from inside the actor's own message
// processing. After a successful save the retention policy prunes old
// snapshots and, when configured, events at or below the snapshot boundary.
func (ref *ActorRef) SaveSnapshot() error {
	if !ref.persistent {
		return errors.Wrapf(ErrNotPersistent, "%s", ref.path)
	}
	snapshotter, ok := ref.actor.(Snapshotter)
	if !ok {
		return errors.Wrapf(ErrNotSnapshotter, "%s", ref.path)
	}

	state, err := snapshotter.SnapshotState()
	if err != nil {
		return errors.Wrapf(err, "%s: serializing snapshot state", ref.path)
	}

	seqNr := atomic.LoadInt64(&ref.lastSeqNr)
	path := ref.path
	keepSnapshots := ref.maxSnapshotsToKeep
	deleteEvents := ref.deleteEventsOnSnapshot
	persist.SaveSnapshot(path, state, seqNr, func(err error) {
		if err != nil {
			awlog.Errorf("actor %s: saving snapshot at seq %d failed: %s", path, seqNr, err)
			return
		}
		if keepSnapshots > 0 {
			persist.DeleteSnapshots(path, persistcommon.SnapshotCriteria{KeepLatest: keepSnapshots}, nil)
		}
		if deleteEvents {
			// best-effort purge below the snapshot boundary
			persist.DeleteEvents(path, seqNr, nil)
		}
	})
	return nil
}
