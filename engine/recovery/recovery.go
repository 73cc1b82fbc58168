package recovery

import (
	"time"

	timer "github.com/xiaonanln/goTimer"

	"github.com/actorworld/actorworld/engine/awlog"
	"github.com/actorworld/actorworld/engine/config"
	"github.com/actorworld/actorworld/engine/consts"
	"github.com/actorworld/actorworld/engine/persist"
	"github.com/actorworld/actorworld/engine/persist/persistcommon"
	"github.com/pkg/errors"
)

// ErrTimeout means recovery did not finish within the configured timeout
var ErrTimeout = errors.New("recovery: timed out")

// ErrSequenceGap means the event log is missing a sequence number. Replay
// never skips: a gap fails the whole recovery.
var ErrSequenceGap = errors.New("recovery: gap in event log")

// ErrSnapshotNotApplicable means a snapshot exists but the target can not
// apply snapshots. Replaying from seq 1 instead is not an option: events below
// the snapshot may be purged already.
var ErrSnapshotNotApplicable = errors.New("recovery: target can not apply snapshots")

// Status is the phase a recovery run is in
type Status int

const (
	// StatusNotStarted means Start was not called yet
	StatusNotStarted Status = iota
	// StatusSnapshotLookup means the latest snapshot is being looked up
	StatusSnapshotLookup
	// StatusEventReplay means events are being replayed in sequence order
	StatusEventReplay
	// StatusReady means recovery finished and the target is up to date
	StatusReady
	// StatusFailed means recovery failed and the target must not run
	StatusFailed
)

// Mode tells which sources contributed to the recovered state
type Mode int

const (
	// ModeNone means no snapshot and no events existed
	ModeNone Mode = iota
	// ModeSnapshot means state came from a snapshot only
	ModeSnapshot
	// ModeEvents means state was replayed from events only
	ModeEvents
	// ModeSnapshotAndEvents means a snapshot was applied and newer events
	// replayed on top
	ModeSnapshotAndEvents
)

// Target receives replayed events during recovery
type Target interface {
	RecoverFromEvent(data []byte, seqNr int64) error
}

// SnapshotTarget additionally accepts a snapshot as the replay starting point
type SnapshotTarget interface {
	RecoverFromSnapshot(state []byte, seqNr int64) error
}

// Result reports the outcome of one recovery run
type Result struct {
	Mode           Mode
	LastSequenceNr int64
	EventsReplayed int
	Elapsed        time.Duration
	Err            error
}

// CompletionFunc is called exactly once when recovery finishes or fails
type CompletionFunc func(result *Result)

// Recovery replays persisted state into a target before it starts processing
// messages. All steps run through the persist module so completion callbacks
// arrive on the service goroutine; Recovery itself is not thread safe.
type Recovery struct {
	path       string
	target     Target
	onComplete CompletionFunc

	batchSize int
	timeout   time.Duration

	status         Status
	startTime      time.Time
	timeoutTimer   *timer.Timer
	highestAtStart int64
	nextSeq        int64
	result         Result
}

// New creates a recovery run for the actor path. Batch size and timeout come
// from the persistence config.
func New(path string, target Target, onComplete CompletionFunc) *Recovery {
	cfg := config.GetPersistence()
	batchSize := cfg.ReplayBatchSize
	if batchSize <= 0 {
		batchSize = consts.RECOVERY_DEFAULT_BATCH_SIZE
	}
	timeout := cfg.RecoveryTimeout
	if timeout <= 0 {
		timeout = consts.RECOVERY_DEFAULT_TIMEOUT
	}

	return &Recovery{
		path:       path,
		target:     target,
		onComplete: onComplete,
		batchSize:  batchSize,
		timeout:    timeout,
		status:     StatusNotStarted,
	}
}

// Status returns the current phase
func (r *Recovery) Status() Status {
	return r.status
}

// Start begins the recovery run: snapshot lookup first, then batched event
// replay from the sequence number after the snapshot
func (r *Recovery) Start() {
	if r.status != StatusNotStarted {
		awlog.Panicf("recovery of %s started twice", r.path)
	}

	r.status = StatusSnapshotLookup
	r.startTime = time.Now()
	r.nextSeq = 1
	r.timeoutTimer = timer.AddCallback(r.timeout, r.onTimeout)

	if consts.DEBUG_RECOVERY {
		awlog.Debugf("recovery: %s looking up snapshot ...", r.path)
	}
	persist.LoadSnapshot(r.path, r.onSnapshotLoaded)
}

func (r *Recovery) done() bool {
	return r.status == StatusReady || r.status == StatusFailed
}

func (r *Recovery) onTimeout() {
	if r.done() {
		return
	}
	r.fail(errors.Wrapf(ErrTimeout, "%s: still %v after %s", r.path, r.status, r.timeout))
}

func (r *Recovery) onSnapshotLoaded(snapshot *persistcommon.Snapshot, err error) {
	if r.done() {
		return
	}
	if err != nil {
		r.fail(errors.Wrapf(err, "%s: snapshot lookup failed", r.path))
		return
	}

	if snapshot != nil {
		st, ok := r.target.(SnapshotTarget)
		if !ok {
			r.fail(errors.Wrapf(ErrSnapshotNotApplicable, "%s: snapshot at seq %d", r.path, snapshot.SequenceNr))
			return
		}
		if err := st.RecoverFromSnapshot(snapshot.State, snapshot.SequenceNr); err != nil {
			r.fail(errors.Wrapf(err, "%s: applying snapshot at seq %d failed", r.path, snapshot.SequenceNr))
			return
		}
		r.result.Mode = ModeSnapshot
		r.result.LastSequenceNr = snapshot.SequenceNr
		r.nextSeq = snapshot.SequenceNr + 1
	}

	persist.HighestSequenceNr(r.path, r.onHighestSequenceNr)
}

func (r *Recovery) onHighestSequenceNr(seqNr int64, err error) {
	if r.done() {
		return
	}
	if err != nil {
		r.fail(errors.Wrapf(err, "%s: head lookup failed", r.path))
		return
	}

	// replay is bounded by the head observed here; events appended later
	// belong to normal processing, not recovery
	r.highestAtStart = seqNr
	if r.nextSeq > r.highestAtStart {
		r.finish()
		return
	}

	r.status = StatusEventReplay
	r.loadNextBatch()
}

func (r *Recovery) loadNextBatch() {
	if consts.DEBUG_RECOVERY {
		awlog.Debugf("recovery: %s replaying events from seq %d ...", r.path, r.nextSeq)
	}
	persist.LoadEvents(r.path, r.nextSeq, r.highestAtStart, r.batchSize, r.onEventsLoaded)
}

func (r *Recovery) onEventsLoaded(events []*persistcommon.Event, err error) {
	if r.done() {
		return
	}
	if err != nil {
		r.fail(errors.Wrapf(err, "%s: loading events from seq %d failed", r.path, r.nextSeq))
		return
	}

	if len(events) == 0 {
		// the store promised events up to highestAtStart
		r.fail(errors.Wrapf(ErrSequenceGap, "%s: no events at seq %d, head is %d", r.path, r.nextSeq, r.highestAtStart))
		return
	}

	for _, ev := range events {
		if ev.SequenceNr != r.nextSeq {
			r.fail(errors.Wrapf(ErrSequenceGap, "%s: expecting seq %d but got %d", r.path, r.nextSeq, ev.SequenceNr))
			return
		}
		if err := r.target.RecoverFromEvent(ev.Data, ev.SequenceNr); err != nil {
			r.fail(errors.Wrapf(err, "%s: replaying event at seq %d failed", r.path, ev.SequenceNr))
			return
		}
		r.nextSeq += 1
		r.result.EventsReplayed += 1
		r.result.LastSequenceNr = ev.SequenceNr
	}

	if r.result.Mode == ModeSnapshot {
		r.result.Mode = ModeSnapshotAndEvents
	} else if r.result.Mode == ModeNone {
		r.result.Mode = ModeEvents
	}

	if r.nextSeq > r.highestAtStart {
		r.finish()
		return
	}
	r.loadNextBatch()
}

func (r *Recovery) finish() {
	r.status = StatusReady
	r.result.Elapsed = time.Since(r.startTime)
	r.cancelTimeout()
	if consts.DEBUG_RECOVERY {
		awlog.Debugf("recovery: %s ready at seq %d, %d events replayed in %s", r.path, r.result.LastSequenceNr, r.result.EventsReplayed, r.result.Elapsed)
	}
	r.onComplete(&r.result)
}

func (r *Recovery) fail(err error) {
	r.status = StatusFailed
	r.result.Err = err
	r.result.Elapsed = time.Since(r.startTime)
	r.cancelTimeout()
	awlog.Errorf("recovery: %s failed: %s", r.path, err)
	r.onComplete(&r.result)
}

func (r *Recovery) cancelTimeout() {
	if r.timeoutTimer != nil {
		r.timeoutTimer.Cancel()
		r.timeoutTimer = nil
	}
}

func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "not-started"
	case StatusSnapshotLookup:
		return "snapshot-lookup"
	case StatusEventReplay:
		return "event-replay"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeSnapshot:
		return "snapshot"
	case ModeEvents:
		return "events"
	case ModeSnapshotAndEvents:
		return "snapshot+events"
	}
	return "unknown"
}
