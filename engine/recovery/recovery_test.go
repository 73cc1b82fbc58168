package recovery

import (
	"sync"
	"testing"
	"time"

	timer "github.com/xiaonanln/goTimer"

	"github.com/actorworld/actorworld/engine/persist"
	"github.com/actorworld/actorworld/engine/persist/backend/memory"
	"github.com/actorworld/actorworld/engine/post"
	"github.com/bmizerany/assert"
	"github.com/pkg/errors"
)

func init() {
	go func() {
		for {
			timer.Tick()
			post.Tick()
			time.Sleep(time.Millisecond)
		}
	}()
	persist.InitializeWithStore(eventstorememory.OpenMemory())
}

type countingTarget struct {
	snapshotState []byte
	snapshotSeq   int64
	eventSeqs     []int64
	failAtSeq     int64
}

func (ct *countingTarget) RecoverFromSnapshot(state []byte, seqNr int64) error {
	ct.snapshotState = state
	ct.snapshotSeq = seqNr
	return nil
}

func (ct *countingTarget) RecoverFromEvent(data []byte, seqNr int64) error {
	if ct.failAtSeq > 0 && seqNr == ct.failAtSeq {
		return errors.New("replay handler refused event")
	}
	ct.eventSeqs = append(ct.eventSeqs, seqNr)
	return nil
}

// eventsOnlyTarget replays events but has no RecoverFromSnapshot
type eventsOnlyTarget struct {
	eventSeqs []int64
}

func (et *eventsOnlyTarget) RecoverFromEvent(data []byte, seqNr int64) error {
	et.eventSeqs = append(et.eventSeqs, seqNr)
	return nil
}

func persistEventsSync(t *testing.T, path string, n int, expectedSeqNr int64) {
	var wait sync.WaitGroup
	events := make([][]byte, n)
	for i := range events {
		events[i] = []byte("ev")
	}
	wait.Add(1)
	persist.PersistEvents(path, events, expectedSeqNr, func(newSeqNr int64, err error) {
		assert.Equal(t, err, nil)
		wait.Done()
	})
	wait.Wait()
}

func saveSnapshotSync(t *testing.T, path string, state string, seqNr int64) {
	var wait sync.WaitGroup
	wait.Add(1)
	persist.SaveSnapshot(path, []byte(state), seqNr, func(err error) {
		assert.Equal(t, err, nil)
		wait.Done()
	})
	wait.Wait()
}

func runRecovery(target Target, path string) *Result {
	var wait sync.WaitGroup
	var res *Result
	wait.Add(1)
	r := New(path, target, func(result *Result) {
		res = result
		wait.Done()
	})
	r.Start()
	wait.Wait()
	return res
}

func TestRecoverFromSnapshotAndEvents(t *testing.T) {
	path := "/user/rec-snap-events"
	persistEventsSync(t, path, 10, 0)
	saveSnapshotSync(t, path, "state-10", 10)
	persistEventsSync(t, path, 5, 10)

	target := &countingTarget{}
	res := runRecovery(target, path)

	assert.Equal(t, res.Err, nil)
	assert.Equal(t, res.Mode, ModeSnapshotAndEvents)
	assert.Equal(t, res.LastSequenceNr, int64(15))
	assert.Equal(t, res.EventsReplayed, 5)
	assert.Equal(t, target.snapshotSeq, int64(10))
	assert.Equal(t, string(target.snapshotState), "state-10")
	// only events newer than the snapshot are replayed, in order
	assert.Equal(t, target.eventSeqs, []int64{11, 12, 13, 14, 15})
}

func TestRecoverFromEventsOnly(t *testing.T) {
	path := "/user/rec-events"
	persistEventsSync(t, path, 3, 0)

	target := &countingTarget{}
	res := runRecovery(target, path)

	assert.Equal(t, res.Err, nil)
	assert.Equal(t, res.Mode, ModeEvents)
	assert.Equal(t, res.LastSequenceNr, int64(3))
	assert.Equal(t, target.eventSeqs, []int64{1, 2, 3})
}

func TestRecoverNothingPersisted(t *testing.T) {
	target := &countingTarget{}
	res := runRecovery(target, "/user/rec-empty")

	assert.Equal(t, res.Err, nil)
	assert.Equal(t, res.Mode, ModeNone)
	assert.Equal(t, res.LastSequenceNr, int64(0))
	assert.Equal(t, res.EventsReplayed, 0)
}

func TestRecoverInSmallBatches(t *testing.T) {
	path := "/user/rec-batched"
	persistEventsSync(t, path, 7, 0)

	target := &countingTarget{}
	var wait sync.WaitGroup
	var res *Result
	wait.Add(1)
	r := New(path, target, func(result *Result) {
		res = result
		wait.Done()
	})
	r.batchSize = 2
	r.Start()
	wait.Wait()

	assert.Equal(t, res.Err, nil)
	assert.Equal(t, res.EventsReplayed, 7)
	assert.Equal(t, target.eventSeqs, []int64{1, 2, 3, 4, 5, 6, 7})
}

func TestSnapshotRequiresSnapshotTarget(t *testing.T) {
	path := "/user/rec-nosnaptarget"
	persistEventsSync(t, path, 10, 0)
	saveSnapshotSync(t, path, "state-10", 10)

	// a target that can not absorb the snapshot must fail recovery, not
	// silently replay from seq 1
	target := &eventsOnlyTarget{}
	res := runRecovery(target, path)

	assert.T(t, res.Err != nil)
	assert.Equal(t, errors.Cause(res.Err), ErrSnapshotNotApplicable)
	assert.Equal(t, len(target.eventSeqs), 0)
}

func TestSequenceGapFailsRecovery(t *testing.T) {
	path := "/user/rec-gap"
	persistEventsSync(t, path, 3, 0)

	// purge the log prefix without a snapshot covering it
	var wait sync.WaitGroup
	wait.Add(1)
	persist.DeleteEvents(path, 2, func(err error) {
		assert.Equal(t, err, nil)
		wait.Done()
	})
	wait.Wait()

	target := &countingTarget{}
	res := runRecovery(target, path)

	assert.T(t, res.Err != nil)
	assert.Equal(t, errors.Cause(res.Err), ErrSequenceGap)
	assert.Equal(t, len(target.eventSeqs), 0)
}

func TestReplayHandlerFailureFailsRecovery(t *testing.T) {
	path := "/user/rec-badev"
	persistEventsSync(t, path, 3, 0)

	target := &countingTarget{failAtSeq: 2}
	res := runRecovery(target, path)

	assert.T(t, res.Err != nil)
	assert.Equal(t, target.eventSeqs, []int64{1})
}
