package persist

import (
	"sync"
	"testing"
	"time"

	"github.com/actorworld/actorworld/engine/config"
	"github.com/actorworld/actorworld/engine/persist/backend/memory"
	"github.com/actorworld/actorworld/engine/persist/persistcommon"
	"github.com/actorworld/actorworld/engine/post"
	"github.com/bmizerany/assert"
)

func init() {
	go func() {
		for {
			post.Tick()
			time.Sleep(time.Millisecond)
		}
	}()
	InitializeWithStore(eventstorememory.OpenMemory())
}

func TestPersistAndLoadEventsAsync(t *testing.T) {
	var wait sync.WaitGroup

	wait.Add(1)
	PersistEvents("/user/counter", [][]byte{[]byte("inc"), []byte("inc")}, 0, func(newSeqNr int64, err error) {
		assert.Equal(t, err, nil)
		assert.Equal(t, newSeqNr, int64(2))
		wait.Done()
	})
	wait.Wait()

	wait.Add(1)
	LoadEvents("/user/counter", 1, 0, 0, func(events []*persistcommon.Event, err error) {
		assert.Equal(t, err, nil)
		assert.Equal(t, len(events), 2)
		assert.Equal(t, events[0].SequenceNr, int64(1))
		assert.Equal(t, events[1].SequenceNr, int64(2))
		wait.Done()
	})
	wait.Wait()
}

func TestSequenceConflictNotRetried(t *testing.T) {
	var wait sync.WaitGroup

	wait.Add(1)
	PersistEvents("/user/conflict", [][]byte{[]byte("e1")}, 0, func(newSeqNr int64, err error) {
		assert.Equal(t, err, nil)
		wait.Done()
	})
	wait.Wait()

	// stale expected head must fail fast with a conflict, not retry
	wait.Add(1)
	PersistEvents("/user/conflict", [][]byte{[]byte("e1-again")}, 0, func(newSeqNr int64, err error) {
		assert.T(t, persistcommon.IsSequenceConflict(err))
		assert.Equal(t, newSeqNr, int64(1))
		wait.Done()
	})
	wait.Wait()
}

func TestSnapshotAsync(t *testing.T) {
	var wait sync.WaitGroup

	wait.Add(1)
	SaveSnapshot("/user/snappy", []byte("state-7"), 7, func(err error) {
		assert.Equal(t, err, nil)
		wait.Done()
	})
	wait.Wait()

	wait.Add(1)
	LoadSnapshot("/user/snappy", func(snapshot *persistcommon.Snapshot, err error) {
		assert.Equal(t, err, nil)
		assert.Equal(t, snapshot.SequenceNr, int64(7))
		assert.Equal(t, string(snapshot.State), "state-7")
		wait.Done()
	})
	wait.Wait()
}

func TestHighestSequenceNrAsync(t *testing.T) {
	var wait sync.WaitGroup

	wait.Add(1)
	HighestSequenceNr("/user/nobody", func(seqNr int64, err error) {
		assert.Equal(t, err, nil)
		assert.Equal(t, seqNr, int64(0))
		wait.Done()
	})
	wait.Wait()
}

func TestReinitializeAfterShutdown(t *testing.T) {
	cfg := config.GetPersistence()
	oldType := cfg.Type
	cfg.Type = "memory"
	defer func() { cfg.Type = oldType }()

	Shutdown()
	assert.T(t, !IsInitialized())

	// a second Initialize must start over with a working routine
	Initialize()
	assert.T(t, IsInitialized())

	var wait sync.WaitGroup
	wait.Add(1)
	PersistEvents("/user/reinit", [][]byte{[]byte("e1")}, 0, func(newSeqNr int64, err error) {
		assert.Equal(t, err, nil)
		assert.Equal(t, newSeqNr, int64(1))
		wait.Done()
	})
	wait.Wait()

	Shutdown()
	InitializeWithStore(eventstorememory.OpenMemory())
}

func TestPackUnpackData(t *testing.T) {
	type counterState struct {
		Count int64
		Name  string
	}

	blob, err := PackData(&counterState{Count: 42, Name: "c1"})
	assert.Equal(t, err, nil)

	var restored counterState
	assert.Equal(t, UnpackData(blob, &restored), nil)
	assert.Equal(t, restored.Count, int64(42))
	assert.Equal(t, restored.Name, "c1")
}
