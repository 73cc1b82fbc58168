package eventstorememory

import (
	"sync"
	"testing"

	"github.com/actorworld/actorworld/engine/persist/persistcommon"
	"github.com/bmizerany/assert"
)

func TestPersistAndLoadEvents(t *testing.T) {
	es := OpenMemory()
	defer es.Close()

	head, err := es.PersistEvents("/user/a", [][]byte{[]byte("e1"), []byte("e2"), []byte("e3")}, 0)
	assert.Equal(t, err, nil)
	assert.Equal(t, head, int64(3))

	evs, err := es.LoadEvents("/user/a", 1, 0, 0)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(evs), 3)
	for i, ev := range evs {
		assert.Equal(t, ev.SequenceNr, int64(i+1))
	}

	evs, _ = es.LoadEvents("/user/a", 2, 2, 0)
	assert.Equal(t, len(evs), 1)
	assert.Equal(t, string(evs[0].Data), "e2")

	evs, _ = es.LoadEvents("/user/a", 1, 0, 2)
	assert.Equal(t, len(evs), 2)
}

func TestSequenceConflict(t *testing.T) {
	es := OpenMemory()
	defer es.Close()

	_, err := es.PersistEvents("/user/a", [][]byte{[]byte("e1")}, 0)
	assert.Equal(t, err, nil)

	_, err = es.PersistEvents("/user/a", [][]byte{[]byte("dup")}, 0)
	assert.T(t, persistcommon.IsSequenceConflict(err))

	head, _ := es.HighestSequenceNr("/user/a")
	assert.Equal(t, head, int64(1))
}

func TestConcurrentAppendOneWins(t *testing.T) {
	es := OpenMemory()
	defer es.Close()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			_, errs[i] = es.PersistEvents("/user/racy", [][]byte{[]byte("e")}, 0)
			wg.Done()
		}(i)
	}
	wg.Wait()

	conflicts := 0
	for _, err := range errs {
		if persistcommon.IsSequenceConflict(err) {
			conflicts++
		} else {
			assert.Equal(t, err, nil)
		}
	}
	assert.Equal(t, conflicts, 1)

	head, _ := es.HighestSequenceNr("/user/racy")
	assert.Equal(t, head, int64(1))
}

func TestDeleteEventsKeepsHead(t *testing.T) {
	es := OpenMemory()
	defer es.Close()

	es.PersistEvents("/user/a", [][]byte{[]byte("e1"), []byte("e2"), []byte("e3")}, 0)
	assert.Equal(t, es.DeleteEvents("/user/a", 2), nil)

	evs, _ := es.LoadEvents("/user/a", 1, 0, 0)
	assert.Equal(t, len(evs), 1)
	assert.Equal(t, evs[0].SequenceNr, int64(3))

	// head survives deletion, appends continue from 3
	head, _ := es.HighestSequenceNr("/user/a")
	assert.Equal(t, head, int64(3))
	_, err := es.PersistEvents("/user/a", [][]byte{[]byte("e4")}, 3)
	assert.Equal(t, err, nil)
}

func TestSnapshots(t *testing.T) {
	es := OpenMemory()
	defer es.Close()

	snap, err := es.LoadSnapshot("/user/a")
	assert.Equal(t, err, nil)
	assert.T(t, snap == nil)

	es.SaveSnapshot("/user/a", []byte("s1"), 5)
	es.SaveSnapshot("/user/a", []byte("s2"), 9)

	snap, _ = es.LoadSnapshot("/user/a")
	assert.Equal(t, snap.SequenceNr, int64(9))
	assert.Equal(t, string(snap.State), "s2")

	assert.Equal(t, es.DeleteSnapshots("/user/a", persistcommon.SnapshotCriteria{KeepLatest: 1}), nil)
	snap, _ = es.LoadSnapshot("/user/a")
	assert.Equal(t, snap.SequenceNr, int64(9))
}
