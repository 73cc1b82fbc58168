package eventstorefilesystem

import (
	"testing"

	"github.com/actorworld/actorworld/engine/persist/persistcommon"
	"github.com/bmizerany/assert"
)

func openTestStore(t *testing.T) *FileSystemEventStore {
	es, err := OpenDirectory(t.TempDir())
	if err != nil {
		t.Fatalf("open directory failed: %s", err)
	}
	return es
}

func TestJournalRoundTrip(t *testing.T) {
	es := openTestStore(t)
	defer es.Close()

	head, err := es.PersistEvents("/user/a", [][]byte{[]byte("e1"), []byte("e2")}, 0)
	assert.Equal(t, err, nil)
	assert.Equal(t, head, int64(2))

	head, err = es.PersistEvents("/user/a", [][]byte{[]byte("e3")}, 2)
	assert.Equal(t, err, nil)
	assert.Equal(t, head, int64(3))

	evs, err := es.LoadEvents("/user/a", 1, 0, 0)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(evs), 3)
	for i, ev := range evs {
		assert.Equal(t, ev.SequenceNr, int64(i+1))
	}
	assert.Equal(t, string(evs[2].Data), "e3")

	evs, _ = es.LoadEvents("/user/a", 2, 3, 1)
	assert.Equal(t, len(evs), 1)
	assert.Equal(t, evs[0].SequenceNr, int64(2))
}

func TestJournalConflict(t *testing.T) {
	es := openTestStore(t)
	defer es.Close()

	_, err := es.PersistEvents("/user/a", [][]byte{[]byte("e1")}, 0)
	assert.Equal(t, err, nil)
	_, err = es.PersistEvents("/user/a", [][]byte{[]byte("e1-again")}, 0)
	assert.T(t, persistcommon.IsSequenceConflict(err))
}

func TestSnapshotRoundTrip(t *testing.T) {
	es := openTestStore(t)
	defer es.Close()

	snap, err := es.LoadSnapshot("/user/a")
	assert.Equal(t, err, nil)
	assert.T(t, snap == nil)

	assert.Equal(t, es.SaveSnapshot("/user/a", []byte("state-5"), 5), nil)
	assert.Equal(t, es.SaveSnapshot("/user/a", []byte("state-8"), 8), nil)

	snap, err = es.LoadSnapshot("/user/a")
	assert.Equal(t, err, nil)
	assert.Equal(t, snap.SequenceNr, int64(8))
	assert.Equal(t, string(snap.State), "state-8")

	assert.Equal(t, es.DeleteSnapshots("/user/a", persistcommon.SnapshotCriteria{}), nil)
	snap, _ = es.LoadSnapshot("/user/a")
	assert.T(t, snap == nil)
}

func TestDeleteEventsPreservesHead(t *testing.T) {
	es := openTestStore(t)
	defer es.Close()

	es.PersistEvents("/user/a", [][]byte{[]byte("e1"), []byte("e2"), []byte("e3")}, 0)
	assert.Equal(t, es.DeleteEvents("/user/a", 3), nil)

	evs, _ := es.LoadEvents("/user/a", 1, 0, 0)
	assert.Equal(t, len(evs), 0)

	head, err := es.HighestSequenceNr("/user/a")
	assert.Equal(t, err, nil)
	assert.Equal(t, head, int64(3))

	_, err = es.PersistEvents("/user/a", [][]byte{[]byte("e4")}, 3)
	assert.Equal(t, err, nil)
	evs, _ = es.LoadEvents("/user/a", 1, 0, 0)
	assert.Equal(t, len(evs), 1)
	assert.Equal(t, evs[0].SequenceNr, int64(4))
}

func TestSeparatePaths(t *testing.T) {
	es := openTestStore(t)
	defer es.Close()

	es.PersistEvents("/user/a", [][]byte{[]byte("a1")}, 0)
	es.PersistEvents("/user/b", [][]byte{[]byte("b1"), []byte("b2")}, 0)

	headA, _ := es.HighestSequenceNr("/user/a")
	headB, _ := es.HighestSequenceNr("/user/b")
	assert.Equal(t, headA, int64(1))
	assert.Equal(t, headB, int64(2))
}
