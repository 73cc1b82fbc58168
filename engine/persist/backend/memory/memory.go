package eventstorememory

import (
	"sync"
	"time"

	"github.com/actorworld/actorworld/engine/persist/persistcommon"
	"github.com/pkg/errors"
)

// MemoryEventStore keeps snapshots and event logs in process memory. It is
// used by tests and embedded setups that need no durability.
type MemoryEventStore struct {
	mu        sync.Mutex
	events    map[string][]*persistcommon.Event
	snapshots map[string][]*persistcommon.Snapshot
	heads     map[string]int64
}

// OpenMemory creates an empty in-memory event store
func OpenMemory() *MemoryEventStore {
	return &MemoryEventStore{
		events:    map[string][]*persistcommon.Event{},
		snapshots: map[string][]*persistcommon.Snapshot{},
		heads:     map[string]int64{},
	}
}

func (es *MemoryEventStore) SaveSnapshot(path string, state []byte, seqNr int64) error {
	es.mu.Lock()
	defer es.mu.Unlock()

	stateCopy := make([]byte, len(state))
	copy(stateCopy, state)
	es.snapshots[path] = append(es.snapshots[path], &persistcommon.Snapshot{
		ActorPath:  path,
		State:      stateCopy,
		SequenceNr: seqNr,
		Timestamp:  time.Now(),
	})
	return nil
}

func (es *MemoryEventStore) LoadSnapshot(path string) (*persistcommon.Snapshot, error) {
	es.mu.Lock()
	defer es.mu.Unlock()

	snaps := es.snapshots[path]
	if len(snaps) == 0 {
		return nil, nil
	}
	latest := snaps[0]
	for _, snap := range snaps[1:] {
		if snap.SequenceNr >= latest.SequenceNr {
			latest = snap
		}
	}
	return latest, nil
}

func (es *MemoryEventStore) DeleteSnapshots(path string, criteria persistcommon.SnapshotCriteria) error {
	es.mu.Lock()
	defer es.mu.Unlock()

	snaps := es.snapshots[path]
	keep := criteria.KeepLatest
	if keep >= len(snaps) {
		return nil
	}

	kept := make([]*persistcommon.Snapshot, 0, len(snaps))
	// newest snapshots are at the tail
	cut := len(snaps) - keep
	for i, snap := range snaps {
		if i >= cut {
			kept = append(kept, snap)
			continue
		}
		if criteria.MaxSequenceNr > 0 && snap.SequenceNr > criteria.MaxSequenceNr {
			kept = append(kept, snap)
		}
	}
	es.snapshots[path] = kept
	return nil
}

func (es *MemoryEventStore) PersistEvents(path string, events [][]byte, expectedSeqNr int64) (int64, error) {
	es.mu.Lock()
	defer es.mu.Unlock()

	head := es.highestLocked(path)
	if head != expectedSeqNr {
		return head, errors.Wrapf(persistcommon.ErrSequenceConflict, "%s: expected head %d but store head is %d", path, expectedSeqNr, head)
	}

	now := time.Now()
	es.heads[path] = head + int64(len(events))
	for i, data := range events {
		dataCopy := make([]byte, len(data))
		copy(dataCopy, data)
		es.events[path] = append(es.events[path], &persistcommon.Event{
			ActorPath:  path,
			Data:       dataCopy,
			SequenceNr: head + int64(i) + 1,
			Timestamp:  now,
		})
	}
	return head + int64(len(events)), nil
}

func (es *MemoryEventStore) LoadEvents(path string, fromSeq int64, toSeq int64, maxCount int) ([]*persistcommon.Event, error) {
	es.mu.Lock()
	defer es.mu.Unlock()

	var res []*persistcommon.Event
	for _, ev := range es.events[path] {
		if ev.SequenceNr < fromSeq {
			continue
		}
		if toSeq > 0 && ev.SequenceNr > toSeq {
			break
		}
		res = append(res, ev)
		if maxCount > 0 && len(res) >= maxCount {
			break
		}
	}
	return res, nil
}

func (es *MemoryEventStore) DeleteEvents(path string, upToSeqNr int64) error {
	es.mu.Lock()
	defer es.mu.Unlock()

	evs := es.events[path]
	kept := evs[:0]
	for _, ev := range evs {
		if ev.SequenceNr > upToSeqNr {
			kept = append(kept, ev)
		}
	}
	es.events[path] = kept
	return nil
}

func (es *MemoryEventStore) HighestSequenceNr(path string) (int64, error) {
	es.mu.Lock()
	defer es.mu.Unlock()
	return es.highestLocked(path), nil
}

// highestLocked must be called with es.mu held. Deleting old events never
// lowers the head.
func (es *MemoryEventStore) highestLocked(path string) int64 {
	return es.heads[path]
}

func (es *MemoryEventStore) Close() {
	// need to do nothing
}

func (es *MemoryEventStore) IsEOF(err error) bool {
	return false
}
