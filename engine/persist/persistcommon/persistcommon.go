package persistcommon

import (
	"time"

	"github.com/pkg/errors"
)

// ErrSequenceConflict signals an optimistic-append rejection: the expected
// sequence number did not match the store's current head. It is distinct
// from transient I/O failure and must be handled by the writer's own
// retry/reconciliation logic.
var ErrSequenceConflict = errors.New("persist: sequence number conflict")

// IsSequenceConflict checks if err is (or wraps) a sequence conflict
func IsSequenceConflict(err error) bool {
	return errors.Cause(err) == ErrSequenceConflict
}

// Snapshot is a point-in-time serialized copy of an actor's state.
// SequenceNr is monotonically non-decreasing per path across snapshots.
type Snapshot struct {
	ActorPath  string
	State      []byte
	SequenceNr int64
	Timestamp  time.Time
}

// Event is one append-only persisted event. Sequence numbers are strictly
// increasing per path starting at 1, with no gaps under normal operation.
type Event struct {
	ActorPath  string
	Data       []byte
	SequenceNr int64
	Timestamp  time.Time
}

// SnapshotCriteria selects snapshots for deletion
type SnapshotCriteria struct {
	// KeepLatest keeps the newest N snapshots; 0 keeps none
	KeepLatest int
	// MaxSequenceNr additionally restricts deletion to snapshots at or below
	// this sequence number; 0 means no bound
	MaxSequenceNr int64
}

// EventStore is the pluggable backing store for snapshots and event logs.
// Implementations live outside the actor core (database/file layers).
type EventStore interface {
	// SaveSnapshot stores a snapshot for the path
	SaveSnapshot(path string, state []byte, seqNr int64) error
	// LoadSnapshot returns the latest snapshot for the path, nil when none
	LoadSnapshot(path string) (*Snapshot, error)
	// DeleteSnapshots removes snapshots matching the criteria
	DeleteSnapshots(path string, criteria SnapshotCriteria) error
	// PersistEvents appends events optimistically: the store rejects with
	// ErrSequenceConflict (never renumbers) if expectedSeqNr does not match
	// its current head. Returns the new highest sequence number.
	PersistEvents(path string, events [][]byte, expectedSeqNr int64) (int64, error)
	// LoadEvents returns events with fromSeq <= seq <= toSeq in ascending
	// sequence order, at most maxCount of them; toSeq 0 means no upper bound
	LoadEvents(path string, fromSeq int64, toSeq int64, maxCount int) ([]*Event, error)
	// DeleteEvents removes events with seq <= upToSeqNr; best-effort, must
	// never remove events above the bound
	DeleteEvents(path string, upToSeqNr int64) error
	// HighestSequenceNr returns the highest persisted sequence number for
	// the path, 0 when no events were ever persisted
	HighestSequenceNr(path string) (int64, error)
	// Close releases the store
	Close()
	// IsEOF checks if err means the store connection is gone and should be
	// reopened
	IsEOF(err error) bool
}
