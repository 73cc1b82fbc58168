package eventstorefilesystem

import (
	"encoding/base64"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/actorworld/actorworld/engine/awlog"
	"github.com/actorworld/actorworld/engine/consts"
	"github.com/actorworld/actorworld/engine/persist/persistcommon"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack"
)

// FileSystemEventStore keeps one snapshot file and one append-only event
// journal per actor path in a directory. It keeps only the latest snapshot
// (saving overwrites the previous one).
type FileSystemEventStore struct {
	directory string
}

// OpenDirectory opens (and creates if needed) a directory as event store
func OpenDirectory(directory string) (*FileSystemEventStore, error) {
	if err := os.MkdirAll(directory, 0755); err != nil {
		return nil, err
	}

	return &FileSystemEventStore{
		directory: directory,
	}, nil
}

type snapshotRecord struct {
	SequenceNr int64
	Timestamp  int64
	State      []byte
}

type eventRecord struct {
	SequenceNr int64
	Timestamp  int64
	Data       []byte
	// Marker records only preserve the journal head after a full purge and
	// are never surfaced as events
	Marker bool
}

func encodePath(path string) string {
	return base64.URLEncoding.EncodeToString([]byte(path))
}

func (es *FileSystemEventStore) snapshotFilePath(path string) string {
	return filepath.Join(es.directory, encodePath(path)+".snapshot")
}

func (es *FileSystemEventStore) journalFilePath(path string) string {
	return filepath.Join(es.directory, encodePath(path)+".events")
}

func (es *FileSystemEventStore) SaveSnapshot(path string, state []byte, seqNr int64) error {
	if consts.DEBUG_SAVE_LOAD {
		awlog.Debugf("filesystem: saving snapshot of %s at seq %d", path, seqNr)
	}
	blob, err := packRecord(&snapshotRecord{
		SequenceNr: seqNr,
		Timestamp:  time.Now().UnixNano(),
		State:      state,
	})
	if err != nil {
		return err
	}
	return os.WriteFile(es.snapshotFilePath(path), blob, 0644)
}

func (es *FileSystemEventStore) LoadSnapshot(path string) (*persistcommon.Snapshot, error) {
	blob, err := os.ReadFile(es.snapshotFilePath(path))
	if err != nil {
		if os.IsNotExist(err) {
			// no snapshot saved yet
			return nil, nil
		}
		return nil, err
	}

	var rec snapshotRecord
	if err := msgpack.Unmarshal(blob, &rec); err != nil {
		return nil, err
	}
	return &persistcommon.Snapshot{
		ActorPath:  path,
		State:      rec.State,
		SequenceNr: rec.SequenceNr,
		Timestamp:  time.Unix(0, rec.Timestamp),
	}, nil
}

func (es *FileSystemEventStore) DeleteSnapshots(path string, criteria persistcommon.SnapshotCriteria) error {
	if criteria.KeepLatest > 0 {
		// only the latest snapshot is stored
		return nil
	}
	err := os.Remove(es.snapshotFilePath(path))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (es *FileSystemEventStore) PersistEvents(path string, events [][]byte, expectedSeqNr int64) (int64, error) {
	head, err := es.HighestSequenceNr(path)
	if err != nil {
		return 0, err
	}
	if head != expectedSeqNr {
		return head, errors.Wrapf(persistcommon.ErrSequenceConflict, "%s: expected head %d but journal head is %d", path, expectedSeqNr, head)
	}

	f, err := os.OpenFile(es.journalFilePath(path), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return head, err
	}
	defer f.Close()

	encoder := msgpack.NewEncoder(f)
	now := time.Now().UnixNano()
	for i, data := range events {
		err := encoder.Encode(&eventRecord{
			SequenceNr: head + int64(i) + 1,
			Timestamp:  now,
			Data:       data,
		})
		if err != nil {
			return head + int64(i), err
		}
	}
	return head + int64(len(events)), nil
}

func (es *FileSystemEventStore) LoadEvents(path string, fromSeq int64, toSeq int64, maxCount int) ([]*persistcommon.Event, error) {
	var res []*persistcommon.Event
	err := es.scanJournal(path, func(rec *eventRecord) bool {
		if rec.Marker || rec.SequenceNr < fromSeq {
			return true
		}
		if toSeq > 0 && rec.SequenceNr > toSeq {
			return false
		}
		res = append(res, &persistcommon.Event{
			ActorPath:  path,
			Data:       rec.Data,
			SequenceNr: rec.SequenceNr,
			Timestamp:  time.Unix(0, rec.Timestamp),
		})
		return maxCount <= 0 || len(res) < maxCount
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (es *FileSystemEventStore) DeleteEvents(path string, upToSeqNr int64) error {
	var kept []*eventRecord
	err := es.scanJournal(path, func(rec *eventRecord) bool {
		if !rec.Marker && rec.SequenceNr > upToSeqNr {
			kept = append(kept, rec)
		}
		return true
	})
	if err != nil {
		return err
	}

	head, err := es.HighestSequenceNr(path)
	if err != nil {
		return err
	}

	// rewrite the journal keeping a head marker so appends continue from the
	// old head even when everything was purged
	tmpPath := es.journalFilePath(path) + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	encoder := msgpack.NewEncoder(f)
	if len(kept) == 0 && head > 0 {
		kept = append(kept, &eventRecord{SequenceNr: head, Timestamp: time.Now().UnixNano(), Marker: true})
	}
	for _, rec := range kept {
		if err := encoder.Encode(rec); err != nil {
			f.Close()
			return err
		}
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, es.journalFilePath(path))
}

func (es *FileSystemEventStore) HighestSequenceNr(path string) (int64, error) {
	var head int64
	err := es.scanJournal(path, func(rec *eventRecord) bool {
		if rec.SequenceNr > head {
			head = rec.SequenceNr
		}
		return true
	})
	if err != nil {
		return 0, err
	}
	return head, nil
}

// scanJournal decodes the journal records in order, stopping early when visit
// returns false. A missing journal file is an empty journal.
func (es *FileSystemEventStore) scanJournal(path string, visit func(rec *eventRecord) bool) error {
	f, err := os.Open(es.journalFilePath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	decoder := msgpack.NewDecoder(f)
	for {
		var rec eventRecord
		err := decoder.Decode(&rec)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if !visit(&rec) {
			return nil
		}
	}
}

func (es *FileSystemEventStore) Close() {
	// need to do nothing
}

func (es *FileSystemEventStore) IsEOF(err error) bool {
	return false
}

func packRecord(rec interface{}) ([]byte, error) {
	return msgpack.Marshal(rec)
}
