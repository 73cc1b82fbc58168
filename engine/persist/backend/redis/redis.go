package eventstoreredis

import (
	"io"
	"time"

	"github.com/actorworld/actorworld/engine/persist/persistcommon"
	"github.com/garyburd/redigo/redis"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack"
)

const (
	eventsKeyPrefix   = "_EV_"
	seqKeyPrefix      = "_SEQ_"
	snapshotKeyPrefix = "_SS_"
)

// RedisEventStore stores snapshots and event logs in a single Redis node.
// Only the latest snapshot per path is kept. The store serializes writers on
// one connection; cross-process appends are still guarded by the head check.
type RedisEventStore struct {
	c redis.Conn
}

type eventRecord struct {
	Seq  int64
	Ts   int64
	Data []byte
}

type snapshotRecord struct {
	Seq   int64
	Ts    int64
	State []byte
}

// OpenRedis opens a redis node as event store
func OpenRedis(host string, dbindex int) (*RedisEventStore, error) {
	c, err := redis.Dial("tcp", host)
	if err != nil {
		return nil, errors.Wrap(err, "redis dail failed")
	}

	if dbindex >= 0 {
		if _, err := c.Do("SELECT", dbindex); err != nil {
			c.Close()
			return nil, errors.Wrap(err, "redis select db failed")
		}
	}
	return &RedisEventStore{c: c}, nil
}

func eventsKey(path string) string {
	return eventsKeyPrefix + path
}

func seqKey(path string) string {
	return seqKeyPrefix + path
}

func snapshotKey(path string) string {
	return snapshotKeyPrefix + path
}

func (es *RedisEventStore) SaveSnapshot(path string, state []byte, seqNr int64) error {
	blob, err := msgpack.Marshal(&snapshotRecord{
		Seq:   seqNr,
		Ts:    time.Now().UnixNano(),
		State: state,
	})
	if err != nil {
		return err
	}
	_, err = es.c.Do("SET", snapshotKey(path), blob)
	return err
}

func (es *RedisEventStore) LoadSnapshot(path string) (*persistcommon.Snapshot, error) {
	blob, err := redis.Bytes(es.c.Do("GET", snapshotKey(path)))
	if err == redis.ErrNil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec snapshotRecord
	if err := msgpack.Unmarshal(blob, &rec); err != nil {
		return nil, err
	}
	return &persistcommon.Snapshot{
		ActorPath:  path,
		State:      rec.State,
		SequenceNr: rec.Seq,
		Timestamp:  time.Unix(0, rec.Ts),
	}, nil
}

func (es *RedisEventStore) DeleteSnapshots(path string, criteria persistcommon.SnapshotCriteria) error {
	if criteria.KeepLatest > 0 {
		// only the latest snapshot is stored
		return nil
	}
	_, err := es.c.Do("DEL", snapshotKey(path))
	return err
}

func (es *RedisEventStore) PersistEvents(path string, events [][]byte, expectedSeqNr int64) (int64, error) {
	head, err := es.HighestSequenceNr(path)
	if err != nil {
		return 0, err
	}
	if head != expectedSeqNr {
		return head, errors.Wrapf(persistcommon.ErrSequenceConflict, "%s: expected head %d but store head is %d", path, expectedSeqNr, head)
	}

	if err := es.c.Send("MULTI"); err != nil {
		return head, err
	}
	now := time.Now().UnixNano()
	for i, data := range events {
		blob, err := msgpack.Marshal(&eventRecord{
			Seq:  head + int64(i) + 1,
			Ts:   now,
			Data: data,
		})
		if err != nil {
			es.c.Do("DISCARD")
			return head, err
		}
		if err := es.c.Send("RPUSH", eventsKey(path), blob); err != nil {
			return head, err
		}
	}
	newHead := head + int64(len(events))
	if err := es.c.Send("SET", seqKey(path), newHead); err != nil {
		return head, err
	}
	if _, err := es.c.Do("EXEC"); err != nil {
		return head, err
	}
	return newHead, nil
}

func (es *RedisEventStore) LoadEvents(path string, fromSeq int64, toSeq int64, maxCount int) ([]*persistcommon.Event, error) {
	blobs, err := redis.ByteSlices(es.c.Do("LRANGE", eventsKey(path), 0, -1))
	if err == redis.ErrNil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var res []*persistcommon.Event
	for _, blob := range blobs {
		var rec eventRecord
		if err := msgpack.Unmarshal(blob, &rec); err != nil {
			return nil, err
		}
		if rec.Seq < fromSeq {
			continue
		}
		if toSeq > 0 && rec.Seq > toSeq {
			break
		}
		res = append(res, &persistcommon.Event{
			ActorPath:  path,
			Data:       rec.Data,
			SequenceNr: rec.Seq,
			Timestamp:  time.Unix(0, rec.Ts),
		})
		if maxCount > 0 && len(res) >= maxCount {
			break
		}
	}
	return res, nil
}

func (es *RedisEventStore) DeleteEvents(path string, upToSeqNr int64) error {
	// pop from the left while the oldest event is at or below the bound
	for {
		blob, err := redis.Bytes(es.c.Do("LINDEX", eventsKey(path), 0))
		if err == redis.ErrNil {
			return nil
		}
		if err != nil {
			return err
		}

		var rec eventRecord
		if err := msgpack.Unmarshal(blob, &rec); err != nil {
			return err
		}
		if rec.Seq > upToSeqNr {
			return nil
		}
		if _, err := es.c.Do("LPOP", eventsKey(path)); err != nil {
			return err
		}
	}
}

func (es *RedisEventStore) HighestSequenceNr(path string) (int64, error) {
	head, err := redis.Int64(es.c.Do("GET", seqKey(path)))
	if err == redis.ErrNil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return head, nil
}

func (es *RedisEventStore) Close() {
	es.c.Close()
}

func (es *RedisEventStore) IsEOF(err error) bool {
	return err == io.EOF || errors.Cause(err) == io.EOF
}
