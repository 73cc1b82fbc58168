package eventstoremongodb

import (
	"io"
	"time"

	"gopkg.in/mgo.v2"
	"gopkg.in/mgo.v2/bson"

	"github.com/actorworld/actorworld/engine/awlog"
	"github.com/actorworld/actorworld/engine/persist/persistcommon"
	"github.com/pkg/errors"
)

const (
	_DEFAULT_DB_NAME      = "actorworld"
	_EVENTS_COLLECTION    = "actor_events"
	_SNAPSHOTS_COLLECTION = "actor_snapshots"
)

// MongoDBEventStore stores snapshots and event logs in MongoDB. A unique
// (path, seq) index makes optimistic appends race-safe: a concurrent writer
// hits a duplicate-key error which surfaces as a sequence conflict.
type MongoDBEventStore struct {
	session *mgo.Session
	db      *mgo.Database
}

type eventDoc struct {
	Path      string    `bson:"path"`
	Seq       int64     `bson:"seq"`
	Data      []byte    `bson:"data"`
	Timestamp time.Time `bson:"ts"`
}

type snapshotDoc struct {
	Path      string    `bson:"path"`
	Seq       int64     `bson:"seq"`
	State     []byte    `bson:"state"`
	Timestamp time.Time `bson:"ts"`
}

// OpenMongoDB opens mongodb as event store
func OpenMongoDB(url string, dbname string) (*MongoDBEventStore, error) {
	awlog.Debugf("Connecting MongoDB ...")
	session, err := mgo.Dial(url)
	if err != nil {
		return nil, err
	}

	session.SetMode(mgo.Monotonic, true)
	if dbname == "" {
		// if db is not specified, use default
		dbname = _DEFAULT_DB_NAME
	}

	es := &MongoDBEventStore{
		session: session,
		db:      session.DB(dbname),
	}
	if err := es.ensureIndexes(); err != nil {
		session.Close()
		return nil, err
	}
	return es, nil
}

func (es *MongoDBEventStore) ensureIndexes() error {
	err := es.db.C(_EVENTS_COLLECTION).EnsureIndex(mgo.Index{
		Key:    []string{"path", "seq"},
		Unique: true,
	})
	if err != nil {
		return err
	}
	return es.db.C(_SNAPSHOTS_COLLECTION).EnsureIndex(mgo.Index{
		Key: []string{"path", "-seq"},
	})
}

func (es *MongoDBEventStore) SaveSnapshot(path string, state []byte, seqNr int64) error {
	return es.db.C(_SNAPSHOTS_COLLECTION).Insert(&snapshotDoc{
		Path:      path,
		Seq:       seqNr,
		State:     state,
		Timestamp: time.Now(),
	})
}

func (es *MongoDBEventStore) LoadSnapshot(path string) (*persistcommon.Snapshot, error) {
	var doc snapshotDoc
	err := es.db.C(_SNAPSHOTS_COLLECTION).Find(bson.M{"path": path}).Sort("-seq").One(&doc)
	if err == mgo.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &persistcommon.Snapshot{
		ActorPath:  path,
		State:      doc.State,
		SequenceNr: doc.Seq,
		Timestamp:  doc.Timestamp,
	}, nil
}

func (es *MongoDBEventStore) DeleteSnapshots(path string, criteria persistcommon.SnapshotCriteria) error {
	col := es.db.C(_SNAPSHOTS_COLLECTION)

	if criteria.KeepLatest > 0 {
		var keep []snapshotDoc
		err := col.Find(bson.M{"path": path}).Sort("-seq").Limit(criteria.KeepLatest).All(&keep)
		if err != nil {
			return err
		}
		if len(keep) < criteria.KeepLatest {
			return nil // nothing beyond the kept set
		}
		bound := keep[len(keep)-1].Seq
		query := bson.M{"path": path, "seq": bson.M{"$lt": bound}}
		if criteria.MaxSequenceNr > 0 {
			query["seq"] = bson.M{"$lt": bound, "$lte": criteria.MaxSequenceNr}
		}
		_, err = col.RemoveAll(query)
		return err
	}

	query := bson.M{"path": path}
	if criteria.MaxSequenceNr > 0 {
		query["seq"] = bson.M{"$lte": criteria.MaxSequenceNr}
	}
	_, err := col.RemoveAll(query)
	return err
}

func (es *MongoDBEventStore) PersistEvents(path string, events [][]byte, expectedSeqNr int64) (int64, error) {
	head, err := es.HighestSequenceNr(path)
	if err != nil {
		return 0, err
	}
	if head != expectedSeqNr {
		return head, errors.Wrapf(persistcommon.ErrSequenceConflict, "%s: expected head %d but store head is %d", path, expectedSeqNr, head)
	}

	col := es.db.C(_EVENTS_COLLECTION)
	now := time.Now()
	for i, data := range events {
		err := col.Insert(&eventDoc{
			Path:      path,
			Seq:       head + int64(i) + 1,
			Data:      data,
			Timestamp: now,
		})
		if mgo.IsDup(err) {
			// a concurrent writer won the head
			return head + int64(i), errors.Wrapf(persistcommon.ErrSequenceConflict, "%s: concurrent append at seq %d", path, head+int64(i)+1)
		}
		if err != nil {
			return head + int64(i), err
		}
	}
	return head + int64(len(events)), nil
}

func (es *MongoDBEventStore) LoadEvents(path string, fromSeq int64, toSeq int64, maxCount int) ([]*persistcommon.Event, error) {
	seqRange := bson.M{"$gte": fromSeq}
	if toSeq > 0 {
		seqRange["$lte"] = toSeq
	}
	query := es.db.C(_EVENTS_COLLECTION).Find(bson.M{"path": path, "seq": seqRange}).Sort("seq")
	if maxCount > 0 {
		query = query.Limit(maxCount)
	}

	var docs []eventDoc
	if err := query.All(&docs); err != nil {
		return nil, err
	}

	res := make([]*persistcommon.Event, len(docs))
	for i, doc := range docs {
		res[i] = &persistcommon.Event{
			ActorPath:  path,
			Data:       doc.Data,
			SequenceNr: doc.Seq,
			Timestamp:  doc.Timestamp,
		}
	}
	return res, nil
}

func (es *MongoDBEventStore) DeleteEvents(path string, upToSeqNr int64) error {
	head, err := es.HighestSequenceNr(path)
	if err != nil {
		return err
	}
	// never remove the journal head: it anchors the next optimistic append
	bound := upToSeqNr
	if bound >= head {
		bound = head - 1
	}
	_, err = es.db.C(_EVENTS_COLLECTION).RemoveAll(bson.M{"path": path, "seq": bson.M{"$lte": bound}})
	return err
}

func (es *MongoDBEventStore) HighestSequenceNr(path string) (int64, error) {
	var doc eventDoc
	err := es.db.C(_EVENTS_COLLECTION).Find(bson.M{"path": path}).Sort("-seq").One(&doc)
	if err == mgo.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return doc.Seq, nil
}

func (es *MongoDBEventStore) Close() {
	es.session.Close()
}

func (es *MongoDBEventStore) IsEOF(err error) bool {
	return err == io.EOF || errors.Cause(err) == io.EOF
}
