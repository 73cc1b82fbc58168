package persist

import (
	"time"

	"github.com/xiaonanln/go-xnsyncutil/xnsyncutil"
	"golang.org/x/net/context"

	"github.com/actorworld/actorworld/engine/awlog"
	"github.com/actorworld/actorworld/engine/config"
	"github.com/actorworld/actorworld/engine/consts"
	"github.com/actorworld/actorworld/engine/persist/backend/filesystem"
	"github.com/actorworld/actorworld/engine/persist/backend/memory"
	"github.com/actorworld/actorworld/engine/persist/backend/mongodb"
	"github.com/actorworld/actorworld/engine/persist/backend/redis"
	"github.com/actorworld/actorworld/engine/persist/persistcommon"
	"github.com/actorworld/actorworld/engine/post"
)

var (
	eventStore               persistcommon.EventStore
	operationQueue           = xnsyncutil.NewSyncQueue()
	persistRoutineTerminated = xnsyncutil.NewOneTimeCond()
	initialized              xnsyncutil.AtomicBool

	persistRunning, cancelPersistRunning = context.WithCancel(context.Background())
)

type saveSnapshotRequest struct {
	Path     string
	State    []byte
	SeqNr    int64
	Callback SaveSnapshotCallbackFunc
}

type loadSnapshotRequest struct {
	Path     string
	Callback LoadSnapshotCallbackFunc
}

type deleteSnapshotsRequest struct {
	Path     string
	Criteria persistcommon.SnapshotCriteria
	Callback DeleteCallbackFunc
}

type persistEventsRequest struct {
	Path          string
	Events        [][]byte
	ExpectedSeqNr int64
	Callback      PersistEventsCallbackFunc
}

type loadEventsRequest struct {
	Path     string
	FromSeq  int64
	ToSeq    int64
	MaxCount int
	Callback LoadEventsCallbackFunc
}

type deleteEventsRequest struct {
	Path      string
	UpToSeqNr int64
	Callback  DeleteCallbackFunc
}

type highestSeqNrRequest struct {
	Path     string
	Callback HighestSeqNrCallbackFunc
}

// SaveSnapshotCallbackFunc is the callback type of SaveSnapshot
type SaveSnapshotCallbackFunc func(err error)

// LoadSnapshotCallbackFunc is the callback type of LoadSnapshot
type LoadSnapshotCallbackFunc func(snapshot *persistcommon.Snapshot, err error)

// PersistEventsCallbackFunc is the callback type of PersistEvents. newSeqNr is
// the store head after the append; on a sequence conflict err wraps
// persistcommon.ErrSequenceConflict and newSeqNr is the winning head.
type PersistEventsCallbackFunc func(newSeqNr int64, err error)

// LoadEventsCallbackFunc is the callback type of LoadEvents
type LoadEventsCallbackFunc func(events []*persistcommon.Event, err error)

// DeleteCallbackFunc is the callback type of DeleteSnapshots and DeleteEvents
type DeleteCallbackFunc func(err error)

// HighestSeqNrCallbackFunc is the callback type of HighestSequenceNr
type HighestSeqNrCallbackFunc func(seqNr int64, err error)

// SaveSnapshot saves an actor snapshot to the event store
func SaveSnapshot(path string, state []byte, seqNr int64, callback SaveSnapshotCallbackFunc) {
	operationQueue.Push(saveSnapshotRequest{
		Path:     path,
		State:    state,
		SeqNr:    seqNr,
		Callback: callback,
	})
	checkOperationQueueLen()
}

// LoadSnapshot loads the latest snapshot of the actor path, nil when none
func LoadSnapshot(path string, callback LoadSnapshotCallbackFunc) {
	operationQueue.Push(loadSnapshotRequest{
		Path:     path,
		Callback: callback,
	})
	checkOperationQueueLen()
}

// DeleteSnapshots deletes snapshots of the actor path matching the criteria
func DeleteSnapshots(path string, criteria persistcommon.SnapshotCriteria, callback DeleteCallbackFunc) {
	operationQueue.Push(deleteSnapshotsRequest{
		Path:     path,
		Criteria: criteria,
		Callback: callback,
	})
	checkOperationQueueLen()
}

// PersistEvents appends events to the actor's event log. The append is
// optimistic: it fails with a sequence conflict when expectedSeqNr does not
// match the store head, and events are never renumbered.
func PersistEvents(path string, events [][]byte, expectedSeqNr int64, callback PersistEventsCallbackFunc) {
	operationQueue.Push(persistEventsRequest{
		Path:          path,
		Events:        events,
		ExpectedSeqNr: expectedSeqNr,
		Callback:      callback,
	})
	checkOperationQueueLen()
}

// LoadEvents loads events of the actor path in ascending sequence order
func LoadEvents(path string, fromSeq int64, toSeq int64, maxCount int, callback LoadEventsCallbackFunc) {
	operationQueue.Push(loadEventsRequest{
		Path:     path,
		FromSeq:  fromSeq,
		ToSeq:    toSeq,
		MaxCount: maxCount,
		Callback: callback,
	})
	checkOperationQueueLen()
}

// DeleteEvents deletes events of the actor path up to upToSeqNr
func DeleteEvents(path string, upToSeqNr int64, callback DeleteCallbackFunc) {
	operationQueue.Push(deleteEventsRequest{
		Path:      path,
		UpToSeqNr: upToSeqNr,
		Callback:  callback,
	})
	checkOperationQueueLen()
}

// HighestSequenceNr queries the highest persisted sequence number of the path
func HighestSequenceNr(path string, callback HighestSeqNrCallbackFunc) {
	operationQueue.Push(highestSeqNrRequest{
		Path:     path,
		Callback: callback,
	})
	checkOperationQueueLen()
}

var recentWarnedQueueLen = 0

func checkOperationQueueLen() {
	qlen := operationQueue.Len()
	if qlen > consts.PERSIST_QUEUE_WARN_LEN && qlen%consts.PERSIST_QUEUE_WARN_LEN == 0 && recentWarnedQueueLen != qlen {
		awlog.Warnf("Persist operation queue length = %d", qlen)
		recentWarnedQueueLen = qlen
	}
}

// Shutdown persist module, waiting until queued operations are drained
func Shutdown() {
	if !initialized.Load() {
		return
	}
	cancelPersistRunning()
	operationQueue.Close()
	persistRoutineTerminated.Wait()
	eventStore = nil
	initialized.Store(false)
}

// IsInitialized checks if the persist module is running
func IsInitialized() bool {
	return initialized.Load()
}

// Initialize is called by the actor system to initialize the persist module.
// No-op if the module is already running; after a Shutdown the module starts
// over with a fresh operation queue and routine.
func Initialize() {
	if initialized.Load() {
		return
	}
	err := assureEventStoreReady()
	if err != nil {
		awlog.Fatalf("Event store is not ready: %s", err)
	}
	startPersistRoutine()
}

// InitializeWithStore initializes the persist module over an opened event
// store, bypassing the configured backend
func InitializeWithStore(es persistcommon.EventStore) {
	eventStore = es
	startPersistRoutine()
}

func startPersistRoutine() {
	operationQueue = xnsyncutil.NewSyncQueue()
	persistRoutineTerminated = xnsyncutil.NewOneTimeCond()
	persistRunning, cancelPersistRunning = context.WithCancel(context.Background())
	initialized.Store(true)
	go persistRoutine()
}

func assureEventStoreReady() (err error) {
	if eventStore != nil {
		return
	}

	cfg := config.GetPersistence()
	if cfg.Type == "memory" {
		eventStore = eventstorememory.OpenMemory()
	} else if cfg.Type == "filesystem" {
		eventStore, err = eventstorefilesystem.OpenDirectory(cfg.Directory)
	} else if cfg.Type == "mongodb" {
		eventStore, err = eventstoremongodb.OpenMongoDB(cfg.Url, cfg.DB)
	} else if cfg.Type == "redis" {
		eventStore, err = eventstoreredis.OpenRedis(cfg.Url, 0)
	} else {
		awlog.Panicf("unknown persistence type: %s", cfg.Type)
	}

	return
}

// waitRetry sleeps before retrying a failed store operation. Returns false
// when the module is shutting down and the operation should be abandoned.
func waitRetry() bool {
	select {
	case <-persistRunning.Done():
		return false
	case <-time.After(consts.PERSIST_RETRY_INTERVAL):
		return true
	}
}

func closeBrokenStore(err error) {
	if err != nil && eventStore != nil && eventStore.IsEOF(err) {
		eventStore.Close()
		eventStore = nil
	}
}

func persistRoutine() {
	defer func() {
		err := recover()
		if err != nil {
			awlog.TraceError("persist routine paniced: %s, restarting ...", err)
			go persistRoutine() // restart the persist routine
		} else {
			// normal quit
			if eventStore != nil {
				eventStore.Close()
			}
			persistRoutineTerminated.Signal()
		}
	}()

	for {
		err := assureEventStoreReady()
		if err != nil {
			awlog.Errorf("Event store is not ready: %s", err)
			if !waitRetry() {
				break
			}
			continue
		}

		op := operationQueue.Pop()
		if op == nil { // persist module closed
			break
		}

		if saveReq, ok := op.(saveSnapshotRequest); ok {
			handleSaveSnapshot(saveReq)
		} else if loadReq, ok := op.(loadSnapshotRequest); ok {
			if consts.DEBUG_SAVE_LOAD {
				awlog.Debugf("persist: LOADING snapshot of %s ...", loadReq.Path)
			}
			snapshot, err := eventStore.LoadSnapshot(loadReq.Path)
			if err != nil {
				awlog.TraceError("persist: load snapshot of %s failed: %s", loadReq.Path, err)
			}
			postCallback2(loadReq.Callback, snapshot, err)
			closeBrokenStore(err)
		} else if delSnapReq, ok := op.(deleteSnapshotsRequest); ok {
			err := eventStore.DeleteSnapshots(delSnapReq.Path, delSnapReq.Criteria)
			if err != nil {
				awlog.Errorf("persist: delete snapshots of %s failed: %s", delSnapReq.Path, err)
			}
			postCallback1(delSnapReq.Callback, err)
			closeBrokenStore(err)
		} else if persistReq, ok := op.(persistEventsRequest); ok {
			handlePersistEvents(persistReq)
		} else if loadEvReq, ok := op.(loadEventsRequest); ok {
			if consts.DEBUG_SAVE_LOAD {
				awlog.Debugf("persist: LOADING events of %s [%d..%d] ...", loadEvReq.Path, loadEvReq.FromSeq, loadEvReq.ToSeq)
			}
			events, err := eventStore.LoadEvents(loadEvReq.Path, loadEvReq.FromSeq, loadEvReq.ToSeq, loadEvReq.MaxCount)
			if err != nil {
				awlog.TraceError("persist: load events of %s failed: %s", loadEvReq.Path, err)
			}
			if loadEvReq.Callback != nil {
				callback := loadEvReq.Callback
				post.Post(func() {
					callback(events, err)
				})
			}
			closeBrokenStore(err)
		} else if delEvReq, ok := op.(deleteEventsRequest); ok {
			err := eventStore.DeleteEvents(delEvReq.Path, delEvReq.UpToSeqNr)
			if err != nil {
				awlog.Errorf("persist: delete events of %s failed: %s", delEvReq.Path, err)
			}
			postCallback1(delEvReq.Callback, err)
			closeBrokenStore(err)
		} else if highReq, ok := op.(highestSeqNrRequest); ok {
			seqNr, err := eventStore.HighestSequenceNr(highReq.Path)
			if err != nil {
				awlog.Errorf("persist: highest sequence number of %s failed: %s", highReq.Path, err)
			}
			if highReq.Callback != nil {
				callback := highReq.Callback
				post.Post(func() {
					callback(seqNr, err)
				})
			}
			closeBrokenStore(err)
		} else {
			awlog.Panicf("persist: unknown operation: %v", op)
		}
	}
}

// handleSaveSnapshot retries transient failures until the snapshot is saved,
// like entity saving does. A snapshot is only lost when shutdown interrupts
// the retry loop.
func handleSaveSnapshot(saveReq saveSnapshotRequest) {
	for {
		if consts.DEBUG_SAVE_LOAD {
			awlog.Debugf("persist: SAVING snapshot of %s at seq %d ...", saveReq.Path, saveReq.SeqNr)
		}
		err := assureEventStoreReady()
		if err != nil {
			awlog.Errorf("Event store is not ready: %s", err)
			if !waitRetry() {
				postCallback1(saveReq.Callback, err)
				return
			}
			continue
		}

		err = eventStore.SaveSnapshot(saveReq.Path, saveReq.State, saveReq.SeqNr)
		if err != nil {
			awlog.Errorf("persist: save snapshot of %s failed: %s", saveReq.Path, err)
			closeBrokenStore(err)
			if !waitRetry() {
				postCallback1(saveReq.Callback, err)
				return
			}
			continue // always retry if fail
		}

		postCallback1(saveReq.Callback, nil)
		return
	}
}

// handlePersistEvents retries transient failures but NOT sequence conflicts.
// A conflict means another writer owns the head now, so the caller must
// reconcile; retrying would just lose the race again.
func handlePersistEvents(persistReq persistEventsRequest) {
	for {
		if consts.DEBUG_SAVE_LOAD {
			awlog.Debugf("persist: APPENDING %d events of %s after seq %d ...", len(persistReq.Events), persistReq.Path, persistReq.ExpectedSeqNr)
		}
		err := assureEventStoreReady()
		if err != nil {
			awlog.Errorf("Event store is not ready: %s", err)
			if !waitRetry() {
				postPersistCallback(persistReq.Callback, 0, err)
				return
			}
			continue
		}

		newSeqNr, err := eventStore.PersistEvents(persistReq.Path, persistReq.Events, persistReq.ExpectedSeqNr)
		if err != nil && !persistcommon.IsSequenceConflict(err) {
			awlog.Errorf("persist: append events of %s failed: %s", persistReq.Path, err)
			closeBrokenStore(err)
			if !waitRetry() {
				postPersistCallback(persistReq.Callback, newSeqNr, err)
				return
			}
			continue
		}

		postPersistCallback(persistReq.Callback, newSeqNr, err)
		return
	}
}

func postCallback1(callback func(err error), err error) {
	if callback != nil {
		post.Post(func() {
			callback(err)
		})
	}
}

func postCallback2(callback LoadSnapshotCallbackFunc, snapshot *persistcommon.Snapshot, err error) {
	if callback != nil {
		post.Post(func() {
			callback(snapshot, err)
		})
	}
}

func postPersistCallback(callback PersistEventsCallbackFunc, newSeqNr int64, err error) {
	if callback != nil {
		post.Post(func() {
			callback(newSeqNr, err)
		})
	}
}
