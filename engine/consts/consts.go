package consts

import "time"

// Tunable Options
const (
	// For Dispatcher
	// DISPATCHER_DEFAULT_THROUGHPUT is the max number of envelopes a worker processes
	// for one actor before yielding it back to the ready queue
	DISPATCHER_DEFAULT_THROUGHPUT = 10

	// For Actor System
	// SERVICE_LOOP_TICK_INTERVAL is the tick interval of the system service loop => affects timer resolution
	SERVICE_LOOP_TICK_INTERVAL = time.Millisecond * 10
	// DEADLETTER_KEEP_COUNT is the number of recent dead letters kept for inspection
	DEADLETTER_KEEP_COUNT = 100

	// For Actor Path
	// PATH_CACHE_CAPACITY is the capacity of the parsed path LRU cache
	PATH_CACHE_CAPACITY = 1024
	// PATTERN_CACHE_CAPACITY is the capacity of the compiled pattern LRU cache
	PATTERN_CACHE_CAPACITY = 256

	// For Name Generator
	// NAMEGEN_DEFAULT_MAX_RETRIES is the default number of attempts to generate a unique name
	NAMEGEN_DEFAULT_MAX_RETRIES = 100

	// For Persistence
	// PERSIST_QUEUE_WARN_LEN is the operation queue length that triggers warnings
	PERSIST_QUEUE_WARN_LEN = 100
	// PERSIST_RETRY_INTERVAL is the wait before retrying when the event store is not ready
	PERSIST_RETRY_INTERVAL = time.Second

	// For Recovery
	// RECOVERY_DEFAULT_BATCH_SIZE is the default number of events fetched per replay batch
	RECOVERY_DEFAULT_BATCH_SIZE = 100
	// RECOVERY_DEFAULT_TIMEOUT is the default max duration of a recovery run
	RECOVERY_DEFAULT_TIMEOUT = time.Second * 30
)

// Debug Options
const (
	// DEBUG_SAVE_LOAD prints persistence save & load debug logs
	DEBUG_SAVE_LOAD = false
	// DEBUG_DISPATCH prints dispatch scheduling debug logs
	DEBUG_DISPATCH = false
	// DEBUG_RECOVERY prints recovery step debug logs
	DEBUG_RECOVERY = false
)
