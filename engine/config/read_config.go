package config

import (
	"encoding/json"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/actorworld/actorworld/engine/awlog"
	"github.com/actorworld/actorworld/engine/common"
	"github.com/actorworld/actorworld/engine/consts"
	"github.com/go-ini/ini"
)

var (
	validMailboxTypes = common.StringSet{}
	validPersistTypes = common.StringSet{}
)

func init() {
	for _, t := range []string{"unbounded", "bounded", "priority-unbounded", "priority-bounded"} {
		validMailboxTypes.Add(t)
	}
	for _, t := range []string{"memory", "filesystem", "mongodb", "redis"} {
		validPersistTypes.Add(t)
	}
}

const (
	_DEFAULT_CONFIG_FILE   = "actorworld.ini"
	_DEFAULT_MAILBOX_TYPE  = "unbounded"
	_DEFAULT_PERSIST_TYPE  = "memory"
	_DEFAULT_NAMEGEN       = "random"
	_DEFAULT_MAX_SNAPSHOTS = 3
)

var (
	configFilePath   = _DEFAULT_CONFIG_FILE
	actorWorldConfig *ActorWorldConfig
	configLock       sync.Mutex
)

// DispatcherConfig defines fields of dispatcher config
type DispatcherConfig struct {
	Workers    int
	Throughput int
}

// MailboxConfig defines the default mailbox settings of new actors
type MailboxConfig struct {
	Type     string
	Capacity int
}

// PersistenceConfig defines fields of persistence config
type PersistenceConfig struct {
	Type                   string // Type of event store (memory, filesystem, mongodb, redis)
	Directory              string // Directory of filesystem event store (filesystem)
	Url                    string // Connection URL (mongodb, redis)
	DB                     string // Database name (mongodb)
	SnapshotEnabled        bool
	SnapshotEveryNEvents   int
	MaxSnapshotsToKeep     int
	DeleteEventsOnSnapshot bool
	ReplayBatchSize        int
	RecoveryTimeout        time.Duration
}

// NameGenConfig defines fields of name generator config
type NameGenConfig struct {
	Strategy   string
	MaxRetries int
}

// ActorWorldConfig defines the total actorworld config file structure
type ActorWorldConfig struct {
	Dispatcher  DispatcherConfig
	Mailbox     MailboxConfig
	Persistence PersistenceConfig
	NameGen     NameGenConfig
}

// SetConfigFile sets the config file path (actorworld.ini by default)
func SetConfigFile(f string) {
	configFilePath = f
}

// GetConfigFilePath returns the config file path
func GetConfigFilePath() string {
	return configFilePath
}

// Get returns the total actorworld config
func Get() *ActorWorldConfig {
	configLock.Lock()
	defer configLock.Unlock() // protect concurrent access from multiple systems
	if actorWorldConfig == nil {
		actorWorldConfig = readActorWorldConfig()
	}
	return actorWorldConfig
}

// Reload forces actorworld to reload the whole config
func Reload() *ActorWorldConfig {
	configLock.Lock()
	actorWorldConfig = nil
	configLock.Unlock()

	return Get()
}

// GetDispatcher returns the dispatcher config
func GetDispatcher() *DispatcherConfig {
	return &Get().Dispatcher
}

// GetMailbox returns the default mailbox config
func GetMailbox() *MailboxConfig {
	return &Get().Mailbox
}

// GetPersistence returns the persistence config
func GetPersistence() *PersistenceConfig {
	return &Get().Persistence
}

// GetNameGen returns the name generator config
func GetNameGen() *NameGenConfig {
	return &Get().NameGen
}

// DumpPretty format config to string in pretty format
func DumpPretty(cfg interface{}) string {
	s, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		return err.Error()
	}
	return string(s)
}

func readActorWorldConfig() *ActorWorldConfig {
	config := &ActorWorldConfig{}
	setDefaultConfig(config)

	if _, err := os.Stat(configFilePath); os.IsNotExist(err) {
		// no config file, run on defaults
		awlog.Warnf("config file %s not found, using defaults", configFilePath)
		return config
	}

	awlog.Infof("Using config file: %s", configFilePath)
	iniFile, err := ini.Load(configFilePath)
	if err != nil {
		awlog.Panicf("read config %s failed: %s", configFilePath, err)
	}

	for _, sec := range iniFile.Sections() {
		secName := strings.ToLower(sec.Name())
		if secName == "default" {
			continue
		}

		if secName == "dispatcher" {
			readDispatcherConfig(sec, &config.Dispatcher)
		} else if secName == "mailbox" {
			readMailboxConfig(sec, &config.Mailbox)
		} else if secName == "persistence" {
			readPersistenceConfig(sec, &config.Persistence)
		} else if secName == "namegen" {
			readNameGenConfig(sec, &config.NameGen)
		} else {
			awlog.Errorf("unknown section: %s", secName)
		}
	}

	validateConfig(config)
	return config
}

func setDefaultConfig(config *ActorWorldConfig) {
	config.Dispatcher.Workers = runtime.NumCPU()
	config.Dispatcher.Throughput = consts.DISPATCHER_DEFAULT_THROUGHPUT
	config.Mailbox.Type = _DEFAULT_MAILBOX_TYPE
	config.Mailbox.Capacity = 0
	config.Persistence.Type = _DEFAULT_PERSIST_TYPE
	config.Persistence.MaxSnapshotsToKeep = _DEFAULT_MAX_SNAPSHOTS
	config.Persistence.ReplayBatchSize = consts.RECOVERY_DEFAULT_BATCH_SIZE
	config.Persistence.RecoveryTimeout = consts.RECOVERY_DEFAULT_TIMEOUT
	config.NameGen.Strategy = _DEFAULT_NAMEGEN
	config.NameGen.MaxRetries = consts.NAMEGEN_DEFAULT_MAX_RETRIES
}

func readDispatcherConfig(sec *ini.Section, dc *DispatcherConfig) {
	for _, key := range sec.Keys() {
		name := strings.ToLower(key.Name())
		if name == "workers" {
			dc.Workers = key.MustInt(dc.Workers)
		} else if name == "throughput" {
			dc.Throughput = key.MustInt(dc.Throughput)
		} else {
			awlog.Errorf("section %s has unknown key: %s", sec.Name(), key.Name())
		}
	}
}

func readMailboxConfig(sec *ini.Section, mc *MailboxConfig) {
	for _, key := range sec.Keys() {
		name := strings.ToLower(key.Name())
		if name == "type" {
			mc.Type = key.MustString(mc.Type)
		} else if name == "capacity" {
			mc.Capacity = key.MustInt(mc.Capacity)
		} else {
			awlog.Errorf("section %s has unknown key: %s", sec.Name(), key.Name())
		}
	}
}

func readPersistenceConfig(sec *ini.Section, pc *PersistenceConfig) {
	for _, key := range sec.Keys() {
		name := strings.ToLower(key.Name())
		if name == "type" {
			pc.Type = key.MustString(pc.Type)
		} else if name == "directory" {
			pc.Directory = key.MustString(pc.Directory)
		} else if name == "url" {
			pc.Url = key.MustString(pc.Url)
		} else if name == "db" {
			pc.DB = key.MustString(pc.DB)
		} else if name == "snapshot" {
			pc.SnapshotEnabled = key.MustBool(pc.SnapshotEnabled)
		} else if name == "snapshot_every" {
			pc.SnapshotEveryNEvents = key.MustInt(pc.SnapshotEveryNEvents)
		} else if name == "max_snapshots" {
			pc.MaxSnapshotsToKeep = key.MustInt(pc.MaxSnapshotsToKeep)
		} else if name == "delete_events_on_snapshot" {
			pc.DeleteEventsOnSnapshot = key.MustBool(pc.DeleteEventsOnSnapshot)
		} else if name == "replay_batch_size" {
			pc.ReplayBatchSize = key.MustInt(pc.ReplayBatchSize)
		} else if name == "recovery_timeout_seconds" {
			pc.RecoveryTimeout = time.Second * time.Duration(key.MustInt(int(pc.RecoveryTimeout/time.Second)))
		} else {
			awlog.Errorf("section %s has unknown key: %s", sec.Name(), key.Name())
		}
	}
}

func readNameGenConfig(sec *ini.Section, nc *NameGenConfig) {
	for _, key := range sec.Keys() {
		name := strings.ToLower(key.Name())
		if name == "strategy" {
			nc.Strategy = key.MustString(nc.Strategy)
		} else if name == "max_retries" {
			nc.MaxRetries = key.MustInt(nc.MaxRetries)
		} else {
			awlog.Errorf("section %s has unknown key: %s", sec.Name(), key.Name())
		}
	}
}

func validateConfig(config *ActorWorldConfig) {
	if config.Dispatcher.Workers <= 0 {
		awlog.Panicf("dispatcher workers must be positive, but is %d", config.Dispatcher.Workers)
	}
	if config.Dispatcher.Throughput <= 0 {
		awlog.Panicf("dispatcher throughput must be positive, but is %d", config.Dispatcher.Throughput)
	}
	if config.Persistence.ReplayBatchSize <= 0 {
		awlog.Panicf("replay_batch_size must be positive, but is %d", config.Persistence.ReplayBatchSize)
	}
	if !validPersistTypes.Contains(config.Persistence.Type) {
		awlog.Panicf("unknown persistence type: %s", config.Persistence.Type)
	}
	mbtype := config.Mailbox.Type
	if !validMailboxTypes.Contains(mbtype) {
		awlog.Panicf("unknown mailbox type: %s", mbtype)
	}
	if (mbtype == "bounded" || mbtype == "priority-bounded") && config.Mailbox.Capacity <= 0 {
		awlog.Panicf("bounded mailbox requires positive capacity, but is %d", config.Mailbox.Capacity)
	}
}
