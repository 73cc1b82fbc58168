package config

import (
	"testing"

	"github.com/actorworld/actorworld/engine/awlog"
	"github.com/bmizerany/assert"
)

func init() {
	SetConfigFile("../../actorworld.ini.sample")
}

func TestLoad(t *testing.T) {
	config := Get()
	awlog.Debugf("actorworld config: \n%s", DumpPretty(config))
	if config == nil {
		t.FailNow()
	}
	if config.Dispatcher.Workers != 4 {
		t.Errorf("dispatcher workers is %d", config.Dispatcher.Workers)
	}
	if config.Dispatcher.Throughput != 10 {
		t.Errorf("dispatcher throughput is %d", config.Dispatcher.Throughput)
	}
}

func TestReload(t *testing.T) {
	Get()
	config := Reload()
	awlog.Debugf("actorworld config: \n%s", DumpPretty(config))
}

func TestGetDispatcher(t *testing.T) {
	assert.T(t, GetDispatcher() != nil, "dispatcher config is nil")
}

func TestGetMailbox(t *testing.T) {
	cfg := GetMailbox()
	assert.Equal(t, cfg.Type, "unbounded")
}

func TestGetPersistence(t *testing.T) {
	cfg := GetPersistence()
	if cfg == nil {
		t.Errorf("persistence config not found")
	}
	assert.Equal(t, cfg.Type, "filesystem")
	assert.Equal(t, cfg.ReplayBatchSize, 100)
	assert.T(t, cfg.SnapshotEnabled)
	awlog.Infof("persistence config: %s", DumpPretty(cfg))
}

func TestGetNameGen(t *testing.T) {
	cfg := GetNameGen()
	assert.Equal(t, cfg.Strategy, "random")
	assert.Equal(t, cfg.MaxRetries, 100)
}

func TestMissingFileDefaults(t *testing.T) {
	SetConfigFile("no_such_file.ini")
	config := Reload()
	if config.Dispatcher.Workers <= 0 {
		t.Errorf("default workers should be positive")
	}
	assert.Equal(t, config.Persistence.Type, "memory")
	SetConfigFile("../../actorworld.ini.sample")
	Reload()
}
