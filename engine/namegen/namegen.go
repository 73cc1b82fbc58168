package namegen

import (
	"fmt"
	"sync"
	"time"

	"github.com/actorworld/actorworld/engine/actorpath"
	"github.com/actorworld/actorworld/engine/config"
	"github.com/actorworld/actorworld/engine/uuid"
	"github.com/pkg/errors"
	trie_tst "github.com/xiaonanln/go-trie-tst"
)

// ErrExhaustedRetries is returned when no unique name can be generated within
// the retry budget
var ErrExhaustedRetries = errors.New("namegen: exhausted retries generating unique name")

// ErrUnknownStrategy is returned for an unregistered strategy name
var ErrUnknownStrategy = errors.New("namegen: unknown strategy")

// Strategy produces one candidate name; uniqueness is enforced by the Generator
type Strategy func(gen *Generator, params ...string) string

// Generator issues process-wide unique, path-legal actor names
type Generator struct {
	mu         sync.Mutex
	issued     trie_tst.TST
	strategies map[string]Strategy
	maxRetries int
	seq        uint64
}

// NewGenerator creates a Generator with the builtin strategies registered
func NewGenerator(maxRetries int) *Generator {
	gen := &Generator{
		strategies: map[string]Strategy{},
		maxRetries: maxRetries,
	}
	gen.RegisterStrategy("sequential", sequentialStrategy)
	gen.RegisterStrategy("random", randomStrategy)
	gen.RegisterStrategy("readable", readableStrategy)
	gen.RegisterStrategy("timestamp", timestampStrategy)
	gen.RegisterStrategy("prefix", prefixStrategy)
	return gen
}

// RegisterStrategy registers a named strategy, replacing any previous one
func (gen *Generator) RegisterStrategy(name string, strategy Strategy) {
	gen.mu.Lock()
	gen.strategies[name] = strategy
	gen.mu.Unlock()
}

// Generate produces a unique, path-legal name using the named strategy,
// retrying up to the configured budget
func (gen *Generator) Generate(strategy string, params ...string) (string, error) {
	gen.mu.Lock()
	defer gen.mu.Unlock()

	strat := gen.strategies[strategy]
	if strat == nil {
		return "", errors.Wrapf(ErrUnknownStrategy, "%q", strategy)
	}

	for i := 0; i < gen.maxRetries; i++ {
		name := strat(gen, params...)
		if !actorpath.IsValidName(name) {
			continue
		}
		t := gen.issued.Sub(name)
		if t.Val != nil {
			continue // already issued
		}
		t.Val = true
		return name, nil
	}
	return "", errors.Wrapf(ErrExhaustedRetries, "strategy %q after %d attempts", strategy, gen.maxRetries)
}

// Release returns a name to the available pool; used when an actor with that
// name is permanently removed
func (gen *Generator) Release(name string) {
	gen.mu.Lock()
	gen.issued.Sub(name).Val = nil
	gen.mu.Unlock()
}

// IsIssued checks if the name is currently issued
func (gen *Generator) IsIssued(name string) bool {
	gen.mu.Lock()
	defer gen.mu.Unlock()
	return gen.issued.Sub(name).Val != nil
}

func (gen *Generator) nextSeq() uint64 {
	gen.seq += 1 // callers hold gen.mu
	return gen.seq
}

func sequentialStrategy(gen *Generator, params ...string) string {
	prefix := "actor"
	if len(params) > 0 && params[0] != "" {
		prefix = params[0]
	}
	return fmt.Sprintf("%s-%d", prefix, gen.nextSeq())
}

func randomStrategy(gen *Generator, params ...string) string {
	return uuid.GenUUID()
}

func timestampStrategy(gen *Generator, params ...string) string {
	return fmt.Sprintf("t%d-%d", time.Now().UnixNano(), gen.nextSeq())
}

func prefixStrategy(gen *Generator, params ...string) string {
	prefix := "actor"
	if len(params) > 0 && params[0] != "" {
		prefix = params[0]
	}
	return prefix + "-" + uuid.GenUUID()
}

var readableAdjectives = []string{
	"brave", "calm", "eager", "fancy", "gentle", "happy", "jolly", "keen",
	"lucky", "mighty", "noble", "proud", "quick", "silent", "swift", "wise",
}

var readableNouns = []string{
	"badger", "cobra", "dragon", "eagle", "falcon", "heron", "lynx", "otter",
	"panda", "raven", "shark", "tiger", "viper", "walrus", "wolf", "yak",
}

func readableStrategy(gen *Generator, params ...string) string {
	n := gen.nextSeq()
	adj := readableAdjectives[int(n)%len(readableAdjectives)]
	noun := readableNouns[int(n/7)%len(readableNouns)]
	return fmt.Sprintf("%s-%s-%d", adj, noun, n)
}

var (
	defaultGenerator     *Generator
	defaultGeneratorLock sync.Mutex
)

func getDefaultGenerator() *Generator {
	defaultGeneratorLock.Lock()
	defer defaultGeneratorLock.Unlock()
	if defaultGenerator == nil {
		defaultGenerator = NewGenerator(config.GetNameGen().MaxRetries)
	}
	return defaultGenerator
}

// Generate produces a unique name from the default generator
func Generate(strategy string, params ...string) (string, error) {
	return getDefaultGenerator().Generate(strategy, params...)
}

// GenerateDefault produces a unique name using the configured default strategy
func GenerateDefault() (string, error) {
	return getDefaultGenerator().Generate(config.GetNameGen().Strategy)
}

// Release returns a name to the default generator's pool
func Release(name string) {
	getDefaultGenerator().Release(name)
}
