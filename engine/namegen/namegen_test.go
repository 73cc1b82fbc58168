package namegen

import (
	"testing"

	"github.com/actorworld/actorworld/engine/actorpath"
	"github.com/bmizerany/assert"
	"github.com/pkg/errors"
)

func TestGenerateUnique(t *testing.T) {
	gen := NewGenerator(100)
	seen := map[string]bool{}
	for _, strategy := range []string{"sequential", "random", "readable", "timestamp", "prefix"} {
		for i := 0; i < 50; i++ {
			name, err := gen.Generate(strategy)
			assert.Equal(t, err, nil)
			assert.T(t, actorpath.IsValidName(name), "illegal name: "+name)
			if seen[name] {
				t.Errorf("strategy %s produced duplicate name %s", strategy, name)
			}
			seen[name] = true
		}
	}
}

func TestGenerateWithPrefix(t *testing.T) {
	gen := NewGenerator(100)
	name, err := gen.Generate("sequential", "npc")
	assert.Equal(t, err, nil)
	assert.Equal(t, name[:4], "npc-")

	name, err = gen.Generate("prefix", "room")
	assert.Equal(t, err, nil)
	assert.Equal(t, name[:5], "room-")
}

func TestUnknownStrategy(t *testing.T) {
	gen := NewGenerator(100)
	_, err := gen.Generate("nope")
	assert.Equal(t, errors.Cause(err), ErrUnknownStrategy)
}

func TestExhaustedRetries(t *testing.T) {
	gen := NewGenerator(10)
	gen.RegisterStrategy("constant", func(gen *Generator, params ...string) string {
		return "same"
	})
	name, err := gen.Generate("constant")
	assert.Equal(t, err, nil)
	assert.Equal(t, name, "same")

	_, err = gen.Generate("constant")
	assert.Equal(t, errors.Cause(err), ErrExhaustedRetries)
}

func TestRelease(t *testing.T) {
	gen := NewGenerator(10)
	gen.RegisterStrategy("constant", func(gen *Generator, params ...string) string {
		return "same"
	})
	_, err := gen.Generate("constant")
	assert.Equal(t, err, nil)
	assert.T(t, gen.IsIssued("same"))

	gen.Release("same")
	assert.T(t, !gen.IsIssued("same"))

	name, err := gen.Generate("constant")
	assert.Equal(t, err, nil)
	assert.Equal(t, name, "same")
}

func TestPathIllegalCandidatesSkipped(t *testing.T) {
	gen := NewGenerator(5)
	gen.RegisterStrategy("illegal", func(gen *Generator, params ...string) string {
		return "not a name"
	})
	_, err := gen.Generate("illegal")
	assert.Equal(t, errors.Cause(err), ErrExhaustedRetries)
}
