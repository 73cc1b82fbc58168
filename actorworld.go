package actorworld

import (
	"github.com/actorworld/actorworld/engine/actor"
	"github.com/actorworld/actorworld/engine/config"
	"github.com/actorworld/actorworld/engine/namegen"
)

// Actor is a unit of state plus behavior processed one message at a time
type Actor = actor.Actor

// Context carries one message delivery to the receiving actor
type Context = actor.Context

// Props describes how to construct and run an actor
type Props = actor.Props

// ActorRef is the handle of one live actor
type ActorRef = actor.ActorRef

// System is the root actor registry
type System = actor.System

// PersistResult is delivered to a persistent actor after an event append
type PersistResult = actor.PersistResult

// SetConfigFile sets the config file path (actorworld.ini by default)
func SetConfigFile(path string) {
	config.SetConfigFile(path)
}

// NewSystem creates an actor system configured from the config file
func NewSystem(name string) *System {
	return actor.NewSystem(name)
}

// Run creates and starts an actor system, ready for ActorOf and Send
func Run(name string) *System {
	sys := actor.NewSystem(name)
	sys.Start()
	return sys
}

// NewProps creates props for a plain actor
func NewProps(factory actor.Factory) *Props {
	return actor.NewProps(factory)
}

// NewPersistentProps creates props for a persistent actor
func NewPersistentProps(factory actor.Factory) *Props {
	return actor.NewPersistentProps(factory)
}

// GenerateName produces a unique actor name using the named strategy
func GenerateName(strategy string, params ...string) (string, error) {
	return namegen.Generate(strategy, params...)
}

// GenerateDefaultName produces a unique actor name using the configured
// default strategy
func GenerateDefaultName() (string, error) {
	return namegen.GenerateDefault()
}

// ReleaseName returns a generated name to the available pool
func ReleaseName(name string) {
	namegen.Release(name)
}
