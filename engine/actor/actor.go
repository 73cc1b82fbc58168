package actor

import (
	"github.com/actorworld/actorworld/engine/mailbox"
)

// Actor is a unit of state plus behavior processed strictly one message at a
// time. An actor owns no shared mutable state outside its own fields; the
// dispatcher guarantees OnReceive invocations for one actor never overlap.
type Actor interface {
	OnReceive(ctx *Context)
}

// Starter is implemented by actors that want a hook before their first message
type Starter interface {
	OnStart(ctx *Context)
}

// Stopper is implemented by actors that want a hook after their mailbox closed
type Stopper interface {
	OnStop(ctx *Context)
}

// Snapshotter is implemented by persistent actors that can serialize their
// state for snapshotting
type Snapshotter interface {
	SnapshotState() ([]byte, error)
}

// Context carries one message delivery to the receiving actor
type Context struct {
	system   *System
	self     *ActorRef
	envelope *mailbox.Envelope
}

// System returns the actor system that delivered the message
func (ctx *Context) System() *System {
	return ctx.system
}

// Self returns the ref of the receiving actor
func (ctx *Context) Self() *ActorRef {
	return ctx.self
}

// Path returns the path of the receiving actor
func (ctx *Context) Path() string {
	return ctx.self.Path()
}

// Message returns the message payload
func (ctx *Context) Message() interface{} {
	return ctx.envelope.Message
}

// Sender returns the sender actor path, empty when the sender is anonymous
func (ctx *Context) Sender() string {
	return ctx.envelope.Sender
}

// Reply sends a message back to the sender actor; false when the sender is
// anonymous or gone
func (ctx *Context) Reply(message interface{}) bool {
	if ctx.envelope.Sender == "" {
		return false
	}
	return ctx.system.SendEx(ctx.envelope.Sender, message, ctx.self.Path(), 0)
}

// Send sends a message to the target path with self as the sender
func (ctx *Context) Send(path string, message interface{}) bool {
	return ctx.system.SendEx(path, message, ctx.self.Path(), 0)
}

// PersistEvents appends events to the receiving actor's event log; see
// ActorRef.PersistEvents
func (ctx *Context) PersistEvents(events ...interface{}) error {
	return ctx.self.PersistEvents(events...)
}

// SaveSnapshot saves a snapshot of the receiving actor's state; see
// ActorRef.SaveSnapshot
func (ctx *Context) SaveSnapshot() error {
	return ctx.self.SaveSnapshot()
}
