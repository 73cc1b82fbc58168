package actor

import (
	"github.com/actorworld/actorworld/engine/mailbox"
	"github.com/actorworld/actorworld/engine/recovery"
)

// Factory creates one actor instance. Using an explicit typed factory keeps
// construction free of reflection; whatever arguments the actor needs are
// closed over by the caller.
type Factory func() Actor

// Props describes how to construct and run an actor
type Props struct {
	// Factory creates the actor instance
	Factory Factory
	// MailboxType selects the mailbox, empty uses the configured default
	MailboxType mailbox.Type
	// MailboxCapacity bounds the mailbox for bounded types, 0 uses the
	// configured default
	MailboxCapacity int
	// Persistent actors recover from their snapshot and event log before
	// processing live messages. The factory's actor must implement
	// recovery.Target (RecoverFromEvent); this is checked when the actor is
	// registered, not when recovery runs.
	Persistent bool
	// OnRecoveryComplete is called on the service goroutine when a persistent
	// actor finishes (or fails) recovery; optional
	OnRecoveryComplete func(path string, result *recovery.Result)
}

// NewProps creates props with the default mailbox settings
func NewProps(factory Factory) *Props {
	return &Props{Factory: factory}
}

// NewPersistentProps creates props for a persistent actor
func NewPersistentProps(factory Factory) *Props {
	return &Props{Factory: factory, Persistent: true}
}
