/*
ActorWorld is an in-process actor runtime for game servers. Game objects like
players, rooms and matchmakers are modeled as actors: units of state plus
behavior that process one message at a time, addressed by hierarchical paths
such as `/user/rooms/lobby`. A fixed dispatcher worker pool multiplexes many
actors, so actors are the unit of logical concurrency while workers are the
unit of physical concurrency.

Addressing

Every actor lives at a unique absolute path. Path patterns support wildcards:
`*` matches exactly one segment, `**` matches any number of segments. Sends to
a path with no live actor are never lost silently; they are routed to the
dead-letter sink at `/system/deadLetters` where they are logged and retained
for inspection.

Mailboxes

Each actor owns a mailbox, FIFO or priority ordered, bounded or unbounded.
A bounded mailbox signals backpressure by rejecting the send (a boolean, never
a panic); the caller decides whether to drop, retry or escalate.

Persistence

Actors created with persistent props are event sourced: they append events to
a per-path log through optimistic sequence numbering and can snapshot their
state. On creation such an actor first recovers (latest snapshot, then event
replay in strict order) before it processes live messages. Event stores are
pluggable: memory, filesystem, MongoDB and Redis backends are provided.

Package actorworld

The actorworld package is the facade for developers. A minimal program looks
like below:

	import "github.com/actorworld/actorworld"

	func main() {
		sys := actorworld.Run("game")
		defer sys.Terminate()

		sys.ActorOf(actorworld.NewProps(func() actorworld.Actor {
			return &Lobby{}
		}), "/user/rooms/lobby")

		sys.Send("/user/rooms/lobby", &JoinRequest{PlayerID: 1})
		...
	}

Configuration is read from actorworld.ini; see actorworld.ini.sample for the
recognized sections and keys.
*/
package actorworld
