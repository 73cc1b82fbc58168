package actor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/xiaonanln/go-xnsyncutil/xnsyncutil"
	timer "github.com/xiaonanln/goTimer"

	"github.com/actorworld/actorworld/engine/actorpath"
	"github.com/actorworld/actorworld/engine/awlog"
	"github.com/actorworld/actorworld/engine/awutils"
	"github.com/actorworld/actorworld/engine/config"
	"github.com/actorworld/actorworld/engine/consts"
	"github.com/actorworld/actorworld/engine/dispatch"
	"github.com/actorworld/actorworld/engine/mailbox"
	"github.com/actorworld/actorworld/engine/persist"
	"github.com/actorworld/actorworld/engine/post"
	"github.com/actorworld/actorworld/engine/recovery"
	"github.com/pkg/errors"
)

// ErrDuplicatePath is returned by ActorOf when the path is already registered
var ErrDuplicatePath = errors.New("actor: path already registered")

// ErrSystemTerminating is returned by ActorOf once termination has begun
var ErrSystemTerminating = errors.New("actor: system is terminating")

// ErrNotRecoverable is returned by ActorOf when persistent props carry a
// factory whose actor lacks the RecoverFromEvent recovery hook. The check
// happens at registration so a misconfigured actor fails fast instead of
// failing its first recovery.
var ErrNotRecoverable = errors.New("actor: persistent actor does not implement recovery.Target")

// ErrReservedPath is returned by ActorOf for paths under /system
var ErrReservedPath = errors.New("actor: path is reserved for system actors")

// System is the root actor registry. It creates and stops actors, tracks all
// live refs by path, owns the dead-letter sink and the dispatcher, and runs
// the service loop delivering timers and cross-goroutine callbacks.
type System struct {
	name       string
	dispatcher *dispatch.Dispatcher
	sink       *deadLetterSink

	refsLock sync.RWMutex
	refs     map[string]*ActorRef

	started       xnsyncutil.AtomicBool
	terminating   xnsyncutil.AtomicBool
	terminateOnce sync.Once

	serviceQuit           chan struct{}
	serviceLoopTerminated *xnsyncutil.OneTimeCond
}

// NewSystem creates an actor system with dispatcher settings from the config.
// Call Start before sending messages.
func NewSystem(name string) *System {
	cfg := config.GetDispatcher()
	sys := &System{
		name:                  name,
		dispatcher:            dispatch.NewDispatcher(cfg.Workers, cfg.Throughput),
		sink:                  newDeadLetterSink(),
		refs:                  map[string]*ActorRef{},
		serviceQuit:           make(chan struct{}),
		serviceLoopTerminated: xnsyncutil.NewOneTimeCond(),
	}

	// the sink is addressable like any other actor, at a reserved path
	dlRef := newActorRef(sys, DeadLettersPath, &deadLetterActor{sink: sys.sink}, mustNewMailbox(mailbox.Spec{Type: mailbox.Unbounded}), false)
	sys.refs[DeadLettersPath] = dlRef
	return sys
}

func mustNewMailbox(spec mailbox.Spec) mailbox.Mailbox {
	mb, err := mailbox.New(spec)
	if err != nil {
		awlog.Panicf("creating mailbox failed: %s", err)
	}
	return mb
}

// Name returns the system name
func (sys *System) Name() string {
	return sys.name
}

// Start spawns the dispatcher worker pool and the service loop
func (sys *System) Start() {
	if sys.started.Load() {
		return
	}
	sys.started.Store(true)
	awlog.Infof("actor system %s starting: %d workers, throughput %d", sys.name, sys.dispatcher.NumWorkers(), sys.dispatcher.Throughput())
	sys.dispatcher.Start()
	go awutils.RepeatUntilPanicless(sys.serviceLoopRoutine)
}

// Dispatcher returns the system's dispatcher
func (sys *System) Dispatcher() *dispatch.Dispatcher {
	return sys.dispatcher
}

// ActorOf creates, registers and starts an actor at the path. The registry
// insert is atomic: concurrent calls for one path yield exactly one ref and
// ErrDuplicatePath for the rest.
func (sys *System) ActorOf(props *Props, path string) (*ActorRef, error) {
	if props == nil || props.Factory == nil {
		return nil, errors.Errorf("actor: props with a factory required for %s", path)
	}
	if sys.terminating.Load() {
		return nil, errors.Wrapf(ErrSystemTerminating, "%s", path)
	}

	p, err := actorpath.Parse(path)
	if err != nil {
		return nil, err
	}
	normPath := p.String()
	if actorpath.IsSystemPath(normPath) {
		return nil, errors.Wrapf(ErrReservedPath, "%s", normPath)
	}

	a := props.Factory()
	if a == nil {
		return nil, errors.Errorf("actor: factory for %s returned nil", normPath)
	}
	if props.Persistent {
		if _, ok := a.(recovery.Target); !ok {
			return nil, errors.Wrapf(ErrNotRecoverable, "%s is a %T", normPath, a)
		}
	}

	mb, err := mailbox.New(sys.mailboxSpec(props))
	if err != nil {
		return nil, err
	}

	ref := newActorRef(sys, normPath, a, mb, props.Persistent)
	if props.Persistent {
		// suspended until recovery finishes; messages queue up meanwhile
		ref.suspended.Store(true)
		persist.Initialize()
	}

	sys.refsLock.Lock()
	if _, exists := sys.refs[normPath]; exists {
		sys.refsLock.Unlock()
		return nil, errors.Wrapf(ErrDuplicatePath, "%s", normPath)
	}
	sys.refs[normPath] = ref
	sys.refsLock.Unlock()

	if _, ok := a.(Starter); ok {
		// first envelope in the mailbox, so OnStart runs before any message
		ref.enqueueInternal(&startMessage{})
	}
	if props.Persistent {
		sys.startRecovery(ref, props)
	}

	awlog.Debugf("actor system %s: created actor %s (%T)", sys.name, normPath, a)
	return ref, nil
}

func (sys *System) mailboxSpec(props *Props) mailbox.Spec {
	cfg := config.GetMailbox()
	spec := mailbox.Spec{Type: mailbox.Type(cfg.Type), Capacity: cfg.Capacity}
	if props.MailboxType != "" {
		spec.Type = props.MailboxType
		spec.Capacity = props.MailboxCapacity
	} else if props.MailboxCapacity > 0 {
		spec.Capacity = props.MailboxCapacity
	}
	return spec
}

func (sys *System) startRecovery(ref *ActorRef, props *Props) {
	rec := recovery.New(ref.path, ref.actor.(recovery.Target), func(result *recovery.Result) {
		if result.Err != nil {
			// the actor never comes online; it is excluded from the system
			awlog.Errorf("actor system %s: excluding %s, recovery failed at seq %d after %s: %s",
				sys.name, ref.path, result.LastSequenceNr, result.Elapsed, result.Err)
			sys.Stop(ref.path)
		} else if !ref.stopped.Load() {
			ref.headSeqNr = result.LastSequenceNr
			atomic.StoreInt64(&ref.lastSeqNr, result.LastSequenceNr)
			ref.resume()
		}
		if props.OnRecoveryComplete != nil {
			path := ref.path
			awutils.RunPanicless(func() {
				props.OnRecoveryComplete(path, result)
			})
		}
	})
	rec.Start()
}

// GetRef returns the live ref at the path, nil when none
func (sys *System) GetRef(path string) *ActorRef {
	norm, err := actorpath.Normalize(path)
	if err != nil {
		return nil
	}
	sys.refsLock.RLock()
	defer sys.refsLock.RUnlock()
	return sys.refs[norm]
}

// NumActors returns the number of live actors including system actors
func (sys *System) NumActors() int {
	sys.refsLock.RLock()
	defer sys.refsLock.RUnlock()
	return len(sys.refs)
}

// FindPaths returns the live actor paths matching the pattern, where *
// matches one segment and ** matches any number of segments
func (sys *System) FindPaths(pattern string) ([]string, error) {
	pat, err := actorpath.CompilePattern(pattern)
	if err != nil {
		return nil, err
	}

	sys.refsLock.RLock()
	defer sys.refsLock.RUnlock()

	var res []string
	for path := range sys.refs {
		p, err := actorpath.Parse(path)
		if err != nil {
			continue
		}
		if pat.Matches(p) {
			res = append(res, path)
		}
	}
	return res, nil
}

// Send delivers a fire-and-forget message to the actor at the path. A send to
// an unknown path goes to dead letters and returns false, never an error to
// the caller.
func (sys *System) Send(path string, message interface{}) bool {
	return sys.SendEx(path, message, "", 0)
}

// SendEx delivers a fire-and-forget message with an explicit sender path and
// priority
func (sys *System) SendEx(path string, message interface{}, sender string, priority int) bool {
	ref := sys.GetRef(path)
	if ref == nil {
		sys.sink.record(path, message, sender, "no such actor")
		return false
	}
	return ref.SendEx(message, sender, priority)
}

// Stop removes the actor at the path from the registry and closes its
// mailbox. Messages already taken by a worker still complete; envelopes left
// queued are forwarded to dead letters. Returns false when no actor lives at
// the path.
func (sys *System) Stop(path string) bool {
	norm, err := actorpath.Normalize(path)
	if err != nil {
		return false
	}

	sys.refsLock.Lock()
	ref := sys.refs[norm]
	if ref == nil {
		sys.refsLock.Unlock()
		return false
	}
	delete(sys.refs, norm)
	sys.refsLock.Unlock()

	sys.stopRef(ref)
	awlog.Debugf("actor system %s: stopped actor %s", sys.name, norm)
	return true
}

// StopRef stops the actor behind the ref; see Stop
func (sys *System) StopRef(ref *ActorRef) bool {
	return sys.Stop(ref.path)
}

func (sys *System) stopRef(ref *ActorRef) {
	ref.stopped.Store(true)
	ref.suspended.Store(false) // a suspended actor still runs its stop hook

	leftovers := ref.mb.Close()
	for _, env := range leftovers {
		switch env.Message.(type) {
		case *startMessage, *persistDoneMessage:
			// runtime control messages are not dead letters
		default:
			sys.sink.record(ref.path, env.Message, env.Sender, "actor stopped")
		}
	}

	// hand the ref to a worker once more so the OnStop hook runs without
	// overlapping any in-flight processing
	if atomic.CompareAndSwapInt32(&ref.scheduled, 0, 1) {
		sys.dispatcher.Schedule(ref)
	}
}

// DeadLetters returns the ref of the dead-letter sink actor
func (sys *System) DeadLetters() *ActorRef {
	sys.refsLock.RLock()
	defer sys.refsLock.RUnlock()
	return sys.refs[DeadLettersPath]
}

// DeadLetterCount returns the total number of dead letters recorded
func (sys *System) DeadLetterCount() int64 {
	return sys.sink.Count()
}

// RecentDeadLetters returns the retained recent dead letters, oldest first
func (sys *System) RecentDeadLetters() []*DeadLetter {
	return sys.sink.Recent()
}

// Terminate stops all actors, shuts down the dispatcher, the persist module
// and the service loop. Idempotent; safe to call from any goroutine. Stop
// order between actors is not guaranteed.
func (sys *System) Terminate() {
	sys.terminateOnce.Do(sys.doTerminate)
}

func (sys *System) doTerminate() {
	awlog.Infof("actor system %s terminating ...", sys.name)
	sys.terminating.Store(true)

	sys.refsLock.Lock()
	refs := make([]*ActorRef, 0, len(sys.refs))
	for _, ref := range sys.refs {
		refs = append(refs, ref)
	}
	sys.refs = map[string]*ActorRef{}
	sys.refsLock.Unlock()

	for _, ref := range refs {
		if ref.path != DeadLettersPath {
			sys.stopRef(ref)
		}
	}
	for _, ref := range refs {
		if ref.path == DeadLettersPath {
			sys.stopRef(ref)
		}
	}

	sys.dispatcher.Shutdown()
	persist.Shutdown()

	if sys.started.Load() {
		close(sys.serviceQuit)
		sys.serviceLoopTerminated.Wait()
		sys.started.Store(false)
	}
	awlog.Infof("actor system %s terminated", sys.name)
}

// serviceLoopRoutine drives timers and cross-goroutine callbacks on a single
// goroutine, so persist and recovery completions never race actor creation
func (sys *System) serviceLoopRoutine() {
	ticker := time.Tick(consts.SERVICE_LOOP_TICK_INTERVAL)
	for {
		select {
		case <-sys.serviceQuit:
			// final drain so callbacks queued during termination still run
			timer.Tick()
			post.Tick()
			sys.serviceLoopTerminated.Signal()
			return
		case <-ticker:
			timer.Tick()
			post.Tick()
		}
	}
}
