package session

import (
	"bytes"
	"context"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

type source int

const (
	sourceFetch source = iota
	sourceNotification
	sourceReplay
)

func (s source) String() string {
	switch s {
	case sourceFetch:
		return "initial_fetch"
	case sourceNotification:
		return "notification"
	default:
		return "replay"
	}
}

// write is one entry in the serial update queue
type write struct {
	source  source
	event   Event
	session *Session
	err     error
	sub     *Subscription

	// closed once the write is applied; nil for writes queued from inside
	// an observer
	done chan struct{}
}

// Synchronizer owns the session cell. It mirrors the provider's session by
// combining one initial fetch with the provider's change notifications, and
// broadcasts every change to its subscribers.
type Synchronizer struct {
	provider Provider
	logger   zerolog.Logger

	current atomic.Pointer[State]

	queueMu  sync.Mutex
	queue    []write
	draining bool
	drainer  uint64

	// Only touched while draining the queue.
	notified bool
	version  uint64

	subsMu sync.Mutex
	subs   map[string]*Subscription

	startOnce   sync.Once
	closeOnce   sync.Once
	closed      chan struct{}
	reg         Registration
	regMu       sync.Mutex
	resolved    chan struct{}
	resolveOnce sync.Once
	initialDone chan struct{}
}

// New creates a Synchronizer whose cell starts out pending. Nothing talks to
// the provider until Start is called.
func New(provider Provider, logger zerolog.Logger) *Synchronizer {
	s := &Synchronizer{
		provider:    provider,
		logger:      logger.With().Str("component", "session").Logger(),
		subs:        make(map[string]*Subscription),
		closed:      make(chan struct{}),
		resolved:    make(chan struct{}),
		initialDone: make(chan struct{}),
	}
	s.current.Store(&State{Status: StatusPending})
	return s
}

// Start registers for change notifications and issues the initial fetch.
// Only the first call has any effect. The fetch is detached from ctx
// cancellation; callers wanting a deadline wrap WaitResolved instead.
func (s *Synchronizer) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		reg := s.provider.OnSessionChange(s.handleChange)

		s.regMu.Lock()
		s.reg = reg
		s.regMu.Unlock()

		if reg != nil {
			if done := reg.Done(); done != nil {
				go s.watchStream(done)
			}
		}

		go s.fetchInitial(context.WithoutCancel(ctx))
	})
}

// Close unregisters from the provider. The cell keeps its last value.
func (s *Synchronizer) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)

		s.regMu.Lock()
		reg := s.reg
		s.regMu.Unlock()

		if reg != nil {
			reg.Unsubscribe()
		}
	})
}

// Current returns the latest known state. It never blocks.
func (s *Synchronizer) Current() State {
	return *s.current.Load()
}

// Resolved is closed once the cell has left StatusPending
func (s *Synchronizer) Resolved() <-chan struct{} {
	return s.resolved
}

func (s *Synchronizer) fetchInitial(ctx context.Context) {
	sess, err := s.provider.FetchCurrentSession(ctx)
	s.enqueue(write{source: sourceFetch, event: EventInitialSession, session: sess, err: err})
}

func (s *Synchronizer) handleChange(event Event, next *Session) {
	s.enqueue(write{source: sourceNotification, event: event, session: next})
}

func (s *Synchronizer) watchStream(done <-chan struct{}) {
	select {
	case <-done:
		s.logger.Debug().Msg("Session change stream closed by provider")
	case <-s.closed:
	}
}

// enqueue appends w and, unless another caller is already draining, drains
// the queue on the calling goroutine. A caller on another goroutine waits
// until its write has been applied and broadcast. Writes issued from inside
// an observer run on the draining goroutine and only land behind the
// broadcast in progress.
func (s *Synchronizer) enqueue(w write) {
	s.queueMu.Lock()
	if s.draining {
		if s.drainer == goroutineID() {
			s.queue = append(s.queue, w)
			s.queueMu.Unlock()
			return
		}

		w.done = make(chan struct{})
		s.queue = append(s.queue, w)
		s.queueMu.Unlock()
		<-w.done
		return
	}

	s.queue = append(s.queue, w)
	s.draining = true
	s.drainer = goroutineID()

	for len(s.queue) > 0 {
		next := s.queue[0]
		s.queue[0] = write{}
		s.queue = s.queue[1:]
		s.queueMu.Unlock()

		s.process(next)
		if next.done != nil {
			close(next.done)
		}

		s.queueMu.Lock()
	}

	s.draining = false
	s.drainer = 0
	s.queueMu.Unlock()
}

// goroutineID parses the current goroutine's id from its stack header,
// "goroutine 42 [running]:".
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	field := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(field, ' '); i >= 0 {
		field = field[:i]
	}
	id, _ := strconv.ParseUint(string(field), 10, 64)
	return id
}

func (s *Synchronizer) process(w write) {
	switch w.source {
	case sourceReplay:
		w.sub.deliver(s.Current(), s.logger)
		return

	case sourceFetch:
		defer close(s.initialDone)

		if s.notified {
			s.logger.Debug().
				Bool("fetch_failed", w.err != nil).
				Msg("Discarding initial session, a change notification was applied first")
			return
		}
		if w.err != nil {
			s.logger.Warn().Err(w.err).Msg("Initial session fetch failed, treating as signed out")
			w.session = nil
		}

	case sourceNotification:
		s.notified = true
	}

	next := stateFor(w.session, w.event)
	prev := s.Current()

	if next.sameValue(prev) {
		s.markResolved()
		s.logger.Debug().
			Str("source", w.source.String()).
			Str("event", string(w.event)).
			Msg("Session unchanged")
		return
	}

	s.version++
	next.version = s.version

	s.subsMu.Lock()
	s.current.Store(&next)
	subs := make([]*Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.subsMu.Unlock()

	s.markResolved()

	logEvent := s.logger.Debug().
		Str("source", w.source.String()).
		Str("event", string(w.event)).
		Str("status", next.Status.String()).
		Int("subscribers", len(subs))
	if next.Session != nil {
		logEvent = logEvent.Str("user_id", next.Session.User.ID)
	}
	logEvent.Msg("Session updated")

	for _, sub := range subs {
		sub.deliver(next, s.logger)
	}
}

func (s *Synchronizer) markResolved() {
	s.resolveOnce.Do(func() {
		close(s.resolved)
	})
}

// WaitResolved blocks until s has left StatusPending or ctx is done, and
// returns the state current at that moment.
func WaitResolved(ctx context.Context, s *Synchronizer) (State, error) {
	select {
	case <-s.Resolved():
		return s.Current(), nil
	case <-ctx.Done():
		return s.Current(), ctx.Err()
	}
}
