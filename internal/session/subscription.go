package session

import (
	"sync/atomic"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// Observer is called with every new state of the session cell
type Observer func(State)

// Subscription is a registered Observer
type Subscription struct {
	id     string
	fn     Observer
	owner  *Synchronizer
	active atomic.Bool

	// Only touched while draining the queue.
	delivered bool
	seen      uint64
}

// Subscribe registers fn and hands it the current state, then every later
// change. The first delivery happens before Subscribe returns, except when
// Subscribe is called from inside an observer: then it follows right after
// the broadcast in progress.
func (s *Synchronizer) Subscribe(fn Observer) *Subscription {
	sub := &Subscription{
		id:    ulid.Make().String(),
		fn:    fn,
		owner: s,
	}
	sub.active.Store(true)

	s.subsMu.Lock()
	s.subs[sub.id] = sub
	count := len(s.subs)
	s.subsMu.Unlock()

	s.logger.Debug().Str("subscription_id", sub.id).Int("subscribers", count).Msg("Observer subscribed")

	s.enqueue(write{source: sourceReplay, sub: sub})
	return sub
}

// ID returns the subscription's unique identifier
func (sub *Subscription) ID() string {
	return sub.id
}

// Unsubscribe deregisters the observer. No delivery starts after it returns.
// It is safe to call from inside the observer and more than once.
func (sub *Subscription) Unsubscribe() {
	if !sub.active.CompareAndSwap(true, false) {
		return
	}

	sub.owner.subsMu.Lock()
	delete(sub.owner.subs, sub.id)
	sub.owner.subsMu.Unlock()

	sub.owner.logger.Debug().Str("subscription_id", sub.id).Msg("Observer unsubscribed")
}

// deliver hands st to the observer once per version, in version order
func (sub *Subscription) deliver(st State, logger zerolog.Logger) {
	if !sub.active.Load() {
		return
	}
	if sub.delivered && st.version <= sub.seen {
		return
	}
	sub.delivered = true
	sub.seen = st.version

	// A panicking observer must not leave the queue marked as draining.
	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Str("subscription_id", sub.id).
				Interface("panic", r).
				Msg("Session observer panicked")
		}
	}()

	sub.fn(st)
}
