package session

import "context"

// ChangeFunc receives every session transition pushed by a Provider.
// next is nil on sign-out.
type ChangeFunc func(event Event, next *Session)

// Registration is the handle returned by Provider.OnSessionChange
type Registration interface {
	// Unsubscribe stops further deliveries to the registered callback
	Unsubscribe()
	// Done is closed when the provider will never deliver again
	Done() <-chan struct{}
}

// Provider is the identity provider as seen by the Synchronizer
type Provider interface {
	// FetchCurrentSession returns the session known to the provider at call
	// time, or nil if there is none.
	FetchCurrentSession(ctx context.Context) (*Session, error)

	// OnSessionChange registers fn for every future transition. Callbacks
	// are delivered in the provider's own order and never concurrently.
	OnSessionChange(fn ChangeFunc) Registration
}
