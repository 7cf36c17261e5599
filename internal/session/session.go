package session

import "time"

// User is the identity a session is authenticated as
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// Session is an authenticated identity plus the credentials backing it.
// A Session is never mutated after it is produced; a nil *Session means
// "no session".
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Expired reports whether the access token is no longer valid at now
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresWithin(now, 0)
}

// ExpiresWithin reports whether the access token expires before now+d.
// A zero ExpiresAt is treated as never expiring.
func (s *Session) ExpiresWithin(now time.Time, d time.Duration) bool {
	if s == nil {
		return true
	}
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(d).Before(s.ExpiresAt)
}

// Equal reports whether two sessions carry the same identity and credentials.
// Two nil sessions are equal.
func (s *Session) Equal(other *Session) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.AccessToken == other.AccessToken &&
		s.RefreshToken == other.RefreshToken &&
		s.TokenType == other.TokenType &&
		s.ExpiresAt.Equal(other.ExpiresAt) &&
		s.User == other.User
}

// Event is the kind of transition reported by the identity provider
type Event string

const (
	EventInitialSession Event = "INITIAL_SESSION"
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
	EventUserUpdated    Event = "USER_UPDATED"
)

// Status describes what the session cell currently knows
type Status int

const (
	// StatusPending means nothing has been applied yet
	StatusPending Status = iota
	StatusSignedOut
	StatusSignedIn
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSignedOut:
		return "signed_out"
	case StatusSignedIn:
		return "signed_in"
	default:
		return "unknown"
	}
}

// State is a snapshot of the session cell
type State struct {
	Status  Status
	Session *Session
	// Event is the transition that produced this state. It is carried for
	// observers and never affects how writes are applied.
	Event Event

	version uint64
}

// SignedIn reports whether the state holds an authenticated session
func (st State) SignedIn() bool {
	return st.Status == StatusSignedIn
}

// Pending reports whether the cell has not been resolved yet
func (st State) Pending() bool {
	return st.Status == StatusPending
}

// sameValue compares the observable value, ignoring Event and version
func (st State) sameValue(other State) bool {
	return st.Status == other.Status && st.Session.Equal(other.Session)
}

func stateFor(s *Session, event Event) State {
	if s == nil {
		return State{Status: StatusSignedOut, Event: event}
	}
	return State{Status: StatusSignedIn, Session: s, Event: event}
}
