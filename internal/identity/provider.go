package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/AleksTheDev/snacker/internal/session"
)

// ErrNoSession is returned by operations that need a stored session
var ErrNoSession = errors.New("not signed in")

// CredentialStore persists the session for a project between runs
type CredentialStore interface {
	// LoadSession returns nil, nil when nothing is stored
	LoadSession(projectRef string) (*session.Session, error)
	SaveSession(projectRef string, s *session.Session) error
	DeleteSession(projectRef string) error
}

// Provider is the identity provider for one project. It restores the
// persisted session, performs sign-in, sign-out and refresh, and pushes every
// resulting transition to its listeners.
type Provider struct {
	client        *Client
	store         CredentialStore
	projectRef    string
	refreshMargin time.Duration
	logger        zerolog.Logger
	now           func() time.Time

	emitMu    sync.Mutex
	emitQueue []emission
	emitting  bool
	lastKnown *session.Session
	emitSeq   uint64

	mu        sync.Mutex
	listeners map[string]*registration
	closed    bool
	done      chan struct{}
}

type emission struct {
	event   session.Event
	session *session.Session
}

// NewProvider creates a provider for projectRef. Sessions whose access token
// expires within refreshMargin are refreshed before being handed out.
func NewProvider(client *Client, store CredentialStore, projectRef string, refreshMargin time.Duration, logger zerolog.Logger) *Provider {
	return &Provider{
		client:        client,
		store:         store,
		projectRef:    projectRef,
		refreshMargin: refreshMargin,
		logger:        logger.With().Str("component", "identity").Str("project", projectRef).Logger(),
		now:           time.Now,
		listeners:     make(map[string]*registration),
		done:          make(chan struct{}),
	}
}

// FetchCurrentSession restores the persisted session, refreshing it when it
// is about to expire and validating it with the auth endpoint otherwise.
// Rejected credentials are cleared and reported as no session.
func (p *Provider) FetchCurrentSession(ctx context.Context) (*session.Session, error) {
	seq := p.emissions()

	stored, err := p.store.LoadSession(p.projectRef)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored session: %w", err)
	}
	if stored == nil {
		p.remember(seq, nil)
		return nil, nil
	}

	if stored.ExpiresWithin(p.now(), p.refreshMargin) {
		p.logger.Debug().Time("expires_at", stored.ExpiresAt).Msg("Stored session expiring, refreshing")
		return p.restoreByRefresh(ctx, seq, stored)
	}

	user, err := p.client.GetUser(ctx, stored.AccessToken)
	if err != nil {
		if IsUnauthorized(err) {
			p.logger.Debug().Err(err).Msg("Stored access token rejected, refreshing")
			return p.restoreByRefresh(ctx, seq, stored)
		}
		return nil, err
	}

	current := *stored
	current.User = session.User{ID: user.ID, Email: user.Email, Role: user.Role}
	if current.User != stored.User {
		if err := p.store.SaveSession(p.projectRef, &current); err != nil {
			p.logger.Warn().Err(err).Msg("Failed to persist updated user details")
		}
	}

	p.remember(seq, &current)
	return &current, nil
}

func (p *Provider) restoreByRefresh(ctx context.Context, seq uint64, stored *session.Session) (*session.Session, error) {
	refreshed, err := p.exchangeRefreshToken(ctx, stored)
	if err != nil {
		if IsUnauthorized(err) {
			p.logger.Info().Err(err).Msg("Stored session no longer valid, clearing it")
			if delErr := p.store.DeleteSession(p.projectRef); delErr != nil {
				p.logger.Warn().Err(delErr).Msg("Failed to clear rejected session")
			}
			p.remember(seq, nil)
			return nil, nil
		}
		return nil, err
	}

	p.remember(seq, refreshed)
	return refreshed, nil
}

func (p *Provider) exchangeRefreshToken(ctx context.Context, stored *session.Session) (*session.Session, error) {
	if stored.RefreshToken == "" {
		return nil, &APIError{StatusCode: http.StatusUnauthorized, Code: "missing_refresh_token", Message: "stored session has no refresh token"}
	}

	resp, err := p.client.RefreshSession(ctx, stored.RefreshToken)
	if err != nil {
		return nil, err
	}

	refreshed := resp.Session(p.now())
	if refreshed.User.ID == "" {
		refreshed.User = stored.User
	}

	if err := p.store.SaveSession(p.projectRef, refreshed); err != nil {
		return nil, fmt.Errorf("failed to persist refreshed session: %w", err)
	}
	return refreshed, nil
}

// SignInWithPassword signs in, persists the session and emits SIGNED_IN
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*session.Session, error) {
	resp, err := p.client.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}

	s := resp.Session(p.now())
	if err := p.store.SaveSession(p.projectRef, s); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	p.logger.Info().Str("user_id", s.User.ID).Msg("Signed in")
	p.emit(session.EventSignedIn, s)
	return s, nil
}

// SignOut revokes the session remotely (best effort), forgets it locally and
// emits SIGNED_OUT. Signing out without a session still emits.
func (p *Provider) SignOut(ctx context.Context) error {
	stored, err := p.store.LoadSession(p.projectRef)
	if err != nil {
		return fmt.Errorf("failed to load stored session: %w", err)
	}

	if stored != nil {
		if err := p.client.SignOut(ctx, stored.AccessToken); err != nil {
			p.logger.Warn().Err(err).Msg("Remote sign out failed, clearing local session anyway")
		}
	}

	if err := p.store.DeleteSession(p.projectRef); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	p.logger.Info().Msg("Signed out")
	p.emit(session.EventSignedOut, nil)
	return nil
}

// Refresh rotates the stored session's tokens and emits TOKEN_REFRESHED.
// If the refresh token is rejected the session is cleared and SIGNED_OUT is
// emitted.
func (p *Provider) Refresh(ctx context.Context) (*session.Session, error) {
	stored, err := p.store.LoadSession(p.projectRef)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored session: %w", err)
	}
	if stored == nil {
		return nil, ErrNoSession
	}

	refreshed, err := p.exchangeRefreshToken(ctx, stored)
	if err != nil {
		if IsUnauthorized(err) {
			if delErr := p.store.DeleteSession(p.projectRef); delErr != nil {
				p.logger.Warn().Err(delErr).Msg("Failed to clear rejected session")
			}
			p.emit(session.EventSignedOut, nil)
		}
		return nil, err
	}

	p.logger.Debug().Time("expires_at", refreshed.ExpiresAt).Msg("Session refreshed")
	p.emit(session.EventTokenRefreshed, refreshed)
	return refreshed, nil
}

// RefreshIfExpiring refreshes the stored session only when its access token
// expires within the refresh margin. It reports whether a refresh happened.
func (p *Provider) RefreshIfExpiring(ctx context.Context) (bool, error) {
	stored, err := p.store.LoadSession(p.projectRef)
	if err != nil {
		return false, fmt.Errorf("failed to load stored session: %w", err)
	}
	if stored == nil || !stored.ExpiresWithin(p.now(), p.refreshMargin) {
		return false, nil
	}

	if _, err := p.Refresh(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Reconcile picks up changes another process made to the stored session
// and emits the matching transition.
func (p *Provider) Reconcile(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stored, err := p.store.LoadSession(p.projectRef)
	if err != nil {
		return fmt.Errorf("failed to load stored session: %w", err)
	}

	p.emitMu.Lock()
	last := p.lastKnown
	p.emitMu.Unlock()

	event, changed := classifyChange(last, stored)
	if !changed {
		return nil
	}

	p.logger.Info().Str("event", string(event)).Msg("Stored session changed outside this process")
	p.emit(event, stored)
	return nil
}

func classifyChange(last, stored *session.Session) (session.Event, bool) {
	switch {
	case last.Equal(stored):
		return "", false
	case stored == nil:
		return session.EventSignedOut, true
	case last == nil || last.User.ID != stored.User.ID:
		return session.EventSignedIn, true
	case last.AccessToken == stored.AccessToken && last.RefreshToken == stored.RefreshToken:
		return session.EventUserUpdated, true
	default:
		return session.EventTokenRefreshed, true
	}
}

func (p *Provider) emissions() uint64 {
	p.emitMu.Lock()
	defer p.emitMu.Unlock()
	return p.emitSeq
}

// remember records s as the last known session unless something was emitted
// after seq was taken; that emission is newer than the fetch result.
func (p *Provider) remember(seq uint64, s *session.Session) {
	p.emitMu.Lock()
	defer p.emitMu.Unlock()
	if p.emitSeq == seq {
		p.lastKnown = s
	}
}

// OnSessionChange registers fn for every future transition. Listeners run
// synchronously, one emission at a time, in emission order.
func (p *Provider) OnSessionChange(fn session.ChangeFunc) session.Registration {
	reg := &registration{
		id:       ulid.Make().String(),
		fn:       fn,
		provider: p,
	}
	reg.active.Store(true)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		reg.active.Store(false)
		return reg
	}
	p.listeners[reg.id] = reg
	return reg
}

// emit queues a transition. Emissions triggered from inside a listener are
// delivered after the current one completes.
func (p *Provider) emit(event session.Event, s *session.Session) {
	p.emitMu.Lock()
	p.lastKnown = s
	p.emitSeq++
	p.emitQueue = append(p.emitQueue, emission{event: event, session: s})
	if p.emitting {
		p.emitMu.Unlock()
		return
	}
	p.emitting = true

	for len(p.emitQueue) > 0 {
		next := p.emitQueue[0]
		p.emitQueue = p.emitQueue[1:]
		p.emitMu.Unlock()

		for _, reg := range p.activeListeners() {
			reg.deliver(next)
		}

		p.emitMu.Lock()
	}

	p.emitting = false
	p.emitMu.Unlock()
}

func (p *Provider) activeListeners() []*registration {
	p.mu.Lock()
	defer p.mu.Unlock()

	regs := make([]*registration, 0, len(p.listeners))
	for _, reg := range p.listeners {
		regs = append(regs, reg)
	}
	return regs
}

// Close ends the change stream. Registrations stop receiving events and
// their Done channels close.
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	for id, reg := range p.listeners {
		reg.active.Store(false)
		delete(p.listeners, id)
	}
	close(p.done)
	p.logger.Debug().Msg("Session change stream closed")
}

type registration struct {
	id       string
	fn       session.ChangeFunc
	provider *Provider
	active   atomic.Bool
}

func (r *registration) Unsubscribe() {
	if !r.active.CompareAndSwap(true, false) {
		return
	}
	r.provider.mu.Lock()
	delete(r.provider.listeners, r.id)
	r.provider.mu.Unlock()
}

func (r *registration) Done() <-chan struct{} {
	return r.provider.done
}

func (r *registration) deliver(e emission) {
	if !r.active.Load() {
		return
	}
	r.fn(e.event, e.session)
}
