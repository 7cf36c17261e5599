package identity

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"

	"github.com/AleksTheDev/snacker/internal/session"
)

const testAnonKey = "anon-key"

// memoryStore is an in-memory CredentialStore
type memoryStore struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
	loadErr  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{sessions: make(map[string]*session.Session)}
}

func (m *memoryStore) LoadSession(projectRef string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.sessions[projectRef], nil
}

func (m *memoryStore) SaveSession(projectRef string, s *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[projectRef] = s
	return nil
}

func (m *memoryStore) DeleteSession(projectRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, projectRef)
	return nil
}

func signedToken(t *testing.T, subject, email string, expiresAt time.Time) string {
	t.Helper()

	claims := Claims{
		Email: email,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("server-side-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

// fakeAuthServer mimics the parts of a GoTrue endpoint the client uses
type fakeAuthServer struct {
	*httptest.Server
	t *testing.T

	mu            sync.Mutex
	validAccess   map[string]bool
	validRefresh  map[string]bool
	rotation      int
	refreshCalls  int
	userCalls     int
	logoutCalls   int
	userStatus    int
	tokenLifetime time.Duration

	// beforeUser, when set before any request, runs ahead of each user
	// lookup without holding mu
	beforeUser func()
}

func newFakeAuthServer(t *testing.T) *fakeAuthServer {
	t.Helper()

	f := &fakeAuthServer{
		t:             t,
		validAccess:   make(map[string]bool),
		validRefresh:  make(map[string]bool),
		tokenLifetime: time.Hour,
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Close)
	return f
}

// issue creates a session the server will accept
func (f *fakeAuthServer) issue(subject string, expiresAt time.Time) *session.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mint(subject, expiresAt)
}

// mint must be called with f.mu held
func (f *fakeAuthServer) mint(subject string, expiresAt time.Time) *session.Session {
	f.rotation++
	s := &session.Session{
		AccessToken:  signedToken(f.t, subject, subject+"@example.com", expiresAt),
		RefreshToken: fmt.Sprintf("refresh-%d", f.rotation),
		TokenType:    "bearer",
		ExpiresAt:    expiresAt.Truncate(time.Second).UTC(),
		User:         session.User{ID: subject, Email: subject + "@example.com", Role: "authenticated"},
	}
	f.validAccess[s.AccessToken] = true
	f.validRefresh[s.RefreshToken] = true
	return s
}

func (f *fakeAuthServer) setUserStatus(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userStatus = status
}

func (f *fakeAuthServer) revokeAccess(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.validAccess, token)
}

type callCounts struct {
	user, refresh, logout int
}

func (f *fakeAuthServer) calls() callCounts {
	f.mu.Lock()
	defer f.mu.Unlock()
	return callCounts{user: f.userCalls, refresh: f.refreshCalls, logout: f.logoutCalls}
}

func (f *fakeAuthServer) writeToken(w http.ResponseWriter, subject string) {
	s := f.mint(subject, time.Now().Add(f.tokenLifetime))
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  s.AccessToken,
		"token_type":    "bearer",
		"expires_in":    int64(f.tokenLifetime.Seconds()),
		"expires_at":    s.ExpiresAt.Unix(),
		"refresh_token": s.RefreshToken,
		"user": map[string]string{
			"id":    s.User.ID,
			"email": s.User.Email,
			"role":  s.User.Role,
		},
	})
}

func (f *fakeAuthServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("apikey") != testAnonKey {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid API key"})
		return
	}

	if r.URL.Path == "/auth/v1/user" && f.beforeUser != nil {
		f.beforeUser()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.URL.Path == "/auth/v1/token" && r.URL.Query().Get("grant_type") == "password":
		var body passwordGrantRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Email != "alice@example.com" || body.Password != "secret" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":             "invalid_grant",
				"error_description": "Invalid login credentials",
			})
			return
		}
		f.writeToken(w, "alice")

	case r.URL.Path == "/auth/v1/token" && r.URL.Query().Get("grant_type") == "refresh_token":
		f.refreshCalls++
		var body refreshGrantRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if !f.validRefresh[body.RefreshToken] {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":             "invalid_grant",
				"error_description": "Invalid Refresh Token: Refresh Token Not Found",
			})
			return
		}
		delete(f.validRefresh, body.RefreshToken)
		f.writeToken(w, "alice")

	case r.URL.Path == "/auth/v1/user" && r.Method == http.MethodGet:
		f.userCalls++
		if f.userStatus != 0 {
			writeJSON(w, f.userStatus, map[string]any{"code": f.userStatus, "msg": "upstream unavailable"})
			return
		}
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !f.validAccess[token] {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"code": 401, "error_code": "bad_jwt", "msg": "invalid JWT"})
			return
		}
		claims, _ := ParseAccessToken(token)
		writeJSON(w, http.StatusOK, map[string]string{
			"id":    claims.Subject,
			"email": claims.Email,
			"role":  claims.Role,
		})

	case r.URL.Path == "/auth/v1/logout" && r.Method == http.MethodPost:
		f.logoutCalls++
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		delete(f.validAccess, token)
		w.WriteHeader(http.StatusNoContent)

	default:
		f.t.Errorf("unexpected request: %s %s", r.Method, r.URL.String())
		w.WriteHeader(http.StatusNotFound)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
