package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleksTheDev/snacker/internal/identity"
	"github.com/AleksTheDev/snacker/internal/session"
)

const (
	defaultHistoryLimit = 50
	streamBuffer        = 16
	keepAliveInterval   = 15 * time.Second
)

// SessionResponse is the public view of the session cell. Tokens are never
// exposed.
type SessionResponse struct {
	Status    string        `json:"status"`
	Event     string        `json:"event,omitempty"`
	User      *session.User `json:"user,omitempty"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
}

func newSessionResponse(st session.State) SessionResponse {
	resp := SessionResponse{
		Status: st.Status.String(),
		Event:  string(st.Event),
	}
	if st.Session != nil {
		user := st.Session.User
		resp.User = &user
		if !st.Session.ExpiresAt.IsZero() {
			expiresAt := st.Session.ExpiresAt.UTC()
			resp.ExpiresAt = &expiresAt
		}
	}
	return resp
}

// @Summary Get the current session state
// @Produce json
// @Success 200 {object} SessionResponse
// @Router /api/session [get]
func (s *Server) getSession(c *gin.Context) {
	c.JSON(http.StatusOK, newSessionResponse(s.sessions.Current()))
}

// @Summary Stream session changes as Server-Sent Events
// @Produce text/event-stream
// @Router /api/session/events [get]
func (s *Server) streamSession(c *gin.Context) {
	states := make(chan session.State, streamBuffer)

	// Observers run on the synchronizer's queue and must not block. A slow
	// client loses intermediate states, never the latest one.
	sub := s.sessions.Subscribe(func(st session.State) {
		for {
			select {
			case states <- st:
				return
			default:
			}
			select {
			case <-states:
			default:
			}
		}
	})
	defer sub.Unsubscribe()

	s.logger.Debug().Str("subscription_id", sub.ID()).Msg("Event stream opened")

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case st := <-states:
			c.SSEvent("session", newSessionResponse(st))
			return true
		case <-keepAlive.C:
			_, err := io.WriteString(w, ": keepalive\n\n")
			return err == nil
		case <-ctx.Done():
			return false
		case <-s.stopping:
			return false
		}
	})

	s.logger.Debug().Str("subscription_id", sub.ID()).Msg("Event stream closed")
}

// @Summary List recent session transitions
// @Produce json
// @Param limit query int false "Maximum number of transitions"
// @Router /api/session/history [get]
func (s *Server) listHistory(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondWithError(c, s.logger, http.StatusBadRequest, err, "limit must be a positive integer")
			return
		}
		limit = n
	}

	transitions, err := s.history.Recent(limit)
	if err != nil {
		respondWithError(c, s.logger, http.StatusInternalServerError, err, "Failed to list history")
		return
	}

	c.JSON(http.StatusOK, gin.H{"transitions": transitions})
}

// @Summary Refresh the session tokens
// @Router /api/session/refresh [post]
func (s *Server) refreshSession(c *gin.Context) {
	if _, err := s.actions.Refresh(c.Request.Context()); err != nil {
		s.respondWithProviderError(c, err, "Failed to refresh session")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "refreshed"})
}

// @Summary Sign out of the project
// @Router /api/session/logout [post]
func (s *Server) logout(c *gin.Context) {
	if err := s.actions.SignOut(c.Request.Context()); err != nil {
		s.respondWithProviderError(c, err, "Failed to sign out")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "signed_out"})
}

func (s *Server) respondWithProviderError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, identity.ErrNoSession):
		respondWithError(c, s.logger, http.StatusConflict, err, "Not signed in")
	case identity.IsUnauthorized(err):
		respondWithError(c, s.logger, http.StatusUnauthorized, err, "Session was rejected by the identity provider")
	default:
		respondWithError(c, s.logger, http.StatusBadGateway, err, message)
	}
}
