package history

import (
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/AleksTheDev/snacker/internal/session"
)

const maxRecent = 500

// Recorder writes every observed session state to the history database
type Recorder struct {
	db      *gorm.DB
	project string
	logger  zerolog.Logger
}

// NewRecorder creates a recorder for project
func NewRecorder(db *gorm.DB, project string, logger zerolog.Logger) *Recorder {
	return &Recorder{
		db:      db,
		project: project,
		logger:  logger.With().Str("component", "history").Logger(),
	}
}

// Observe is a session.Observer. Pending states are not recorded.
func (r *Recorder) Observe(st session.State) {
	if st.Pending() {
		return
	}

	transition := Transition{
		Project: r.project,
		Event:   string(st.Event),
		Status:  st.Status.String(),
	}
	if st.Session != nil {
		transition.UserID = st.Session.User.ID
		transition.Email = st.Session.User.Email
		if !st.Session.ExpiresAt.IsZero() {
			expiresAt := st.Session.ExpiresAt
			transition.ExpiresAt = &expiresAt
		}
	}

	if err := r.db.Create(&transition).Error; err != nil {
		r.logger.Error().Err(err).Str("event", transition.Event).Msg("Failed to record session transition")
		return
	}

	r.logger.Debug().
		Str("transition_id", transition.ID).
		Str("event", transition.Event).
		Str("status", transition.Status).
		Msg("Recorded session transition")
}

// Recent returns up to limit transitions for the project, newest first
func (r *Recorder) Recent(limit int) ([]Transition, error) {
	if limit <= 0 || limit > maxRecent {
		limit = maxRecent
	}

	var transitions []Transition
	err := r.db.
		Where("project = ?", r.project).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&transitions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}
	return transitions, nil
}
