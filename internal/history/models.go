package history

import (
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// BaseModel provides common fields and auto-generated ULID for all models
type BaseModel struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(26)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = ulid.Make().String()
	}
	return nil
}

// Transition is one applied change of the session cell. Tokens are never
// stored.
type Transition struct {
	BaseModel
	Project   string     `json:"project" gorm:"type:varchar(255);not null;index"`
	Event     string     `json:"event" gorm:"type:varchar(32);not null"`
	Status    string     `json:"status" gorm:"type:varchar(16);not null"`
	UserID    string     `json:"user_id,omitempty"`
	Email     string     `json:"email,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// AutoMigrate creates or updates the history tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Transition{})
}
