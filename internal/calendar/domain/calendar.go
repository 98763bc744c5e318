package domain

import (
	"time"

	"codentor-backend/pkg/apperror"
)

// GoogleToken is a user's stored Google OAuth grant. Token values are sealed
// at rest when an encryption key is configured.
type GoogleToken struct {
	UserID       string    `json:"userId" gorm:"primaryKey"`
	AccessToken  string    `json:"-" gorm:"not null"`
	RefreshToken string    `json:"-"`
	TokenType    string    `json:"tokenType"`
	Scope        string    `json:"scope"`
	Expiry       time.Time `json:"expiry"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Expired reports whether the access token must be refreshed before use.
func (t *GoogleToken) Expired(now time.Time) bool {
	return t.AccessToken == "" || !now.Before(t.Expiry)
}

// EventInput is what a task contributes to its calendar event.
type EventInput struct {
	Title       string
	Description string
	Start       time.Time
}

// Event is a calendar event as seen by the sync reconciler.
type Event struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Start       *time.Time `json:"start,omitempty"`
	End         *time.Time `json:"end,omitempty"`
	// AllDay events carry a date but no time of day.
	AllDay  bool   `json:"allDay"`
	HTMLURL string `json:"htmlLink,omitempty"`
}

var (
	ErrNotConnected      = apperror.NotFound("google calendar is not connected")
	ErrReconnectRequired = apperror.Conflict("google calendar must be reconnected")
	ErrInvalidState      = apperror.Validation("invalid or expired oauth state")
)
