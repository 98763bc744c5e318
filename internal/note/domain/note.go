package domain

import (
	"time"

	"codentor-backend/pkg/apperror"
)

// Note is a free-form study note. Notes are indexed for semantic search when
// a vector store is configured.
type Note struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"userId" gorm:"index;not null"`
	Title     string    `json:"title" gorm:"not null"`
	Content   string    `json:"content" gorm:"type:text"`
	Tags      []string  `json:"tags" gorm:"serializer:json"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

var (
	ErrNoteNotFound  = apperror.NotFound("note not found")
	ErrTitleRequired = apperror.Validation("title is required")
)
