package repository

import (
	"errors"
	"strings"
	"time"

	"codentor-backend/internal/note/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NoteRepository interface {
	Create(note *domain.Note) error
	// FindByID returns nil, nil when the note does not exist.
	FindByID(id string) (*domain.Note, error)
	FindByUserID(userID string, limit, offset int) ([]*domain.Note, int64, error)
	// FindByIDs returns the user's notes among ids in the order of ids.
	FindByIDs(userID string, ids []string) ([]*domain.Note, error)
	// Search is a case-insensitive substring match on title and content.
	Search(userID, query string, limit int) ([]*domain.Note, error)
	Update(note *domain.Note) error
	Delete(id string) error
}

type gormNoteRepository struct {
	db *gorm.DB
}

func NewGormNoteRepository(db *gorm.DB) NoteRepository {
	return &gormNoteRepository{db: db}
}

func (r *gormNoteRepository) Create(note *domain.Note) error {
	if note.ID == "" {
		note.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	note.CreatedAt = now
	note.UpdatedAt = now
	if note.Tags == nil {
		note.Tags = []string{}
	}
	return r.db.Create(note).Error
}

func (r *gormNoteRepository) FindByID(id string) (*domain.Note, error) {
	var note domain.Note
	if err := r.db.Where("id = ?", id).First(&note).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &note, nil
}

func (r *gormNoteRepository) FindByUserID(userID string, limit, offset int) ([]*domain.Note, int64, error) {
	var notes []*domain.Note
	var total int64

	query := r.db.Model(&domain.Note{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("updated_at DESC").Limit(limit).Offset(offset).Find(&notes).Error
	return notes, total, err
}

func (r *gormNoteRepository) FindByIDs(userID string, ids []string) ([]*domain.Note, error) {
	if len(ids) == 0 {
		return []*domain.Note{}, nil
	}
	var notes []*domain.Note
	if err := r.db.Where("user_id = ? AND id IN ?", userID, ids).Find(&notes).Error; err != nil {
		return nil, err
	}

	byID := make(map[string]*domain.Note, len(notes))
	for _, n := range notes {
		byID[n.ID] = n
	}
	ordered := make([]*domain.Note, 0, len(notes))
	for _, id := range ids {
		if n, ok := byID[id]; ok {
			ordered = append(ordered, n)
		}
	}
	return ordered, nil
}

func (r *gormNoteRepository) Search(userID, query string, limit int) ([]*domain.Note, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	var notes []*domain.Note
	err := r.db.
		Where("user_id = ?", userID).
		Where("(LOWER(title) LIKE ? ESCAPE '\\' OR LOWER(content) LIKE ? ESCAPE '\\')", pattern, pattern).
		Order("updated_at DESC").
		Limit(limit).
		Find(&notes).Error
	return notes, err
}

func (r *gormNoteRepository) Update(note *domain.Note) error {
	note.UpdatedAt = time.Now().UTC()
	if note.Tags == nil {
		note.Tags = []string{}
	}
	return r.db.Model(note).Select("title", "content", "tags", "updated_at").Updates(note).Error
}

func (r *gormNoteRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&domain.Note{}).Error
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
