package usecase

import (
	"context"
	"strings"
	"time"

	"codentor-backend/internal/note/domain"
	"codentor-backend/internal/note/repository"
	"codentor-backend/pkg/logger"
)

const indexTimeout = 15 * time.Second

// VectorIndex is the semantic index notes are mirrored into.
type VectorIndex interface {
	UpsertNote(ctx context.Context, noteID, userID, title, content string) error
	SearchNotes(ctx context.Context, userID, query string, limit int) ([]string, error)
	DeleteNote(ctx context.Context, noteID string) error
}

type NoteRequest struct {
	Title   string   `json:"title" binding:"required"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

type NoteUsecase interface {
	CreateNote(ctx context.Context, userID string, req NoteRequest) (*domain.Note, error)
	GetNote(userID, noteID string) (*domain.Note, error)
	ListNotes(userID string, limit, offset int) ([]*domain.Note, int64, error)
	UpdateNote(ctx context.Context, userID, noteID string, req NoteRequest) (*domain.Note, error)
	DeleteNote(ctx context.Context, userID, noteID string) error
	// Search runs a semantic search when an index is configured and a
	// substring search otherwise, or when the index fails.
	Search(ctx context.Context, userID, query string, limit int) ([]*domain.Note, error)
	SemanticEnabled() bool
}

type noteUsecase struct {
	repo  repository.NoteRepository
	index VectorIndex
}

// NewNoteUsecase builds the note usecase. index may be nil.
func NewNoteUsecase(repo repository.NoteRepository, index VectorIndex) NoteUsecase {
	return &noteUsecase{repo: repo, index: index}
}

func (u *noteUsecase) SemanticEnabled() bool { return u.index != nil }

func (u *noteUsecase) CreateNote(ctx context.Context, userID string, req NoteRequest) (*domain.Note, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, domain.ErrTitleRequired
	}
	note := &domain.Note{UserID: userID, Title: title, Content: req.Content, Tags: req.Tags}
	if err := u.repo.Create(note); err != nil {
		return nil, err
	}
	u.reindex(ctx, note)
	return note, nil
}

func (u *noteUsecase) GetNote(userID, noteID string) (*domain.Note, error) {
	note, err := u.repo.FindByID(noteID)
	if err != nil {
		return nil, err
	}
	if note == nil || note.UserID != userID {
		return nil, domain.ErrNoteNotFound
	}
	return note, nil
}

func (u *noteUsecase) ListNotes(userID string, limit, offset int) ([]*domain.Note, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	notes, total, err := u.repo.FindByUserID(userID, limit, offset)
	if notes == nil {
		notes = []*domain.Note{}
	}
	return notes, total, err
}

func (u *noteUsecase) UpdateNote(ctx context.Context, userID, noteID string, req NoteRequest) (*domain.Note, error) {
	note, err := u.GetNote(userID, noteID)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, domain.ErrTitleRequired
	}
	note.Title = title
	note.Content = req.Content
	note.Tags = req.Tags
	if err := u.repo.Update(note); err != nil {
		return nil, err
	}
	u.reindex(ctx, note)
	return note, nil
}

func (u *noteUsecase) DeleteNote(ctx context.Context, userID, noteID string) error {
	note, err := u.GetNote(userID, noteID)
	if err != nil {
		return err
	}
	if err := u.repo.Delete(note.ID); err != nil {
		return err
	}
	if u.index != nil {
		ctx, cancel := context.WithTimeout(ctx, indexTimeout)
		defer cancel()
		if err := u.index.DeleteNote(ctx, note.ID); err != nil {
			logger.WithContext(ctx).WithError(err).WithField("note_id", note.ID).Warn("[Note] Failed to drop note embedding")
		}
	}
	return nil
}

func (u *noteUsecase) Search(ctx context.Context, userID, query string, limit int) ([]*domain.Note, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		notes, _, err := u.ListNotes(userID, limit, 0)
		return notes, err
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	if u.index != nil {
		ids, err := u.index.SearchNotes(ctx, userID, query, limit)
		if err == nil {
			return u.repo.FindByIDs(userID, ids)
		}
		logger.WithContext(ctx).WithError(err).Warn("[Note] Semantic search failed, falling back to text search")
	}

	notes, err := u.repo.Search(userID, query, limit)
	if notes == nil {
		notes = []*domain.Note{}
	}
	return notes, err
}

// reindex keeps the vector index in step with the database. Index failures
// never fail the write.
func (u *noteUsecase) reindex(ctx context.Context, note *domain.Note) {
	if u.index == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()
	if err := u.index.UpsertNote(ctx, note.ID, note.UserID, note.Title, note.Content); err != nil {
		logger.WithContext(ctx).WithError(err).WithField("note_id", note.ID).Warn("[Note] Failed to index note")
	}
}
