package usecase

import (
	"context"
	"errors"
	"testing"

	"codentor-backend/internal/note/domain"
	"codentor-backend/internal/note/repository"
	"codentor-backend/pkg/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryIndex struct {
	docs    map[string]string
	hits    []string
	err     error
	deleted []string
}

func (m *memoryIndex) UpsertNote(_ context.Context, noteID, _, title, _ string) error {
	if m.docs == nil {
		m.docs = map[string]string{}
	}
	m.docs[noteID] = title
	return nil
}

func (m *memoryIndex) SearchNotes(context.Context, string, string, int) ([]string, error) {
	return m.hits, m.err
}

func (m *memoryIndex) DeleteNote(_ context.Context, noteID string) error {
	m.deleted = append(m.deleted, noteID)
	return nil
}

func newRepo(t *testing.T) repository.NoteRepository {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Note{}))
	return repository.NewGormNoteRepository(db)
}

func TestTextSearchWithoutIndex(t *testing.T) {
	uc := NewNoteUsecase(newRepo(t), nil)
	ctx := context.Background()

	_, err := uc.CreateNote(ctx, "u1", NoteRequest{Title: "Dijkstra", Content: "shortest paths with a heap"})
	require.NoError(t, err)
	_, err = uc.CreateNote(ctx, "u1", NoteRequest{Title: "Tries", Content: "prefix trees, 100% useful"})
	require.NoError(t, err)
	_, err = uc.CreateNote(ctx, "u2", NoteRequest{Title: "Heap sort"})
	require.NoError(t, err)

	hits, err := uc.Search(ctx, "u1", "HEAP", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Dijkstra", hits[0].Title)

	hits, err = uc.Search(ctx, "u1", "100%", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Tries", hits[0].Title)

	_, err = uc.CreateNote(ctx, "u1", NoteRequest{Title: "  "})
	assert.ErrorIs(t, err, domain.ErrTitleRequired)
}

func TestSemanticSearchKeepsIndexOrder(t *testing.T) {
	repo := newRepo(t)
	index := &memoryIndex{}
	uc := NewNoteUsecase(repo, index)
	ctx := context.Background()

	a, err := uc.CreateNote(ctx, "u1", NoteRequest{Title: "Graphs"})
	require.NoError(t, err)
	b, err := uc.CreateNote(ctx, "u1", NoteRequest{Title: "Trees"})
	require.NoError(t, err)
	other, err := uc.CreateNote(ctx, "u2", NoteRequest{Title: "Not yours"})
	require.NoError(t, err)
	assert.Len(t, index.docs, 3)

	index.hits = []string{b.ID, other.ID, a.ID}
	hits, err := uc.Search(ctx, "u1", "hierarchies", 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "Trees", hits[0].Title)
	assert.Equal(t, "Graphs", hits[1].Title)

	index.err = errors.New("chroma unavailable")
	hits, err = uc.Search(ctx, "u1", "graph", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, a.ID, hits[0].ID)
}

func TestUpdateAndDeleteAreOwnerScoped(t *testing.T) {
	index := &memoryIndex{}
	uc := NewNoteUsecase(newRepo(t), index)
	ctx := context.Background()

	note, err := uc.CreateNote(ctx, "u1", NoteRequest{Title: "Draft"})
	require.NoError(t, err)

	_, err = uc.UpdateNote(ctx, "u2", note.ID, NoteRequest{Title: "Hijack"})
	assert.ErrorIs(t, err, domain.ErrNoteNotFound)

	updated, err := uc.UpdateNote(ctx, "u1", note.ID, NoteRequest{Title: "Final", Tags: []string{"go"}})
	require.NoError(t, err)
	assert.Equal(t, "Final", updated.Title)
	assert.Equal(t, "Final", index.docs[note.ID])

	assert.ErrorIs(t, uc.DeleteNote(ctx, "u2", note.ID), domain.ErrNoteNotFound)
	require.NoError(t, uc.DeleteNote(ctx, "u1", note.ID))
	assert.Equal(t, []string{note.ID}, index.deleted)

	_, err = uc.GetNote("u1", note.ID)
	assert.ErrorIs(t, err, domain.ErrNoteNotFound)
}
