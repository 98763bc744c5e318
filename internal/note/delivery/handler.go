package delivery

import (
	"net/http"
	"strconv"

	"codentor-backend/internal/note/usecase"
	"codentor-backend/pkg/apperror"

	"github.com/gin-gonic/gin"
)

type NoteHandler struct {
	notes usecase.NoteUsecase
}

func NewNoteHandler(notes usecase.NoteUsecase) *NoteHandler {
	return &NoteHandler{notes: notes}
}

// List returns the user's notes, or search hits with ?q=
// GET /api/notes?q=graphs&limit=20&offset=0
func (h *NoteHandler) List(c *gin.Context) {
	userID := c.GetString("userID")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	if q := c.Query("q"); q != "" {
		notes, err := h.notes.Search(c.Request.Context(), userID, q, limit)
		if err != nil {
			apperror.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"notes": notes, "total": len(notes), "semantic": h.notes.SemanticEnabled()})
		return
	}

	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	notes, total, err := h.notes.ListNotes(userID, limit, offset)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notes": notes, "total": total})
}

// Get returns one note
// GET /api/notes/:id
func (h *NoteHandler) Get(c *gin.Context) {
	note, err := h.notes.GetNote(c.GetString("userID"), c.Param("id"))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, note)
}

// Create stores a new note
// POST /api/notes
func (h *NoteHandler) Create(c *gin.Context) {
	var req usecase.NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Respond(c, apperror.Validation(err.Error()))
		return
	}
	note, err := h.notes.CreateNote(c.Request.Context(), c.GetString("userID"), req)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, note)
}

// Update replaces a note's title, content and tags
// PUT /api/notes/:id
func (h *NoteHandler) Update(c *gin.Context) {
	var req usecase.NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Respond(c, apperror.Validation(err.Error()))
		return
	}
	note, err := h.notes.UpdateNote(c.Request.Context(), c.GetString("userID"), c.Param("id"), req)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, note)
}

// Delete removes a note and its embedding
// DELETE /api/notes/:id
func (h *NoteHandler) Delete(c *gin.Context) {
	if err := h.notes.DeleteNote(c.Request.Context(), c.GetString("userID"), c.Param("id")); err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Note deleted"})
}
