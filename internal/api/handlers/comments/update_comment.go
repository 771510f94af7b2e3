package comments

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"Remark/internal/core/comments"
)

// UpdateCommentHandler handles comment content updates
type UpdateCommentHandler struct {
	service comments.Service
}

// NewUpdateCommentHandler creates a new handler for updating comments
func NewUpdateCommentHandler(service comments.Service) *UpdateCommentHandler {
	return &UpdateCommentHandler{
		service: service,
	}
}

// UpdateCommentInput is the request body for content updates.
type UpdateCommentInput struct {
	UserID  *int64 `json:"user_id" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// HandleUpdate handles comment content updates
// POST /api/comment/{id}/
func (h *UpdateCommentHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request",
			map[string]string{"id": "must be an integer"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 100*1024)

	var input UpdateCommentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request",
			map[string]string{"_": "Invalid request body"})
		return
	}

	if err := validate.Struct(input); err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request", dataErrors(err))
		return
	}

	comment, err := h.service.Update(r.Context(), comments.UpdateRequest{
		ID:      id,
		UserID:  *input.UserID,
		Content: input.Content,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, comments.NewCommentView(comment))
}
