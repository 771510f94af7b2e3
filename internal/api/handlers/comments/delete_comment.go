package comments

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"Remark/internal/core/comments"
)

// DeleteCommentHandler handles comment deletion requests
type DeleteCommentHandler struct {
	service comments.Service
}

// NewDeleteCommentHandler creates a new handler for deleting comments
func NewDeleteCommentHandler(service comments.Service) *DeleteCommentHandler {
	return &DeleteCommentHandler{
		service: service,
	}
}

// DeleteCommentInput is the request body for deletion; the acting user must
// be the comment's author.
type DeleteCommentInput struct {
	UserID *int64 `json:"user_id" validate:"required"`
}

// HandleDelete handles comment deletion requests. Only childless comments may
// be deleted.
// DELETE /api/comment/{id}/
func (h *DeleteCommentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request",
			map[string]string{"id": "must be an integer"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 100*1024)

	var input DeleteCommentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request",
			map[string]string{"_": "Invalid request body"})
		return
	}

	if err := validate.Struct(input); err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request", dataErrors(err))
		return
	}

	if err := h.service.Delete(r.Context(), id, *input.UserID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct{}{})
}
