package comments

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"Remark/internal/core/comments"
)

// GetCommentHandler handles single comment reads
type GetCommentHandler struct {
	service comments.Service
}

// NewGetCommentHandler creates a new handler for reading comments
func NewGetCommentHandler(service comments.Service) *GetCommentHandler {
	return &GetCommentHandler{
		service: service,
	}
}

// HandleGet handles single comment reads
// GET /api/comment/{id}/
func (h *GetCommentHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request",
			map[string]string{"id": "must be an integer"})
		return
	}

	comment, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, comments.NewCommentView(comment))
}
