package comments

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"Remark/internal/core/comments"
)

// ListCommentsHandler handles first-level children listings
type ListCommentsHandler struct {
	service comments.Service
}

// NewListCommentsHandler creates a new handler for listing comments
func NewListCommentsHandler(service comments.Service) *ListCommentsHandler {
	return &ListCommentsHandler{
		service: service,
	}
}

// HandleList returns the direct children of an instance or comment ordered by
// tree position. limit and last_id are optional path segments; last_id names
// the last comment of the previous page.
// GET /api/comments/list/{i_id}/{itype_id}/[{limit}/[{last_id}/]]
func (h *ListCommentsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	iID, err := strconv.ParseInt(chi.URLParam(r, "i_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request",
			map[string]string{"i_id": "must be an integer"})
		return
	}

	itypeID, err := strconv.ParseInt(chi.URLParam(r, "itype_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request",
			map[string]string{"itype_id": "must be an integer"})
		return
	}

	req := comments.ListRequest{IID: iID, ITypeID: itypeID}

	if raw := chi.URLParam(r, "limit"); raw != "" {
		req.Limit, err = strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Bad Request",
				map[string]string{"limit": "must be an integer"})
			return
		}
	}

	if raw := chi.URLParam(r, "last_id"); raw != "" {
		req.LastID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Bad Request",
				map[string]string{"last_id": "must be an integer"})
			return
		}
	}

	list, err := h.service.List(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, comments.ErrInstanceNotFound):
			writeError(w, http.StatusNotFound, "Instance Not Found",
				map[string]int64{"i_id": iID, "itype_id": itypeID})
		case errors.Is(err, comments.ErrCommentNotFound) && req.LastID != 0:
			writeError(w, http.StatusNotFound, "Comment Not Found",
				map[string]string{"last_id": fmt.Sprintf("Comment #%d doesn't exist.", req.LastID)})
		default:
			handleServiceError(w, err)
		}
		return
	}

	views := make([]comments.CommentView, 0, len(list))
	for _, c := range list {
		views = append(views, comments.NewCommentView(c))
	}

	writeJSON(w, http.StatusOK, views)
}
