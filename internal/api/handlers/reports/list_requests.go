package reports

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"Remark/internal/core/reports"
)

// ListRequestsHandler handles user download request listings
type ListRequestsHandler struct {
	service reports.Service
}

// NewListRequestsHandler creates a new handler for listing download requests
func NewListRequestsHandler(service reports.Service) *ListRequestsHandler {
	return &ListRequestsHandler{
		service: service,
	}
}

// HandleList returns the download requests a user has made, newest first.
// GET /api/comments/download/requests/{user_id}/
func (h *ListRequestsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "user_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request",
			map[string]string{"user_id": "must be an integer"})
		return
	}

	list, err := h.service.ListUserRequests(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	views := make([]reports.UserRequestView, 0, len(list))
	for _, req := range list {
		views = append(views, reports.NewUserRequestView(req))
	}

	writeJSON(w, http.StatusOK, views)
}
