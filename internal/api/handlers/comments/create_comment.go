package comments

import (
	"net/http"

	"github.com/goccy/go-json"

	"Remark/internal/core/comments"
)

// CreateCommentHandler handles comment creation requests
type CreateCommentHandler struct {
	service comments.Service
}

// NewCreateCommentHandler creates a new handler for creating comments
func NewCreateCommentHandler(service comments.Service) *CreateCommentHandler {
	return &CreateCommentHandler{
		service: service,
	}
}

// CreateCommentInput is the request body for comment creation. An itype_id of
// 0 (or absent) means i_id names the parent comment; any other value means
// i_id names an external object of that type.
type CreateCommentInput struct {
	UserID  *int64 `json:"user_id" validate:"required"`
	ITypeID int64  `json:"itype_id"`
	IID     *int64 `json:"i_id" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// HandleCreate handles comment creation requests
// PUT /api/comment/
func (h *CreateCommentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	// Limit request body size to prevent DoS attacks (100KB should be plenty for comments)
	r.Body = http.MaxBytesReader(w, r.Body, 100*1024)

	var input CreateCommentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request",
			map[string]string{"_": "Invalid request body"})
		return
	}

	if err := validate.Struct(input); err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request", dataErrors(err))
		return
	}

	comment, err := h.service.Create(r.Context(), comments.CreateRequest{
		AuthorID: *input.UserID,
		ITypeID:  input.ITypeID,
		IID:      *input.IID,
		Content:  input.Content,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, comments.NewCommentView(comment))
}
