package comments

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"Remark/internal/core/comments"
)

// TreeCommentsHandler handles subtree reads: the flat pre-order tree listing
// and the branch variant that carries the root alongside it.
type TreeCommentsHandler struct {
	service comments.Service
}

// NewTreeCommentsHandler creates a new handler for subtree reads
func NewTreeCommentsHandler(service comments.Service) *TreeCommentsHandler {
	return &TreeCommentsHandler{
		service: service,
	}
}

// BranchOutput is the branch response: the resolved root plus its subtree.
type BranchOutput struct {
	Root     interface{}                `json:"root"`
	Comments []comments.TreeCommentView `json:"comments"`
}

// HandleTree returns the whole subtree under (i_id, itype_id) as a JSON
// array in pre-order.
// GET /api/comments/tree/{i_id}/[{itype_id}/]
func (h *TreeCommentsHandler) HandleTree(w http.ResponseWriter, r *http.Request) {
	iID, itypeID, ok := h.treeParams(w, r)
	if !ok {
		return
	}

	_, iter, err := h.service.Tree(r.Context(), iID, itypeID)
	if err != nil {
		handleTreeError(w, err, iID, itypeID)
		return
	}

	views, err := drainTree(r.Context(), iter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, views)
}

// HandleBranch returns {"root": ..., "comments": [...]} for the subtree
// under (i_id, itype_id). The root is a full comment view when itype_id is
// 0 and a bare instance reference otherwise.
// GET /api/comments/branch/{i_id}/[{itype_id}/]
func (h *TreeCommentsHandler) HandleBranch(w http.ResponseWriter, r *http.Request) {
	iID, itypeID, ok := h.treeParams(w, r)
	if !ok {
		return
	}

	root, iter, err := h.service.Tree(r.Context(), iID, itypeID)
	if err != nil {
		handleTreeError(w, err, iID, itypeID)
		return
	}

	views, err := drainTree(r.Context(), iter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := BranchOutput{Comments: views}
	if root.Comment != nil {
		out.Root = comments.NewTreeCommentView(root.Comment)
	} else {
		out.Root = comments.InstanceRootView{
			ID:      root.Instance.ID,
			ITypeID: root.Instance.ITypeID,
			IID:     root.Instance.IID,
		}
	}

	writeJSON(w, http.StatusOK, out)
}

func (h *TreeCommentsHandler) treeParams(w http.ResponseWriter, r *http.Request) (iID, itypeID int64, ok bool) {
	iID, err := strconv.ParseInt(chi.URLParam(r, "i_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request",
			map[string]string{"i_id": "must be an integer"})
		return 0, 0, false
	}

	if raw := chi.URLParam(r, "itype_id"); raw != "" {
		itypeID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Bad Request",
				map[string]string{"itype_id": "must be an integer"})
			return 0, 0, false
		}
	}

	return iID, itypeID, true
}

func handleTreeError(w http.ResponseWriter, err error, iID, itypeID int64) {
	switch {
	case errors.Is(err, comments.ErrCommentNotFound):
		writeError(w, http.StatusNotFound, "Comment Not Found",
			map[string]int64{"i_id": iID})
	case errors.Is(err, comments.ErrInstanceNotFound):
		writeError(w, http.StatusNotFound, "Instance Not Found",
			map[string]int64{"i_id": iID, "itype_id": itypeID})
	default:
		handleServiceError(w, err)
	}
}

// drainTree collects an iterator into tree views, closing it either way.
func drainTree(ctx context.Context, iter comments.Iterator) ([]comments.TreeCommentView, error) {
	defer func() {
		if err := iter.Close(); err != nil {
			log.Printf("Failed to close comment iterator: %v", err)
		}
	}()

	views := []comments.TreeCommentView{}
	for {
		chunk, err := iter.NextChunk(ctx, streamChunkSize)
		if err != nil {
			return nil, err
		}
		if len(chunk) == 0 {
			return views, nil
		}
		for _, c := range chunk {
			views = append(views, comments.NewTreeCommentView(c))
		}
	}
}
