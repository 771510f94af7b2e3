package comments

import (
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"Remark/internal/core/comments"
)

// streamChunkSize bounds how many rows sit in memory per fetch.
const streamChunkSize = 3

// StreamCommentsHandler serves the incremental variants: subtree and
// by-author selections written as \r\n-separated JSON objects, flushed in
// row chunks so consumers can render while the query is still running.
type StreamCommentsHandler struct {
	service comments.Service
}

// NewStreamCommentsHandler creates a new handler for streaming reads
func NewStreamCommentsHandler(service comments.Service) *StreamCommentsHandler {
	return &StreamCommentsHandler{
		service: service,
	}
}

// HandleStreamTree streams the subtree under (i_id, itype_id).
// GET /api/comments/stream/tree/{i_id}/[{itype_id}/]
func (h *StreamCommentsHandler) HandleStreamTree(w http.ResponseWriter, r *http.Request) {
	iID, err := strconv.ParseInt(chi.URLParam(r, "i_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request",
			map[string]string{"i_id": "must be an integer"})
		return
	}

	var itypeID int64
	if raw := chi.URLParam(r, "itype_id"); raw != "" {
		itypeID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Bad Request",
				map[string]string{"itype_id": "must be an integer"})
			return
		}
	}

	_, iter, err := h.service.Tree(r.Context(), iID, itypeID)
	if err != nil {
		handleTreeError(w, err, iID, itypeID)
		return
	}

	streamComments(w, r, iter, func(c *comments.Comment) interface{} {
		return comments.NewTreeCommentView(c)
	})
}

// HandleStreamUser streams all of a user's comments ordered by creation date.
// GET /api/comments/stream/user/{user_id}/
func (h *StreamCommentsHandler) HandleStreamUser(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "user_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request",
			map[string]string{"user_id": "must be an integer"})
		return
	}

	iter, err := h.service.StreamUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	streamComments(w, r, iter, func(c *comments.Comment) interface{} {
		return comments.NewUserCommentView(c)
	})
}

// streamComments writes the iterator's rows as \r\n-separated JSON objects,
// flushing after every chunk. Headers mimic the long-standing contract of
// these endpoints: text/html, no-cache, open CORS.
func streamComments(w http.ResponseWriter, r *http.Request, iter comments.Iterator, view func(*comments.Comment) interface{}) {
	defer func() {
		if err := iter.Close(); err != nil {
			log.Printf("Failed to close comment iterator: %v", err)
		}
	}()

	w.Header().Set("Content-Type", "text/html")
	w.Header().Set("Cache-Control", "no-cache")
	// always present, Origin header or not; browsers consuming the stream
	// cross-origin depend on it
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)

	for {
		chunk, err := iter.NextChunk(r.Context(), streamChunkSize)
		if err != nil {
			// headers are gone; all we can do is stop mid-stream
			log.Printf("Comment stream aborted: %v", err)
			return
		}
		if len(chunk) == 0 {
			return
		}

		for _, c := range chunk {
			row, err := json.Marshal(view(c))
			if err != nil {
				log.Printf("Comment stream aborted: %v", err)
				return
			}
			if _, err := w.Write(append(row, '\r', '\n')); err != nil {
				return
			}
		}

		if flusher != nil {
			flusher.Flush()
		}
	}
}
