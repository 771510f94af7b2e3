package reports

import (
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"Remark/internal/core/reports"
)

// downloadChunkSize bounds how much of a freshly built report is buffered
// per write on the live path.
const downloadChunkSize = 1024

// DownloadReportHandler serves report downloads: cached files directly,
// fresh builds by queueing the request and streaming the file once the
// builder signals completion.
type DownloadReportHandler struct {
	service reports.Service
}

// NewDownloadReportHandler creates a new handler for report downloads
func NewDownloadReportHandler(service reports.Service) *DownloadReportHandler {
	return &DownloadReportHandler{
		service: service,
	}
}

// HandleDownload serves a report scoped by subtree, author and/or creation
// window. At least one of i_id and author_id is required; start and end are
// unix milliseconds. A cached response carries Content-Length; a live build
// is sent chunked.
// GET /api/comments/download/[{format}/]?i_id=&itype_id=&author_id=&start=&end=&user_id=
func (h *DownloadReportHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	format, err := reports.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request",
			map[string]string{"format": "unknown report format"})
		return
	}

	req := reports.DownloadRequest{Fmt: format}

	q := r.URL.Query()

	userID, err := strconv.ParseInt(q.Get("user_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request",
			map[string]string{"user_id": "must be an integer"})
		return
	}
	req.UserID = userID

	intParam := func(name string) (*int64, bool) {
		raw := q.Get(name)
		if raw == "" {
			return nil, true
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Bad Request",
				map[string]string{name: "must be an integer"})
			return nil, false
		}
		return &v, true
	}

	var ok bool
	if req.IID, ok = intParam("i_id"); !ok {
		return
	}
	if req.AuthorID, ok = intParam("author_id"); !ok {
		return
	}

	itypeID, ok := intParam("itype_id")
	if !ok {
		return
	}
	if itypeID != nil {
		req.ITypeID = *itypeID
	}

	start, ok := intParam("start")
	if !ok {
		return
	}
	if start != nil {
		t := time.UnixMilli(*start).UTC()
		req.Start = &t
	}

	end, ok := intParam("end")
	if !ok {
		return
	}
	if end != nil {
		t := time.UnixMilli(*end).UTC()
		req.End = &t
	}

	result, err := h.service.Download(r.Context(), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// on the live path the build must finish before headers go out, so a
	// failed build can still surface as a 500
	if !result.Cached {
		if err := result.Wait(r.Context()); err != nil {
			if errors.Is(err, reports.ErrBuildFailed) {
				writeError(w, http.StatusInternalServerError, "Report Build Failed", nil)
			} else {
				handleServiceError(w, err)
			}
			return
		}
	}

	file, err := os.Open(result.Path)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.Printf("Failed to close report file: %v", err)
		}
	}()

	w.Header().Set("Content-Type", "text/xml")
	w.Header().Set("Content-Disposition", `attachment; filename="report.`+format.String()+`"`)
	w.Header().Set("Cache-Control", "no-cache")

	if result.Cached {
		w.Header().Set("Content-Length", strconv.FormatInt(result.Size, 10))
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, file); err != nil {
			log.Printf("Report download aborted: %v", err)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	buf := make([]byte, downloadChunkSize)
	for {
		n, err := file.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			log.Printf("Report download aborted: %v", err)
			return
		}
	}
}
