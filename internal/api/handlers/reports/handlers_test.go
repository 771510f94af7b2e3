package reports

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Remark/internal/core/comments"
	"Remark/internal/core/reports"
)

// mockReportService implements reports.Service with overridable behavior
type mockReportService struct {
	downloadFunc func(ctx context.Context, req reports.DownloadRequest) (*reports.DownloadResult, error)
	listFunc     func(ctx context.Context, userID int64) ([]*reports.DlRequest, error)
}

func (m *mockReportService) Download(ctx context.Context, req reports.DownloadRequest) (*reports.DownloadResult, error) {
	return m.downloadFunc(ctx, req)
}

func (m *mockReportService) ListUserRequests(ctx context.Context, userID int64) ([]*reports.DlRequest, error) {
	return m.listFunc(ctx, userID)
}

func newTestRouter(svc reports.Service) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/api/comments/download/requests/{user_id}/", NewListRequestsHandler(svc).HandleList)
	r.Get("/api/comments/download/", NewDownloadReportHandler(svc).HandleDownload)
	r.Get("/api/comments/download/{format}/", NewDownloadReportHandler(svc).HandleDownload)
	return r
}

func writeReportFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.xml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestHandleDownloadCachedReport(t *testing.T) {
	const body = `<?xml version="1.0" encoding="utf-8"?><user_request></user_request>`
	path := writeReportFile(t, body)

	svc := &mockReportService{
		downloadFunc: func(_ context.Context, req reports.DownloadRequest) (*reports.DownloadResult, error) {
			assert.Equal(t, int64(5), req.UserID)
			require.NotNil(t, req.IID)
			assert.Equal(t, int64(1), *req.IID)
			assert.Equal(t, int64(1), req.ITypeID)
			return &reports.DownloadResult{
				Path:   path,
				Size:   int64(len(body)),
				Cached: true,
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/comments/download/xml/?user_id=5&i_id=1&itype_id=1", nil)
	w := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/xml", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="report.xml"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	assert.NotEmpty(t, w.Header().Get("Content-Length"))
	assert.Equal(t, body, w.Body.String())
}

func TestHandleDownloadDefaultsFormatToXML(t *testing.T) {
	path := writeReportFile(t, "<user_request></user_request>")

	svc := &mockReportService{
		downloadFunc: func(_ context.Context, req reports.DownloadRequest) (*reports.DownloadResult, error) {
			assert.Equal(t, reports.FormatXML, req.Fmt)
			return &reports.DownloadResult{Path: path, Cached: true}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/comments/download/?user_id=5&author_id=10", nil)
	w := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleDownloadParsesWindowAsUnixMillis(t *testing.T) {
	path := writeReportFile(t, "<user_request></user_request>")

	svc := &mockReportService{
		downloadFunc: func(_ context.Context, req reports.DownloadRequest) (*reports.DownloadResult, error) {
			require.NotNil(t, req.Start)
			require.NotNil(t, req.End)
			assert.Equal(t, time.Date(2017, 6, 1, 12, 0, 0, 0, time.UTC), *req.Start)
			assert.Equal(t, time.Date(2017, 6, 2, 12, 0, 0, 0, time.UTC), *req.End)
			return &reports.DownloadResult{Path: path, Cached: true}, nil
		},
	}

	target := "/api/comments/download/?user_id=5&author_id=10&start=1496318400000&end=1496404800000"
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleDownloadRequiresUserID(t *testing.T) {
	svc := &mockReportService{}

	req := httptest.NewRequest(http.MethodGet, "/api/comments/download/?i_id=1&itype_id=1", nil)
	w := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleDownloadMissingScope(t *testing.T) {
	svc := &mockReportService{
		downloadFunc: func(_ context.Context, req reports.DownloadRequest) (*reports.DownloadResult, error) {
			return nil, reports.ErrScopeRequired
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/comments/download/?user_id=5", nil)
	w := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp struct {
		Error      string            `json:"error"`
		DataErrors map[string]string `json:"data_errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Bad Request", resp.Error)
	assert.Equal(t, "Instance or Author should be specified.", resp.DataErrors["_"])
}

func TestHandleDownloadMissingRoot(t *testing.T) {
	svc := &mockReportService{
		downloadFunc: func(_ context.Context, req reports.DownloadRequest) (*reports.DownloadResult, error) {
			return nil, comments.ErrInstanceNotFound
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/comments/download/?user_id=5&i_id=777&itype_id=1", nil)
	w := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Root Instance Not Found", resp["error"])
}

func TestHandleDownloadUnknownFormat(t *testing.T) {
	svc := &mockReportService{}

	req := httptest.NewRequest(http.MethodGet, "/api/comments/download/csv/?user_id=5&i_id=1&itype_id=1", nil)
	w := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleListUserRequests(t *testing.T) {
	created := time.Date(2017, 6, 1, 12, 0, 0, 0, time.UTC)
	iID := int64(1)

	svc := &mockReportService{
		listFunc: func(_ context.Context, userID int64) ([]*reports.DlRequest, error) {
			assert.Equal(t, int64(5), userID)
			return []*reports.DlRequest{
				{ID: 2, ITypeID: 1, IID: &iID, Fmt: reports.FormatXML, Created: created},
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/comments/download/requests/5/", nil)
	w := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var views []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, float64(2), views[0]["id"])
	assert.Equal(t, float64(1), views[0]["i_id"])
	assert.Nil(t, views[0]["author_id"])
	assert.Equal(t, "xml", views[0]["fmt"])
	assert.Equal(t, "2017-06-01T12:00:00.000Z", views[0]["created"])
}
