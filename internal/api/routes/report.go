package routes

import (
	"github.com/go-chi/chi/v5"

	"Remark/internal/api/handlers/reports"
	reportsCore "Remark/internal/core/reports"
)

// RegisterReportRoutes registers the report download and request listing
// endpoints. The requests listing shares the download prefix, so it is
// registered first; the bare download path defaults the format to xml.
func RegisterReportRoutes(r chi.Router, service reportsCore.Service) {
	downloadHandler := reports.NewDownloadReportHandler(service)
	listHandler := reports.NewListRequestsHandler(service)

	r.Get("/api/comments/download/requests/{user_id}/", listHandler.HandleList)

	r.Get("/api/comments/download/", downloadHandler.HandleDownload)
	r.Get("/api/comments/download/{format}/", downloadHandler.HandleDownload)
}
