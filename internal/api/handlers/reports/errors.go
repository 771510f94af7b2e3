package reports

import (
	"errors"
	"log"
	"net/http"

	"github.com/goccy/go-json"

	"Remark/internal/core/comments"
	"Remark/internal/core/reports"
)

// errorResponse represents a standardized JSON error response
type errorResponse struct {
	Error      string      `json:"error"`
	DataErrors interface{} `json:"data_errors,omitempty"`
}

// writeError writes a JSON error response with the given status code
func writeError(w http.ResponseWriter, statusCode int, message string, dataErrors interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(errorResponse{
		Error:      message,
		DataErrors: dataErrors,
	}); err != nil {
		log.Printf("Failed to encode error response: %v", err)
	}
}

// handleServiceError maps service-layer errors to HTTP responses
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, reports.ErrScopeRequired):
		writeError(w, http.StatusBadRequest, "Bad Request",
			map[string]string{"_": "Instance or Author should be specified."})

	case reports.IsValidationError(err):
		writeError(w, http.StatusBadRequest, "Bad Request", nil)

	// a rooted download names a comment or instance that must exist
	case comments.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Root Instance Not Found", nil)

	case reports.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Request Not Found", nil)

	default:
		// Don't leak internal error details to clients
		log.Printf("Unexpected error in reports handler: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error", nil)
	}
}

// writeJSON writes a JSON response body with the given status code
func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
