package comments

import (
	"log"
	"net/http"

	"github.com/goccy/go-json"

	"Remark/internal/core/comments"
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
	case comments.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Comment Not Found", nil)

	case comments.IsPermissionDenied(err):
		writeError(w, http.StatusForbidden, "Permission Denied",
			map[string]string{"user_id": "Specified User is not the comment author."})

	case comments.IsConflict(err):
		writeError(w, http.StatusBadRequest, "Bad Request",
			map[string]string{"comment_id": "Comment has children."})

	default:
		// Don't leak internal error details to clients
		log.Printf("Unexpected error in comments handler: %v", err)
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
