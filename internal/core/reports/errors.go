package reports

import "errors"

var (
	// ErrRequestNotFound indicates the download request row doesn't exist
	ErrRequestNotFound = errors.New("download request not found")

	// ErrDuplicateRequest indicates another writer created the same cache
	// key concurrently
	ErrDuplicateRequest = errors.New("download request already exists")

	// ErrUnknownFormat indicates an unsupported report format name
	ErrUnknownFormat = errors.New("unknown report format")

	// ErrScopeRequired indicates neither an instance nor an author was given
	ErrScopeRequired = errors.New("instance or author should be specified")

	// ErrBuildFailed indicates the builder signalled failure for a request
	// this caller was waiting on
	ErrBuildFailed = errors.New("report build failed")
)

// IsNotFound checks if an error is a "not found" error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRequestNotFound)
}

// IsValidationError checks if an error is a bad-request error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrScopeRequired) ||
		errors.Is(err, ErrUnknownFormat)
}
