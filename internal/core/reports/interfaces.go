package reports

import (
	"context"
)

// Repository defines the data access interface for download requests and
// their per-user links.
type Repository interface {
	// GetByID retrieves a download request by primary key
	GetByID(ctx context.Context, id int64) (*DlRequest, error)

	// FindByKey retrieves the request cached under the full filter tuple.
	// Nil key fields must match NULL columns exactly.
	FindByKey(ctx context.Context, key CacheKey) (*DlRequest, error)

	// Create inserts a new request, populating ID and Created. Returns
	// ErrDuplicateRequest when the cache key is already taken.
	Create(ctx context.Context, request *DlRequest) error

	// Save persists the request's state and created timestamp
	Save(ctx context.Context, request *DlRequest) error

	// EnsureUserLink records that the user asked for this request, once
	EnsureUserLink(ctx context.Context, userID, dlrequestID int64) error

	// ListByUser retrieves a user's download requests ordered by when the
	// user first asked for them, newest first
	ListByUser(ctx context.Context, userID int64) ([]*DlRequest, error)
}
