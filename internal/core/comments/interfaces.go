package comments

import (
	"context"
	"time"
)

// Iterator walks a comment selection in bounded row chunks so large trees
// never sit in memory at once. NextChunk returns an empty slice once the
// selection is exhausted. Close releases the underlying cursor and is safe to
// call more than once.
type Iterator interface {
	NextChunk(ctx context.Context, n int) ([]*Comment, error)
	Close() error
}

// ReportFilter narrows a report selection. Exactly one of Root/TreeID is set
// when the report covers a subtree; both nil means every comment. Start/End
// bound the created timestamp; either side may be open.
type ReportFilter struct {
	Root     *Comment
	TreeID   *int64
	AuthorID *int64
	Start    *time.Time
	End      *time.Time
}

// Repository defines the data access interface for comment trees.
//
// The tree algebra itself (mediant keys, cursor advance and rollback) lives
// in the service; the repository only persists rows and runs the ordered
// range scans the encoding makes possible. Scans order by the rational left
// key, ties broken by scale, which yields pre-order traversal.
type Repository interface {
	// GetByID retrieves a comment by primary key
	GetByID(ctx context.Context, id int64) (*Comment, error)

	// Create inserts a comment with its ordering keys already computed,
	// populating ID, Created and Updated from the database
	Create(ctx context.Context, comment *Comment) error

	// UpdateContent replaces the content and bumps updated to now,
	// returning the refreshed row
	UpdateContent(ctx context.Context, id int64, content string) (*Comment, error)

	// SaveCursor persists a parent comment's mediant cursor and children_cnt
	SaveCursor(ctx context.Context, comment *Comment) error

	// DeleteBranch removes the comment and its whole subtree with a single
	// range delete over [lft, rht) at scale >= comment.Scale, returning the
	// number of rows removed
	DeleteBranch(ctx context.Context, comment *Comment) (int64, error)

	// GetInstance retrieves the tree root for an external object
	GetInstance(ctx context.Context, itypeID, iID int64) (*Instance, error)

	// GetInstanceByID retrieves a tree root by primary key
	GetInstanceByID(ctx context.Context, id int64) (*Instance, error)

	// CreateInstance inserts a new tree root, populating ID
	CreateInstance(ctx context.Context, instance *Instance) error

	// SaveInstance persists an instance's mediant cursor and children_cnt
	SaveInstance(ctx context.Context, instance *Instance) error

	// ListRoots retrieves the direct children of an instance ordered by left
	// key, optionally after a given left key and optionally limited
	ListRoots(ctx context.Context, treeID int64, after *Frac, limit int) ([]*Comment, error)

	// ListReplies retrieves the direct children of a comment ordered by left
	// key, optionally after a given left key and optionally limited
	ListReplies(ctx context.Context, parentID int64, after *Frac, limit int) ([]*Comment, error)

	// SubtreeByInstance iterates an instance's whole tree in pre-order
	SubtreeByInstance(ctx context.Context, treeID int64) (Iterator, error)

	// SubtreeByComment iterates a comment's descendants in pre-order
	SubtreeByComment(ctx context.Context, root *Comment) (Iterator, error)

	// ListByAuthor iterates all of an author's comments ordered by created
	ListByAuthor(ctx context.Context, authorID int64) (Iterator, error)

	// SelectForReport iterates the comments matching a report filter in
	// pre-order (or creation order for the unrooted case)
	SelectForReport(ctx context.Context, filter ReportFilter) (Iterator, error)
}
