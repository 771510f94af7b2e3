// Package events is the append-only log of comment mutations. The log is the
// authority for deciding whether a cached report is still valid: a report
// built at time T is stale as soon as an event matching its scope lands with
// e_date > T.
package events

import (
	"context"
	"time"
)

// EventType classifies a comment mutation.
type EventType int

const (
	Created EventType = iota
	Changed
	Deleted
)

// String returns the verbose name of the event type.
func (t EventType) String() string {
	switch t {
	case Created:
		return "Created"
	case Changed:
		return "Changed"
	case Deleted:
		return "Deleted"
	}
	return "Unknown"
}

// Event records one mutation. CommentCDate carries the comment's created
// timestamp so time-window report scopes can be matched without joining back
// to a row that may since have been deleted.
type Event struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	TreeID       int64     `json:"tree_id"`
	AuthorID     int64     `json:"author_id"`
	CommentID    int64     `json:"comment_id"`
	CommentCDate time.Time `json:"comment_cdate"`
	EType        EventType `json:"e_type"`
	EDate        time.Time `json:"e_date"`
}

// Scope selects the events that could affect a report: everything after
// Since, optionally narrowed to a tree, an author and a created-date window.
type Scope struct {
	Since    time.Time
	TreeID   *int64
	AuthorID *int64
	Start    *time.Time
	End      *time.Time
}

// Repository defines the data access interface for the event log. Rows are
// never updated or deleted once written.
type Repository interface {
	// Append writes the event with e_date set to now, populating ID and EDate
	Append(ctx context.Context, event *Event) error

	// CountAffecting returns how many logged events fall inside the scope
	CountAffecting(ctx context.Context, scope Scope) (int64, error)
}
