// Package reports is the cached-report pipeline: durable download request
// records, validity tracking against the event log, single-flight
// asynchronous XML builds and cache-hit vs live-stream response selection.
package reports

import (
	"time"

	"Remark/internal/core/comments"
)

func nowUTC() time.Time {
	return time.Now().UTC()
}

// Format identifies a report file format. XML is the only one supported.
type Format int

const (
	FormatXML Format = 0
)

// String returns the verbose (and file extension) name of the format.
func (f Format) String() string {
	switch f {
	case FormatXML:
		return "xml"
	}
	return "unknown"
}

// ParseFormat resolves a verbose format name, defaulting to XML for the
// empty string.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "xml":
		return FormatXML, nil
	}
	return FormatXML, ErrUnknownFormat
}

// State tracks whether a report file still reflects the data it covers.
type State int

const (
	StateValid   State = 0
	StateInvalid State = 1
)

// DlRequest is a materialized report. The tuple (itype_id, i_id, author_id,
// start, end, fmt) is the cache key; the row and its blob are reused across
// rebuilds. A request is born INVALID, turns VALID when a build completes
// and falls back to INVALID whenever a relevant event postdates the build.
type DlRequest struct {
	ID       int64      `json:"id"`
	ITypeID  int64      `json:"itype_id"`
	IID      *int64     `json:"i_id"`
	AuthorID *int64     `json:"author_id"`
	Start    *time.Time `json:"start"`
	End      *time.Time `json:"end"`
	Fmt      Format     `json:"fmt"`
	State    State      `json:"state"`
	Filename string     `json:"filename"`
	Created  time.Time  `json:"created"`
}

// UserDlRequest links a user to a download request they have asked for.
type UserDlRequest struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	DlRequestID int64     `json:"dlrequest_id"`
	Created     time.Time `json:"created"`
}

// CacheKey is the full filter tuple a report is cached under. Nil pointer
// fields match NULL columns, not "anything".
type CacheKey struct {
	ITypeID  int64
	IID      *int64
	AuthorID *int64
	Start    *time.Time
	End      *time.Time
	Fmt      Format
}

// Key returns the cache key of an existing request.
func (r *DlRequest) Key() CacheKey {
	return CacheKey{
		ITypeID:  r.ITypeID,
		IID:      r.IID,
		AuthorID: r.AuthorID,
		Start:    r.Start,
		End:      r.End,
		Fmt:      r.Fmt,
	}
}

// UserRequestView is the JSON shape of one row in a user's request listing.
type UserRequestView struct {
	ID       int64               `json:"id"`
	ITypeID  int64               `json:"itype_id"`
	IID      *int64              `json:"i_id"`
	AuthorID *int64              `json:"author_id"`
	Start    *comments.Timestamp `json:"start"`
	End      *comments.Timestamp `json:"end"`
	Fmt      string              `json:"fmt"`
	Created  comments.Timestamp  `json:"created"`
}

// NewUserRequestView builds the listing view of a download request.
func NewUserRequestView(r *DlRequest) UserRequestView {
	view := UserRequestView{
		ID:       r.ID,
		ITypeID:  r.ITypeID,
		IID:      r.IID,
		AuthorID: r.AuthorID,
		Fmt:      r.Fmt.String(),
		Created:  comments.Timestamp(r.Created),
	}
	if r.Start != nil {
		ts := comments.Timestamp(*r.Start)
		view.Start = &ts
	}
	if r.End != nil {
		ts := comments.Timestamp(*r.End)
		view.End = &ts
	}
	return view
}
