package comments

import (
	"time"
)

// Timestamp serializes as ISO 8601 with millisecond precision, normalized to
// UTC with a trailing Z.
type Timestamp time.Time

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := time.Parse(timestampLayout, s)
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

// String renders the timestamp in the wire format.
func (t Timestamp) String() string {
	return time.Time(t).UTC().Format(timestampLayout)
}

// CommentView is the JSON shape of a comment in get and list responses.
type CommentView struct {
	ID       int64     `json:"id"`
	IID      int64     `json:"i_id"`
	ITypeID  int64     `json:"itype_id"`
	AuthorID int64     `json:"author_id"`
	Content  string    `json:"content"`
	Created  Timestamp `json:"created"`
	Updated  Timestamp `json:"updated"`
}

// TreeCommentView adds the parent pointer for tree and branch responses.
type TreeCommentView struct {
	CommentView
	ParentID *int64 `json:"parent_id"`
}

// UserCommentView is the per-author stream shape; the author is implicit in
// the request, so the field is omitted.
type UserCommentView struct {
	ID       int64     `json:"id"`
	IID      int64     `json:"i_id"`
	ITypeID  int64     `json:"itype_id"`
	Content  string    `json:"content"`
	Created  Timestamp `json:"created"`
	Updated  Timestamp `json:"updated"`
	ParentID *int64    `json:"parent_id"`
}

// InstanceRootView is the branch root shape when the root is an Instance.
type InstanceRootView struct {
	ID      int64 `json:"id"`
	ITypeID int64 `json:"itype_id"`
	IID     int64 `json:"i_id"`
}

// NewCommentView builds the get/list view of a comment.
func NewCommentView(c *Comment) CommentView {
	return CommentView{
		ID:       c.ID,
		IID:      c.IID,
		ITypeID:  c.ITypeID,
		AuthorID: c.AuthorID,
		Content:  c.Content,
		Created:  Timestamp(c.Created),
		Updated:  Timestamp(c.Updated),
	}
}

// NewTreeCommentView builds the tree/branch view of a comment.
func NewTreeCommentView(c *Comment) TreeCommentView {
	return TreeCommentView{
		CommentView: NewCommentView(c),
		ParentID:    c.ParentID,
	}
}

// NewUserCommentView builds the per-author stream view of a comment.
func NewUserCommentView(c *Comment) UserCommentView {
	return UserCommentView{
		ID:       c.ID,
		IID:      c.IID,
		ITypeID:  c.ITypeID,
		Content:  c.Content,
		Created:  Timestamp(c.Created),
		Updated:  Timestamp(c.Updated),
		ParentID: c.ParentID,
	}
}
