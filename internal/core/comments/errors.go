package comments

import "errors"

var (
	// ErrCommentNotFound indicates the requested comment doesn't exist
	ErrCommentNotFound = errors.New("comment not found")

	// ErrInstanceNotFound indicates no tree exists for the (itype_id, i_id) pair
	ErrInstanceNotFound = errors.New("instance not found")

	// ErrNotAuthor indicates the acting user is not the comment's author
	ErrNotAuthor = errors.New("specified user is not the comment author")

	// ErrHasChildren indicates a delete was attempted on a comment with replies
	ErrHasChildren = errors.New("comment has children")
)

// IsNotFound checks if an error is a "not found" error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCommentNotFound) ||
		errors.Is(err, ErrInstanceNotFound)
}

// IsPermissionDenied checks if an error is an authorship violation
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrNotAuthor)
}

// IsConflict checks if an error is a children-present conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrHasChildren)
}
