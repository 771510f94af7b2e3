package comments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"Remark/internal/core/events"
)

// CreateRequest contains parameters for creating a comment. ITypeID == 0
// means IID names the parent comment; any other value means IID names an
// external object of that type and the comment is top-level.
type CreateRequest struct {
	AuthorID int64
	ITypeID  int64
	IID      int64
	Content  string
}

// UpdateRequest contains parameters for updating a comment's content.
type UpdateRequest struct {
	ID      int64
	UserID  int64
	Content string
}

// ListRequest contains parameters for listing direct children of a target.
// LastID enables keyset pagination: only children whose left key is greater
// than that comment's are returned.
type ListRequest struct {
	IID     int64
	ITypeID int64
	Limit   int
	LastID  int64
}

// TreeRoot is the resolved root of a subtree query: an Instance for
// itype_id != 0, a Comment otherwise. Exactly one field is set.
type TreeRoot struct {
	Instance *Instance
	Comment  *Comment
}

// TreeID returns the tree the root belongs to.
func (r *TreeRoot) TreeID() int64 {
	if r.Instance != nil {
		return r.Instance.ID
	}
	return r.Comment.TreeID
}

// Service defines the business logic interface for comment trees. It owns
// the Farey/mediant insert and delete protocol and records every mutation in
// the event log.
type Service interface {
	// Create inserts a comment at the parent's cursor position
	Create(ctx context.Context, req CreateRequest) (*Comment, error)

	// Get retrieves one comment
	Get(ctx context.Context, id int64) (*Comment, error)

	// Update replaces a comment's content; only the author may do this.
	// A no-op update (same content) neither saves nor logs an event.
	Update(ctx context.Context, req UpdateRequest) (*Comment, error)

	// Delete removes a childless comment; only the author may do this
	Delete(ctx context.Context, id, userID int64) error

	// DeleteBranch removes a comment and its whole subtree, returning the
	// number of rows removed. Supported for authorized branch removal; the
	// HTTP surface only ever calls Delete.
	DeleteBranch(ctx context.Context, id, userID int64) (int64, error)

	// List retrieves direct children of an instance or comment in left-key
	// order with optional keyset pagination
	List(ctx context.Context, req ListRequest) ([]*Comment, error)

	// Tree resolves the root for (i_id, itype_id) and iterates its subtree
	// in pre-order
	Tree(ctx context.Context, iID, itypeID int64) (*TreeRoot, Iterator, error)

	// ResolveRoot loads the subtree root named by (i_id, itype_id) without
	// touching its children
	ResolveRoot(ctx context.Context, iID, itypeID int64) (*TreeRoot, error)

	// StreamUser iterates all of a user's comments ordered by created
	StreamUser(ctx context.Context, userID int64) (Iterator, error)
}

type commentService struct {
	repo     Repository
	eventLog events.Repository
	logger   *slog.Logger
}

// NewCommentService creates a new comment service instance
func NewCommentService(repo Repository, eventLog events.Repository, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &commentService{
		repo:     repo,
		eventLog: eventLog,
		logger:   logger,
	}
}

// Create implements the insert contract. For a top-level comment the
// instance is created lazily; for a reply the parent comment supplies the
// cursor. Either way the new node's keys come from attach and the parent's
// cursor and children_cnt are persisted afterwards.
func (s *commentService) Create(ctx context.Context, req CreateRequest) (*Comment, error) {
	comment := &Comment{
		ITypeID:  req.ITypeID,
		IID:      req.IID,
		AuthorID: req.AuthorID,
		Content:  req.Content,
	}

	if req.ITypeID != 0 {
		instance, err := s.repo.GetInstance(ctx, req.ITypeID, req.IID)
		if errors.Is(err, ErrInstanceNotFound) {
			instance = &Instance{
				ITypeID: req.ITypeID,
				IID:     req.IID,
				LftIns:  Frac{Num: 0, Den: 1},
			}
			if err := s.repo.CreateInstance(ctx, instance); err != nil {
				return nil, fmt.Errorf("failed to create instance: %w", err)
			}
		} else if err != nil {
			return nil, err
		}

		comment.Scale = 0
		comment.TreeID = instance.ID
		attach(instance, comment)

		if err := s.repo.Create(ctx, comment); err != nil {
			return nil, err
		}

		instance.AddChildren(1)
		if err := s.repo.SaveInstance(ctx, instance); err != nil {
			return nil, fmt.Errorf("failed to advance instance cursor: %w", err)
		}
	} else {
		parent, err := s.repo.GetByID(ctx, req.IID)
		if err != nil {
			return nil, err
		}

		comment.ParentID = &parent.ID
		comment.Scale = parent.Scale + 1
		comment.TreeID = parent.TreeID
		attach(parent, comment)

		if err := s.repo.Create(ctx, comment); err != nil {
			return nil, err
		}

		parent.AddChildren(1)
		if err := s.repo.SaveCursor(ctx, parent); err != nil {
			return nil, fmt.Errorf("failed to advance parent cursor: %w", err)
		}
	}

	if err := s.appendEvent(ctx, comment, comment.ID, events.Created); err != nil {
		return nil, err
	}

	return comment, nil
}

func (s *commentService) Get(ctx context.Context, id int64) (*Comment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *commentService) Update(ctx context.Context, req UpdateRequest) (*Comment, error) {
	comment, err := s.repo.GetByID(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	if comment.AuthorID != req.UserID {
		return nil, ErrNotAuthor
	}

	// unchanged content: no save, no event
	if comment.Content == req.Content {
		return comment, nil
	}

	updated, err := s.repo.UpdateContent(ctx, req.ID, req.Content)
	if err != nil {
		return nil, err
	}

	if err := s.appendEvent(ctx, updated, updated.ID, events.Changed); err != nil {
		return nil, err
	}

	return updated, nil
}

func (s *commentService) Delete(ctx context.Context, id, userID int64) error {
	comment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if comment.AuthorID != userID {
		return ErrNotAuthor
	}

	if comment.ChildrenCnt > 0 {
		return ErrHasChildren
	}

	_, err = s.deleteBranch(ctx, comment)
	return err
}

func (s *commentService) DeleteBranch(ctx context.Context, id, userID int64) (int64, error) {
	comment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}

	if comment.AuthorID != userID {
		return 0, ErrNotAuthor
	}

	return s.deleteBranch(ctx, comment)
}

// deleteBranch implements the delete contract: roll the parent's cursor back
// when possible, range-delete the branch, then decrement the parent's direct
// child count by exactly one.
func (s *commentService) deleteBranch(ctx context.Context, comment *Comment) (int64, error) {
	var parent parentNode
	if comment.ParentID != nil {
		p, err := s.repo.GetByID(ctx, *comment.ParentID)
		if err != nil {
			return 0, err
		}
		parent = p
	} else {
		inst, err := s.repo.GetInstanceByID(ctx, comment.TreeID)
		if err != nil {
			return 0, err
		}
		parent = inst
	}

	detach(parent, comment)

	removed, err := s.repo.DeleteBranch(ctx, comment)
	if err != nil {
		return 0, err
	}

	parent.AddChildren(-1)
	if err := s.saveParent(ctx, parent); err != nil {
		return 0, err
	}

	if err := s.appendEvent(ctx, comment, comment.ID, events.Deleted); err != nil {
		return 0, err
	}

	s.logger.Debug("deleted comment branch",
		"comment_id", comment.ID, "tree_id", comment.TreeID, "rows", removed)

	return removed, nil
}

func (s *commentService) saveParent(ctx context.Context, parent parentNode) error {
	switch p := parent.(type) {
	case *Instance:
		return s.repo.SaveInstance(ctx, p)
	case *Comment:
		return s.repo.SaveCursor(ctx, p)
	}
	return fmt.Errorf("unsupported parent node %T", parent)
}

func (s *commentService) List(ctx context.Context, req ListRequest) ([]*Comment, error) {
	var after *Frac
	if req.LastID != 0 {
		last, err := s.repo.GetByID(ctx, req.LastID)
		if err != nil {
			return nil, err
		}
		after = &last.Lft
	}

	if req.ITypeID == 0 {
		return s.repo.ListReplies(ctx, req.IID, after, req.Limit)
	}

	instance, err := s.repo.GetInstance(ctx, req.ITypeID, req.IID)
	if err != nil {
		return nil, err
	}

	return s.repo.ListRoots(ctx, instance.ID, after, req.Limit)
}

func (s *commentService) Tree(ctx context.Context, iID, itypeID int64) (*TreeRoot, Iterator, error) {
	root, err := s.ResolveRoot(ctx, iID, itypeID)
	if err != nil {
		return nil, nil, err
	}

	var iter Iterator
	if root.Instance != nil {
		iter, err = s.repo.SubtreeByInstance(ctx, root.Instance.ID)
	} else {
		iter, err = s.repo.SubtreeByComment(ctx, root.Comment)
	}
	if err != nil {
		return nil, nil, err
	}

	return root, iter, nil
}

// ResolveRoot loads the subtree root named by (i_id, itype_id) without
// touching its children. Used by Tree and by report building, where the root
// must be verified before any work is queued.
func (s *commentService) ResolveRoot(ctx context.Context, iID, itypeID int64) (*TreeRoot, error) {
	if itypeID == 0 {
		comment, err := s.repo.GetByID(ctx, iID)
		if err != nil {
			return nil, err
		}
		return &TreeRoot{Comment: comment}, nil
	}

	instance, err := s.repo.GetInstance(ctx, itypeID, iID)
	if err != nil {
		return nil, err
	}
	return &TreeRoot{Instance: instance}, nil
}

func (s *commentService) StreamUser(ctx context.Context, userID int64) (Iterator, error) {
	return s.repo.ListByAuthor(ctx, userID)
}

func (s *commentService) appendEvent(ctx context.Context, c *Comment, commentID int64, etype events.EventType) error {
	err := s.eventLog.Append(ctx, &events.Event{
		UserID:       c.AuthorID,
		TreeID:       c.TreeID,
		AuthorID:     c.AuthorID,
		CommentID:    commentID,
		CommentCDate: c.Created,
		EType:        etype,
	})
	if err != nil {
		return fmt.Errorf("failed to log %s event: %w", etype, err)
	}
	return nil
}
