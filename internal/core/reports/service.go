package reports

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"Remark/internal/core/blobs"
	"Remark/internal/core/comments"
	"Remark/internal/core/events"
	"Remark/internal/pubsub"
)

// DownloadRequest carries the parameters of an incoming report download.
// Either IID or AuthorID must be set. ITypeID follows the tree convention: 0
// means IID names a comment, anything else an external object type.
type DownloadRequest struct {
	UserID   int64
	IID      *int64
	ITypeID  int64
	AuthorID *int64
	Start    *time.Time
	End      *time.Time
	Fmt      Format
}

// DownloadResult selects between the two response modes. Cached results
// point at a complete blob whose size is known up front; live results must
// be waited on before the blob may be read.
type DownloadResult struct {
	Request *DlRequest
	Path    string
	Size    int64
	Cached  bool

	waiter *responseWaiter
}

// Wait blocks until the builder signals the report's completion. It returns
// immediately for cached results and ErrBuildFailed when the builder
// signalled an error. Cancelling ctx unsubscribes this waiter; the build
// itself carries on for any remaining waiters.
func (r *DownloadResult) Wait(ctx context.Context) error {
	if r.waiter == nil {
		return nil
	}
	return r.waiter.wait(ctx)
}

// responseWaiter is the one-shot consumer a live download parks on: it
// subscribes to the request's response channel, then kicks the builder by
// publishing the id on the work channel. The first signal completes it.
type responseWaiter struct {
	consumer *pubsub.Consumer
	result   int64
}

func newResponseWaiter(f Format, id int64) *responseWaiter {
	w := &responseWaiter{}
	w.consumer = pubsub.NewConsumer(func(ctx context.Context, msg int64) error {
		w.result = msg
		w.consumer.Unsubscribe()
		w.consumer.MarkDone()
		return nil
	})
	// subscribe before publishing so the builder's signal cannot be missed
	w.consumer.Subscribe(pubsub.GetChannel(responseChannel(f, id)))
	pubsub.GetChannel(requestChannel(f)).Publish(id)
	return w
}

func (w *responseWaiter) wait(ctx context.Context) error {
	if err := w.consumer.Run(ctx); err != nil {
		return err
	}
	if w.result != 1 {
		return ErrBuildFailed
	}
	return nil
}

// Service defines the business logic interface for report downloads.
type Service interface {
	// Download resolves or creates the cached request for the filter tuple,
	// re-validates it against the event log and decides between serving the
	// stored blob and awaiting a fresh build
	Download(ctx context.Context, req DownloadRequest) (*DownloadResult, error)

	// ListUserRequests retrieves the requests a user has previously made,
	// newest first
	ListUserRequests(ctx context.Context, userID int64) ([]*DlRequest, error)
}

type reportService struct {
	requests Repository
	eventLog events.Repository
	comments comments.Service
	store    *blobs.Store
	logger   *slog.Logger
}

// NewReportService creates a new report service instance
func NewReportService(requests Repository, eventLog events.Repository, commentService comments.Service, store *blobs.Store, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &reportService{
		requests: requests,
		eventLog: eventLog,
		comments: commentService,
		store:    store,
		logger:   logger,
	}
}

func (s *reportService) Download(ctx context.Context, req DownloadRequest) (*DownloadResult, error) {
	if req.IID == nil && req.AuthorID == nil {
		return nil, ErrScopeRequired
	}

	// a rooted report must point at something that exists
	var root *comments.TreeRoot
	if req.IID != nil {
		var err error
		root, err = s.comments.ResolveRoot(ctx, *req.IID, req.ITypeID)
		if err != nil {
			return nil, err
		}
	}

	dlreq, err := s.resolveRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.requests.EnsureUserLink(ctx, req.UserID, dlreq.ID); err != nil {
		return nil, err
	}

	if dlreq.State == StateValid {
		if err := s.revalidate(ctx, dlreq, root); err != nil {
			return nil, err
		}
	}

	result := &DownloadResult{
		Request: dlreq,
		Path:    s.store.Path(dlreq.Filename),
	}

	if dlreq.State == StateValid {
		size, err := s.store.Size(dlreq.Filename)
		if err != nil {
			return nil, err
		}
		result.Cached = true
		result.Size = size
		return result, nil
	}

	result.waiter = newResponseWaiter(dlreq.Fmt, dlreq.ID)
	return result, nil
}

// resolveRequest finds the cached request for the filter tuple or creates
// it, racing cleanly against concurrent creators of the same key.
func (s *reportService) resolveRequest(ctx context.Context, req DownloadRequest) (*DlRequest, error) {
	key := CacheKey{
		ITypeID:  req.ITypeID,
		IID:      req.IID,
		AuthorID: req.AuthorID,
		Start:    req.Start,
		End:      req.End,
		Fmt:      req.Fmt,
	}

	dlreq, err := s.requests.FindByKey(ctx, key)
	if err == nil {
		return dlreq, nil
	}
	if !errors.Is(err, ErrRequestNotFound) {
		return nil, err
	}

	filename, err := s.store.GenerateFilename(req.Fmt.String())
	if err != nil {
		return nil, err
	}

	dlreq = &DlRequest{
		ITypeID:  req.ITypeID,
		IID:      req.IID,
		AuthorID: req.AuthorID,
		Start:    req.Start,
		End:      req.End,
		Fmt:      req.Fmt,
		State:    StateInvalid,
		Filename: filename,
	}

	err = s.requests.Create(ctx, dlreq)
	if errors.Is(err, ErrDuplicateRequest) {
		// lost the race; the winner's row is the cache entry
		return s.requests.FindByKey(ctx, key)
	}
	if err != nil {
		return nil, err
	}

	return dlreq, nil
}

// revalidate flips a VALID request back to INVALID when any event in the
// report's scope postdates the build.
func (s *reportService) revalidate(ctx context.Context, dlreq *DlRequest, root *comments.TreeRoot) error {
	scope := events.Scope{
		Since:    dlreq.Created,
		AuthorID: dlreq.AuthorID,
		Start:    dlreq.Start,
		End:      dlreq.End,
	}
	if root != nil {
		treeID := root.TreeID()
		scope.TreeID = &treeID
	}

	affected, err := s.eventLog.CountAffecting(ctx, scope)
	if err != nil {
		return err
	}
	if affected == 0 {
		return nil
	}

	s.logger.Debug("invalidating cached report",
		"dlrequest_id", dlreq.ID, "events", affected)

	dlreq.State = StateInvalid
	return s.requests.Save(ctx, dlreq)
}

func (s *reportService) ListUserRequests(ctx context.Context, userID int64) ([]*DlRequest, error) {
	return s.requests.ListByUser(ctx, userID)
}
