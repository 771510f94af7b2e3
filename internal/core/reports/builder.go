package reports

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"Remark/internal/core/blobs"
	"Remark/internal/core/comments"
	"Remark/internal/pubsub"
)

func requestChannel(f Format) string {
	return f.String() + "-dl-request"
}

func responseChannel(f Format, id int64) string {
	return fmt.Sprintf("%s-dl-request-%d", f, id)
}

// DefaultBuilderWorkers is the builder's worker pool capacity unless
// configured otherwise.
const DefaultBuilderWorkers = 3

// XMLReportBuilder consumes download request ids from the `xml-dl-request`
// channel and materializes each report into its blob. Concurrent wake-ups
// for the same id collapse to a single build via the in-progress set; every
// outcome, success or failure, is signalled on the per-id response channel
// (1 on success, 0 otherwise) so no waiter is ever left hanging.
type XMLReportBuilder struct {
	consumer *pubsub.BackgroundConsumer

	requests Repository
	comments comments.Repository
	store    *blobs.Store
	logger   *slog.Logger

	mu         sync.Mutex
	inProgress map[int64]struct{}
}

// NewXMLReportBuilder creates the builder and subscribes it to the XML work
// channel. Call Run to start consuming.
func NewXMLReportBuilder(requests Repository, commentRepo comments.Repository, store *blobs.Store, workers int, logger *slog.Logger) *XMLReportBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	b := &XMLReportBuilder{
		requests:   requests,
		comments:   commentRepo,
		store:      store,
		logger:     logger,
		inProgress: make(map[int64]struct{}),
	}
	b.consumer = pubsub.NewBackgroundConsumer(workers, b.handle, logger)
	b.consumer.Subscribe(pubsub.GetChannel(requestChannel(FormatXML)))
	return b
}

// Run consumes build requests until ctx is cancelled.
func (b *XMLReportBuilder) Run(ctx context.Context) error {
	return b.consumer.Run(ctx)
}

// begin registers an id as being built. Returns false when a build for it is
// already active, in which case the message is dropped: the active build
// will signal all waiters on the shared response channel.
func (b *XMLReportBuilder) begin(id int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, active := b.inProgress[id]; active {
		return false
	}
	b.inProgress[id] = struct{}{}
	return true
}

func (b *XMLReportBuilder) end(id int64) {
	b.mu.Lock()
	delete(b.inProgress, id)
	b.mu.Unlock()
}

func (b *XMLReportBuilder) handle(ctx context.Context, reqID int64) error {
	if !b.begin(reqID) {
		return nil
	}

	err := b.build(ctx, reqID)

	// leave the in-progress set before signalling: a wake-up arriving after
	// the publish must start a fresh build, not be dropped with no one left
	// to answer it
	b.end(reqID)

	signal := int64(1)
	if err != nil {
		signal = 0
	}
	pubsub.GetChannel(responseChannel(FormatXML, reqID)).Publish(signal)

	return err
}

func (b *XMLReportBuilder) build(ctx context.Context, reqID int64) error {
	req, err := b.requests.GetByID(ctx, reqID)
	if err != nil {
		return err
	}

	filter, root, err := b.resolveFilter(ctx, req)
	if err != nil {
		return err
	}

	iter, err := b.comments.SelectForReport(ctx, filter)
	if err != nil {
		return err
	}
	defer func() {
		if err := iter.Close(); err != nil {
			b.logger.Warn("failed to close report iterator", "error", err)
		}
	}()

	f, err := b.store.Create(req.Filename)
	if err != nil {
		return err
	}

	if err := writeXMLReport(ctx, f, req, root, iter); err != nil {
		f.Close()
		return fmt.Errorf("failed to write report %d: %w", reqID, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to flush report %d: %w", reqID, err)
	}

	// the file is complete on disk; mark the cache entry fresh as of now
	req.State = StateValid
	req.Created = nowUTC()
	if err := b.requests.Save(ctx, req); err != nil {
		return err
	}

	b.logger.Info("built report", "dlrequest_id", reqID, "filename", req.Filename)

	return nil
}

// resolveFilter turns a request's parameters into a comment selection. A set
// i_id narrows to a subtree: of an instance when itype_id != 0, of the named
// comment otherwise (only then does the report carry a root element). No
// i_id means the report spans all comments.
func (b *XMLReportBuilder) resolveFilter(ctx context.Context, req *DlRequest) (comments.ReportFilter, *comments.Comment, error) {
	filter := comments.ReportFilter{
		AuthorID: req.AuthorID,
		Start:    req.Start,
		End:      req.End,
	}

	var root *comments.Comment
	if req.IID != nil {
		if req.ITypeID != 0 {
			instance, err := b.comments.GetInstance(ctx, req.ITypeID, *req.IID)
			if err != nil {
				return filter, nil, err
			}
			treeID := instance.ID
			filter.TreeID = &treeID
		} else {
			var err error
			root, err = b.comments.GetByID(ctx, *req.IID)
			if err != nil {
				return filter, nil, err
			}
			filter.Root = root
		}
	}

	return filter, root, nil
}
