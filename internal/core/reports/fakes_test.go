package reports

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"Remark/internal/core/comments"
	"Remark/internal/core/events"
)

// fakeRequestRepo is an in-memory Repository with the same key semantics as
// the SQL layer: nil filter fields compare as values, so two requests with
// the same NULLs share one cache entry.
type fakeRequestRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*DlRequest
	links  []UserDlRequest

	saves atomic.Int32
}

func newFakeRequestRepo() *fakeRequestRepo {
	return &fakeRequestRepo{nextID: 1, rows: make(map[int64]*DlRequest)}
}

func copyRequest(r *DlRequest) *DlRequest {
	cp := *r
	return &cp
}

func sameInt(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func keyMatches(r *DlRequest, key CacheKey) bool {
	return r.ITypeID == key.ITypeID &&
		sameInt(r.IID, key.IID) &&
		sameInt(r.AuthorID, key.AuthorID) &&
		sameTime(r.Start, key.Start) &&
		sameTime(r.End, key.End) &&
		r.Fmt == key.Fmt
}

func (f *fakeRequestRepo) GetByID(_ context.Context, id int64) (*DlRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	return copyRequest(r), nil
}

func (f *fakeRequestRepo) FindByKey(_ context.Context, key CacheKey) (*DlRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if keyMatches(r, key) {
			return copyRequest(r), nil
		}
	}
	return nil, ErrRequestNotFound
}

func (f *fakeRequestRepo) Create(_ context.Context, req *DlRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if keyMatches(r, req.Key()) {
			return ErrDuplicateRequest
		}
	}
	req.ID = f.nextID
	f.nextID++
	req.Created = time.Now().UTC()
	f.rows[req.ID] = copyRequest(req)
	return nil
}

func (f *fakeRequestRepo) Save(_ context.Context, req *DlRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.rows[req.ID]
	if !ok {
		return ErrRequestNotFound
	}
	stored.State = req.State
	stored.Created = req.Created
	f.saves.Add(1)
	return nil
}

func (f *fakeRequestRepo) EnsureUserLink(_ context.Context, userID, dlrequestID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.links {
		if l.UserID == userID && l.DlRequestID == dlrequestID {
			return nil
		}
	}
	f.links = append(f.links, UserDlRequest{
		ID:          int64(len(f.links) + 1),
		UserID:      userID,
		DlRequestID: dlrequestID,
		Created:     time.Now().UTC(),
	})
	return nil
}

func (f *fakeRequestRepo) ListByUser(_ context.Context, userID int64) ([]*DlRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	links := make([]UserDlRequest, 0, len(f.links))
	for _, l := range f.links {
		if l.UserID == userID {
			links = append(links, l)
		}
	}
	sort.Slice(links, func(i, j int) bool {
		if !links[i].Created.Equal(links[j].Created) {
			return links[i].Created.After(links[j].Created)
		}
		return links[i].ID > links[j].ID
	})

	out := make([]*DlRequest, 0, len(links))
	for _, l := range links {
		out = append(out, copyRequest(f.rows[l.DlRequestID]))
	}
	return out, nil
}

// fakeCommentStore is a read-only comment fixture implementing the repository
// methods report building touches. The embedded nil interface panics on
// anything else, which is what we want a test to do.
type fakeCommentStore struct {
	comments.Repository

	instances map[int64]*comments.Instance
	rows      []*comments.Comment

	selectCalls atomic.Int32
	selectGate  chan struct{}
}

func (f *fakeCommentStore) GetByID(_ context.Context, id int64) (*comments.Comment, error) {
	for _, c := range f.rows {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, comments.ErrCommentNotFound
}

func (f *fakeCommentStore) GetInstance(_ context.Context, itypeID, iID int64) (*comments.Instance, error) {
	for _, inst := range f.instances {
		if inst.ITypeID == itypeID && inst.IID == iID {
			cp := *inst
			return &cp, nil
		}
	}
	return nil, comments.ErrInstanceNotFound
}

func (f *fakeCommentStore) SelectForReport(_ context.Context, filter comments.ReportFilter) (comments.Iterator, error) {
	f.selectCalls.Add(1)
	if f.selectGate != nil {
		<-f.selectGate
	}

	var out []*comments.Comment
	for _, c := range f.rows {
		switch {
		case filter.Root != nil:
			root := filter.Root
			if c.TreeID != root.TreeID || c.Scale <= root.Scale ||
				c.Lft.Less(root.Lft) || !c.Lft.Less(root.Rht) {
				continue
			}
		case filter.TreeID != nil:
			if c.TreeID != *filter.TreeID {
				continue
			}
		}
		if filter.AuthorID != nil && c.AuthorID != *filter.AuthorID {
			continue
		}
		if filter.Start != nil && c.Created.Before(*filter.Start) {
			continue
		}
		if filter.End != nil && c.Created.After(*filter.End) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Lft.Equal(b.Lft) {
			return a.Lft.Less(b.Lft)
		}
		return a.Scale < b.Scale
	})

	return &sliceIterator{items: out}, nil
}

type sliceIterator struct {
	items []*comments.Comment
	pos   int
}

func (it *sliceIterator) NextChunk(_ context.Context, n int) ([]*comments.Comment, error) {
	if it.pos >= len(it.items) {
		return nil, nil
	}
	end := it.pos + n
	if end > len(it.items) {
		end = len(it.items)
	}
	chunk := it.items[it.pos:end]
	it.pos = end
	return chunk, nil
}

func (it *sliceIterator) Close() error { return nil }

// fakeEventLog holds a fixed set of events for revalidation checks.
type fakeEventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (f *fakeEventLog) add(e events.Event) {
	f.mu.Lock()
	f.events = append(f.events, e)
	f.mu.Unlock()
}

func (f *fakeEventLog) Append(_ context.Context, e *events.Event) error {
	f.mu.Lock()
	e.ID = int64(len(f.events) + 1)
	f.events = append(f.events, *e)
	f.mu.Unlock()
	return nil
}

func (f *fakeEventLog) CountAffecting(_ context.Context, scope events.Scope) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var n int64
	for _, e := range f.events {
		if !e.EDate.After(scope.Since) {
			continue
		}
		if scope.TreeID != nil && e.TreeID != *scope.TreeID {
			continue
		}
		if scope.AuthorID != nil && e.AuthorID != *scope.AuthorID {
			continue
		}
		if scope.Start != nil && e.CommentCDate.Before(*scope.Start) {
			continue
		}
		if scope.End != nil && e.CommentCDate.After(*scope.End) {
			continue
		}
		n++
	}
	return n, nil
}
