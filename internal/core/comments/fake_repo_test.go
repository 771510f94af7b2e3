package comments

import (
	"context"
	"sort"
	"time"

	"Remark/internal/core/events"
)

// memoryRepo is an in-memory Repository that honours the same ordering
// semantics as the SQL implementation: range scans compare the rational left
// keys exactly and pre-order sorts by (lft, scale).
type memoryRepo struct {
	nextCommentID  int64
	nextInstanceID int64
	comments       map[int64]*Comment
	instances      map[int64]*Instance
	now            time.Time
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		nextCommentID:  1,
		nextInstanceID: 1,
		comments:       make(map[int64]*Comment),
		instances:      make(map[int64]*Instance),
		now:            time.Date(2017, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

// tick advances the fake clock so created timestamps are strictly increasing.
func (m *memoryRepo) tick() time.Time {
	m.now = m.now.Add(time.Second)
	return m.now
}

func copyComment(c *Comment) *Comment {
	cp := *c
	if c.ParentID != nil {
		pid := *c.ParentID
		cp.ParentID = &pid
	}
	return &cp
}

func (m *memoryRepo) GetByID(_ context.Context, id int64) (*Comment, error) {
	c, ok := m.comments[id]
	if !ok {
		return nil, ErrCommentNotFound
	}
	return copyComment(c), nil
}

func (m *memoryRepo) Create(_ context.Context, c *Comment) error {
	c.ID = m.nextCommentID
	m.nextCommentID++
	c.Created = m.tick()
	c.Updated = c.Created
	c.ChildrenCnt = 0
	m.comments[c.ID] = copyComment(c)
	return nil
}

func (m *memoryRepo) UpdateContent(_ context.Context, id int64, content string) (*Comment, error) {
	c, ok := m.comments[id]
	if !ok {
		return nil, ErrCommentNotFound
	}
	c.Content = content
	c.Updated = m.tick()
	return copyComment(c), nil
}

func (m *memoryRepo) SaveCursor(_ context.Context, c *Comment) error {
	stored, ok := m.comments[c.ID]
	if !ok {
		return ErrCommentNotFound
	}
	stored.LftIns = c.LftIns
	stored.ChildrenCnt = c.ChildrenCnt
	return nil
}

func (m *memoryRepo) DeleteBranch(_ context.Context, c *Comment) (int64, error) {
	var removed int64
	for id, row := range m.comments {
		if row.TreeID != c.TreeID || row.Scale < c.Scale {
			continue
		}
		if row.Lft.Less(c.Lft) || !row.Lft.Less(c.Rht) {
			continue
		}
		delete(m.comments, id)
		removed++
	}
	return removed, nil
}

func (m *memoryRepo) GetInstance(_ context.Context, itypeID, iID int64) (*Instance, error) {
	for _, inst := range m.instances {
		if inst.ITypeID == itypeID && inst.IID == iID {
			cp := *inst
			return &cp, nil
		}
	}
	return nil, ErrInstanceNotFound
}

func (m *memoryRepo) GetInstanceByID(_ context.Context, id int64) (*Instance, error) {
	inst, ok := m.instances[id]
	if !ok {
		return nil, ErrInstanceNotFound
	}
	cp := *inst
	return &cp, nil
}

func (m *memoryRepo) CreateInstance(_ context.Context, inst *Instance) error {
	if existing, err := m.GetInstance(context.Background(), inst.ITypeID, inst.IID); err == nil {
		*inst = *existing
		return nil
	}
	inst.ID = m.nextInstanceID
	m.nextInstanceID++
	cp := *inst
	m.instances[inst.ID] = &cp
	return nil
}

func (m *memoryRepo) SaveInstance(_ context.Context, inst *Instance) error {
	stored, ok := m.instances[inst.ID]
	if !ok {
		return ErrInstanceNotFound
	}
	stored.LftIns = inst.LftIns
	stored.ChildrenCnt = inst.ChildrenCnt
	return nil
}

// preOrderLess is the scan order of the SQL layer: rational left key first,
// parents before their first child via scale.
func preOrderLess(a, b *Comment) bool {
	if !a.Lft.Equal(b.Lft) {
		return a.Lft.Less(b.Lft)
	}
	return a.Scale < b.Scale
}

func (m *memoryRepo) selectSorted(match func(*Comment) bool, less func(a, b *Comment) bool) []*Comment {
	var out []*Comment
	for _, c := range m.comments {
		if match(c) {
			out = append(out, copyComment(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func (m *memoryRepo) listChildren(match func(*Comment) bool, after *Frac, limit int) []*Comment {
	out := m.selectSorted(func(c *Comment) bool {
		if !match(c) {
			return false
		}
		if after != nil && !after.Less(c.Lft) {
			return false
		}
		return true
	}, preOrderLess)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *memoryRepo) ListRoots(_ context.Context, treeID int64, after *Frac, limit int) ([]*Comment, error) {
	return m.listChildren(func(c *Comment) bool {
		return c.TreeID == treeID && c.ParentID == nil
	}, after, limit), nil
}

func (m *memoryRepo) ListReplies(_ context.Context, parentID int64, after *Frac, limit int) ([]*Comment, error) {
	return m.listChildren(func(c *Comment) bool {
		return c.ParentID != nil && *c.ParentID == parentID
	}, after, limit), nil
}

func (m *memoryRepo) SubtreeByInstance(_ context.Context, treeID int64) (Iterator, error) {
	return &sliceIterator{items: m.selectSorted(func(c *Comment) bool {
		return c.TreeID == treeID
	}, preOrderLess)}, nil
}

func (m *memoryRepo) SubtreeByComment(_ context.Context, root *Comment) (Iterator, error) {
	return &sliceIterator{items: m.selectSorted(func(c *Comment) bool {
		return c.TreeID == root.TreeID && c.Scale > root.Scale &&
			!c.Lft.Less(root.Lft) && c.Lft.Less(root.Rht)
	}, preOrderLess)}, nil
}

func (m *memoryRepo) ListByAuthor(_ context.Context, authorID int64) (Iterator, error) {
	return &sliceIterator{items: m.selectSorted(func(c *Comment) bool {
		return c.AuthorID == authorID
	}, func(a, b *Comment) bool { return a.Created.Before(b.Created) })}, nil
}

func (m *memoryRepo) SelectForReport(_ context.Context, filter ReportFilter) (Iterator, error) {
	match := func(c *Comment) bool {
		switch {
		case filter.Root != nil:
			root := filter.Root
			if c.TreeID != root.TreeID || c.Scale <= root.Scale ||
				c.Lft.Less(root.Lft) || !c.Lft.Less(root.Rht) {
				return false
			}
		case filter.TreeID != nil:
			if c.TreeID != *filter.TreeID {
				return false
			}
		}
		if filter.AuthorID != nil && c.AuthorID != *filter.AuthorID {
			return false
		}
		if filter.Start != nil && c.Created.Before(*filter.Start) {
			return false
		}
		if filter.End != nil && c.Created.After(*filter.End) {
			return false
		}
		return true
	}

	less := preOrderLess
	if filter.Root == nil && filter.TreeID == nil {
		less = func(a, b *Comment) bool {
			if !a.Created.Equal(b.Created) {
				return a.Created.Before(b.Created)
			}
			return a.ID < b.ID
		}
	}

	return &sliceIterator{items: m.selectSorted(match, less)}, nil
}

// sliceIterator serves a fixed selection in chunks.
type sliceIterator struct {
	items []*Comment
	pos   int
}

func (it *sliceIterator) NextChunk(_ context.Context, n int) ([]*Comment, error) {
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

// memoryEventLog records appended events for assertions.
type memoryEventLog struct {
	appended []*events.Event
}

func (m *memoryEventLog) Append(_ context.Context, e *events.Event) error {
	e.ID = int64(len(m.appended) + 1)
	if e.EDate.IsZero() {
		e.EDate = time.Now().UTC()
	}
	cp := *e
	m.appended = append(m.appended, &cp)
	return nil
}

func (m *memoryEventLog) CountAffecting(_ context.Context, scope events.Scope) (int64, error) {
	var n int64
	for _, e := range m.appended {
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
