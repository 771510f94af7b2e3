package comments

import (
	"time"
)

// Frac is a non-negative rational with a positive denominator. The six
// ordering fields of a comment are stored as three of these. Comparisons
// cross-multiply, so they stay exact as long as num*den fits in an int64.
type Frac struct {
	Num int64 `json:"num"`
	Den int64 `json:"den"`
}

// Mediant returns (a.Num+b.Num)/(a.Den+b.Den), which lies strictly between a
// and b when a < b. This is what makes inserts order-stable without ever
// renumbering existing rows.
func Mediant(a, b Frac) Frac {
	return Frac{Num: a.Num + b.Num, Den: a.Den + b.Den}
}

// Less reports whether f < o.
func (f Frac) Less(o Frac) bool {
	return f.Num*o.Den < o.Num*f.Den
}

// Equal reports whether f and o denote the same rational.
func (f Frac) Equal(o Frac) bool {
	return f.Num*o.Den == o.Num*f.Den
}

// Instance is the synthetic root of a comment tree, anchored to an external
// object identified by (itype_id, i_id). Its effective interval is [0/1, 1/1);
// only the mediant cursor for the next top-level child is stored.
type Instance struct {
	ID          int64 `json:"id"`
	ITypeID     int64 `json:"itype_id"`
	IID         int64 `json:"i_id"`
	ChildrenCnt int64 `json:"children_cnt"`
	LftIns      Frac  `json:"-"`
}

// TreeID returns the id shared by every comment of the instance's tree.
func (i *Instance) TreeID() int64 { return i.ID }

func (i *Instance) Cursor() Frac         { return i.LftIns }
func (i *Instance) SetCursor(f Frac)     { i.LftIns = f }
func (i *Instance) ReferenceRight() Frac { return Frac{Num: 1, Den: 1} }
func (i *Instance) AddChildren(d int64)  { i.ChildrenCnt += d }

// Comment is a node inside exactly one tree. Lft/Rht delimit the half-open
// interval [lft, rht) that contains the node's whole subtree; LftIns is the
// mediant cursor from which the next child's right key is computed.
type Comment struct {
	ID          int64     `json:"id"`
	ITypeID     int64     `json:"itype_id"`
	IID         int64     `json:"i_id"`
	AuthorID    int64     `json:"author_id"`
	Content     string    `json:"content"`
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`
	TreeID      int64     `json:"tree_id"`
	ParentID    *int64    `json:"parent_id"`
	ChildrenCnt int64     `json:"children_cnt"`
	Scale       int64     `json:"scale"`
	Lft         Frac      `json:"-"`
	Rht         Frac      `json:"-"`
	LftIns      Frac      `json:"-"`
}

func (c *Comment) Cursor() Frac         { return c.LftIns }
func (c *Comment) SetCursor(f Frac)     { c.LftIns = f }
func (c *Comment) ReferenceRight() Frac { return c.Rht }
func (c *Comment) AddChildren(d int64)  { c.ChildrenCnt += d }

// parentNode is the capability set the tree algebra needs from a parent,
// whether it is an Instance or a Comment.
type parentNode interface {
	Cursor() Frac
	SetCursor(Frac)
	ReferenceRight() Frac
	AddChildren(int64)
}

// attach computes the ordering keys of a new child of parent and advances the
// parent's mediant cursor. The child starts at the parent's current cursor
// with an empty cursor of its own; its right key is the mediant of the
// parent's cursor and the parent's reference right key.
func attach(parent parentNode, child *Comment) {
	med := Mediant(parent.Cursor(), parent.ReferenceRight())

	child.Lft = parent.Cursor()
	child.LftIns = parent.Cursor()
	child.Rht = med

	parent.SetCursor(med)
}

// detach rolls the parent's cursor back to the child's left key when the
// child being removed is the one that last advanced it, reclaiming the
// numeric room for future inserts.
func detach(parent parentNode, child *Comment) {
	if child.Rht.Num == parent.Cursor().Num && child.Rht.Den == parent.Cursor().Den {
		parent.SetCursor(child.Lft)
	}
}
