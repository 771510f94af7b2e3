package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"Remark/internal/core/comments"
)

// commentColumns is the full select list of the comment table, in scan order.
const commentColumns = `
	id, itype_id, i_id, author_id, content, created, updated,
	tree_id, parent_id, children_cnt, scale,
	lft_num, lft_den, rht_num, rht_den, lft_ins_num, lft_ins_den`

// lftOrder sorts rows by the rational left key. Numeric division keeps far
// more precision than a float cast; correctness-relevant comparisons in
// WHERE clauses cross-multiply instead and stay exact.
const lftOrder = `(lft_num::numeric / lft_den)`

type postgresCommentRepo struct {
	db *sql.DB
}

// NewCommentRepository creates a new PostgreSQL comment repository
func NewCommentRepository(db *sql.DB) comments.Repository {
	return &postgresCommentRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanComment(row rowScanner) (*comments.Comment, error) {
	var c comments.Comment
	var parentID sql.NullInt64

	err := row.Scan(
		&c.ID, &c.ITypeID, &c.IID, &c.AuthorID, &c.Content, &c.Created, &c.Updated,
		&c.TreeID, &parentID, &c.ChildrenCnt, &c.Scale,
		&c.Lft.Num, &c.Lft.Den, &c.Rht.Num, &c.Rht.Den, &c.LftIns.Num, &c.LftIns.Den,
	)
	if err != nil {
		return nil, err
	}

	if parentID.Valid {
		c.ParentID = &parentID.Int64
	}

	return &c, nil
}

// GetByID retrieves a comment by primary key
func (r *postgresCommentRepo) GetByID(ctx context.Context, id int64) (*comments.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comment WHERE id = $1`

	c, err := scanComment(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, comments.ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}

	return c, nil
}

// Create inserts a comment whose ordering keys were computed by the service
func (r *postgresCommentRepo) Create(ctx context.Context, c *comments.Comment) error {
	query := `
		INSERT INTO comment (
			itype_id, i_id, author_id, content, created, updated,
			tree_id, parent_id, children_cnt, scale,
			lft_num, lft_den, rht_num, rht_den, lft_ins_num, lft_ins_den
		) VALUES (
			$1, $2, $3, $4, NOW(), NOW(),
			$5, $6, 0, $7,
			$8, $9, $10, $11, $12, $13
		)
		RETURNING id, created, updated
	`

	var parentID interface{}
	if c.ParentID != nil {
		parentID = *c.ParentID
	}

	err := r.db.QueryRowContext(
		ctx, query,
		c.ITypeID, c.IID, c.AuthorID, c.Content,
		c.TreeID, parentID, c.Scale,
		c.Lft.Num, c.Lft.Den, c.Rht.Num, c.Rht.Den, c.LftIns.Num, c.LftIns.Den,
	).Scan(&c.ID, &c.Created, &c.Updated)
	if err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}

	return nil
}

// UpdateContent replaces the content and bumps updated to now
func (r *postgresCommentRepo) UpdateContent(ctx context.Context, id int64, content string) (*comments.Comment, error) {
	query := `
		UPDATE comment
		SET content = $1, updated = NOW()
		WHERE id = $2
		RETURNING ` + commentColumns

	c, err := scanComment(r.db.QueryRowContext(ctx, query, content, id))
	if err == sql.ErrNoRows {
		return nil, comments.ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update comment: %w", err)
	}

	return c, nil
}

// SaveCursor persists a parent comment's mediant cursor and children_cnt
func (r *postgresCommentRepo) SaveCursor(ctx context.Context, c *comments.Comment) error {
	query := `
		UPDATE comment
		SET children_cnt = $1, lft_ins_num = $2, lft_ins_den = $3
		WHERE id = $4
	`

	_, err := r.db.ExecContext(ctx, query, c.ChildrenCnt, c.LftIns.Num, c.LftIns.Den, c.ID)
	if err != nil {
		return fmt.Errorf("failed to save comment cursor: %w", err)
	}

	return nil
}

// DeleteBranch removes the comment and its whole subtree with one range
// delete over [lft, rht) at scale >= the comment's own.
func (r *postgresCommentRepo) DeleteBranch(ctx context.Context, c *comments.Comment) (int64, error) {
	query := `
		DELETE FROM comment
		WHERE tree_id = $1
		  AND scale >= $2
		  AND lft_num * $4 >= $3 * lft_den
		  AND lft_num * $6 < $5 * lft_den
	`

	result, err := r.db.ExecContext(ctx, query,
		c.TreeID, c.Scale,
		c.Lft.Num, c.Lft.Den,
		c.Rht.Num, c.Rht.Den,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete branch: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check delete result: %w", err)
	}

	return removed, nil
}

// GetInstance retrieves the tree root for an external object
func (r *postgresCommentRepo) GetInstance(ctx context.Context, itypeID, iID int64) (*comments.Instance, error) {
	query := `
		SELECT id, itype_id, i_id, children_cnt, lft_ins_num, lft_ins_den
		FROM instance
		WHERE itype_id = $1 AND i_id = $2
	`

	return r.scanInstance(r.db.QueryRowContext(ctx, query, itypeID, iID))
}

// GetInstanceByID retrieves a tree root by primary key
func (r *postgresCommentRepo) GetInstanceByID(ctx context.Context, id int64) (*comments.Instance, error) {
	query := `
		SELECT id, itype_id, i_id, children_cnt, lft_ins_num, lft_ins_den
		FROM instance
		WHERE id = $1
	`

	return r.scanInstance(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresCommentRepo) scanInstance(row rowScanner) (*comments.Instance, error) {
	var inst comments.Instance
	err := row.Scan(&inst.ID, &inst.ITypeID, &inst.IID, &inst.ChildrenCnt,
		&inst.LftIns.Num, &inst.LftIns.Den)
	if err == sql.ErrNoRows {
		return nil, comments.ErrInstanceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}

	return &inst, nil
}

// CreateInstance inserts a new tree root. A concurrent creator of the same
// (itype_id, i_id) wins silently: the existing row is loaded back instead.
func (r *postgresCommentRepo) CreateInstance(ctx context.Context, inst *comments.Instance) error {
	query := `
		INSERT INTO instance (itype_id, i_id, children_cnt, lft_ins_num, lft_ins_den)
		VALUES ($1, $2, 0, $3, $4)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		inst.ITypeID, inst.IID, inst.LftIns.Num, inst.LftIns.Den,
	).Scan(&inst.ID)

	if err != nil && strings.Contains(err.Error(), "duplicate key") {
		existing, getErr := r.GetInstance(ctx, inst.ITypeID, inst.IID)
		if getErr != nil {
			return getErr
		}
		*inst = *existing
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to insert instance: %w", err)
	}

	return nil
}

// SaveInstance persists an instance's mediant cursor and children_cnt
func (r *postgresCommentRepo) SaveInstance(ctx context.Context, inst *comments.Instance) error {
	query := `
		UPDATE instance
		SET children_cnt = $1, lft_ins_num = $2, lft_ins_den = $3
		WHERE id = $4
	`

	_, err := r.db.ExecContext(ctx, query,
		inst.ChildrenCnt, inst.LftIns.Num, inst.LftIns.Den, inst.ID)
	if err != nil {
		return fmt.Errorf("failed to save instance cursor: %w", err)
	}

	return nil
}

// ListRoots retrieves the direct children of an instance ordered by left key
func (r *postgresCommentRepo) ListRoots(ctx context.Context, treeID int64, after *comments.Frac, limit int) ([]*comments.Comment, error) {
	return r.listChildren(ctx, `tree_id = $1 AND parent_id IS NULL`, treeID, after, limit)
}

// ListReplies retrieves the direct children of a comment ordered by left key
func (r *postgresCommentRepo) ListReplies(ctx context.Context, parentID int64, after *comments.Frac, limit int) ([]*comments.Comment, error) {
	return r.listChildren(ctx, `parent_id = $1`, parentID, after, limit)
}

func (r *postgresCommentRepo) listChildren(ctx context.Context, where string, anchor int64, after *comments.Frac, limit int) ([]*comments.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comment WHERE ` + where
	args := []interface{}{anchor}

	if after != nil {
		// lft > after, cross-multiplied
		query += fmt.Sprintf(" AND lft_num * $%d > $%d * lft_den", len(args)+2, len(args)+1)
		args = append(args, after.Num, after.Den)
	}

	query += ` ORDER BY ` + lftOrder

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list children: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Failed to close rows: %v", err)
		}
	}()

	var result []*comments.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		result = append(result, c)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating comments: %w", err)
	}

	return result, nil
}

// SubtreeByInstance iterates an instance's whole tree in pre-order
func (r *postgresCommentRepo) SubtreeByInstance(ctx context.Context, treeID int64) (comments.Iterator, error) {
	query := `SELECT ` + commentColumns + ` FROM comment
		WHERE tree_id = $1
		ORDER BY ` + lftOrder + `, scale`

	return r.queryIterator(ctx, query, treeID)
}

// SubtreeByComment iterates a comment's descendants in pre-order: rows of
// the same tree inside [root.lft, root.rht) below the root's scale.
func (r *postgresCommentRepo) SubtreeByComment(ctx context.Context, root *comments.Comment) (comments.Iterator, error) {
	query := `SELECT ` + commentColumns + ` FROM comment
		WHERE tree_id = $1
		  AND scale > $2
		  AND lft_num * $4 >= $3 * lft_den
		  AND lft_num * $6 < $5 * lft_den
		ORDER BY ` + lftOrder + `, scale`

	return r.queryIterator(ctx, query,
		root.TreeID, root.Scale,
		root.Lft.Num, root.Lft.Den,
		root.Rht.Num, root.Rht.Den,
	)
}

// ListByAuthor iterates all of an author's comments ordered by created
func (r *postgresCommentRepo) ListByAuthor(ctx context.Context, authorID int64) (comments.Iterator, error) {
	query := `SELECT ` + commentColumns + ` FROM comment
		WHERE author_id = $1
		ORDER BY created`

	return r.queryIterator(ctx, query, authorID)
}

// SelectForReport iterates the comments matching a report filter
func (r *postgresCommentRepo) SelectForReport(ctx context.Context, filter comments.ReportFilter) (comments.Iterator, error) {
	query := `SELECT ` + commentColumns + ` FROM comment WHERE 1=1`
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	rooted := false
	switch {
	case filter.Root != nil:
		rooted = true
		root := filter.Root
		query += ` AND tree_id = ` + arg(root.TreeID)
		query += ` AND scale > ` + arg(root.Scale)
		lnum, lden := arg(root.Lft.Num), arg(root.Lft.Den)
		query += fmt.Sprintf(" AND lft_num * %s >= %s * lft_den", lden, lnum)
		rnum, rden := arg(root.Rht.Num), arg(root.Rht.Den)
		query += fmt.Sprintf(" AND lft_num * %s < %s * lft_den", rden, rnum)
	case filter.TreeID != nil:
		rooted = true
		query += ` AND tree_id = ` + arg(*filter.TreeID)
	}

	if filter.AuthorID != nil {
		query += ` AND author_id = ` + arg(*filter.AuthorID)
	}

	switch {
	case filter.Start != nil && filter.End != nil:
		query += ` AND created BETWEEN ` + arg(*filter.Start) + ` AND ` + arg(*filter.End)
	case filter.Start != nil:
		query += ` AND created >= ` + arg(*filter.Start)
	case filter.End != nil:
		query += ` AND created <= ` + arg(*filter.End)
	}

	if rooted {
		query += ` ORDER BY ` + lftOrder + `, scale`
	} else {
		query += ` ORDER BY created, id`
	}

	return r.queryIterator(ctx, query, args...)
}

func (r *postgresCommentRepo) queryIterator(ctx context.Context, query string, args ...interface{}) (comments.Iterator, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	return &commentRows{rows: rows}, nil
}

// commentRows adapts *sql.Rows to the chunked Iterator contract.
type commentRows struct {
	rows   *sql.Rows
	closed bool
}

func (r *commentRows) NextChunk(ctx context.Context, n int) ([]*comments.Comment, error) {
	if r.closed {
		return nil, nil
	}

	chunk := make([]*comments.Comment, 0, n)
	for len(chunk) < n && r.rows.Next() {
		c, err := scanComment(r.rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		chunk = append(chunk, c)
	}

	if len(chunk) < n {
		if err := r.rows.Err(); err != nil {
			return nil, fmt.Errorf("error iterating comments: %w", err)
		}
		if err := r.Close(); err != nil {
			return nil, err
		}
	}

	return chunk, nil
}

func (r *commentRows) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.rows.Close()
}
