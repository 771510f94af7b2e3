package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"Remark/internal/core/events"
)

type postgresEventRepo struct {
	db *sql.DB
}

// NewEventRepository creates a new PostgreSQL event log repository
func NewEventRepository(db *sql.DB) events.Repository {
	return &postgresEventRepo{db: db}
}

// Append writes an event row; e_date is assigned by the database
func (r *postgresEventRepo) Append(ctx context.Context, e *events.Event) error {
	query := `
		INSERT INTO event_log (user_id, tree_id, author_id, comment_id, comment_cdate, e_type, e_date)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id, e_date
	`

	err := r.db.QueryRowContext(
		ctx, query,
		e.UserID, e.TreeID, e.AuthorID, e.CommentID, e.CommentCDate, int(e.EType),
	).Scan(&e.ID, &e.EDate)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	return nil
}

// CountAffecting counts the events inside a report's scope
func (r *postgresEventRepo) CountAffecting(ctx context.Context, scope events.Scope) (int64, error) {
	query := `SELECT COUNT(*) FROM event_log WHERE e_date > $1`
	args := []interface{}{scope.Since}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if scope.TreeID != nil {
		query += ` AND tree_id = ` + arg(*scope.TreeID)
	}

	if scope.AuthorID != nil {
		query += ` AND author_id = ` + arg(*scope.AuthorID)
	}

	switch {
	case scope.Start != nil && scope.End != nil:
		query += ` AND comment_cdate BETWEEN ` + arg(*scope.Start) + ` AND ` + arg(*scope.End)
	case scope.Start != nil:
		query += ` AND comment_cdate >= ` + arg(*scope.Start)
	case scope.End != nil:
		query += ` AND comment_cdate <= ` + arg(*scope.End)
	}

	var count int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}

	return count, nil
}
