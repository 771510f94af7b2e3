package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"Remark/internal/core/reports"
)

const dlRequestColumns = `id, itype_id, i_id, author_id, start_at, end_at, fmt, state, filename, created`

type postgresReportRepo struct {
	db *sql.DB
}

// NewReportRepository creates a new PostgreSQL download request repository
func NewReportRepository(db *sql.DB) reports.Repository {
	return &postgresReportRepo{db: db}
}

func scanDlRequest(row rowScanner) (*reports.DlRequest, error) {
	var r reports.DlRequest
	var iID, authorID sql.NullInt64
	var start, end sql.NullTime
	var fmtCode, state int

	err := row.Scan(&r.ID, &r.ITypeID, &iID, &authorID, &start, &end,
		&fmtCode, &state, &r.Filename, &r.Created)
	if err != nil {
		return nil, err
	}

	if iID.Valid {
		r.IID = &iID.Int64
	}
	if authorID.Valid {
		r.AuthorID = &authorID.Int64
	}
	if start.Valid {
		r.Start = &start.Time
	}
	if end.Valid {
		r.End = &end.Time
	}
	r.Fmt = reports.Format(fmtCode)
	r.State = reports.State(state)

	return &r, nil
}

// GetByID retrieves a download request by primary key
func (r *postgresReportRepo) GetByID(ctx context.Context, id int64) (*reports.DlRequest, error) {
	query := `SELECT ` + dlRequestColumns + ` FROM dl_request WHERE id = $1`

	req, err := scanDlRequest(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, reports.ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get download request: %w", err)
	}

	return req, nil
}

// FindByKey retrieves the request cached under the full filter tuple.
// IS NOT DISTINCT FROM makes NULL key fields compare as values, so the
// author-less and window-less variants are distinct cache entries.
func (r *postgresReportRepo) FindByKey(ctx context.Context, key reports.CacheKey) (*reports.DlRequest, error) {
	query := `
		SELECT ` + dlRequestColumns + `
		FROM dl_request
		WHERE itype_id = $1
		  AND i_id IS NOT DISTINCT FROM $2
		  AND author_id IS NOT DISTINCT FROM $3
		  AND start_at IS NOT DISTINCT FROM $4
		  AND end_at IS NOT DISTINCT FROM $5
		  AND fmt = $6
	`

	req, err := scanDlRequest(r.db.QueryRowContext(ctx, query,
		key.ITypeID, key.IID, key.AuthorID, key.Start, key.End, int(key.Fmt)))
	if err == sql.ErrNoRows {
		return nil, reports.ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find download request: %w", err)
	}

	return req, nil
}

// Create inserts a new download request in its initial state
func (r *postgresReportRepo) Create(ctx context.Context, req *reports.DlRequest) error {
	query := `
		INSERT INTO dl_request (itype_id, i_id, author_id, start_at, end_at, fmt, state, filename, created)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING id, created
	`

	err := r.db.QueryRowContext(ctx, query,
		req.ITypeID, req.IID, req.AuthorID, req.Start, req.End,
		int(req.Fmt), int(req.State), req.Filename,
	).Scan(&req.ID, &req.Created)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return reports.ErrDuplicateRequest
		}
		return fmt.Errorf("failed to insert download request: %w", err)
	}

	return nil
}

// Save persists the request's state and created timestamp
func (r *postgresReportRepo) Save(ctx context.Context, req *reports.DlRequest) error {
	query := `UPDATE dl_request SET state = $1, created = $2 WHERE id = $3`

	_, err := r.db.ExecContext(ctx, query, int(req.State), req.Created, req.ID)
	if err != nil {
		return fmt.Errorf("failed to save download request: %w", err)
	}

	return nil
}

// EnsureUserLink records that the user asked for this request, once
func (r *postgresReportRepo) EnsureUserLink(ctx context.Context, userID, dlrequestID int64) error {
	query := `
		INSERT INTO user_dl_request (user_id, dlrequest_id, created)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, dlrequest_id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query, userID, dlrequestID)
	if err != nil {
		return fmt.Errorf("failed to link user to download request: %w", err)
	}

	return nil
}

// ListByUser retrieves a user's download requests, newest link first
func (r *postgresReportRepo) ListByUser(ctx context.Context, userID int64) ([]*reports.DlRequest, error) {
	query := `
		SELECT d.id, d.itype_id, d.i_id, d.author_id, d.start_at, d.end_at,
		       d.fmt, d.state, d.filename, d.created
		FROM dl_request d
		INNER JOIN user_dl_request u ON u.dlrequest_id = d.id
		WHERE u.user_id = $1
		ORDER BY u.created DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list download requests: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Failed to close rows: %v", err)
		}
	}()

	var result []*reports.DlRequest
	for rows.Next() {
		req, err := scanDlRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan download request: %w", err)
		}
		result = append(result, req)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating download requests: %w", err)
	}

	return result, nil
}
