package approval

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexusmfg/traveler/model"
)

// PgStore is a PostgreSQL-backed approval Store using pgx/v5.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a new PostgreSQL approval store.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const approvalColumns = `id, traveler_id, requested_by, request_type, request_details,
       status, decided_by, decided_at, rejection_reason, created_at`

func scanApproval(row pgx.Row) (model.Approval, error) {
	var a model.Approval
	err := row.Scan(
		&a.ID, &a.TravelerID, &a.RequestedBy, &a.RequestType, &a.RequestDetails,
		&a.Status, &a.DecidedBy, &a.DecidedAt, &a.RejectionReason, &a.CreatedAt,
	)
	return a, err
}

// Create inserts a new PENDING approval.
func (s *PgStore) Create(ctx context.Context, a model.Approval) (model.Approval, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO approvals (traveler_id, requested_by, request_type, request_details, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		a.TravelerID, a.RequestedBy, a.RequestType, a.RequestDetails, a.Status,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return model.Approval{}, fmt.Errorf("insert approval: %w", err)
	}
	return a, nil
}

// Get retrieves an approval by ID.
func (s *PgStore) Get(ctx context.Context, id int64) (model.Approval, error) {
	a, err := scanApproval(s.pool.QueryRow(ctx,
		`SELECT `+approvalColumns+` FROM approvals WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Approval{}, model.NewNotFoundError(fmt.Sprintf("approval %d not found", id))
	}
	if err != nil {
		return model.Approval{}, fmt.Errorf("query approval: %w", err)
	}
	return a, nil
}

// Update persists a decision. The write is guarded on PENDING so two
// racing deciders cannot both win.
func (s *PgStore) Update(ctx context.Context, a model.Approval) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE approvals SET
			status = $1, decided_by = $2, decided_at = $3, rejection_reason = $4
		WHERE id = $5 AND status = $6`,
		a.Status, a.DecidedBy, a.DecidedAt, a.RejectionReason, a.ID, model.ApprovalPending,
	)
	if err != nil {
		return fmt.Errorf("update approval: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, a.ID); err != nil {
			return err
		}
		return model.NewConflictError("approval has already been decided")
	}
	return nil
}

func (s *PgStore) query(ctx context.Context, query string, args ...any) ([]model.Approval, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query approvals: %w", err)
	}
	defer rows.Close()

	var approvals []model.Approval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		approvals = append(approvals, a)
	}
	return approvals, rows.Err()
}

// ListPending returns all PENDING approvals, oldest first.
func (s *PgStore) ListPending(ctx context.Context) ([]model.Approval, error) {
	return s.query(ctx,
		`SELECT `+approvalColumns+` FROM approvals WHERE status = $1 ORDER BY id ASC`,
		model.ApprovalPending)
}

// ListByRequester returns the user's approvals, newest first.
func (s *PgStore) ListByRequester(ctx context.Context, userID int64) ([]model.Approval, error) {
	return s.query(ctx,
		`SELECT `+approvalColumns+` FROM approvals WHERE requested_by = $1 ORDER BY id DESC`,
		userID)
}

// ListForTraveler returns the traveler's approvals, newest first.
func (s *PgStore) ListForTraveler(ctx context.Context, travelerID int64) ([]model.Approval, error) {
	return s.query(ctx,
		`SELECT `+approvalColumns+` FROM approvals WHERE traveler_id = $1 ORDER BY id DESC`,
		travelerID)
}

// DeleteForTraveler removes the traveler's approvals.
func (s *PgStore) DeleteForTraveler(ctx context.Context, travelerID int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM approvals WHERE traveler_id = $1`, travelerID); err != nil {
		return fmt.Errorf("delete approvals for traveler %d: %w", travelerID, err)
	}
	return nil
}
