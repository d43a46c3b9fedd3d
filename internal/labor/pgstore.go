package labor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexusmfg/traveler/model"
)

const uniqueViolation = "23505"

// PgStore is a PostgreSQL-backed labor Store using pgx/v5. The active-entry
// invariant rides on a partial unique index over (employee_id) where the
// entry is active, so two concurrent inserts cannot both pass.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a new PostgreSQL labor store.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const laborColumns = `id, traveler_id, step_id, employee_id, start_time, end_time,
       hours_worked, description, is_completed, created_at`

func scanEntry(row pgx.Row) (model.LaborEntry, error) {
	var e model.LaborEntry
	err := row.Scan(
		&e.ID, &e.TravelerID, &e.StepID, &e.EmployeeID, &e.StartTime,
		&e.EndTime, &e.HoursWorked, &e.Description, &e.IsCompleted,
		&e.CreatedAt,
	)
	return e, err
}

// Create inserts a new entry. The partial unique index maps to CONFLICT.
func (s *PgStore) Create(ctx context.Context, e model.LaborEntry) (model.LaborEntry, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO labor_entries (
			traveler_id, step_id, employee_id, start_time, end_time,
			hours_worked, description, is_completed
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		e.TravelerID, e.StepID, e.EmployeeID, e.StartTime, e.EndTime,
		e.HoursWorked, e.Description, e.IsCompleted,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return model.LaborEntry{}, model.NewConflictError(
				fmt.Sprintf("employee %d already has an active labor entry", e.EmployeeID),
			)
		}
		return model.LaborEntry{}, fmt.Errorf("insert labor entry: %w", err)
	}
	return e, nil
}

// Get retrieves an entry by ID.
func (s *PgStore) Get(ctx context.Context, id int64) (model.LaborEntry, error) {
	e, err := scanEntry(s.pool.QueryRow(ctx,
		`SELECT `+laborColumns+` FROM labor_entries WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.LaborEntry{}, model.NewNotFoundError(fmt.Sprintf("labor entry %d not found", id))
	}
	if err != nil {
		return model.LaborEntry{}, fmt.Errorf("query labor entry: %w", err)
	}
	return e, nil
}

// Update persists changes to an existing entry.
func (s *PgStore) Update(ctx context.Context, e model.LaborEntry) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE labor_entries SET
			end_time = $1, hours_worked = $2, description = $3, is_completed = $4
		WHERE id = $5`,
		e.EndTime, e.HoursWorked, e.Description, e.IsCompleted, e.ID,
	)
	if err != nil {
		return fmt.Errorf("update labor entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError(fmt.Sprintf("labor entry %d not found", e.ID))
	}
	return nil
}

// ActiveFor returns the employee's single active entry.
func (s *PgStore) ActiveFor(ctx context.Context, employeeID int64) (model.LaborEntry, bool, error) {
	e, err := scanEntry(s.pool.QueryRow(ctx, `
		SELECT `+laborColumns+` FROM labor_entries
		WHERE employee_id = $1 AND end_time IS NULL AND NOT is_completed`,
		employeeID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.LaborEntry{}, false, nil
	}
	if err != nil {
		return model.LaborEntry{}, false, fmt.Errorf("query active labor entry: %w", err)
	}
	return e, true, nil
}

func (s *PgStore) query(ctx context.Context, query string, args ...any) ([]model.LaborEntry, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query labor entries: %w", err)
	}
	defer rows.Close()

	var entries []model.LaborEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan labor entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListForTraveler returns a traveler's entries, newest first.
func (s *PgStore) ListForTraveler(ctx context.Context, travelerID int64) ([]model.LaborEntry, error) {
	return s.query(ctx,
		`SELECT `+laborColumns+` FROM labor_entries WHERE traveler_id = $1 ORDER BY id DESC`,
		travelerID)
}

// ListForEmployee returns an employee's entries, newest first.
func (s *PgStore) ListForEmployee(ctx context.Context, employeeID int64) ([]model.LaborEntry, error) {
	return s.query(ctx,
		`SELECT `+laborColumns+` FROM labor_entries WHERE employee_id = $1 ORDER BY id DESC`,
		employeeID)
}

// ListSince returns entries created at or after the cutoff.
func (s *PgStore) ListSince(ctx context.Context, cutoff time.Time, employeeID int64) ([]model.LaborEntry, error) {
	if employeeID == 0 {
		return s.query(ctx,
			`SELECT `+laborColumns+` FROM labor_entries WHERE created_at >= $1 ORDER BY id DESC`,
			cutoff)
	}
	return s.query(ctx, `
		SELECT `+laborColumns+` FROM labor_entries
		WHERE created_at >= $1 AND employee_id = $2 ORDER BY id DESC`,
		cutoff, employeeID)
}

// DeleteForTraveler removes the traveler's entries.
func (s *PgStore) DeleteForTraveler(ctx context.Context, travelerID int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM labor_entries WHERE traveler_id = $1`, travelerID); err != nil {
		return fmt.Errorf("delete labor entries for traveler %d: %w", travelerID, err)
	}
	return nil
}
