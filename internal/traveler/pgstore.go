package traveler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexusmfg/traveler/model"
)

const uniqueViolation = "23505"

// PgStore is a PostgreSQL-backed traveler Store using pgx/v5. Multi-entity
// writes run in a single transaction.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a new PostgreSQL traveler store.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const travelerColumns = `id, traveler_number, job_number, work_order_number, traveler_type,
       part_number, part_description, revision, quantity, customer_code,
       customer_name, priority, work_center, status, notes, created_by,
       created_at, updated_at, completed_at`

func scanTraveler(row pgx.Row) (model.Traveler, error) {
	var t model.Traveler
	err := row.Scan(
		&t.ID, &t.TravelerNumber, &t.JobNumber, &t.WorkOrderNumber, &t.Type,
		&t.PartNumber, &t.PartDescription, &t.Revision, &t.Quantity,
		&t.CustomerCode, &t.CustomerName, &t.Priority, &t.WorkCenter,
		&t.Status, &t.Notes, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
		&t.CompletedAt,
	)
	return t, err
}

// Create inserts the traveler and all of its steps in one transaction.
func (s *PgStore) Create(ctx context.Context, t model.Traveler, steps []model.ProcessStep, manual []model.ManualStep) (model.Traveler, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Traveler{}, fmt.Errorf("begin create traveler: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO travelers (
			traveler_number, job_number, work_order_number, traveler_type,
			part_number, part_description, revision, quantity, customer_code,
			customer_name, priority, work_center, status, notes, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at`,
		t.TravelerNumber, t.JobNumber, t.WorkOrderNumber, t.Type,
		t.PartNumber, t.PartDescription, t.Revision, t.Quantity,
		t.CustomerCode, t.CustomerName, t.Priority, t.WorkCenter,
		t.Status, t.Notes, t.CreatedBy,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return model.Traveler{}, model.NewConflictError(
				fmt.Sprintf("traveler number %q already exists", t.TravelerNumber),
			)
		}
		return model.Traveler{}, fmt.Errorf("insert traveler: %w", err)
	}

	for _, step := range steps {
		var stepID int64
		err = tx.QueryRow(ctx, `
			INSERT INTO process_steps (
				traveler_id, step_number, operation, work_center_code,
				instructions, estimated_time, is_required
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			t.ID, step.StepNumber, step.Operation, step.WorkCenterCode,
			step.Instructions, step.EstimatedTime, step.IsRequired,
		).Scan(&stepID)
		if err != nil {
			return model.Traveler{}, fmt.Errorf("insert process step %d: %w", step.StepNumber, err)
		}
		for _, sub := range step.SubSteps {
			_, err = tx.Exec(ctx, `
				INSERT INTO sub_steps (process_step_id, step_number, description)
				VALUES ($1, $2, $3)`,
				stepID, sub.StepNumber, sub.Description,
			)
			if err != nil {
				return model.Traveler{}, fmt.Errorf("insert sub step %s: %w", sub.StepNumber, err)
			}
		}
	}

	for _, ms := range manual {
		_, err = tx.Exec(ctx, `
			INSERT INTO manual_steps (traveler_id, description, added_by)
			VALUES ($1, $2, $3)`,
			t.ID, ms.Description, ms.AddedBy,
		)
		if err != nil {
			return model.Traveler{}, fmt.Errorf("insert manual step: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Traveler{}, fmt.Errorf("commit create traveler: %w", err)
	}
	return t, nil
}

// Get retrieves a traveler by ID.
func (s *PgStore) Get(ctx context.Context, id int64) (model.Traveler, error) {
	t, err := scanTraveler(s.pool.QueryRow(ctx,
		`SELECT `+travelerColumns+` FROM travelers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Traveler{}, model.NewNotFoundError(fmt.Sprintf("traveler %d not found", id))
	}
	if err != nil {
		return model.Traveler{}, fmt.Errorf("query traveler: %w", err)
	}
	return t, nil
}

// GetByNumber retrieves a traveler by its traveler number.
func (s *PgStore) GetByNumber(ctx context.Context, number string) (model.Traveler, error) {
	t, err := scanTraveler(s.pool.QueryRow(ctx,
		`SELECT `+travelerColumns+` FROM travelers WHERE traveler_number = $1`, number))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Traveler{}, model.NewNotFoundError(fmt.Sprintf("traveler %q not found", number))
	}
	if err != nil {
		return model.Traveler{}, fmt.Errorf("query traveler: %w", err)
	}
	return t, nil
}

// List returns travelers matching the filter, newest first.
func (s *PgStore) List(ctx context.Context, f ListFilter) ([]model.Traveler, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Status != "" {
		conds = append(conds, "status = "+arg(f.Status))
	}
	if f.Type != "" {
		conds = append(conds, "traveler_type = "+arg(f.Type))
	}
	if f.WorkCenter != "" {
		conds = append(conds, "work_center = "+arg(f.WorkCenter))
	}
	if f.Search != "" {
		p := arg("%" + f.Search + "%")
		conds = append(conds, fmt.Sprintf(
			"(traveler_number ILIKE %s OR job_number ILIKE %s OR part_number ILIKE %s)", p, p, p))
	}

	query := `SELECT ` + travelerColumns + ` FROM travelers`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
	}
	if f.Offset > 0 {
		query += " OFFSET " + arg(f.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query travelers: %w", err)
	}
	defer rows.Close()

	var travelers []model.Traveler
	for rows.Next() {
		t, err := scanTraveler(rows)
		if err != nil {
			return nil, fmt.Errorf("scan traveler: %w", err)
		}
		travelers = append(travelers, t)
	}
	return travelers, rows.Err()
}

// Update persists the traveler's mutable fields.
func (s *PgStore) Update(ctx context.Context, t model.Traveler) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE travelers SET
			job_number = $1, work_order_number = $2, traveler_type = $3,
			part_number = $4, part_description = $5, revision = $6,
			quantity = $7, customer_code = $8, customer_name = $9,
			priority = $10, work_center = $11, status = $12, notes = $13,
			completed_at = $14, updated_at = now()
		WHERE id = $15`,
		t.JobNumber, t.WorkOrderNumber, t.Type, t.PartNumber,
		t.PartDescription, t.Revision, t.Quantity, t.CustomerCode,
		t.CustomerName, t.Priority, t.WorkCenter, t.Status, t.Notes,
		t.CompletedAt, t.ID,
	)
	if err != nil {
		return fmt.Errorf("update traveler: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError(fmt.Sprintf("traveler %d not found", t.ID))
	}
	return nil
}

// Delete removes the traveler. Steps, labor entries, and approvals go with
// it through ON DELETE CASCADE; the audit log has no foreign key and stays.
func (s *PgStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM travelers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete traveler: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError(fmt.Sprintf("traveler %d not found", id))
	}
	return nil
}

const stepColumns = `id, traveler_id, step_number, operation, work_center_code,
       instructions, estimated_time, is_required, is_completed, completed_by,
       completed_at`

func scanStep(row pgx.Row) (model.ProcessStep, error) {
	var p model.ProcessStep
	err := row.Scan(
		&p.ID, &p.TravelerID, &p.StepNumber, &p.Operation, &p.WorkCenterCode,
		&p.Instructions, &p.EstimatedTime, &p.IsRequired, &p.IsCompleted,
		&p.CompletedBy, &p.CompletedAt,
	)
	return p, err
}

func (s *PgStore) loadSubSteps(ctx context.Context, steps []model.ProcessStep) error {
	if len(steps) == 0 {
		return nil
	}
	index := make(map[int64]*model.ProcessStep, len(steps))
	ids := make([]int64, 0, len(steps))
	for i := range steps {
		index[steps[i].ID] = &steps[i]
		ids = append(ids, steps[i].ID)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, process_step_id, step_number, description
		FROM sub_steps
		WHERE process_step_id = ANY($1)
		ORDER BY process_step_id, string_to_array(step_number, '.')::int[]`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("query sub steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sub model.SubStep
		if err := rows.Scan(&sub.ID, &sub.ProcessStepID, &sub.StepNumber, &sub.Description); err != nil {
			return fmt.Errorf("scan sub step: %w", err)
		}
		if parent, ok := index[sub.ProcessStepID]; ok {
			parent.SubSteps = append(parent.SubSteps, sub)
		}
	}
	return rows.Err()
}

// Steps returns the traveler's process steps with sub-steps.
func (s *PgStore) Steps(ctx context.Context, travelerID int64) ([]model.ProcessStep, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+stepColumns+` FROM process_steps WHERE traveler_id = $1 ORDER BY step_number ASC`,
		travelerID,
	)
	if err != nil {
		return nil, fmt.Errorf("query process steps: %w", err)
	}
	defer rows.Close()

	var steps []model.ProcessStep
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("scan process step: %w", err)
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.loadSubSteps(ctx, steps); err != nil {
		return nil, err
	}
	return steps, nil
}

// GetStep retrieves one process step with its sub-steps.
func (s *PgStore) GetStep(ctx context.Context, stepID int64) (model.ProcessStep, error) {
	step, err := scanStep(s.pool.QueryRow(ctx,
		`SELECT `+stepColumns+` FROM process_steps WHERE id = $1`, stepID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ProcessStep{}, model.NewNotFoundError(fmt.Sprintf("process step %d not found", stepID))
	}
	if err != nil {
		return model.ProcessStep{}, fmt.Errorf("query process step: %w", err)
	}
	steps := []model.ProcessStep{step}
	if err := s.loadSubSteps(ctx, steps); err != nil {
		return model.ProcessStep{}, err
	}
	return steps[0], nil
}

// UpdateStep persists a step's completion state.
func (s *PgStore) UpdateStep(ctx context.Context, step model.ProcessStep) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE process_steps SET
			is_completed = $1, completed_by = $2, completed_at = $3
		WHERE id = $4`,
		step.IsCompleted, step.CompletedBy, step.CompletedAt, step.ID,
	)
	if err != nil {
		return fmt.Errorf("update process step: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError(fmt.Sprintf("process step %d not found", step.ID))
	}
	return nil
}

// ManualSteps returns the traveler's manual steps in insertion order.
func (s *PgStore) ManualSteps(ctx context.Context, travelerID int64) ([]model.ManualStep, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, traveler_id, description, added_by, created_at
		FROM manual_steps WHERE traveler_id = $1 ORDER BY id ASC`,
		travelerID,
	)
	if err != nil {
		return nil, fmt.Errorf("query manual steps: %w", err)
	}
	defer rows.Close()

	var steps []model.ManualStep
	for rows.Next() {
		var ms model.ManualStep
		if err := rows.Scan(&ms.ID, &ms.TravelerID, &ms.Description, &ms.AddedBy, &ms.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan manual step: %w", err)
		}
		steps = append(steps, ms)
	}
	return steps, rows.Err()
}

// AddManualStep appends an ad-hoc instruction to the traveler.
func (s *PgStore) AddManualStep(ctx context.Context, ms model.ManualStep) (model.ManualStep, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO manual_steps (traveler_id, description, added_by)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		ms.TravelerID, ms.Description, ms.AddedBy,
	).Scan(&ms.ID, &ms.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return model.ManualStep{}, model.NewNotFoundError(fmt.Sprintf("traveler %d not found", ms.TravelerID))
		}
		return model.ManualStep{}, fmt.Errorf("insert manual step: %w", err)
	}
	return ms, nil
}

const foreignKeyViolation = "23503"

// HealthCheck verifies database connectivity.
func (s *PgStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// PgSequencer hands out sequence numbers from a counters table. The
// single-statement upsert keeps increments atomic under concurrent callers.
type PgSequencer struct {
	pool *pgxpool.Pool
}

// NewPgSequencer creates a new PostgreSQL-backed sequencer.
func NewPgSequencer(pool *pgxpool.Pool) *PgSequencer {
	return &PgSequencer{pool: pool}
}

// Next returns the next sequence value for the key, starting at 1.
func (s *PgSequencer) Next(ctx context.Context, key string) (int64, error) {
	var value int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO traveler_counters (counter_key, value)
		VALUES ($1, 1)
		ON CONFLICT (counter_key) DO UPDATE SET value = traveler_counters.value + 1
		RETURNING value`,
		key,
	).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("next sequence for %q: %w", key, err)
	}
	return value, nil
}
