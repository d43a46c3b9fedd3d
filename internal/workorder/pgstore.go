package workorder

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexusmfg/traveler/model"
)

// PgStore is a PostgreSQL-backed work order Store using pgx/v5.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a new PostgreSQL work order store.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const workOrderColumns = `id, job_number, work_order_number, traveler_type, part_number,
       part_description, revision, quantity, customer_code, customer_name,
       work_center, priority, process_template, is_active, created_at`

func scanWorkOrder(row pgx.Row) (model.WorkOrder, error) {
	var wo model.WorkOrder
	err := row.Scan(
		&wo.ID, &wo.JobNumber, &wo.WorkOrderNumber, &wo.Type, &wo.PartNumber,
		&wo.PartDescription, &wo.Revision, &wo.Quantity, &wo.CustomerCode,
		&wo.CustomerName, &wo.WorkCenter, &wo.Priority, &wo.ProcessTemplate,
		&wo.IsActive, &wo.CreatedAt,
	)
	return wo, err
}

// GetByNumber retrieves an active work order.
func (s *PgStore) GetByNumber(ctx context.Context, number string) (model.WorkOrder, error) {
	wo, err := scanWorkOrder(s.pool.QueryRow(ctx,
		`SELECT `+workOrderColumns+` FROM work_orders WHERE work_order_number = $1 AND is_active`,
		number,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.WorkOrder{}, model.NewNotFoundError(fmt.Sprintf("work order %q not found", number))
	}
	if err != nil {
		return model.WorkOrder{}, fmt.Errorf("query work order: %w", err)
	}
	return wo, nil
}

// List returns all active work orders ordered by work order number.
func (s *PgStore) List(ctx context.Context) ([]model.WorkOrder, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+workOrderColumns+` FROM work_orders WHERE is_active ORDER BY work_order_number ASC`)
	if err != nil {
		return nil, fmt.Errorf("query work orders: %w", err)
	}
	defer rows.Close()

	var orders []model.WorkOrder
	for rows.Next() {
		wo, err := scanWorkOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan work order: %w", err)
		}
		orders = append(orders, wo)
	}
	return orders, rows.Err()
}
