package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexusmfg/traveler/model"
)

// PgStore is a PostgreSQL-backed audit Store using pgx/v5. The audit_log
// table carries no foreign key to travelers so that entries survive a
// traveler hard delete.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a new PostgreSQL audit store.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// Append inserts one entry.
func (s *PgStore) Append(ctx context.Context, entry model.AuditEntry) (model.AuditEntry, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO audit_log (
			traveler_id, user_id, action, field_changed, old_value, new_value,
			ip_address, user_agent, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		entry.TravelerID, entry.UserID, entry.Action,
		entry.FieldChanged, entry.OldValue, entry.NewValue,
		entry.Origin.IPAddress, entry.Origin.UserAgent, entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return model.AuditEntry{}, fmt.Errorf("insert audit entry: %w", err)
	}
	return entry, nil
}

// History returns all entries for a traveler in chronological order.
func (s *PgStore) History(ctx context.Context, travelerID int64) ([]model.AuditEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, traveler_id, user_id, action, field_changed, old_value, new_value,
		       ip_address, user_agent, created_at
		FROM audit_log
		WHERE traveler_id = $1
		ORDER BY created_at ASC, id ASC`,
		travelerID,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(
			&e.ID, &e.TravelerID, &e.UserID, &e.Action,
			&e.FieldChanged, &e.OldValue, &e.NewValue,
			&e.Origin.IPAddress, &e.Origin.UserAgent, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// HealthCheck verifies database connectivity.
func (s *PgStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
