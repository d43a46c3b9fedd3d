package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexusmfg/traveler/model"
)

const uniqueViolation = "23505"

// PgStore is a PostgreSQL-backed user Store using pgx/v5.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a new PostgreSQL user store.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const userColumns = `id, username, email, password_hash, role, first_name, last_name,
       is_approver, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role,
		&u.FirstName, &u.LastName, &u.IsApprover, &u.IsActive,
		&u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

// Create inserts a new user. A unique constraint on username and email maps
// to CONFLICT.
func (s *PgStore) Create(ctx context.Context, u model.User) (model.User, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (
			username, email, password_hash, role, first_name, last_name,
			is_approver, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`,
		u.Username, u.Email, u.PasswordHash, u.Role,
		u.FirstName, u.LastName, u.IsApprover, u.IsActive,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return model.User{}, model.NewConflictError(
				fmt.Sprintf("user with username %q or email %q already exists", u.Username, u.Email),
			)
		}
		return model.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// Get retrieves a user by ID.
func (s *PgStore) Get(ctx context.Context, id int64) (model.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.NewNotFoundError(fmt.Sprintf("user %d not found", id))
	}
	if err != nil {
		return model.User{}, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

// GetByUsername retrieves a user by username.
func (s *PgStore) GetByUsername(ctx context.Context, username string) (model.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.NewNotFoundError(fmt.Sprintf("user %q not found", username))
	}
	if err != nil {
		return model.User{}, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

// List returns all users ordered by ID.
func (s *PgStore) List(ctx context.Context) ([]model.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Update persists changes to an existing user.
func (s *PgStore) Update(ctx context.Context, u model.User) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET
			role = $1, is_approver = $2, is_active = $3, password_hash = $4,
			updated_at = now()
		WHERE id = $5`,
		u.Role, u.IsApprover, u.IsActive, u.PasswordHash, u.ID,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError(fmt.Sprintf("user %d not found", u.ID))
	}
	return nil
}

// HealthCheck verifies database connectivity.
func (s *PgStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
