package database

import (
	"context"

	"github.com/google/uuid"
)

const userColumns = `id, full_name, email, hashed_password, role, is_active, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.HashedPassword, &u.Role,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1 AND is_active = TRUE`, email))
}

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(q.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 AND is_active = TRUE`, id))
}

func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE is_active = TRUE ORDER BY full_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

type CreateUserParams struct {
	FullName       string
	Email          string
	HashedPassword string
	Role           string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	return scanUser(q.db.QueryRow(ctx,
		`INSERT INTO users (full_name, email, hashed_password, role)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+userColumns,
		arg.FullName, arg.Email, arg.HashedPassword, arg.Role))
}

type UpdateUserParams struct {
	FullName string
	Email    string
	Role     string
	ID       uuid.UUID
}

func (q *Queries) UpdateUser(ctx context.Context, arg UpdateUserParams) (User, error) {
	return scanUser(q.db.QueryRow(ctx,
		`UPDATE users SET full_name = $1, email = $2, role = $3, updated_at = now()
		 WHERE id = $4 AND is_active = TRUE
		 RETURNING `+userColumns,
		arg.FullName, arg.Email, arg.Role, arg.ID))
}

func (q *Queries) DeactivateUser(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var out uuid.UUID
	err := q.db.QueryRow(ctx,
		`UPDATE users SET is_active = FALSE, updated_at = now()
		 WHERE id = $1 AND is_active = TRUE
		 RETURNING id`, id).Scan(&out)
	return out, err
}
