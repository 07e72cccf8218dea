package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const customerColumns = `id, name, company_name, phone, email, postcode, address, notes, is_active, created_at, updated_at`

func scanCustomer(row interface{ Scan(...any) error }) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.CompanyName, &c.Phone, &c.Email, &c.Postcode,
		&c.Address, &c.Notes, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

type ListCustomersParams struct {
	Search string
	Limit  int32
	Offset int32
}

// ListCustomers returns active customers, optionally filtered by a case-insensitive
// match on name, company name, phone, or email.
func (q *Queries) ListCustomers(ctx context.Context, arg ListCustomersParams) ([]Customer, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+customerColumns+`
		 FROM customers
		 WHERE is_active = TRUE
		   AND ($1 = '' OR name ILIKE '%' || $1 || '%'
		        OR company_name ILIKE '%' || $1 || '%'
		        OR phone ILIKE '%' || $1 || '%'
		        OR email ILIKE '%' || $1 || '%')
		 ORDER BY name
		 LIMIT $2 OFFSET $3`,
		arg.Search, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (q *Queries) GetCustomer(ctx context.Context, id uuid.UUID) (Customer, error) {
	return scanCustomer(q.db.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = $1 AND is_active = TRUE`, id))
}

type CreateCustomerParams struct {
	Name        string
	CompanyName pgtype.Text
	Phone       string
	Email       pgtype.Text
	Postcode    pgtype.Text
	Address     pgtype.Text
	Notes       pgtype.Text
}

func (q *Queries) CreateCustomer(ctx context.Context, arg CreateCustomerParams) (Customer, error) {
	return scanCustomer(q.db.QueryRow(ctx,
		`INSERT INTO customers (name, company_name, phone, email, postcode, address, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+customerColumns,
		arg.Name, arg.CompanyName, arg.Phone, arg.Email, arg.Postcode, arg.Address, arg.Notes))
}

type UpdateCustomerParams struct {
	Name        string
	CompanyName pgtype.Text
	Phone       string
	Email       pgtype.Text
	Postcode    pgtype.Text
	Address     pgtype.Text
	Notes       pgtype.Text
	ID          uuid.UUID
}

func (q *Queries) UpdateCustomer(ctx context.Context, arg UpdateCustomerParams) (Customer, error) {
	return scanCustomer(q.db.QueryRow(ctx,
		`UPDATE customers
		 SET name = $1, company_name = $2, phone = $3, email = $4, postcode = $5,
		     address = $6, notes = $7, updated_at = now()
		 WHERE id = $8 AND is_active = TRUE
		 RETURNING `+customerColumns,
		arg.Name, arg.CompanyName, arg.Phone, arg.Email, arg.Postcode, arg.Address,
		arg.Notes, arg.ID))
}

func (q *Queries) SoftDeleteCustomer(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var out uuid.UUID
	err := q.db.QueryRow(ctx,
		`UPDATE customers SET is_active = FALSE, updated_at = now()
		 WHERE id = $1 AND is_active = TRUE
		 RETURNING id`, id).Scan(&out)
	return out, err
}
