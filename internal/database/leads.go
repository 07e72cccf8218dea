package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const leadColumns = `id, contact_name, company_name, phone, email, source, status, notes, customer_id, created_at, updated_at`

func scanLead(row interface{ Scan(...any) error }) (Lead, error) {
	var l Lead
	err := row.Scan(&l.ID, &l.ContactName, &l.CompanyName, &l.Phone, &l.Email, &l.Source,
		&l.Status, &l.Notes, &l.CustomerID, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

type ListLeadsParams struct {
	Status string
	Limit  int32
	Offset int32
}

func (q *Queries) ListLeads(ctx context.Context, arg ListLeadsParams) ([]Lead, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+leadColumns+`
		 FROM leads
		 WHERE ($1 = '' OR status = $1)
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

func (q *Queries) GetLead(ctx context.Context, id uuid.UUID) (Lead, error) {
	return scanLead(q.db.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
}

type CreateLeadParams struct {
	ContactName string
	CompanyName pgtype.Text
	Phone       pgtype.Text
	Email       pgtype.Text
	Source      pgtype.Text
	Notes       pgtype.Text
}

func (q *Queries) CreateLead(ctx context.Context, arg CreateLeadParams) (Lead, error) {
	return scanLead(q.db.QueryRow(ctx,
		`INSERT INTO leads (contact_name, company_name, phone, email, source, notes)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+leadColumns,
		arg.ContactName, arg.CompanyName, arg.Phone, arg.Email, arg.Source, arg.Notes))
}

type UpdateLeadParams struct {
	ContactName string
	CompanyName pgtype.Text
	Phone       pgtype.Text
	Email       pgtype.Text
	Source      pgtype.Text
	Notes       pgtype.Text
	ID          uuid.UUID
}

func (q *Queries) UpdateLead(ctx context.Context, arg UpdateLeadParams) (Lead, error) {
	return scanLead(q.db.QueryRow(ctx,
		`UPDATE leads
		 SET contact_name = $1, company_name = $2, phone = $3, email = $4, source = $5,
		     notes = $6, updated_at = now()
		 WHERE id = $7
		 RETURNING `+leadColumns,
		arg.ContactName, arg.CompanyName, arg.Phone, arg.Email, arg.Source, arg.Notes, arg.ID))
}

type UpdateLeadStatusParams struct {
	Status string
	ID     uuid.UUID
}

func (q *Queries) UpdateLeadStatus(ctx context.Context, arg UpdateLeadStatusParams) (Lead, error) {
	return scanLead(q.db.QueryRow(ctx,
		`UPDATE leads SET status = $1, updated_at = now()
		 WHERE id = $2
		 RETURNING `+leadColumns,
		arg.Status, arg.ID))
}

type ConvertLeadParams struct {
	CustomerID pgtype.UUID
	ID         uuid.UUID
}

// ConvertLead marks a lead CONVERTED and links it to the customer created from it.
func (q *Queries) ConvertLead(ctx context.Context, arg ConvertLeadParams) (Lead, error) {
	return scanLead(q.db.QueryRow(ctx,
		`UPDATE leads SET status = 'CONVERTED', customer_id = $1, updated_at = now()
		 WHERE id = $2 AND status NOT IN ('CONVERTED', 'LOST')
		 RETURNING `+leadColumns,
		arg.CustomerID, arg.ID))
}
