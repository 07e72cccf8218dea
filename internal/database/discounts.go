package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const discountTemplateColumns = `id, name, discount_type, value, is_active, created_at, updated_at`

func scanDiscountTemplate(row interface{ Scan(...any) error }) (DiscountTemplate, error) {
	var t DiscountTemplate
	err := row.Scan(&t.ID, &t.Name, &t.DiscountType, &t.Value, &t.IsActive,
		&t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (q *Queries) ListActiveDiscountTemplates(ctx context.Context) ([]DiscountTemplate, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+discountTemplateColumns+`
		 FROM discount_templates
		 WHERE is_active = TRUE
		 ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []DiscountTemplate
	for rows.Next() {
		t, err := scanDiscountTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func (q *Queries) GetDiscountTemplate(ctx context.Context, id uuid.UUID) (DiscountTemplate, error) {
	return scanDiscountTemplate(q.db.QueryRow(ctx,
		`SELECT `+discountTemplateColumns+`
		 FROM discount_templates WHERE id = $1 AND is_active = TRUE`, id))
}

type CreateDiscountTemplateParams struct {
	Name         string
	DiscountType string
	Value        pgtype.Numeric
}

func (q *Queries) CreateDiscountTemplate(ctx context.Context, arg CreateDiscountTemplateParams) (DiscountTemplate, error) {
	return scanDiscountTemplate(q.db.QueryRow(ctx,
		`INSERT INTO discount_templates (name, discount_type, value)
		 VALUES ($1, $2, $3)
		 RETURNING `+discountTemplateColumns,
		arg.Name, arg.DiscountType, arg.Value))
}

type UpdateDiscountTemplateParams struct {
	Name         string
	DiscountType string
	Value        pgtype.Numeric
	ID           uuid.UUID
}

func (q *Queries) UpdateDiscountTemplate(ctx context.Context, arg UpdateDiscountTemplateParams) (DiscountTemplate, error) {
	return scanDiscountTemplate(q.db.QueryRow(ctx,
		`UPDATE discount_templates
		 SET name = $1, discount_type = $2, value = $3, updated_at = now()
		 WHERE id = $4 AND is_active = TRUE
		 RETURNING `+discountTemplateColumns,
		arg.Name, arg.DiscountType, arg.Value, arg.ID))
}

func (q *Queries) SoftDeleteDiscountTemplate(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var out uuid.UUID
	err := q.db.QueryRow(ctx,
		`UPDATE discount_templates SET is_active = FALSE, updated_at = now()
		 WHERE id = $1 AND is_active = TRUE
		 RETURNING id`, id).Scan(&out)
	return out, err
}

// --- Discount requests ---

const discountRequestColumns = `id, quote_id, requested_by, discount_type, value, reason, status, decided_by, decided_at, created_at`

func scanDiscountRequest(row interface{ Scan(...any) error }) (DiscountRequest, error) {
	var dr DiscountRequest
	err := row.Scan(&dr.ID, &dr.QuoteID, &dr.RequestedBy, &dr.DiscountType, &dr.Value,
		&dr.Reason, &dr.Status, &dr.DecidedBy, &dr.DecidedAt, &dr.CreatedAt)
	return dr, err
}

func (q *Queries) ListDiscountRequestsByQuote(ctx context.Context, quoteID uuid.UUID) ([]DiscountRequest, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+discountRequestColumns+`
		 FROM discount_requests
		 WHERE quote_id = $1
		 ORDER BY created_at DESC`,
		quoteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []DiscountRequest
	for rows.Next() {
		dr, err := scanDiscountRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, dr)
	}
	return requests, rows.Err()
}

type CreateDiscountRequestParams struct {
	QuoteID      uuid.UUID
	RequestedBy  uuid.UUID
	DiscountType string
	Value        pgtype.Numeric
	Reason       pgtype.Text
}

func (q *Queries) CreateDiscountRequest(ctx context.Context, arg CreateDiscountRequestParams) (DiscountRequest, error) {
	return scanDiscountRequest(q.db.QueryRow(ctx,
		`INSERT INTO discount_requests (quote_id, requested_by, discount_type, value, reason)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+discountRequestColumns,
		arg.QuoteID, arg.RequestedBy, arg.DiscountType, arg.Value, arg.Reason))
}

type DecideDiscountRequestParams struct {
	Status    string
	DecidedBy pgtype.UUID
	ID        uuid.UUID
}

// DecideDiscountRequest moves a PENDING request to APPROVED or REJECTED.
// Already-decided requests are not touched; callers treat no-rows as a conflict.
func (q *Queries) DecideDiscountRequest(ctx context.Context, arg DecideDiscountRequestParams) (DiscountRequest, error) {
	return scanDiscountRequest(q.db.QueryRow(ctx,
		`UPDATE discount_requests
		 SET status = $1, decided_by = $2, decided_at = now()
		 WHERE id = $3 AND status = 'PENDING'
		 RETURNING `+discountRequestColumns,
		arg.Status, arg.DecidedBy, arg.ID))
}
