package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const quoteColumns = `id, quote_number, customer_id, stage, temperature, valid_until,
	terms_and_conditions, notes, subtotal, discount_amount, vat_amount, total_amount,
	deposit_amount, balance_amount, created_by, is_active, created_at, updated_at`

func scanQuote(row interface{ Scan(...any) error }) (Quote, error) {
	var qt Quote
	err := row.Scan(&qt.ID, &qt.QuoteNumber, &qt.CustomerID, &qt.Stage, &qt.Temperature,
		&qt.ValidUntil, &qt.TermsAndConditions, &qt.Notes, &qt.Subtotal, &qt.DiscountAmount,
		&qt.VatAmount, &qt.TotalAmount, &qt.DepositAmount, &qt.BalanceAmount, &qt.CreatedBy,
		&qt.IsActive, &qt.CreatedAt, &qt.UpdatedAt)
	return qt, err
}

// GetNextQuoteNumber returns MAX of the numeric suffix + 1 for this year's quotes.
// Callers retry on unique violation; concurrent transactions can race here.
func (q *Queries) GetNextQuoteNumber(ctx context.Context) (int32, error) {
	var next int32
	err := q.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(SUBSTRING(quote_number FROM '[0-9]+$')::INT), 0) + 1
		 FROM quotes
		 WHERE quote_number LIKE 'Q-' || to_char(now(), 'YYYY') || '-%'`).Scan(&next)
	return next, err
}

type ListQuotesParams struct {
	Stage  string
	Limit  int32
	Offset int32
}

func (q *Queries) ListQuotes(ctx context.Context, arg ListQuotesParams) ([]Quote, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+quoteColumns+`
		 FROM quotes
		 WHERE is_active = TRUE AND ($1 = '' OR stage = $1)
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		arg.Stage, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectQuotes(rows)
}

func (q *Queries) ListQuotesByCustomer(ctx context.Context, customerID uuid.UUID) ([]Quote, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+quoteColumns+`
		 FROM quotes
		 WHERE is_active = TRUE AND customer_id = $1
		 ORDER BY created_at DESC`,
		customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectQuotes(rows)
}

func collectQuotes(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]Quote, error) {
	var quotes []Quote
	for rows.Next() {
		qt, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, qt)
	}
	return quotes, rows.Err()
}

func (q *Queries) GetQuote(ctx context.Context, id uuid.UUID) (Quote, error) {
	return scanQuote(q.db.QueryRow(ctx,
		`SELECT `+quoteColumns+` FROM quotes WHERE id = $1 AND is_active = TRUE`, id))
}

type CreateQuoteParams struct {
	QuoteNumber        string
	CustomerID         uuid.UUID
	Temperature        pgtype.Text
	ValidUntil         pgtype.Date
	TermsAndConditions pgtype.Text
	Notes              pgtype.Text
	Subtotal           pgtype.Numeric
	DiscountAmount     pgtype.Numeric
	VatAmount          pgtype.Numeric
	TotalAmount        pgtype.Numeric
	DepositAmount      pgtype.Numeric
	BalanceAmount      pgtype.Numeric
	CreatedBy          uuid.UUID
}

func (q *Queries) CreateQuote(ctx context.Context, arg CreateQuoteParams) (Quote, error) {
	return scanQuote(q.db.QueryRow(ctx,
		`INSERT INTO quotes (quote_number, customer_id, temperature, valid_until,
		     terms_and_conditions, notes, subtotal, discount_amount, vat_amount,
		     total_amount, deposit_amount, balance_amount, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING `+quoteColumns,
		arg.QuoteNumber, arg.CustomerID, arg.Temperature, arg.ValidUntil,
		arg.TermsAndConditions, arg.Notes, arg.Subtotal, arg.DiscountAmount,
		arg.VatAmount, arg.TotalAmount, arg.DepositAmount, arg.BalanceAmount,
		arg.CreatedBy))
}

type UpdateQuoteParams struct {
	Temperature        pgtype.Text
	ValidUntil         pgtype.Date
	TermsAndConditions pgtype.Text
	Notes              pgtype.Text
	Subtotal           pgtype.Numeric
	DiscountAmount     pgtype.Numeric
	VatAmount          pgtype.Numeric
	TotalAmount        pgtype.Numeric
	DepositAmount      pgtype.Numeric
	BalanceAmount      pgtype.Numeric
	ID                 uuid.UUID
}

// UpdateQuote replaces the metadata and totals of a draft quote. Only quotes
// still in DRAFT stage can be updated.
func (q *Queries) UpdateQuote(ctx context.Context, arg UpdateQuoteParams) (Quote, error) {
	return scanQuote(q.db.QueryRow(ctx,
		`UPDATE quotes
		 SET temperature = $1, valid_until = $2, terms_and_conditions = $3, notes = $4,
		     subtotal = $5, discount_amount = $6, vat_amount = $7, total_amount = $8,
		     deposit_amount = $9, balance_amount = $10, updated_at = now()
		 WHERE id = $11 AND is_active = TRUE AND stage = 'DRAFT'
		 RETURNING `+quoteColumns,
		arg.Temperature, arg.ValidUntil, arg.TermsAndConditions, arg.Notes,
		arg.Subtotal, arg.DiscountAmount, arg.VatAmount, arg.TotalAmount,
		arg.DepositAmount, arg.BalanceAmount, arg.ID))
}

type UpdateQuoteStageParams struct {
	Stage string
	ID    uuid.UUID
}

func (q *Queries) UpdateQuoteStage(ctx context.Context, arg UpdateQuoteStageParams) (Quote, error) {
	return scanQuote(q.db.QueryRow(ctx,
		`UPDATE quotes SET stage = $1, updated_at = now()
		 WHERE id = $2 AND is_active = TRUE
		 RETURNING `+quoteColumns,
		arg.Stage, arg.ID))
}

type UpdateQuoteTemperatureParams struct {
	Temperature pgtype.Text
	ID          uuid.UUID
}

func (q *Queries) UpdateQuoteTemperature(ctx context.Context, arg UpdateQuoteTemperatureParams) (Quote, error) {
	return scanQuote(q.db.QueryRow(ctx,
		`UPDATE quotes SET temperature = $1, updated_at = now()
		 WHERE id = $2 AND is_active = TRUE
		 RETURNING `+quoteColumns,
		arg.Temperature, arg.ID))
}

func (q *Queries) SoftDeleteQuote(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var out uuid.UUID
	err := q.db.QueryRow(ctx,
		`UPDATE quotes SET is_active = FALSE, updated_at = now()
		 WHERE id = $1 AND is_active = TRUE
		 RETURNING id`, id).Scan(&out)
	return out, err
}

// --- Quote items ---

const quoteItemColumns = `id, quote_id, product_id, description, quantity, unit_price, is_custom, sort_order, parent_index, line_type`

func scanQuoteItem(row interface{ Scan(...any) error }) (QuoteItem, error) {
	var it QuoteItem
	err := row.Scan(&it.ID, &it.QuoteID, &it.ProductID, &it.Description, &it.Quantity,
		&it.UnitPrice, &it.IsCustom, &it.SortOrder, &it.ParentIndex, &it.LineType)
	return it, err
}

type CreateQuoteItemParams struct {
	QuoteID     uuid.UUID
	ProductID   pgtype.UUID
	Description string
	Quantity    pgtype.Numeric
	UnitPrice   pgtype.Numeric
	IsCustom    bool
	SortOrder   int32
	ParentIndex pgtype.Int4
	LineType    pgtype.Text
}

func (q *Queries) CreateQuoteItem(ctx context.Context, arg CreateQuoteItemParams) (QuoteItem, error) {
	return scanQuoteItem(q.db.QueryRow(ctx,
		`INSERT INTO quote_items (quote_id, product_id, description, quantity, unit_price,
		     is_custom, sort_order, parent_index, line_type)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+quoteItemColumns,
		arg.QuoteID, arg.ProductID, arg.Description, arg.Quantity, arg.UnitPrice,
		arg.IsCustom, arg.SortOrder, arg.ParentIndex, arg.LineType))
}

func (q *Queries) ListQuoteItems(ctx context.Context, quoteID uuid.UUID) ([]QuoteItem, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+quoteItemColumns+`
		 FROM quote_items
		 WHERE quote_id = $1
		 ORDER BY sort_order`,
		quoteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []QuoteItem
	for rows.Next() {
		it, err := scanQuoteItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (q *Queries) DeleteQuoteItems(ctx context.Context, quoteID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM quote_items WHERE quote_id = $1`, quoteID)
	return err
}

// --- Quote discounts ---

type AddQuoteDiscountParams struct {
	QuoteID    uuid.UUID
	TemplateID uuid.UUID
	Amount     pgtype.Numeric
}

func (q *Queries) AddQuoteDiscount(ctx context.Context, arg AddQuoteDiscountParams) (QuoteDiscount, error) {
	var qd QuoteDiscount
	err := q.db.QueryRow(ctx,
		`INSERT INTO quote_discounts (quote_id, template_id, amount)
		 VALUES ($1, $2, $3)
		 RETURNING quote_id, template_id, amount`,
		arg.QuoteID, arg.TemplateID, arg.Amount).
		Scan(&qd.QuoteID, &qd.TemplateID, &qd.Amount)
	return qd, err
}

func (q *Queries) ClearQuoteDiscounts(ctx context.Context, quoteID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM quote_discounts WHERE quote_id = $1`, quoteID)
	return err
}

func (q *Queries) ListQuoteDiscounts(ctx context.Context, quoteID uuid.UUID) ([]QuoteDiscount, error) {
	rows, err := q.db.Query(ctx,
		`SELECT quote_id, template_id, amount FROM quote_discounts WHERE quote_id = $1`,
		quoteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var discounts []QuoteDiscount
	for rows.Next() {
		var qd QuoteDiscount
		if err := rows.Scan(&qd.QuoteID, &qd.TemplateID, &qd.Amount); err != nil {
			return nil, err
		}
		discounts = append(discounts, qd)
	}
	return discounts, rows.Err()
}
