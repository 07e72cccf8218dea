package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tradeline-crm/api/internal/database"
	"github.com/tradeline-crm/api/internal/enum"
)

const maxQuoteNumberRetries = 3

// Errors returned by the quote service.
var (
	ErrEmptyItems              = errors.New("items are required")
	ErrEmptyDescription        = errors.New("description is required")
	ErrInvalidQuantity         = errors.New("quantity must be > 0")
	ErrInvalidUnitPrice        = errors.New("unit_price must be >= 0")
	ErrInvalidProductID        = errors.New("invalid product_id")
	ErrProductNotFound         = errors.New("product not found")
	ErrInvalidCustomerID       = errors.New("invalid customer_id")
	ErrCustomerNotFound        = errors.New("customer not found")
	ErrInvalidParentIndex      = errors.New("parent_index must reference an earlier item")
	ErrNestedExtra             = errors.New("optional extras cannot have extras")
	ErrInvalidLineType         = errors.New("invalid line_type")
	ErrInvalidTemperature      = errors.New("invalid temperature")
	ErrInvalidValidUntil       = errors.New("invalid valid_until")
	ErrInvalidDepositAmount    = errors.New("invalid deposit_amount")
	ErrInvalidDiscountTemplate = errors.New("invalid discount_template_id")
	ErrDiscountTemplateGone    = errors.New("discount template not found")
	ErrQuoteNotFound           = errors.New("quote not found")
	ErrQuoteNotDraft           = errors.New("only draft quotes can be updated")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// QuoteStore defines the DB methods needed to create and update quotes.
// Satisfied by *database.Queries (and its WithTx variant).
type QuoteStore interface {
	GetNextQuoteNumber(ctx context.Context) (int32, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (database.Customer, error)
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
	GetCompanySettings(ctx context.Context) (database.CompanySetting, error)
	GetDiscountTemplate(ctx context.Context, id uuid.UUID) (database.DiscountTemplate, error)
	GetQuote(ctx context.Context, id uuid.UUID) (database.Quote, error)
	CreateQuote(ctx context.Context, arg database.CreateQuoteParams) (database.Quote, error)
	UpdateQuote(ctx context.Context, arg database.UpdateQuoteParams) (database.Quote, error)
	CreateQuoteItem(ctx context.Context, arg database.CreateQuoteItemParams) (database.QuoteItem, error)
	DeleteQuoteItems(ctx context.Context, quoteID uuid.UUID) error
	AddQuoteDiscount(ctx context.Context, arg database.AddQuoteDiscountParams) (database.QuoteDiscount, error)
	ClearQuoteDiscounts(ctx context.Context, quoteID uuid.UUID) error
}

// NewQuoteStore creates a QuoteStore from a DBTX (pool or tx).
type NewQuoteStore func(db database.DBTX) QuoteStore

// SaveQuoteRequest is the validated input for creating or updating a quote.
// Items arrive in submission order; ParentIndex references a position in the
// same array.
type SaveQuoteRequest struct {
	CustomerID          string
	Temperature         string
	ValidUntil          string // YYYY-MM-DD
	TermsAndConditions  string
	Notes               string
	DepositAmount       string
	DiscountTemplateIDs []string
	CreatedBy           uuid.UUID
	Items               []SaveQuoteItemRequest
}

// SaveQuoteItemRequest is a single submitted line item.
type SaveQuoteItemRequest struct {
	ProductID   string
	Description string
	Quantity    string
	UnitPrice   string
	IsCustom    *bool
	ParentIndex *int32
	LineType    string
}

// SaveQuoteResult is the persisted quote with its items.
type SaveQuoteResult struct {
	Quote database.Quote
	Items []database.QuoteItem
}

// QuoteService handles quote business logic. All pricing is authoritative
// here: the client's display subtotal is never trusted.
type QuoteService struct {
	pool     TxBeginner
	newStore NewQuoteStore
}

// NewQuoteService creates a new QuoteService.
func NewQuoteService(pool TxBeginner, newStore NewQuoteStore) *QuoteService {
	return &QuoteService{pool: pool, newStore: newStore}
}

// preparedItem holds a validated line ready for insertion.
type preparedItem struct {
	params   database.CreateQuoteItemParams
	subtotal decimal.Decimal
}

// CreateQuote validates, prices and persists a new draft quote atomically.
// Retries up to maxQuoteNumberRetries times on quote_number unique constraint
// violations (concurrent transactions can read the same MAX).
func (s *QuoteService) CreateQuote(ctx context.Context, req SaveQuoteRequest) (*SaveQuoteResult, error) {
	if err := validateSaveRequest(req); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < maxQuoteNumberRetries; attempt++ {
		result, err := s.createQuoteTx(ctx, req)
		if err == nil {
			return result, nil
		}
		if isQuoteNumberConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// UpdateQuote replaces the items and metadata of an existing draft quote.
func (s *QuoteService) UpdateQuote(ctx context.Context, quoteID uuid.UUID, req SaveQuoteRequest) (*SaveQuoteResult, error) {
	if err := validateSaveRequest(req); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	existing, err := store.GetQuote(ctx, quoteID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuoteNotFound
		}
		return nil, fmt.Errorf("get quote: %w", err)
	}
	if existing.Stage != enum.QuoteStageDraft {
		return nil, ErrQuoteNotDraft
	}

	prepared, totals, err := s.prepareItems(ctx, store, req)
	if err != nil {
		return nil, err
	}

	quote, err := store.UpdateQuote(ctx, database.UpdateQuoteParams{
		Temperature:        textOrNull(req.Temperature),
		ValidUntil:         totals.validUntil,
		TermsAndConditions: textOrNull(req.TermsAndConditions),
		Notes:              textOrNull(req.Notes),
		Subtotal:           decimalToNumeric(totals.subtotal),
		DiscountAmount:     decimalToNumeric(totals.discount),
		VatAmount:          decimalToNumeric(totals.vat),
		TotalAmount:        decimalToNumeric(totals.total),
		DepositAmount:      decimalToNumeric(totals.deposit),
		BalanceAmount:      decimalToNumeric(totals.balance),
		ID:                 quoteID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuoteNotDraft
		}
		return nil, fmt.Errorf("update quote: %w", err)
	}

	if err := store.DeleteQuoteItems(ctx, quoteID); err != nil {
		return nil, fmt.Errorf("delete quote items: %w", err)
	}
	items, err := insertItems(ctx, store, quoteID, prepared)
	if err != nil {
		return nil, err
	}

	if err := store.ClearQuoteDiscounts(ctx, quoteID); err != nil {
		return nil, fmt.Errorf("clear quote discounts: %w", err)
	}
	if err := insertDiscounts(ctx, store, quoteID, totals.discounts); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &SaveQuoteResult{Quote: quote, Items: items}, nil
}

// isQuoteNumberConflict checks for a unique constraint violation on the
// quote number (pgconn error code 23505).
func isQuoteNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "quotes_quote_number_key"
	}
	return false
}

func (s *QuoteService) createQuoteTx(ctx context.Context, req SaveQuoteRequest) (*SaveQuoteResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		return nil, ErrInvalidCustomerID
	}
	if _, err := store.GetCustomer(ctx, customerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}

	nextNum, err := store.GetNextQuoteNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("get next quote number: %w", err)
	}
	quoteNumber := fmt.Sprintf("Q-%s-%03d", time.Now().Format("2006"), nextNum)

	prepared, totals, err := s.prepareItems(ctx, store, req)
	if err != nil {
		return nil, err
	}

	quote, err := store.CreateQuote(ctx, database.CreateQuoteParams{
		QuoteNumber:        quoteNumber,
		CustomerID:         customerID,
		Temperature:        textOrNull(req.Temperature),
		ValidUntil:         totals.validUntil,
		TermsAndConditions: textOrNull(req.TermsAndConditions),
		Notes:              textOrNull(req.Notes),
		Subtotal:           decimalToNumeric(totals.subtotal),
		DiscountAmount:     decimalToNumeric(totals.discount),
		VatAmount:          decimalToNumeric(totals.vat),
		TotalAmount:        decimalToNumeric(totals.total),
		DepositAmount:      decimalToNumeric(totals.deposit),
		BalanceAmount:      decimalToNumeric(totals.balance),
		CreatedBy:          req.CreatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create quote: %w", err)
	}

	items, err := insertItems(ctx, store, quote.ID, prepared)
	if err != nil {
		return nil, err
	}
	if err := insertDiscounts(ctx, store, quote.ID, totals.discounts); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &SaveQuoteResult{Quote: quote, Items: items}, nil
}

// appliedDiscount is a template discount snapshotted against this quote.
type appliedDiscount struct {
	templateID uuid.UUID
	amount     decimal.Decimal
}

// quoteTotals carries everything derived from the items and settings.
type quoteTotals struct {
	subtotal   decimal.Decimal
	discount   decimal.Decimal
	vat        decimal.Decimal
	total      decimal.Decimal
	deposit    decimal.Decimal
	balance    decimal.Decimal
	validUntil pgtype.Date
	discounts  []appliedDiscount
}

// prepareItems validates every submitted line, resolves products, and computes
// the authoritative totals.
func (s *QuoteService) prepareItems(ctx context.Context, store QuoteStore, req SaveQuoteRequest) ([]preparedItem, *quoteTotals, error) {
	subtotal := decimal.Zero
	prepared := make([]preparedItem, 0, len(req.Items))

	for i, item := range req.Items {
		if item.Description == "" {
			return nil, nil, fmt.Errorf("item[%d]: %w", i, ErrEmptyDescription)
		}

		qty, err := decimal.NewFromString(item.Quantity)
		if err != nil || !qty.IsPositive() {
			return nil, nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}

		price, err := decimal.NewFromString(item.UnitPrice)
		if err != nil || price.IsNegative() {
			return nil, nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidUnitPrice)
		}

		productID := pgtype.UUID{}
		if item.ProductID != "" {
			pid, err := uuid.Parse(item.ProductID)
			if err != nil {
				return nil, nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidProductID)
			}
			if _, err := store.GetProduct(ctx, pid); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil, nil, fmt.Errorf("item[%d]: %w", i, ErrProductNotFound)
				}
				return nil, nil, fmt.Errorf("item[%d]: get product: %w", i, err)
			}
			productID = pgtype.UUID{Bytes: pid, Valid: true}
		}

		parentIndex := pgtype.Int4{}
		if item.ParentIndex != nil {
			p := *item.ParentIndex
			// Parents must precede their extras, and extras never nest.
			if p < 0 || int(p) >= i {
				return nil, nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidParentIndex)
			}
			if req.Items[p].ParentIndex != nil {
				return nil, nil, fmt.Errorf("item[%d]: %w", i, ErrNestedExtra)
			}
			parentIndex = pgtype.Int4{Int32: p, Valid: true}
		}

		if item.LineType != "" &&
			item.LineType != enum.LineTypeDelivery && item.LineType != enum.LineTypeInstallation {
			return nil, nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidLineType)
		}

		isCustom := item.ProductID == ""
		if item.IsCustom != nil {
			isCustom = *item.IsCustom
		}

		subtotal = subtotal.Add(price.Mul(qty))

		prepared = append(prepared, preparedItem{
			params: database.CreateQuoteItemParams{
				ProductID:   productID,
				Description: item.Description,
				Quantity:    decimalToNumeric(qty),
				UnitPrice:   decimalToNumeric(price),
				IsCustom:    isCustom,
				SortOrder:   int32(i),
				ParentIndex: parentIndex,
				LineType:    textOrNull(item.LineType),
			},
			subtotal: price.Mul(qty),
		})
	}

	totals, err := s.computeTotals(ctx, store, req, subtotal)
	if err != nil {
		return nil, nil, err
	}
	return prepared, totals, nil
}

// computeTotals applies discount templates, VAT and deposit rules on top of
// the item subtotal. Settings are optional: without a row, VAT defaults to
// 20% and the deposit to 50% of the total.
func (s *QuoteService) computeTotals(ctx context.Context, store QuoteStore, req SaveQuoteRequest, subtotal decimal.Decimal) (*quoteTotals, error) {
	totals := &quoteTotals{subtotal: subtotal, discount: decimal.Zero}

	if req.ValidUntil != "" {
		t, err := time.Parse("2006-01-02", req.ValidUntil)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidValidUntil, err)
		}
		totals.validUntil = pgtype.Date{Time: t, Valid: true}
	}

	for _, idStr := range req.DiscountTemplateIDs {
		tid, err := uuid.Parse(idStr)
		if err != nil {
			return nil, ErrInvalidDiscountTemplate
		}
		tmpl, err := store.GetDiscountTemplate(ctx, tid)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrDiscountTemplateGone
			}
			return nil, fmt.Errorf("get discount template: %w", err)
		}
		value := numericToDecimal(tmpl.Value)
		amount := value
		if tmpl.DiscountType == enum.DiscountTypePercentage {
			amount = subtotal.Mul(value).Div(decimal.NewFromInt(100))
		}
		totals.discount = totals.discount.Add(amount)
		totals.discounts = append(totals.discounts, appliedDiscount{templateID: tid, amount: amount})
	}

	vatRate := decimal.NewFromInt(20)
	depositPercent := decimal.NewFromInt(50)
	settings, err := store.GetCompanySettings(ctx)
	if err == nil {
		if settings.VatRate.Valid {
			vatRate = numericToDecimal(settings.VatRate)
		}
		if settings.DefaultDepositPercent.Valid {
			depositPercent = numericToDecimal(settings.DefaultDepositPercent)
		}
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get company settings: %w", err)
	}

	net := subtotal.Sub(totals.discount)
	if net.IsNegative() {
		net = decimal.Zero
	}
	totals.vat = net.Mul(vatRate).Div(decimal.NewFromInt(100)).Round(2)
	totals.total = net.Add(totals.vat)

	if req.DepositAmount != "" {
		deposit, err := decimal.NewFromString(req.DepositAmount)
		if err != nil || deposit.IsNegative() {
			return nil, ErrInvalidDepositAmount
		}
		totals.deposit = deposit
	} else {
		totals.deposit = totals.total.Mul(depositPercent).Div(decimal.NewFromInt(100)).Round(2)
	}
	totals.balance = totals.total.Sub(totals.deposit)
	return totals, nil
}

func insertItems(ctx context.Context, store QuoteStore, quoteID uuid.UUID, prepared []preparedItem) ([]database.QuoteItem, error) {
	items := make([]database.QuoteItem, 0, len(prepared))
	for _, pi := range prepared {
		pi.params.QuoteID = quoteID
		item, err := store.CreateQuoteItem(ctx, pi.params)
		if err != nil {
			return nil, fmt.Errorf("create quote item: %w", err)
		}
		items = append(items, item)
	}
	return items, nil
}

func insertDiscounts(ctx context.Context, store QuoteStore, quoteID uuid.UUID, discounts []appliedDiscount) error {
	for _, d := range discounts {
		if _, err := store.AddQuoteDiscount(ctx, database.AddQuoteDiscountParams{
			QuoteID:    quoteID,
			TemplateID: d.templateID,
			Amount:     decimalToNumeric(d.amount),
		}); err != nil {
			return fmt.Errorf("add quote discount: %w", err)
		}
	}
	return nil
}

// --- Helpers ---

func validateSaveRequest(req SaveQuoteRequest) error {
	if len(req.Items) == 0 {
		return ErrEmptyItems
	}
	if req.Temperature != "" && !isValidTemperature(req.Temperature) {
		return ErrInvalidTemperature
	}
	return nil
}

func isValidTemperature(s string) bool {
	switch s {
	case enum.TemperatureHot, enum.TemperatureWarm, enum.TemperatureCold:
		return true
	}
	return false
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
