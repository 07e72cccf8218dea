package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tradeline-crm/api/internal/database"
	"github.com/tradeline-crm/api/internal/enum"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr   error
	rollbackErr error
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error          { return m.commitErr }
func (m *mockTx) Rollback(ctx context.Context) error        { return m.rollbackErr }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner.
type mockTxBeginner struct {
	tx  pgx.Tx
	err error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, m.err
}

// mockQuoteStore implements QuoteStore with configurable behavior.
type mockQuoteStore struct {
	getNextQuoteNumberFn  func(ctx context.Context) (int32, error)
	getCustomerFn         func(ctx context.Context, id uuid.UUID) (database.Customer, error)
	getProductFn          func(ctx context.Context, id uuid.UUID) (database.Product, error)
	getCompanySettingsFn  func(ctx context.Context) (database.CompanySetting, error)
	getDiscountTemplateFn func(ctx context.Context, id uuid.UUID) (database.DiscountTemplate, error)
	getQuoteFn            func(ctx context.Context, id uuid.UUID) (database.Quote, error)
	createQuoteFn         func(ctx context.Context, arg database.CreateQuoteParams) (database.Quote, error)
	updateQuoteFn         func(ctx context.Context, arg database.UpdateQuoteParams) (database.Quote, error)
	createQuoteItemFn     func(ctx context.Context, arg database.CreateQuoteItemParams) (database.QuoteItem, error)
	deleteQuoteItemsFn    func(ctx context.Context, quoteID uuid.UUID) error
	addQuoteDiscountFn    func(ctx context.Context, arg database.AddQuoteDiscountParams) (database.QuoteDiscount, error)
	clearQuoteDiscountsFn func(ctx context.Context, quoteID uuid.UUID) error
}

func (m *mockQuoteStore) GetNextQuoteNumber(ctx context.Context) (int32, error) {
	return m.getNextQuoteNumberFn(ctx)
}
func (m *mockQuoteStore) GetCustomer(ctx context.Context, id uuid.UUID) (database.Customer, error) {
	return m.getCustomerFn(ctx, id)
}
func (m *mockQuoteStore) GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error) {
	return m.getProductFn(ctx, id)
}
func (m *mockQuoteStore) GetCompanySettings(ctx context.Context) (database.CompanySetting, error) {
	return m.getCompanySettingsFn(ctx)
}
func (m *mockQuoteStore) GetDiscountTemplate(ctx context.Context, id uuid.UUID) (database.DiscountTemplate, error) {
	return m.getDiscountTemplateFn(ctx, id)
}
func (m *mockQuoteStore) GetQuote(ctx context.Context, id uuid.UUID) (database.Quote, error) {
	return m.getQuoteFn(ctx, id)
}
func (m *mockQuoteStore) CreateQuote(ctx context.Context, arg database.CreateQuoteParams) (database.Quote, error) {
	return m.createQuoteFn(ctx, arg)
}
func (m *mockQuoteStore) UpdateQuote(ctx context.Context, arg database.UpdateQuoteParams) (database.Quote, error) {
	return m.updateQuoteFn(ctx, arg)
}
func (m *mockQuoteStore) CreateQuoteItem(ctx context.Context, arg database.CreateQuoteItemParams) (database.QuoteItem, error) {
	return m.createQuoteItemFn(ctx, arg)
}
func (m *mockQuoteStore) DeleteQuoteItems(ctx context.Context, quoteID uuid.UUID) error {
	return m.deleteQuoteItemsFn(ctx, quoteID)
}
func (m *mockQuoteStore) AddQuoteDiscount(ctx context.Context, arg database.AddQuoteDiscountParams) (database.QuoteDiscount, error) {
	return m.addQuoteDiscountFn(ctx, arg)
}
func (m *mockQuoteStore) ClearQuoteDiscounts(ctx context.Context, quoteID uuid.UUID) error {
	return m.clearQuoteDiscountsFn(ctx, quoteID)
}

// --- Test helpers ---

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func numericEquals(n pgtype.Numeric, expected string) bool {
	d := numericToDecimal(n)
	exp, _ := decimal.NewFromString(expected)
	return d.Equal(exp)
}

// newTestService creates a QuoteService whose store factory always returns store.
func newTestService(store *mockQuoteStore) (*QuoteService, *mockTx) {
	tx := &mockTx{}
	pool := &mockTxBeginner{tx: tx}
	newStore := func(db database.DBTX) QuoteStore { return store }
	return NewQuoteService(pool, newStore), tx
}

// defaultStore returns a mockQuoteStore with sensible defaults.
// Individual tests override the functions they care about.
func defaultStore(customerID, productID uuid.UUID) *mockQuoteStore {
	return &mockQuoteStore{
		getNextQuoteNumberFn: func(ctx context.Context) (int32, error) {
			return 1, nil
		},
		getCustomerFn: func(ctx context.Context, id uuid.UUID) (database.Customer, error) {
			if id == customerID {
				return database.Customer{ID: customerID, Name: "Acme Ltd"}, nil
			}
			return database.Customer{}, pgx.ErrNoRows
		},
		getProductFn: func(ctx context.Context, id uuid.UUID) (database.Product, error) {
			if id == productID {
				return database.Product{ID: productID, Name: "Widget", BasePrice: makeNumeric("100.00")}, nil
			}
			return database.Product{}, pgx.ErrNoRows
		},
		getCompanySettingsFn: func(ctx context.Context) (database.CompanySetting, error) {
			return database.CompanySetting{
				ID:                    1,
				VatRate:               makeNumeric("20"),
				DefaultDepositPercent: makeNumeric("50"),
			}, nil
		},
		getDiscountTemplateFn: func(ctx context.Context, id uuid.UUID) (database.DiscountTemplate, error) {
			return database.DiscountTemplate{}, pgx.ErrNoRows
		},
		getQuoteFn: func(ctx context.Context, id uuid.UUID) (database.Quote, error) {
			return database.Quote{}, pgx.ErrNoRows
		},
		createQuoteFn: func(ctx context.Context, arg database.CreateQuoteParams) (database.Quote, error) {
			return database.Quote{
				ID:             uuid.New(),
				QuoteNumber:    arg.QuoteNumber,
				CustomerID:     arg.CustomerID,
				Stage:          enum.QuoteStageDraft,
				Subtotal:       arg.Subtotal,
				DiscountAmount: arg.DiscountAmount,
				VatAmount:      arg.VatAmount,
				TotalAmount:    arg.TotalAmount,
				DepositAmount:  arg.DepositAmount,
				BalanceAmount:  arg.BalanceAmount,
				CreatedBy:      arg.CreatedBy,
			}, nil
		},
		updateQuoteFn: func(ctx context.Context, arg database.UpdateQuoteParams) (database.Quote, error) {
			return database.Quote{
				ID:             arg.ID,
				Stage:          enum.QuoteStageDraft,
				Subtotal:       arg.Subtotal,
				DiscountAmount: arg.DiscountAmount,
				VatAmount:      arg.VatAmount,
				TotalAmount:    arg.TotalAmount,
				DepositAmount:  arg.DepositAmount,
				BalanceAmount:  arg.BalanceAmount,
			}, nil
		},
		createQuoteItemFn: func(ctx context.Context, arg database.CreateQuoteItemParams) (database.QuoteItem, error) {
			return database.QuoteItem{
				ID:          uuid.New(),
				QuoteID:     arg.QuoteID,
				ProductID:   arg.ProductID,
				Description: arg.Description,
				Quantity:    arg.Quantity,
				UnitPrice:   arg.UnitPrice,
				IsCustom:    arg.IsCustom,
				SortOrder:   arg.SortOrder,
				ParentIndex: arg.ParentIndex,
				LineType:    arg.LineType,
			}, nil
		},
		deleteQuoteItemsFn: func(ctx context.Context, quoteID uuid.UUID) error { return nil },
		addQuoteDiscountFn: func(ctx context.Context, arg database.AddQuoteDiscountParams) (database.QuoteDiscount, error) {
			return database.QuoteDiscount{QuoteID: arg.QuoteID, TemplateID: arg.TemplateID, Amount: arg.Amount}, nil
		},
		clearQuoteDiscountsFn: func(ctx context.Context, quoteID uuid.UUID) error { return nil },
	}
}

func basicRequest(customerID, productID uuid.UUID) SaveQuoteRequest {
	return SaveQuoteRequest{
		CustomerID: customerID.String(),
		CreatedBy:  uuid.New(),
		Items: []SaveQuoteItemRequest{
			{ProductID: productID.String(), Description: "Widget", Quantity: "2", UnitPrice: "100.00"},
			{Description: "Fitting kit", Quantity: "1", UnitPrice: "50.00"},
		},
	}
}

// --- Tests ---

func TestCreateQuoteComputesTotals(t *testing.T) {
	customerID := uuid.New()
	productID := uuid.New()
	store := defaultStore(customerID, productID)
	svc, _ := newTestService(store)

	result, err := svc.CreateQuote(context.Background(), basicRequest(customerID, productID))
	if err != nil {
		t.Fatalf("CreateQuote: %v", err)
	}

	// 2 x 100 + 1 x 50 = 250; VAT 20% = 50; total 300; deposit 50% = 150.
	if !numericEquals(result.Quote.Subtotal, "250.00") {
		t.Errorf("subtotal = %v, want 250.00", numericToDecimal(result.Quote.Subtotal))
	}
	if !numericEquals(result.Quote.VatAmount, "50.00") {
		t.Errorf("vat = %v, want 50.00", numericToDecimal(result.Quote.VatAmount))
	}
	if !numericEquals(result.Quote.TotalAmount, "300.00") {
		t.Errorf("total = %v, want 300.00", numericToDecimal(result.Quote.TotalAmount))
	}
	if !numericEquals(result.Quote.DepositAmount, "150.00") {
		t.Errorf("deposit = %v, want 150.00", numericToDecimal(result.Quote.DepositAmount))
	}
	if !numericEquals(result.Quote.BalanceAmount, "150.00") {
		t.Errorf("balance = %v, want 150.00", numericToDecimal(result.Quote.BalanceAmount))
	}

	wantNumber := fmt.Sprintf("Q-%s-001", time.Now().Format("2006"))
	if result.Quote.QuoteNumber != wantNumber {
		t.Errorf("quote number = %q, want %q", result.Quote.QuoteNumber, wantNumber)
	}
	if len(result.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(result.Items))
	}
	if result.Items[0].IsCustom {
		t.Error("product-backed item flagged custom")
	}
	if !result.Items[1].IsCustom {
		t.Error("free-text item not flagged custom")
	}
}

func TestCreateQuotePercentageDiscount(t *testing.T) {
	customerID := uuid.New()
	productID := uuid.New()
	templateID := uuid.New()
	store := defaultStore(customerID, productID)
	store.getDiscountTemplateFn = func(ctx context.Context, id uuid.UUID) (database.DiscountTemplate, error) {
		if id == templateID {
			return database.DiscountTemplate{
				ID:           templateID,
				Name:         "Trade 10%",
				DiscountType: enum.DiscountTypePercentage,
				Value:        makeNumeric("10"),
			}, nil
		}
		return database.DiscountTemplate{}, pgx.ErrNoRows
	}
	var snapshotted []database.AddQuoteDiscountParams
	store.addQuoteDiscountFn = func(ctx context.Context, arg database.AddQuoteDiscountParams) (database.QuoteDiscount, error) {
		snapshotted = append(snapshotted, arg)
		return database.QuoteDiscount{}, nil
	}
	svc, _ := newTestService(store)

	req := basicRequest(customerID, productID)
	req.DiscountTemplateIDs = []string{templateID.String()}

	result, err := svc.CreateQuote(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateQuote: %v", err)
	}

	// Subtotal 250, 10% off = 25; VAT on 225 = 45; total 270; deposit 135.
	if !numericEquals(result.Quote.DiscountAmount, "25.00") {
		t.Errorf("discount = %v, want 25.00", numericToDecimal(result.Quote.DiscountAmount))
	}
	if !numericEquals(result.Quote.VatAmount, "45.00") {
		t.Errorf("vat = %v, want 45.00", numericToDecimal(result.Quote.VatAmount))
	}
	if !numericEquals(result.Quote.TotalAmount, "270.00") {
		t.Errorf("total = %v, want 270.00", numericToDecimal(result.Quote.TotalAmount))
	}
	if len(snapshotted) != 1 || !numericEquals(snapshotted[0].Amount, "25.00") {
		t.Errorf("snapshotted discounts = %+v, want one row of 25.00", snapshotted)
	}
}

func TestCreateQuoteFixedDiscount(t *testing.T) {
	customerID := uuid.New()
	productID := uuid.New()
	templateID := uuid.New()
	store := defaultStore(customerID, productID)
	store.getDiscountTemplateFn = func(ctx context.Context, id uuid.UUID) (database.DiscountTemplate, error) {
		return database.DiscountTemplate{
			ID:           templateID,
			Name:         "50 off",
			DiscountType: enum.DiscountTypeFixed,
			Value:        makeNumeric("50"),
		}, nil
	}
	svc, _ := newTestService(store)

	req := basicRequest(customerID, productID)
	req.DiscountTemplateIDs = []string{templateID.String()}

	result, err := svc.CreateQuote(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateQuote: %v", err)
	}
	if !numericEquals(result.Quote.DiscountAmount, "50.00") {
		t.Errorf("discount = %v, want 50.00", numericToDecimal(result.Quote.DiscountAmount))
	}
	// VAT on 200 = 40; total 240.
	if !numericEquals(result.Quote.TotalAmount, "240.00") {
		t.Errorf("total = %v, want 240.00", numericToDecimal(result.Quote.TotalAmount))
	}
}

func TestCreateQuoteExplicitDeposit(t *testing.T) {
	customerID := uuid.New()
	productID := uuid.New()
	store := defaultStore(customerID, productID)
	svc, _ := newTestService(store)

	req := basicRequest(customerID, productID)
	req.DepositAmount = "100.00"

	result, err := svc.CreateQuote(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateQuote: %v", err)
	}
	if !numericEquals(result.Quote.DepositAmount, "100.00") {
		t.Errorf("deposit = %v, want 100.00", numericToDecimal(result.Quote.DepositAmount))
	}
	if !numericEquals(result.Quote.BalanceAmount, "200.00") {
		t.Errorf("balance = %v, want 200.00", numericToDecimal(result.Quote.BalanceAmount))
	}
}

func TestCreateQuoteDefaultsWithoutSettings(t *testing.T) {
	customerID := uuid.New()
	productID := uuid.New()
	store := defaultStore(customerID, productID)
	store.getCompanySettingsFn = func(ctx context.Context) (database.CompanySetting, error) {
		return database.CompanySetting{}, pgx.ErrNoRows
	}
	svc, _ := newTestService(store)

	result, err := svc.CreateQuote(context.Background(), basicRequest(customerID, productID))
	if err != nil {
		t.Fatalf("CreateQuote: %v", err)
	}
	// Fallbacks: VAT 20%, deposit 50%.
	if !numericEquals(result.Quote.VatAmount, "50.00") {
		t.Errorf("vat = %v, want 50.00", numericToDecimal(result.Quote.VatAmount))
	}
	if !numericEquals(result.Quote.DepositAmount, "150.00") {
		t.Errorf("deposit = %v, want 150.00", numericToDecimal(result.Quote.DepositAmount))
	}
}

func TestCreateQuoteValidation(t *testing.T) {
	customerID := uuid.New()
	productID := uuid.New()

	tests := []struct {
		name    string
		mutate  func(req *SaveQuoteRequest)
		wantErr error
	}{
		{
			name:    "empty items",
			mutate:  func(req *SaveQuoteRequest) { req.Items = nil },
			wantErr: ErrEmptyItems,
		},
		{
			name:    "zero quantity",
			mutate:  func(req *SaveQuoteRequest) { req.Items[0].Quantity = "0" },
			wantErr: ErrInvalidQuantity,
		},
		{
			name:    "negative price",
			mutate:  func(req *SaveQuoteRequest) { req.Items[0].UnitPrice = "-5" },
			wantErr: ErrInvalidUnitPrice,
		},
		{
			name:    "blank description",
			mutate:  func(req *SaveQuoteRequest) { req.Items[1].Description = "" },
			wantErr: ErrEmptyDescription,
		},
		{
			name:    "bad temperature",
			mutate:  func(req *SaveQuoteRequest) { req.Temperature = "LUKEWARM" },
			wantErr: ErrInvalidTemperature,
		},
		{
			name: "forward parent reference",
			mutate: func(req *SaveQuoteRequest) {
				p := int32(1)
				req.Items[0].ParentIndex = &p
			},
			wantErr: ErrInvalidParentIndex,
		},
		{
			name: "nested extra",
			mutate: func(req *SaveQuoteRequest) {
				p0 := int32(0)
				req.Items[1].ParentIndex = &p0
				p1 := int32(1)
				req.Items = append(req.Items, SaveQuoteItemRequest{
					Description: "Nested", Quantity: "1", UnitPrice: "1", ParentIndex: &p1,
				})
			},
			wantErr: ErrNestedExtra,
		},
		{
			name:    "bad line type",
			mutate:  func(req *SaveQuoteRequest) { req.Items[0].LineType = "SHIPPING" },
			wantErr: ErrInvalidLineType,
		},
		{
			name:    "bad deposit",
			mutate:  func(req *SaveQuoteRequest) { req.DepositAmount = "-10" },
			wantErr: ErrInvalidDepositAmount,
		},
		{
			name:    "bad valid_until",
			mutate:  func(req *SaveQuoteRequest) { req.ValidUntil = "31/12/2026" },
			wantErr: ErrInvalidValidUntil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := defaultStore(customerID, productID)
			svc, _ := newTestService(store)
			req := basicRequest(customerID, productID)
			tc.mutate(&req)
			_, err := svc.CreateQuote(context.Background(), req)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestCreateQuoteCustomerNotFound(t *testing.T) {
	productID := uuid.New()
	store := defaultStore(uuid.New(), productID)
	svc, _ := newTestService(store)

	req := basicRequest(uuid.New(), productID) // unknown customer
	_, err := svc.CreateQuote(context.Background(), req)
	if !errors.Is(err, ErrCustomerNotFound) {
		t.Errorf("err = %v, want ErrCustomerNotFound", err)
	}
}

func TestCreateQuoteProductNotFound(t *testing.T) {
	customerID := uuid.New()
	store := defaultStore(customerID, uuid.New())
	svc, _ := newTestService(store)

	req := basicRequest(customerID, uuid.New()) // unknown product
	_, err := svc.CreateQuote(context.Background(), req)
	if !errors.Is(err, ErrProductNotFound) {
		t.Errorf("err = %v, want ErrProductNotFound", err)
	}
}

func TestCreateQuoteRetriesOnNumberConflict(t *testing.T) {
	customerID := uuid.New()
	productID := uuid.New()
	store := defaultStore(customerID, productID)

	conflict := &pgconn.PgError{Code: "23505", ConstraintName: "quotes_quote_number_key"}
	attempts := 0
	base := store.createQuoteFn
	store.createQuoteFn = func(ctx context.Context, arg database.CreateQuoteParams) (database.Quote, error) {
		attempts++
		if attempts < 3 {
			return database.Quote{}, conflict
		}
		return base(ctx, arg)
	}
	svc, _ := newTestService(store)

	result, err := svc.CreateQuote(context.Background(), basicRequest(customerID, productID))
	if err != nil {
		t.Fatalf("CreateQuote: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if result == nil {
		t.Fatal("expected result after retry")
	}
}

func TestCreateQuoteGivesUpAfterMaxRetries(t *testing.T) {
	customerID := uuid.New()
	productID := uuid.New()
	store := defaultStore(customerID, productID)

	conflict := &pgconn.PgError{Code: "23505", ConstraintName: "quotes_quote_number_key"}
	store.createQuoteFn = func(ctx context.Context, arg database.CreateQuoteParams) (database.Quote, error) {
		return database.Quote{}, conflict
	}
	svc, _ := newTestService(store)

	_, err := svc.CreateQuote(context.Background(), basicRequest(customerID, productID))
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		t.Errorf("err = %v, want unique violation", err)
	}
}

func TestUpdateQuoteRejectsNonDraft(t *testing.T) {
	customerID := uuid.New()
	productID := uuid.New()
	quoteID := uuid.New()
	store := defaultStore(customerID, productID)
	store.getQuoteFn = func(ctx context.Context, id uuid.UUID) (database.Quote, error) {
		return database.Quote{ID: quoteID, Stage: enum.QuoteStageSent}, nil
	}
	svc, _ := newTestService(store)

	_, err := svc.UpdateQuote(context.Background(), quoteID, basicRequest(customerID, productID))
	if !errors.Is(err, ErrQuoteNotDraft) {
		t.Errorf("err = %v, want ErrQuoteNotDraft", err)
	}
}

func TestUpdateQuoteNotFound(t *testing.T) {
	customerID := uuid.New()
	productID := uuid.New()
	store := defaultStore(customerID, productID)
	svc, _ := newTestService(store)

	_, err := svc.UpdateQuote(context.Background(), uuid.New(), basicRequest(customerID, productID))
	if !errors.Is(err, ErrQuoteNotFound) {
		t.Errorf("err = %v, want ErrQuoteNotFound", err)
	}
}

func TestUpdateQuoteReplacesItems(t *testing.T) {
	customerID := uuid.New()
	productID := uuid.New()
	quoteID := uuid.New()
	store := defaultStore(customerID, productID)
	store.getQuoteFn = func(ctx context.Context, id uuid.UUID) (database.Quote, error) {
		return database.Quote{ID: quoteID, Stage: enum.QuoteStageDraft}, nil
	}
	deleted := false
	store.deleteQuoteItemsFn = func(ctx context.Context, id uuid.UUID) error {
		if id != quoteID {
			t.Errorf("deleted items for %v, want %v", id, quoteID)
		}
		deleted = true
		return nil
	}
	cleared := false
	store.clearQuoteDiscountsFn = func(ctx context.Context, id uuid.UUID) error {
		cleared = true
		return nil
	}
	svc, _ := newTestService(store)

	result, err := svc.UpdateQuote(context.Background(), quoteID, basicRequest(customerID, productID))
	if err != nil {
		t.Fatalf("UpdateQuote: %v", err)
	}
	if !deleted {
		t.Error("existing items were not deleted")
	}
	if !cleared {
		t.Error("existing discounts were not cleared")
	}
	if len(result.Items) != 2 {
		t.Errorf("items = %d, want 2", len(result.Items))
	}
	for i, item := range result.Items {
		if item.SortOrder != int32(i) {
			t.Errorf("item[%d].SortOrder = %d, want %d", i, item.SortOrder, i)
		}
	}
}

func TestCreateQuoteParentIndexStored(t *testing.T) {
	customerID := uuid.New()
	productID := uuid.New()
	store := defaultStore(customerID, productID)
	svc, _ := newTestService(store)

	p := int32(0)
	req := SaveQuoteRequest{
		CustomerID: customerID.String(),
		CreatedBy:  uuid.New(),
		Items: []SaveQuoteItemRequest{
			{ProductID: productID.String(), Description: "Widget", Quantity: "2", UnitPrice: "100.00"},
			{Description: "Mounting brackets", Quantity: "8", UnitPrice: "2.50", ParentIndex: &p},
		},
	}

	result, err := svc.CreateQuote(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateQuote: %v", err)
	}
	if !result.Items[1].ParentIndex.Valid || result.Items[1].ParentIndex.Int32 != 0 {
		t.Errorf("extra parent index = %+v, want 0", result.Items[1].ParentIndex)
	}
	if result.Items[0].ParentIndex.Valid {
		t.Error("top-level item has a parent index")
	}
}
