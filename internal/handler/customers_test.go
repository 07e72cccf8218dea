package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tradeline-crm/api/internal/database"
	"github.com/tradeline-crm/api/internal/handler"
)

// --- Mock Store ---

type mockCustomerStore struct {
	customers map[uuid.UUID]database.Customer
	quotes    map[uuid.UUID]database.Quote
}

func newMockCustomerStore() *mockCustomerStore {
	return &mockCustomerStore{
		customers: make(map[uuid.UUID]database.Customer),
		quotes:    make(map[uuid.UUID]database.Quote),
	}
}

func (m *mockCustomerStore) ListCustomers(_ context.Context, arg database.ListCustomersParams) ([]database.Customer, error) {
	var result []database.Customer
	for _, c := range m.customers {
		if !c.IsActive {
			continue
		}
		if arg.Search != "" {
			s := strings.ToLower(arg.Search)
			if !strings.Contains(strings.ToLower(c.Name), s) &&
				!strings.Contains(strings.ToLower(c.CompanyName.String), s) &&
				!strings.Contains(strings.ToLower(c.Phone), s) &&
				!strings.Contains(strings.ToLower(c.Email.String), s) {
				continue
			}
		}
		result = append(result, c)
	}
	return result, nil
}

func (m *mockCustomerStore) GetCustomer(_ context.Context, id uuid.UUID) (database.Customer, error) {
	c, ok := m.customers[id]
	if !ok || !c.IsActive {
		return database.Customer{}, pgx.ErrNoRows
	}
	return c, nil
}

func (m *mockCustomerStore) CreateCustomer(_ context.Context, arg database.CreateCustomerParams) (database.Customer, error) {
	c := database.Customer{
		ID:          uuid.New(),
		Name:        arg.Name,
		CompanyName: arg.CompanyName,
		Phone:       arg.Phone,
		Email:       arg.Email,
		Postcode:    arg.Postcode,
		Address:     arg.Address,
		Notes:       arg.Notes,
		IsActive:    true,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	m.customers[c.ID] = c
	return c, nil
}

func (m *mockCustomerStore) UpdateCustomer(_ context.Context, arg database.UpdateCustomerParams) (database.Customer, error) {
	c, ok := m.customers[arg.ID]
	if !ok || !c.IsActive {
		return database.Customer{}, pgx.ErrNoRows
	}
	c.Name = arg.Name
	c.CompanyName = arg.CompanyName
	c.Phone = arg.Phone
	c.Email = arg.Email
	c.Postcode = arg.Postcode
	c.Address = arg.Address
	c.Notes = arg.Notes
	c.UpdatedAt = time.Now()
	m.customers[arg.ID] = c
	return c, nil
}

func (m *mockCustomerStore) SoftDeleteCustomer(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	c, ok := m.customers[id]
	if !ok || !c.IsActive {
		return uuid.Nil, pgx.ErrNoRows
	}
	c.IsActive = false
	m.customers[id] = c
	return id, nil
}

func (m *mockCustomerStore) ListQuotesByCustomer(_ context.Context, customerID uuid.UUID) ([]database.Quote, error) {
	var result []database.Quote
	for _, q := range m.quotes {
		if q.CustomerID == customerID && q.IsActive {
			result = append(result, q)
		}
	}
	return result, nil
}

// --- Helpers ---

func setupCustomerRouter(store *mockCustomerStore) *chi.Mux {
	h := handler.NewCustomerHandler(store)
	r := chi.NewRouter()
	r.Route("/", h.RegisterRoutes)
	return r
}

func decodeObject(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func decodeList(t *testing.T, rr *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()
	var resp []map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func seedCustomer(store *mockCustomerStore, name, phone string) database.Customer {
	c := database.Customer{
		ID:        uuid.New(),
		Name:      name,
		Phone:     phone,
		IsActive:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	store.customers[c.ID] = c
	return c
}

// --- Tests ---

func TestCustomerList(t *testing.T) {
	store := newMockCustomerStore()
	router := setupCustomerRouter(store)

	seedCustomer(store, "Alice Mason", "07700900001")
	seedCustomer(store, "Bob Turner", "07700900002")

	req := httptest.NewRequest(http.MethodGet, "/customers", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	if resp := decodeList(t, rr); len(resp) != 2 {
		t.Errorf("expected 2 customers, got %d", len(resp))
	}
}

func TestCustomerListWithSearch(t *testing.T) {
	store := newMockCustomerStore()
	router := setupCustomerRouter(store)

	seedCustomer(store, "Alice Mason", "07700900001")
	seedCustomer(store, "Bob Turner", "07700900002")

	req := httptest.NewRequest(http.MethodGet, "/customers?search=mason", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	resp := decodeList(t, rr)
	if len(resp) != 1 {
		t.Fatalf("expected 1 customer, got %d", len(resp))
	}
	if resp[0]["name"] != "Alice Mason" {
		t.Errorf("expected Alice Mason, got %v", resp[0]["name"])
	}
}

func TestCustomerGet(t *testing.T) {
	store := newMockCustomerStore()
	router := setupCustomerRouter(store)

	c := seedCustomer(store, "Alice Mason", "07700900001")

	req := httptest.NewRequest(http.MethodGet, "/customers/"+c.ID.String(), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	resp := decodeObject(t, rr)
	if resp["id"] != c.ID.String() {
		t.Errorf("expected id %s, got %v", c.ID, resp["id"])
	}
}

func TestCustomerGetNotFound(t *testing.T) {
	store := newMockCustomerStore()
	router := setupCustomerRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/customers/"+uuid.NewString(), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestCustomerCreate(t *testing.T) {
	store := newMockCustomerStore()
	router := setupCustomerRouter(store)

	body := map[string]string{
		"name":         "Alice Mason",
		"company_name": "Mason Kitchens",
		"phone":        "07700900001",
		"email":        "alice@example.com",
		"postcode":     "LS1 4AP",
	}
	payload, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPost, "/customers", bytes.NewReader(payload))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decodeObject(t, rr)
	if resp["company_name"] != "Mason Kitchens" {
		t.Errorf("expected company name in response, got %v", resp["company_name"])
	}
	if len(store.customers) != 1 {
		t.Errorf("expected 1 stored customer, got %d", len(store.customers))
	}
}

func TestCustomerCreateMissingFields(t *testing.T) {
	store := newMockCustomerStore()
	router := setupCustomerRouter(store)

	payload, _ := json.Marshal(map[string]string{"name": "No Phone"})

	req := httptest.NewRequest(http.MethodPost, "/customers", bytes.NewReader(payload))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestCustomerUpdate(t *testing.T) {
	store := newMockCustomerStore()
	router := setupCustomerRouter(store)

	c := seedCustomer(store, "Alice Mason", "07700900001")

	payload, _ := json.Marshal(map[string]string{
		"name":  "Alice Mason-Wright",
		"phone": "07700900009",
	})

	req := httptest.NewRequest(http.MethodPut, "/customers/"+c.ID.String(), bytes.NewReader(payload))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if got := store.customers[c.ID].Name; got != "Alice Mason-Wright" {
		t.Errorf("expected updated name, got %q", got)
	}
}

func TestCustomerDelete(t *testing.T) {
	store := newMockCustomerStore()
	router := setupCustomerRouter(store)

	c := seedCustomer(store, "Alice Mason", "07700900001")

	req := httptest.NewRequest(http.MethodDelete, "/customers/"+c.ID.String(), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if store.customers[c.ID].IsActive {
		t.Error("expected customer to be deactivated")
	}

	// Deleted customers no longer appear in lookups.
	req = httptest.NewRequest(http.MethodGet, "/customers/"+c.ID.String(), nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404 after delete, got %d", rr.Code)
	}
}

func TestCustomerQuotes(t *testing.T) {
	store := newMockCustomerStore()
	router := setupCustomerRouter(store)

	c := seedCustomer(store, "Alice Mason", "07700900001")

	var total pgtype.Numeric
	_ = total.Scan("300.00")
	q := database.Quote{
		ID:          uuid.New(),
		QuoteNumber: "Q-2026-001",
		CustomerID:  c.ID,
		Stage:       "DRAFT",
		TotalAmount: total,
		IsActive:    true,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	store.quotes[q.ID] = q

	req := httptest.NewRequest(http.MethodGet, "/customers/"+c.ID.String()+"/quotes", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	resp := decodeList(t, rr)
	if len(resp) != 1 {
		t.Fatalf("expected 1 quote, got %d", len(resp))
	}
	if resp[0]["quote_number"] != "Q-2026-001" {
		t.Errorf("expected quote number in summary, got %v", resp[0]["quote_number"])
	}
}
