package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tradeline-crm/api/internal/database"
	"github.com/tradeline-crm/api/internal/enum"
	"github.com/tradeline-crm/api/internal/middleware"
	"github.com/tradeline-crm/api/internal/service"
	"github.com/tradeline-crm/api/internal/ws"
)

// QuoteStore defines the read-side database methods needed by quote handlers.
// Writes go through the quote service. Satisfied by *database.Queries.
type QuoteStore interface {
	ListQuotes(ctx context.Context, arg database.ListQuotesParams) ([]database.Quote, error)
	GetQuote(ctx context.Context, id uuid.UUID) (database.Quote, error)
	ListQuoteItems(ctx context.Context, quoteID uuid.UUID) ([]database.QuoteItem, error)
	ListQuoteDiscounts(ctx context.Context, quoteID uuid.UUID) ([]database.QuoteDiscount, error)
	UpdateQuoteStage(ctx context.Context, arg database.UpdateQuoteStageParams) (database.Quote, error)
	SoftDeleteQuote(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// QuoteHandler handles quote endpoints.
type QuoteHandler struct {
	store QuoteStore
	svc   *service.QuoteService
	hub   *ws.Hub
}

// NewQuoteHandler creates a new QuoteHandler.
func NewQuoteHandler(store QuoteStore, svc *service.QuoteService, hub *ws.Hub) *QuoteHandler {
	return &QuoteHandler{store: store, svc: svc, hub: hub}
}

// RegisterRoutes registers quote endpoints on the given Chi router.
func (h *QuoteHandler) RegisterRoutes(r chi.Router) {
	r.Get("/quotes", h.List)
	r.Post("/quotes", h.Create)
	r.Get("/quotes/{id}", h.Get)
	r.Put("/quotes/{id}", h.Update)
	r.Patch("/quotes/{id}/stage", h.UpdateStage)
	r.Delete("/quotes/{id}", h.Delete)
}

// --- Request / Response types ---

type quoteItemRequest struct {
	ProductID   string          `json:"product_id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	IsCustom    *bool           `json:"is_custom"`
	SortOrder   int32           `json:"sort_order"`
	ParentIndex *int32          `json:"parent_index"`
	LineType    string          `json:"line_type"`
}

type saveQuoteRequest struct {
	CustomerID          string             `json:"customer_id"`
	Items               []quoteItemRequest `json:"items"`
	ValidUntil          string             `json:"valid_until"`
	TermsAndConditions  string             `json:"terms_and_conditions"`
	Notes               string             `json:"notes"`
	DepositAmount       string             `json:"deposit_amount"`
	Temperature         string             `json:"temperature"`
	DiscountTemplateIDs []string           `json:"discount_template_ids"`
}

type quoteStageRequest struct {
	Stage string `json:"stage"`
}

type quoteItemResponse struct {
	ID          uuid.UUID  `json:"id"`
	ProductID   *uuid.UUID `json:"product_id,omitempty"`
	Description string     `json:"description"`
	Quantity    string     `json:"quantity"`
	UnitPrice   string     `json:"unit_price"`
	IsCustom    bool       `json:"is_custom"`
	SortOrder   int32      `json:"sort_order"`
	ParentIndex *int32     `json:"parent_index,omitempty"`
	LineType    string     `json:"line_type,omitempty"`
}

type quoteDiscountResponse struct {
	TemplateID uuid.UUID `json:"template_id"`
	Amount     string    `json:"amount"`
}

type quoteSummaryResponse struct {
	ID          uuid.UUID `json:"id"`
	QuoteNumber string    `json:"quote_number"`
	CustomerID  uuid.UUID `json:"customer_id"`
	Stage       string    `json:"stage"`
	Temperature string    `json:"temperature,omitempty"`
	TotalAmount string    `json:"total_amount"`
	ValidUntil  string    `json:"valid_until,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type quoteResponse struct {
	quoteSummaryResponse
	TermsAndConditions string                  `json:"terms_and_conditions,omitempty"`
	Notes              string                  `json:"notes,omitempty"`
	Subtotal           string                  `json:"subtotal"`
	DiscountAmount     string                  `json:"discount_amount"`
	VatAmount          string                  `json:"vat_amount"`
	DepositAmount      string                  `json:"deposit_amount"`
	BalanceAmount      string                  `json:"balance_amount"`
	CreatedBy          uuid.UUID               `json:"created_by"`
	Items              []quoteItemResponse     `json:"items"`
	Discounts          []quoteDiscountResponse `json:"discounts,omitempty"`
}

func toQuoteSummaryResponse(q database.Quote) quoteSummaryResponse {
	resp := quoteSummaryResponse{
		ID:          q.ID,
		QuoteNumber: q.QuoteNumber,
		CustomerID:  q.CustomerID,
		Stage:       q.Stage,
		Temperature: q.Temperature.String,
		TotalAmount: numericString(q.TotalAmount),
		CreatedAt:   q.CreatedAt,
		UpdatedAt:   q.UpdatedAt,
	}
	if q.ValidUntil.Valid {
		resp.ValidUntil = q.ValidUntil.Time.Format("2006-01-02")
	}
	return resp
}

func toQuoteItemResponse(it database.QuoteItem) quoteItemResponse {
	resp := quoteItemResponse{
		ID:          it.ID,
		Description: it.Description,
		Quantity:    numericString(it.Quantity),
		UnitPrice:   numericString(it.UnitPrice),
		IsCustom:    it.IsCustom,
		SortOrder:   it.SortOrder,
		LineType:    it.LineType.String,
	}
	if it.ProductID.Valid {
		id := uuid.UUID(it.ProductID.Bytes)
		resp.ProductID = &id
	}
	if it.ParentIndex.Valid {
		p := it.ParentIndex.Int32
		resp.ParentIndex = &p
	}
	return resp
}

func (h *QuoteHandler) toQuoteResponse(ctx context.Context, q database.Quote, items []database.QuoteItem) (quoteResponse, error) {
	resp := quoteResponse{
		quoteSummaryResponse: toQuoteSummaryResponse(q),
		TermsAndConditions:   q.TermsAndConditions.String,
		Notes:                q.Notes.String,
		Subtotal:             numericString(q.Subtotal),
		DiscountAmount:       numericString(q.DiscountAmount),
		VatAmount:            numericString(q.VatAmount),
		DepositAmount:        numericString(q.DepositAmount),
		BalanceAmount:        numericString(q.BalanceAmount),
		CreatedBy:            q.CreatedBy,
		Items:                make([]quoteItemResponse, 0, len(items)),
	}
	for _, it := range items {
		resp.Items = append(resp.Items, toQuoteItemResponse(it))
	}

	discounts, err := h.store.ListQuoteDiscounts(ctx, q.ID)
	if err != nil {
		return quoteResponse{}, err
	}
	for _, d := range discounts {
		resp.Discounts = append(resp.Discounts, quoteDiscountResponse{
			TemplateID: d.TemplateID,
			Amount:     numericString(d.Amount),
		})
	}
	return resp, nil
}

// --- Handlers ---

// List returns quotes, optionally filtered by stage.
func (h *QuoteHandler) List(w http.ResponseWriter, r *http.Request) {
	stage := r.URL.Query().Get("stage")
	if stage != "" && !isValidStage(stage) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid stage"})
		return
	}
	limit, offset := paginationParams(r)

	quotes, err := h.store.ListQuotes(r.Context(), database.ListQuotesParams{
		Stage:  stage,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		log.Printf("ERROR: list quotes: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]quoteSummaryResponse, 0, len(quotes))
	for _, q := range quotes {
		resp = append(resp, toQuoteSummaryResponse(q))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns a quote with its items and applied discounts.
func (h *QuoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid quote id"})
		return
	}

	quote, err := h.store.GetQuote(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "quote not found"})
			return
		}
		log.Printf("ERROR: get quote: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListQuoteItems(r.Context(), id)
	if err != nil {
		log.Printf("ERROR: list quote items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp, err := h.toQuoteResponse(r.Context(), quote, items)
	if err != nil {
		log.Printf("ERROR: list quote discounts: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create persists a new draft quote from the submitted line items.
func (h *QuoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req saveQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.svc.CreateQuote(r.Context(), toServiceRequest(req, claims.UserID))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp, err := h.toQuoteResponse(r.Context(), result.Quote, result.Items)
	if err != nil {
		log.Printf("ERROR: list quote discounts: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.hub.Publish("quote.created", resp.quoteSummaryResponse)
	writeJSON(w, http.StatusCreated, resp)
}

// Update replaces a draft quote's items and metadata.
func (h *QuoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid quote id"})
		return
	}

	var req saveQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	// The customer on an existing quote is fixed; only items and metadata move.
	result, err := h.svc.UpdateQuote(r.Context(), id, toServiceRequest(req, claims.UserID))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp, err := h.toQuoteResponse(r.Context(), result.Quote, result.Items)
	if err != nil {
		log.Printf("ERROR: list quote discounts: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.hub.Publish("quote.updated", resp.quoteSummaryResponse)
	writeJSON(w, http.StatusOK, resp)
}

// UpdateStage moves a quote through the pipeline.
func (h *QuoteHandler) UpdateStage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid quote id"})
		return
	}

	var req quoteStageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if !isValidStage(req.Stage) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid stage"})
		return
	}

	current, err := h.store.GetQuote(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "quote not found"})
			return
		}
		log.Printf("ERROR: get quote: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if !stageTransitionAllowed(current.Stage, req.Stage) {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "cannot move quote from " + current.Stage + " to " + req.Stage,
		})
		return
	}

	quote, err := h.store.UpdateQuoteStage(r.Context(), database.UpdateQuoteStageParams{
		Stage: req.Stage,
		ID:    id,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "quote not found"})
			return
		}
		log.Printf("ERROR: update quote stage: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.hub.Publish("quote.stage_changed", toQuoteSummaryResponse(quote))
	writeJSON(w, http.StatusOK, toQuoteSummaryResponse(quote))
}

// Delete soft-deletes a quote.
func (h *QuoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid quote id"})
		return
	}

	if _, err := h.store.SoftDeleteQuote(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "quote not found"})
			return
		}
		log.Printf("ERROR: delete quote: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func toServiceRequest(req saveQuoteRequest, userID uuid.UUID) service.SaveQuoteRequest {
	out := service.SaveQuoteRequest{
		CustomerID:          req.CustomerID,
		Temperature:         req.Temperature,
		ValidUntil:          req.ValidUntil,
		TermsAndConditions:  req.TermsAndConditions,
		Notes:               req.Notes,
		DepositAmount:       req.DepositAmount,
		DiscountTemplateIDs: req.DiscountTemplateIDs,
		CreatedBy:           userID,
		Items:               make([]service.SaveQuoteItemRequest, 0, len(req.Items)),
	}
	for _, it := range req.Items {
		out.Items = append(out.Items, service.SaveQuoteItemRequest{
			ProductID:   it.ProductID,
			Description: it.Description,
			Quantity:    it.Quantity.String(),
			UnitPrice:   it.UnitPrice.String(),
			IsCustom:    it.IsCustom,
			ParentIndex: it.ParentIndex,
			LineType:    it.LineType,
		})
	}
	return out
}

// writeServiceError maps quote service errors to HTTP status codes.
func (h *QuoteHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrCustomerNotFound),
		errors.Is(err, service.ErrQuoteNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrQuoteNotDraft):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrEmptyItems),
		errors.Is(err, service.ErrEmptyDescription),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidUnitPrice),
		errors.Is(err, service.ErrInvalidProductID),
		errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrInvalidCustomerID),
		errors.Is(err, service.ErrInvalidParentIndex),
		errors.Is(err, service.ErrNestedExtra),
		errors.Is(err, service.ErrInvalidLineType),
		errors.Is(err, service.ErrInvalidTemperature),
		errors.Is(err, service.ErrInvalidValidUntil),
		errors.Is(err, service.ErrInvalidDepositAmount),
		errors.Is(err, service.ErrInvalidDiscountTemplate),
		errors.Is(err, service.ErrDiscountTemplateGone):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: save quote: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func isValidStage(s string) bool {
	switch s {
	case enum.QuoteStageDraft, enum.QuoteStageSent, enum.QuoteStageNegotiation,
		enum.QuoteStageWon, enum.QuoteStageLost:
		return true
	}
	return false
}

// stageTransitionAllowed enforces forward movement through the pipeline.
// WON and LOST are terminal.
func stageTransitionAllowed(from, to string) bool {
	allowed := map[string][]string{
		enum.QuoteStageDraft:       {enum.QuoteStageSent},
		enum.QuoteStageSent:        {enum.QuoteStageNegotiation, enum.QuoteStageWon, enum.QuoteStageLost},
		enum.QuoteStageNegotiation: {enum.QuoteStageWon, enum.QuoteStageLost},
	}
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

func numericString(n pgtype.Numeric) string {
	d := decimal.Zero
	if n.Valid {
		if val, err := n.Value(); err == nil && val != nil {
			if parsed, err := decimal.NewFromString(val.(string)); err == nil {
				d = parsed
			}
		}
	}
	return d.StringFixed(2)
}

func decimalNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.String())
	return n
}
