package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tradeline-crm/api/internal/database"
	"github.com/tradeline-crm/api/internal/enum"
	"github.com/tradeline-crm/api/internal/service"
	"github.com/tradeline-crm/api/internal/ws"
)

// LeadStore defines the database methods needed by lead handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type LeadStore interface {
	ListLeads(ctx context.Context, arg database.ListLeadsParams) ([]database.Lead, error)
	GetLead(ctx context.Context, id uuid.UUID) (database.Lead, error)
	CreateLead(ctx context.Context, arg database.CreateLeadParams) (database.Lead, error)
	UpdateLead(ctx context.Context, arg database.UpdateLeadParams) (database.Lead, error)
	UpdateLeadStatus(ctx context.Context, arg database.UpdateLeadStatusParams) (database.Lead, error)
	ConvertLead(ctx context.Context, arg database.ConvertLeadParams) (database.Lead, error)
	CreateCustomer(ctx context.Context, arg database.CreateCustomerParams) (database.Customer, error)
}

// NewLeadStore creates a LeadStore from a DBTX (pool or tx).
type NewLeadStore func(db database.DBTX) LeadStore

// LeadHandler handles lead pipeline endpoints. Conversion runs in a
// transaction: the customer insert and the lead status flip succeed or fail
// together.
type LeadHandler struct {
	store    LeadStore
	pool     service.TxBeginner
	newStore NewLeadStore
	hub      *ws.Hub
}

// NewLeadHandler creates a new LeadHandler.
func NewLeadHandler(store LeadStore, pool service.TxBeginner, newStore NewLeadStore, hub *ws.Hub) *LeadHandler {
	return &LeadHandler{store: store, pool: pool, newStore: newStore, hub: hub}
}

// RegisterRoutes registers lead endpoints on the given Chi router.
func (h *LeadHandler) RegisterRoutes(r chi.Router) {
	r.Get("/leads", h.List)
	r.Post("/leads", h.Create)
	r.Get("/leads/{id}", h.Get)
	r.Put("/leads/{id}", h.Update)
	r.Patch("/leads/{id}/status", h.UpdateStatus)
	r.Post("/leads/{id}/convert", h.Convert)
}

// --- Request / Response types ---

type leadRequest struct {
	ContactName string `json:"contact_name"`
	CompanyName string `json:"company_name"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	Source      string `json:"source"`
	Notes       string `json:"notes"`
}

type leadStatusRequest struct {
	Status string `json:"status"`
}

type convertLeadRequest struct {
	// Optional overrides for the customer record; defaults come from the lead.
	Postcode string `json:"postcode"`
	Address  string `json:"address"`
}

type leadResponse struct {
	ID          uuid.UUID  `json:"id"`
	ContactName string     `json:"contact_name"`
	CompanyName string     `json:"company_name,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	Email       string     `json:"email,omitempty"`
	Source      string     `json:"source,omitempty"`
	Status      string     `json:"status"`
	Notes       string     `json:"notes,omitempty"`
	CustomerID  *uuid.UUID `json:"customer_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type convertLeadResponse struct {
	Lead     leadResponse     `json:"lead"`
	Customer customerResponse `json:"customer"`
}

func toLeadResponse(l database.Lead) leadResponse {
	resp := leadResponse{
		ID:          l.ID,
		ContactName: l.ContactName,
		CompanyName: l.CompanyName.String,
		Phone:       l.Phone.String,
		Email:       l.Email.String,
		Source:      l.Source.String,
		Status:      l.Status,
		Notes:       l.Notes.String,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
	if l.CustomerID.Valid {
		id := uuid.UUID(l.CustomerID.Bytes)
		resp.CustomerID = &id
	}
	return resp
}

// --- Handlers ---

// List returns leads, optionally filtered by status.
func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && !isValidLeadStatus(status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}
	limit, offset := paginationParams(r)

	leads, err := h.store.ListLeads(r.Context(), database.ListLeadsParams{
		Status: status,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		log.Printf("ERROR: list leads: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]leadResponse, 0, len(leads))
	for _, l := range leads {
		resp = append(resp, toLeadResponse(l))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single lead by ID.
func (h *LeadHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid lead id"})
		return
	}

	lead, err := h.store.GetLead(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "lead not found"})
			return
		}
		log.Printf("ERROR: get lead: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toLeadResponse(lead))
}

// Create adds a new lead in NEW status.
func (h *LeadHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req leadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.ContactName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "contact_name is required"})
		return
	}
	if req.Phone == "" && req.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "phone or email is required"})
		return
	}

	lead, err := h.store.CreateLead(r.Context(), database.CreateLeadParams{
		ContactName: req.ContactName,
		CompanyName: nullText(req.CompanyName),
		Phone:       nullText(req.Phone),
		Email:       nullText(req.Email),
		Source:      nullText(req.Source),
		Notes:       nullText(req.Notes),
	})
	if err != nil {
		log.Printf("ERROR: create lead: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.hub.Publish("lead.created", toLeadResponse(lead))
	writeJSON(w, http.StatusCreated, toLeadResponse(lead))
}

// Update replaces a lead's contact details.
func (h *LeadHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid lead id"})
		return
	}

	var req leadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.ContactName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "contact_name is required"})
		return
	}

	lead, err := h.store.UpdateLead(r.Context(), database.UpdateLeadParams{
		ContactName: req.ContactName,
		CompanyName: nullText(req.CompanyName),
		Phone:       nullText(req.Phone),
		Email:       nullText(req.Email),
		Source:      nullText(req.Source),
		Notes:       nullText(req.Notes),
		ID:          id,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "lead not found"})
			return
		}
		log.Printf("ERROR: update lead: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toLeadResponse(lead))
}

// UpdateStatus moves a lead through the pipeline. CONVERTED is reserved for
// the convert endpoint.
func (h *LeadHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid lead id"})
		return
	}

	var req leadStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if !isValidLeadStatus(req.Status) || req.Status == enum.LeadStatusConverted {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	lead, err := h.store.UpdateLeadStatus(r.Context(), database.UpdateLeadStatusParams{
		Status: req.Status,
		ID:     id,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "lead not found"})
			return
		}
		log.Printf("ERROR: update lead status: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.hub.Publish("lead.status_changed", toLeadResponse(lead))
	writeJSON(w, http.StatusOK, toLeadResponse(lead))
}

// Convert creates a customer from the lead and marks the lead CONVERTED,
// atomically. Already converted or lost leads are rejected.
func (h *LeadHandler) Convert(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid lead id"})
		return
	}

	var req convertLeadRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}

	lead, customer, err := h.convertTx(r.Context(), id, req)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "lead cannot be converted"})
		case errors.Is(err, errLeadNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "lead not found"})
		case errors.Is(err, errLeadMissingPhone):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lead has no phone number"})
		default:
			log.Printf("ERROR: convert lead: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	h.hub.Publish("lead.converted", map[string]any{
		"lead_id":     lead.ID,
		"customer_id": customer.ID,
	})
	writeJSON(w, http.StatusOK, convertLeadResponse{
		Lead:     toLeadResponse(lead),
		Customer: toCustomerResponse(customer),
	})
}

var (
	errLeadNotFound     = errors.New("lead not found")
	errLeadMissingPhone = errors.New("lead has no phone")
)

func (h *LeadHandler) convertTx(ctx context.Context, id uuid.UUID, req convertLeadRequest) (database.Lead, database.Customer, error) {
	tx, err := h.pool.Begin(ctx)
	if err != nil {
		return database.Lead{}, database.Customer{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := h.newStore(tx)

	lead, err := store.GetLead(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Lead{}, database.Customer{}, errLeadNotFound
		}
		return database.Lead{}, database.Customer{}, fmt.Errorf("get lead: %w", err)
	}
	if lead.Phone.String == "" {
		return database.Lead{}, database.Customer{}, errLeadMissingPhone
	}

	customer, err := store.CreateCustomer(ctx, database.CreateCustomerParams{
		Name:        lead.ContactName,
		CompanyName: lead.CompanyName,
		Phone:       lead.Phone.String,
		Email:       lead.Email,
		Postcode:    nullText(req.Postcode),
		Address:     nullText(req.Address),
		Notes:       lead.Notes,
	})
	if err != nil {
		return database.Lead{}, database.Customer{}, fmt.Errorf("create customer: %w", err)
	}

	converted, err := store.ConvertLead(ctx, database.ConvertLeadParams{
		CustomerID: pgtype.UUID{Bytes: customer.ID, Valid: true},
		ID:         id,
	})
	if err != nil {
		// No rows means the lead is already CONVERTED or LOST.
		return database.Lead{}, database.Customer{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Lead{}, database.Customer{}, fmt.Errorf("commit tx: %w", err)
	}
	return converted, customer, nil
}

func isValidLeadStatus(s string) bool {
	switch s {
	case enum.LeadStatusNew, enum.LeadStatusContacted, enum.LeadStatusQualified,
		enum.LeadStatusConverted, enum.LeadStatusLost:
		return true
	}
	return false
}
