package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tradeline-crm/api/internal/database"
	"github.com/tradeline-crm/api/internal/enum"
	"github.com/tradeline-crm/api/internal/middleware"
)

// CommunicationStore defines the database methods needed by communication
// handlers. Satisfied by *database.Queries.
type CommunicationStore interface {
	ListCommunicationsByCustomer(ctx context.Context, arg database.ListCommunicationsByCustomerParams) ([]database.Communication, error)
	CreateCommunication(ctx context.Context, arg database.CreateCommunicationParams) (database.Communication, error)
}

// CommunicationHandler logs email and SMS exchanges against customers.
type CommunicationHandler struct {
	store CommunicationStore
}

// NewCommunicationHandler creates a new CommunicationHandler.
func NewCommunicationHandler(store CommunicationStore) *CommunicationHandler {
	return &CommunicationHandler{store: store}
}

// RegisterRoutes registers communication endpoints on the given Chi router.
func (h *CommunicationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/customers/{id}/communications", h.List)
	r.Get("/customers/{id}/threads", h.ListThreads)
	r.Post("/customers/{id}/communications", h.Create)
}

// --- Request / Response types ---

type communicationRequest struct {
	Channel   string `json:"channel"`
	Direction string `json:"direction"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	ThreadID  string `json:"thread_id"`
	SentAt    string `json:"sent_at"` // RFC 3339; defaults to now
}

type communicationResponse struct {
	ID         uuid.UUID  `json:"id"`
	CustomerID uuid.UUID  `json:"customer_id"`
	Channel    string     `json:"channel"`
	Direction  string     `json:"direction"`
	Subject    string     `json:"subject,omitempty"`
	Body       string     `json:"body"`
	ThreadID   string     `json:"thread_id,omitempty"`
	SentAt     time.Time  `json:"sent_at"`
	CreatedBy  *uuid.UUID `json:"created_by,omitempty"`
}

type threadResponse struct {
	ThreadID string                  `json:"thread_id"`
	Channel  string                  `json:"channel"`
	Subject  string                  `json:"subject,omitempty"`
	LastAt   time.Time               `json:"last_at"`
	Messages []communicationResponse `json:"messages"`
}

func toCommunicationResponse(c database.Communication) communicationResponse {
	resp := communicationResponse{
		ID:         c.ID,
		CustomerID: c.CustomerID,
		Channel:    c.Channel,
		Direction:  c.Direction,
		Subject:    c.Subject.String,
		Body:       c.Body,
		ThreadID:   c.ThreadID.String,
		SentAt:     c.SentAt,
	}
	if c.CreatedBy.Valid {
		id := uuid.UUID(c.CreatedBy.Bytes)
		resp.CreatedBy = &id
	}
	return resp
}

// --- Handlers ---

// List returns a customer's communications oldest-first, optionally filtered
// by channel.
func (h *CommunicationHandler) List(w http.ResponseWriter, r *http.Request) {
	customerID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid customer id"})
		return
	}
	channel := r.URL.Query().Get("channel")
	if channel != "" && channel != enum.CommChannelEmail && channel != enum.CommChannelSMS {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid channel"})
		return
	}

	comms, err := h.store.ListCommunicationsByCustomer(r.Context(), database.ListCommunicationsByCustomerParams{
		CustomerID: customerID,
		Channel:    channel,
	})
	if err != nil {
		log.Printf("ERROR: list communications: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]communicationResponse, 0, len(comms))
	for _, c := range comms {
		resp = append(resp, toCommunicationResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListThreads groups a customer's communications by thread_id, newest thread
// first. Messages without a thread_id become single-message threads.
func (h *CommunicationHandler) ListThreads(w http.ResponseWriter, r *http.Request) {
	customerID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid customer id"})
		return
	}

	comms, err := h.store.ListCommunicationsByCustomer(r.Context(), database.ListCommunicationsByCustomerParams{
		CustomerID: customerID,
	})
	if err != nil {
		log.Printf("ERROR: list communications: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, groupThreads(comms))
}

// Create logs a communication against a customer.
func (h *CommunicationHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	customerID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid customer id"})
		return
	}

	var req communicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Channel != enum.CommChannelEmail && req.Channel != enum.CommChannelSMS {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "channel must be EMAIL or SMS"})
		return
	}
	if req.Direction != enum.CommDirectionInbound && req.Direction != enum.CommDirectionOutbound {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "direction must be INBOUND or OUTBOUND"})
		return
	}
	if req.Body == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body is required"})
		return
	}

	sentAt := time.Now()
	if req.SentAt != "" {
		sentAt, err = time.Parse(time.RFC3339, req.SentAt)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "sent_at must be RFC 3339"})
			return
		}
	}

	createdBy := pgtype.UUID{}
	if claims != nil {
		createdBy = pgtype.UUID{Bytes: claims.UserID, Valid: true}
	}

	comm, err := h.store.CreateCommunication(r.Context(), database.CreateCommunicationParams{
		CustomerID: customerID,
		Channel:    req.Channel,
		Direction:  req.Direction,
		Subject:    nullText(req.Subject),
		Body:       req.Body,
		ThreadID:   nullText(req.ThreadID),
		SentAt:     sentAt,
		CreatedBy:  createdBy,
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "customer does not exist"})
			return
		}
		log.Printf("ERROR: create communication: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusCreated, toCommunicationResponse(comm))
}

// --- Helpers ---

// groupThreads buckets messages by thread_id preserving in-thread order, then
// sorts threads by most recent message. Untagged messages stand alone keyed
// by their own ID.
func groupThreads(comms []database.Communication) []threadResponse {
	order := make([]string, 0)
	byKey := make(map[string]*threadResponse)

	for _, c := range comms {
		key := c.ThreadID.String
		if key == "" {
			key = c.ID.String()
		}
		thread, ok := byKey[key]
		if !ok {
			thread = &threadResponse{
				ThreadID: c.ThreadID.String,
				Channel:  c.Channel,
				Subject:  c.Subject.String,
			}
			byKey[key] = thread
			order = append(order, key)
		}
		thread.Messages = append(thread.Messages, toCommunicationResponse(c))
		if c.SentAt.After(thread.LastAt) {
			thread.LastAt = c.SentAt
		}
	}

	resp := make([]threadResponse, 0, len(order))
	for _, key := range order {
		resp = append(resp, *byKey[key])
	}
	// Newest threads first.
	sort.SliceStable(resp, func(i, j int) bool {
		return resp[i].LastAt.After(resp[j].LastAt)
	})
	return resp
}
