package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tradeline-crm/api/internal/config"
	"github.com/tradeline-crm/api/internal/database"
	"github.com/tradeline-crm/api/internal/geo"
	"github.com/tradeline-crm/api/internal/handler"
	mw "github.com/tradeline-crm/api/internal/middleware"
	"github.com/tradeline-crm/api/internal/service"
	"github.com/tradeline-crm/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication and role-based middleware as needed.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"}, // SvelteKit dev server
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/activity", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Services shared by handlers
	quoteService := service.NewQuoteService(pool, func(db database.DBTX) service.QuoteStore {
		return database.New(db)
	})
	estimateService := service.NewEstimateService(queries, geo.NewClient(cfg.PostcodeAPIURL))

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Customers
		customerHandler := handler.NewCustomerHandler(queries)
		customerHandler.RegisterRoutes(r)

		// Leads
		leadHandler := handler.NewLeadHandler(queries, pool, func(db database.DBTX) handler.LeadStore {
			return database.New(db)
		}, hub)
		leadHandler.RegisterRoutes(r)

		// Products
		productHandler := handler.NewProductHandler(queries)
		productHandler.RegisterRoutes(r)

		// Quotes
		quoteHandler := handler.NewQuoteHandler(queries, quoteService, hub)
		quoteHandler.RegisterRoutes(r)

		// Opportunity pipeline
		opportunityHandler := handler.NewOpportunityHandler(queries, hub)
		opportunityHandler.RegisterRoutes(r)

		// Communications
		communicationHandler := handler.NewCommunicationHandler(queries)
		communicationHandler.RegisterRoutes(r)

		// Delivery/installation estimates
		estimateHandler := handler.NewEstimateHandler(estimateService)
		estimateHandler.RegisterRoutes(r)

		// Discounts: templates are readable by everyone, managed by
		// MANAGER/OWNER
		discountHandler := handler.NewDiscountHandler(queries)
		discountHandler.RegisterRoutes(r)
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole("MANAGER", "OWNER"))
			discountHandler.RegisterManagerRoutes(r)
		})

		// Settings: readable by everyone, written by OWNER
		settingsHandler := handler.NewSettingsHandler(queries)
		settingsHandler.RegisterRoutes(r)

		// Owner-only routes
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole("OWNER"))

			settingsHandler.RegisterOwnerRoutes(r)

			userHandler := handler.NewUserHandler(queries)
			userHandler.RegisterRoutes(r)
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
