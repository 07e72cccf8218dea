package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/tradeline-crm/api/internal/database"
	"golang.org/x/crypto/bcrypt"
)

// Seeds the initial OWNER account and the default company settings row.
// Intended to be run once against a freshly migrated database.
func main() {
	_ = godotenv.Load()

	var (
		email    = flag.String("email", "", "owner email address")
		password = flag.String("password", "", "owner password")
		name     = flag.String("name", "", "owner full name")
		company  = flag.String("company", "", "company name")
	)
	flag.Parse()

	if *email == "" {
		*email = envOr("SEED_EMAIL", "owner@example.com")
	}
	if *password == "" {
		*password = os.Getenv("SEED_PASSWORD")
		if *password == "" {
			*password = "changeme123"
			log.Println("WARNING: using default password, change it after first login")
		}
	}
	if *name == "" {
		*name = envOr("SEED_NAME", "Owner")
	}
	if *company == "" {
		*company = envOr("SEED_COMPANY", "Tradeline")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("Unable to create connection pool: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Unable to ping database: %v", err)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("Unable to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	q := database.New(tx)

	owner, err := seedOwner(ctx, q, *name, *email, *password)
	if err != nil {
		log.Fatalf("Failed to seed owner: %v", err)
	}

	if _, err := seedSettings(ctx, q, *company); err != nil {
		log.Fatalf("Failed to seed company settings: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("Failed to commit: %v", err)
	}

	log.Printf("Seeded owner %s (%s), id=%s", owner.FullName, owner.Email, owner.ID)
	log.Printf("Seeded default company settings for %s", *company)
}

func seedOwner(ctx context.Context, q *database.Queries, name, email, password string) (database.User, error) {
	existing, err := q.GetUserByEmail(ctx, email)
	if err == nil {
		log.Printf("Owner %s already exists, skipping", email)
		return existing, nil
	}
	if err != pgx.ErrNoRows {
		return database.User{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return database.User{}, fmt.Errorf("hash password: %w", err)
	}

	return q.CreateUser(ctx, database.CreateUserParams{
		FullName:       name,
		Email:          email,
		HashedPassword: string(hashed),
		Role:           "OWNER",
	})
}

func seedSettings(ctx context.Context, q *database.Queries, company string) (database.CompanySetting, error) {
	if existing, err := q.GetCompanySettings(ctx); err == nil {
		log.Println("Company settings already exist, skipping")
		return existing, nil
	} else if err != pgx.ErrNoRows {
		return database.CompanySetting{}, err
	}

	return q.UpsertCompanySettings(ctx, database.UpsertCompanySettingsParams{
		CompanyName:           pgtype.Text{String: company, Valid: true},
		VatRate:               mustNumeric("20.00"),
		DefaultDepositPercent: mustNumeric("50.00"),
	})
}

func mustNumeric(s string) pgtype.Numeric {
	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		log.Fatalf("Invalid numeric %q: %v", s, err)
	}
	return n
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
