package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID             uuid.UUID
	FullName       string
	Email          string
	HashedPassword string
	Role           string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Customer struct {
	ID          uuid.UUID
	Name        string
	CompanyName pgtype.Text
	Phone       string
	Email       pgtype.Text
	Postcode    pgtype.Text
	Address     pgtype.Text
	Notes       pgtype.Text
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Lead struct {
	ID          uuid.UUID
	ContactName string
	CompanyName pgtype.Text
	Phone       pgtype.Text
	Email       pgtype.Text
	Source      pgtype.Text
	Status      string
	Notes       pgtype.Text
	CustomerID  pgtype.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Product struct {
	ID                uuid.UUID
	Name              string
	Description       pgtype.Text
	BasePrice         pgtype.Numeric
	Unit              string
	BoxesPerProduct   pgtype.Numeric
	InstallationHours pgtype.Numeric
	IsExtra           bool
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type ProductExtra struct {
	ProductID      uuid.UUID
	ExtraProductID uuid.UUID
	SortOrder      int32
}

type Quote struct {
	ID                 uuid.UUID
	QuoteNumber        string
	CustomerID         uuid.UUID
	Stage              string
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
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type QuoteItem struct {
	ID          uuid.UUID
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

type DiscountTemplate struct {
	ID           uuid.UUID
	Name         string
	DiscountType string
	Value        pgtype.Numeric
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type QuoteDiscount struct {
	QuoteID    uuid.UUID
	TemplateID uuid.UUID
	Amount     pgtype.Numeric
}

type DiscountRequest struct {
	ID           uuid.UUID
	QuoteID      uuid.UUID
	RequestedBy  uuid.UUID
	DiscountType string
	Value        pgtype.Numeric
	Reason       pgtype.Text
	Status       string
	DecidedBy    pgtype.UUID
	DecidedAt    pgtype.Timestamptz
	CreatedAt    time.Time
}

type Communication struct {
	ID         uuid.UUID
	CustomerID uuid.UUID
	Channel    string
	Direction  string
	Subject    pgtype.Text
	Body       string
	ThreadID   pgtype.Text
	SentAt     time.Time
	CreatedBy  pgtype.UUID
	CreatedAt  time.Time
}

type CompanySetting struct {
	ID                    int32
	CompanyName           pgtype.Text
	FactoryPostcode       pgtype.Text
	HourlyInstallRate     pgtype.Numeric
	MileageRate           pgtype.Numeric
	HotelNightlyRate      pgtype.Numeric
	MealAllowance         pgtype.Numeric
	VatRate               pgtype.Numeric
	DefaultDepositPercent pgtype.Numeric
	UpdatedAt             time.Time
}
