package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	LeadStatusNew       = "NEW"
	LeadStatusContacted = "CONTACTED"
	LeadStatusQualified = "QUALIFIED"
	LeadStatusConverted = "CONVERTED"
	LeadStatusLost      = "LOST"
)

const (
	QuoteStageDraft       = "DRAFT"
	QuoteStageSent        = "SENT"
	QuoteStageNegotiation = "NEGOTIATION"
	QuoteStageWon         = "WON"
	QuoteStageLost        = "LOST"
)

const (
	DiscountRequestPending  = "PENDING"
	DiscountRequestApproved = "APPROVED"
	DiscountRequestRejected = "REJECTED"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	UserRoleOwner   = "OWNER"
	UserRoleManager = "MANAGER"
	UserRoleSales   = "SALES"
)

const (
	TemperatureHot  = "HOT"
	TemperatureWarm = "WARM"
	TemperatureCold = "COLD"
)

const (
	LineTypeDelivery     = "DELIVERY"
	LineTypeInstallation = "INSTALLATION"
)

const (
	CommChannelEmail = "EMAIL"
	CommChannelSMS   = "SMS"
)

const (
	CommDirectionInbound  = "INBOUND"
	CommDirectionOutbound = "OUTBOUND"
)

// ── Group B: Configurable labels (no DB constraint) ──

const (
	UnitEach   = "Each"
	UnitPerBox = "Per Box"
	UnitPerM2  = "Per m2"
)

const (
	DiscountTypePercentage = "PERCENTAGE"
	DiscountTypeFixed      = "FIXED_AMOUNT"
)

const (
	LeadSourceWebsite  = "WEBSITE"
	LeadSourcePhone    = "PHONE"
	LeadSourceReferral = "REFERRAL"
	LeadSourceWalkIn   = "WALK_IN"
)
