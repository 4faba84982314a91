package engagement

import "time"

// Status is one of the 24 lifecycle states an engagement can occupy.
type Status string

const (
	StatusDealPingSent         Status = "deal_ping_sent"
	StatusDealPingAccepted     Status = "deal_ping_accepted"
	StatusMatched              Status = "matched"
	StatusBuyerReviewing       Status = "buyer_reviewing"
	StatusBuyerAccepted        Status = "buyer_accepted"
	StatusAccountCreated       Status = "account_created"
	StatusGuaranteeSigned      Status = "guarantee_signed"
	StatusAddressRevealed      Status = "address_revealed"
	StatusTourRequested        Status = "tour_requested"
	StatusTourRescheduled      Status = "tour_rescheduled"
	StatusTourConfirmed        Status = "tour_confirmed"
	StatusTourCompleted        Status = "tour_completed"
	StatusInstantBookRequested Status = "instant_book_requested"
	StatusBuyerConfirmed       Status = "buyer_confirmed"
	StatusAgreementSent        Status = "agreement_sent"
	StatusAgreementSigned      Status = "agreement_signed"
	StatusOnboarding           Status = "onboarding"
	StatusActive               Status = "active"
	StatusCompleted            Status = "completed"
	StatusDeclinedByBuyer      Status = "declined_by_buyer"
	StatusDeclinedBySupplier   Status = "declined_by_supplier"
	StatusExpired              Status = "expired"
	StatusDealPingExpired      Status = "deal_ping_expired"
	StatusDealPingDeclined     Status = "deal_ping_declined"
)

// Bucket groups statuses for dashboard display. The transition table, not the
// bucket, is the authoritative lifecycle data.
type Bucket string

const (
	BucketActionNeeded Bucket = "action_needed"
	BucketInProgress   Bucket = "in_progress"
	BucketActive       Bucket = "active"
	BucketTerminal     Bucket = "terminal"
)

// Path is the sub-flow an engagement follows after guarantee signing. It is
// set exactly once by the first request_tour or request_instant_book event.
type Path string

const (
	PathUnset       Path = "unset"
	PathTour        Path = "tour"
	PathInstantBook Path = "instant_book"
)

// Tier is the match quality class assigned at creation. tier_1 unlocks the
// instant-book path and uses shorter response deadlines.
type Tier string

const (
	Tier1 Tier = "tier_1"
	Tier2 Tier = "tier_2"
)

// ActorRole identifies who is firing an event against an engagement.
type ActorRole string

const (
	ActorBuyer    ActorRole = "buyer"
	ActorSupplier ActorRole = "supplier"
	ActorSystem   ActorRole = "system"
)

// DeclineReason is the closed set of reasons accepted by decline events.
type DeclineReason string

const (
	ReasonRateTooHigh        DeclineReason = "Rate too high"
	ReasonSpaceNotNeeded     DeclineReason = "Space no longer needed"
	ReasonFoundAlternative   DeclineReason = "Found alternative"
	ReasonSchedulingConflict DeclineReason = "Scheduling conflict"
	ReasonOther              DeclineReason = "Other"
)

// ValidDeclineReason reports whether reason belongs to the closed set.
func ValidDeclineReason(reason DeclineReason) bool {
	switch reason {
	case ReasonRateTooHigh, ReasonSpaceNotNeeded, ReasonFoundAlternative, ReasonSchedulingConflict, ReasonOther:
		return true
	default:
		return false
	}
}

// Milestones holds the set-once timestamps stamped by the transitions that
// represent each milestone. A nil field means the milestone has not happened.
type Milestones struct {
	DealPingSentAt         *time.Time
	DealPingRespondedAt    *time.Time
	GuaranteeSignedAt      *time.Time
	TourRequestedAt        *time.Time
	TourConfirmedAt        *time.Time
	TourCompletedAt        *time.Time
	InstantBookRequestedAt *time.Time
	InstantBookConfirmedAt *time.Time
	AgreementSentAt        *time.Time
	AgreementSignedAt      *time.Time
	OnboardingStartedAt    *time.Time
	OnboardingCompletedAt  *time.Time
	LeaseStartedAt         *time.Time
	LeaseEndedAt           *time.Time
}

// Checklist tracks the three independent onboarding prerequisites. Each item
// is settable only while the engagement is in onboarding; onboarding
// completes exactly when all three are true.
type Checklist struct {
	InsuranceUploaded   bool
	CompanyDocsUploaded bool
	PaymentMethodAdded  bool
}

// Complete reports whether every checklist item is done.
func (c Checklist) Complete() bool {
	return c.InsuranceUploaded && c.CompanyDocsUploaded && c.PaymentMethodAdded
}

// Engagement is the aggregate root: one supplier/buyer match tracked from
// first inquiry through lease completion. It is mutated exclusively through
// Engine.Apply and becomes immutable once terminal.
type Engagement struct {
	ID         string
	BuyerID    string
	SupplierID string
	Status     Status
	Version    int64
	Path       Path
	Tier       Tier

	// Terms populated by the external matching process at creation.
	MatchScore     float64
	MonthlyRate    float64
	SizeSqft       int
	LeaseStartDate *time.Time
	LeaseEndDate   *time.Time

	// DeadlineAt arms the expiry sweeper while the engagement sits in a
	// deadline-bound state; nil elsewhere.
	DeadlineAt *time.Time

	// TourScheduledFor is the currently proposed or confirmed visit time.
	// Unlike milestones it is replaced on every reschedule.
	TourScheduledFor    *time.Time
	TourRescheduleCount int

	DeclinedBy    *ActorRole
	DeclineReason *DeclineReason
	DeclinedAt    *time.Time

	Checklist Checklist

	BuyerSignedAt    *time.Time
	SupplierSignedAt *time.Time

	Milestones Milestones

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Terminal reports whether the engagement has reached a terminal state.
func (e *Engagement) Terminal() bool {
	return IsTerminal(e.Status)
}

// FullySigned reports whether both parties have signed the agreement.
func (e *Engagement) FullySigned() bool {
	return e.BuyerSignedAt != nil && e.SupplierSignedAt != nil
}

// EventLogEntry is one immutable record in an engagement's timeline. Entries
// are ordered by Seq, which is gapless per engagement and starts at 1: the
// transition that raised the version to n wrote the entry with Seq n-1.
type EventLogEntry struct {
	ID           int64
	EngagementID string
	Seq          int64
	EventType    Event
	ActorRole    ActorRole
	FromStatus   Status
	ToStatus     Status
	Timestamp    time.Time
	Metadata     map[string]any
}

// ListFilter narrows ListEngagements to one side of the marketplace and
// optionally one display bucket.
type ListFilter struct {
	BuyerID    string
	SupplierID string
	Bucket     Bucket
	Page       int
	PageSize   int
}
