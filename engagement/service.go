package engagement

import (
	"context"
	"time"

	"github.com/google/uuid"

	"warehousematch/payment"
)

// SettlementReader reports which payment periods the external settlement
// collaborator has recorded as paid. The engine never writes settlements.
type SettlementReader interface {
	PaidPeriods(ctx context.Context, engagementID string) ([]time.Time, error)
}

// Service is the engine's API surface: reads plus the single mutating entry
// point Apply. Matching creates engagements through CreateFromMatch.
type Service struct {
	repo        Repository
	engine      *Engine
	settlements SettlementReader
	deadlines   DeadlinePolicy
	idGen       func() string
	now         func() time.Time
}

// NewService builds the engagement service over a repository and engine.
func NewService(repo Repository, engine *Engine) *Service {
	return &Service{
		repo:      repo,
		engine:    engine,
		deadlines: engine.deadlines,
		idGen:     func() string { return uuid.NewString() },
		now:       time.Now,
	}
}

// WithSettlements attaches the settlement read model used by payment
// schedule derivation.
func (s *Service) WithSettlements(r SettlementReader) *Service {
	s.settlements = r
	return s
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	s.engine.WithClock(now)
	return s
}

// WithIDGenerator overrides engagement id generation, for tests.
func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGen = gen
	return s
}

// CreateMatchParams carries the terms the external matching process supplies
// when it opens a new engagement.
type CreateMatchParams struct {
	BuyerID        string
	SupplierID     string
	Tier           Tier
	MatchScore     float64
	MonthlyRate    float64
	SizeSqft       int
	LeaseStartDate *time.Time
	LeaseEndDate   *time.Time
}

// CreateFromMatch opens a new engagement in deal_ping_sent with the response
// deadline armed per the tier's policy.
func (s *Service) CreateFromMatch(ctx context.Context, params CreateMatchParams) (Engagement, error) {
	if params.BuyerID == "" || params.SupplierID == "" {
		return Engagement{}, validationError("buyer and supplier ids required")
	}
	if params.Tier != Tier1 && params.Tier != Tier2 {
		return Engagement{}, validationError("unknown tier %q", params.Tier)
	}
	if params.MatchScore < 0 || params.MatchScore > 1 {
		return Engagement{}, validationError("match score out of range")
	}
	if params.MonthlyRate < 0 {
		return Engagement{}, validationError("invalid monthly rate")
	}

	now := s.now()
	deadline := now.Add(s.deadlines.dealPingResponse(params.Tier))
	sentAt := now

	e := Engagement{
		ID:             s.idGen(),
		BuyerID:        params.BuyerID,
		SupplierID:     params.SupplierID,
		Status:         StatusDealPingSent,
		Version:        1,
		Path:           PathUnset,
		Tier:           params.Tier,
		MatchScore:     params.MatchScore,
		MonthlyRate:    params.MonthlyRate,
		SizeSqft:       params.SizeSqft,
		LeaseStartDate: params.LeaseStartDate,
		LeaseEndDate:   params.LeaseEndDate,
		DeadlineAt:     &deadline,
	}
	e.Milestones.DealPingSentAt = &sentAt

	return s.repo.Create(ctx, e)
}

// GetEngagement returns the engagement for id.
func (s *Service) GetEngagement(ctx context.Context, id string) (Engagement, error) {
	if id == "" {
		return Engagement{}, validationError("missing engagement id")
	}
	return s.repo.Get(ctx, id)
}

// ListEngagements returns one side's engagements, optionally narrowed to a
// display bucket.
func (s *Service) ListEngagements(ctx context.Context, filter ListFilter) ([]Engagement, int, error) {
	if filter.BuyerID == "" && filter.SupplierID == "" {
		return nil, 0, validationError("list requires a buyer or supplier id")
	}
	if filter.Bucket != "" {
		if _, ok := bucketKnown(filter.Bucket); !ok {
			return nil, 0, validationError("unknown status bucket %q", filter.Bucket)
		}
	}
	return s.repo.List(ctx, filter)
}

// Apply forwards to the transition engine.
func (s *Service) Apply(ctx context.Context, id string, ev Event, role ActorRole, expectedVersion int64, p Payload) (Engagement, error) {
	return s.engine.Apply(ctx, id, ev, role, expectedVersion, p)
}

// GetTimeline returns the append-only event log for an engagement, ordered
// by sequence.
func (s *Service) GetTimeline(ctx context.Context, id string) ([]EventLogEntry, error) {
	if id == "" {
		return nil, validationError("missing engagement id")
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.Timeline(ctx, id)
}

// GetPaymentSchedule derives the monthly payment schedule projection for an
// engagement that has reached active. It does not move money.
func (s *Service) GetPaymentSchedule(ctx context.Context, id string) ([]payment.Installment, error) {
	e, err := s.GetEngagement(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Milestones.LeaseStartedAt == nil {
		return nil, guardViolation("engagement has not reached active")
	}
	if e.LeaseEndDate == nil {
		return nil, guardViolation("engagement has no lease end date")
	}

	start := *e.Milestones.LeaseStartedAt
	if e.LeaseStartDate != nil {
		start = *e.LeaseStartDate
	}

	var paid []time.Time
	if s.settlements != nil {
		paid, err = s.settlements.PaidPeriods(ctx, id)
		if err != nil {
			return nil, err
		}
	}

	return payment.Schedule(start, *e.LeaseEndDate, e.MonthlyRate, paid, s.now()), nil
}

func bucketKnown(b Bucket) (Bucket, bool) {
	switch b {
	case BucketActionNeeded, BucketInProgress, BucketActive, BucketTerminal:
		return b, true
	default:
		return "", false
	}
}
