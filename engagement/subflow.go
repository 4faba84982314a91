package engagement

import "time"

// TourOutcome is the buyer's verdict after a completed tour.
type TourOutcome string

const (
	OutcomeConfirmed TourOutcome = "confirmed"
	OutcomePassed    TourOutcome = "passed"
)

// ChecklistItem names one of the three onboarding prerequisites.
type ChecklistItem string

const (
	ItemInsurance   ChecklistItem = "insurance"
	ItemCompanyDocs ChecklistItem = "company_docs"
	ItemPayment     ChecklistItem = "payment_method"
)

// Payload carries the event-specific inputs to Engine.Apply. Unused fields
// are ignored by events that do not consume them.
type Payload struct {
	Reason       DeclineReason  // decline, optionally buyer_outcome(passed)
	Outcome      TourOutcome    // buyer_outcome
	Item         ChecklistItem  // submit_onboarding_item
	ProposedTime *time.Time     // request_tour, propose_new_time
	ManualClose  bool           // complete_lease before the scheduled end date
	Metadata     map[string]any // copied onto the log entry
}

// A subflowResolver owns the guard and mutation logic for one segment of the
// lifecycle graph and reports completion auto-events back to the engine.
type subflowResolver interface {
	owns(ev Event) bool
	// step validates guards and mutates e for ev. It returns false when the
	// event would produce no change, which the engine surfaces as an
	// idempotent no-op.
	step(e *Engagement, ev Event, role ActorRole, p Payload, now time.Time) (bool, error)
	// auto returns the follow-up event to fire when the current state's
	// entry condition is already satisfied.
	auto(e *Engagement) (Event, bool)
}

// tourSubflow governs the toured visit path: request, supplier confirmation
// or reschedule, completion, and the buyer's outcome verdict.
type tourSubflow struct {
	deadlines DeadlinePolicy
}

func (s tourSubflow) owns(ev Event) bool {
	switch ev {
	case EventRequestTour, EventConfirmTour, EventProposeNewTime, EventCompleteTour, EventBuyerOutcome:
		return true
	}
	return false
}

func (s tourSubflow) step(e *Engagement, ev Event, role ActorRole, p Payload, now time.Time) (bool, error) {
	switch ev {
	case EventRequestTour:
		if p.ProposedTime == nil {
			return false, validationError("request_tour requires a proposed time")
		}
		e.Path = PathTour
		e.TourScheduledFor = p.ProposedTime
		stamp(&e.Milestones.TourRequestedAt, now)
		armDeadline(e, now.Add(s.deadlines.tourConfirm(e.Tier)))
	case EventConfirmTour:
		stamp(&e.Milestones.TourConfirmedAt, now)
		e.DeadlineAt = nil
	case EventProposeNewTime:
		if p.ProposedTime == nil {
			return false, validationError("propose_new_time requires a proposed time")
		}
		e.TourRescheduleCount++
		e.TourScheduledFor = p.ProposedTime
		armDeadline(e, now.Add(s.deadlines.tourConfirm(e.Tier)))
	case EventCompleteTour:
		if e.TourScheduledFor == nil || now.Before(*e.TourScheduledFor) {
			return false, guardViolation("tour date not reached")
		}
		stamp(&e.Milestones.TourCompletedAt, now)
	case EventBuyerOutcome:
		switch p.Outcome {
		case OutcomeConfirmed:
			e.Status = StatusBuyerConfirmed
		case OutcomePassed:
			if p.Reason != "" && !ValidDeclineReason(p.Reason) {
				return false, validationError("unknown decline reason %q", p.Reason)
			}
			markDeclined(e, ActorBuyer, p.Reason, now)
			e.Status = StatusDeclinedByBuyer
		default:
			return false, validationError("buyer_outcome requires outcome confirmed or passed")
		}
	}
	return true, nil
}

func (s tourSubflow) auto(e *Engagement) (Event, bool) { return "", false }

// instantBookSubflow governs the tier_1-only instant-book path.
type instantBookSubflow struct{}

func (s instantBookSubflow) owns(ev Event) bool {
	return ev == EventRequestInstantBook || ev == EventConfirmInstantBook
}

func (s instantBookSubflow) step(e *Engagement, ev Event, role ActorRole, p Payload, now time.Time) (bool, error) {
	switch ev {
	case EventRequestInstantBook:
		if e.Tier != Tier1 {
			return false, guardViolation("instant book requires tier_1, engagement is %s", e.Tier)
		}
		e.Path = PathInstantBook
		stamp(&e.Milestones.InstantBookRequestedAt, now)
	case EventConfirmInstantBook:
		stamp(&e.Milestones.InstantBookConfirmedAt, now)
	}
	return true, nil
}

func (s instantBookSubflow) auto(e *Engagement) (Event, bool) { return "", false }

// agreementSubflow governs the dual-signature segment. Signing is idempotent
// per party; once both signatures land it reports agreement_complete, and
// from agreement_signed it chains straight into onboarding so the pair is
// observable as two log entries of one logical transition.
type agreementSubflow struct{}

func (s agreementSubflow) owns(ev Event) bool {
	switch ev {
	case EventSendAgreement, EventSign, EventAgreementComplete:
		return true
	}
	return false
}

func (s agreementSubflow) step(e *Engagement, ev Event, role ActorRole, p Payload, now time.Time) (bool, error) {
	switch ev {
	case EventSendAgreement:
		stamp(&e.Milestones.AgreementSentAt, now)
	case EventSign:
		switch role {
		case ActorBuyer:
			if e.BuyerSignedAt != nil {
				return false, nil
			}
			t := now
			e.BuyerSignedAt = &t
		case ActorSupplier:
			if e.SupplierSignedAt != nil {
				return false, nil
			}
			t := now
			e.SupplierSignedAt = &t
		}
	case EventAgreementComplete:
		if !e.FullySigned() {
			return false, guardViolation("agreement not fully signed")
		}
		stamp(&e.Milestones.AgreementSignedAt, now)
	}
	return true, nil
}

func (s agreementSubflow) auto(e *Engagement) (Event, bool) {
	if e.Status == StatusAgreementSent && e.FullySigned() {
		return EventAgreementComplete, true
	}
	if e.Status == StatusAgreementSigned {
		return EventBeginOnboarding, true
	}
	return "", false
}

// onboardingSubflow governs the three-item checklist between a fully signed
// agreement and an active lease.
type onboardingSubflow struct{}

func (s onboardingSubflow) owns(ev Event) bool {
	switch ev {
	case EventBeginOnboarding, EventOnboardingItem, EventOnboardingComplete:
		return true
	}
	return false
}

func (s onboardingSubflow) step(e *Engagement, ev Event, role ActorRole, p Payload, now time.Time) (bool, error) {
	switch ev {
	case EventBeginOnboarding:
		stamp(&e.Milestones.OnboardingStartedAt, now)
	case EventOnboardingItem:
		switch p.Item {
		case ItemInsurance:
			if e.Checklist.InsuranceUploaded {
				return false, nil
			}
			e.Checklist.InsuranceUploaded = true
		case ItemCompanyDocs:
			if e.Checklist.CompanyDocsUploaded {
				return false, nil
			}
			e.Checklist.CompanyDocsUploaded = true
		case ItemPayment:
			if e.Checklist.PaymentMethodAdded {
				return false, nil
			}
			e.Checklist.PaymentMethodAdded = true
		default:
			return false, validationError("unknown onboarding item %q", p.Item)
		}
	case EventOnboardingComplete:
		if !e.Checklist.Complete() {
			return false, guardViolation("onboarding checklist incomplete")
		}
		stamp(&e.Milestones.OnboardingCompletedAt, now)
		stamp(&e.Milestones.LeaseStartedAt, now)
	}
	return true, nil
}

func (s onboardingSubflow) auto(e *Engagement) (Event, bool) {
	if e.Status == StatusOnboarding && e.Checklist.Complete() {
		return EventOnboardingComplete, true
	}
	return "", false
}

// stamp sets a milestone timestamp if it has not been set yet.
func stamp(field **time.Time, now time.Time) {
	if *field == nil {
		t := now
		*field = &t
	}
}

func armDeadline(e *Engagement, at time.Time) {
	t := at
	e.DeadlineAt = &t
}

func markDeclined(e *Engagement, by ActorRole, reason DeclineReason, now time.Time) {
	role := by
	e.DeclinedBy = &role
	if reason != "" {
		r := reason
		e.DeclineReason = &r
	}
	t := now
	e.DeclinedAt = &t
	e.DeadlineAt = nil
}
