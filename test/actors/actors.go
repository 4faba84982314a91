// Package actors contains the concurrent roles of the engagement stress
// harness. Each actor observes an engagement and fires the events its role
// is allowed to fire. Losing a compare-and-swap race, arriving after the
// state moved on, or having its connection killed by the chaos injector are
// all expected; the oracles are the correctness check.
package actors

import (
	"context"
	"math/rand"
	"time"

	"warehousematch/engagement"
)

// Applier is the slice of the engine the actors drive.
type Applier interface {
	Apply(ctx context.Context, id string, ev engagement.Event, role engagement.ActorRole, expectedVersion int64, p engagement.Payload) (engagement.Engagement, error)
}

// Getter reads the current engagement snapshot.
type Getter interface {
	Get(ctx context.Context, id string) (engagement.Engagement, error)
}

var declineReasons = []engagement.DeclineReason{
	engagement.ReasonRateTooHigh,
	engagement.ReasonSpaceNotNeeded,
	engagement.ReasonFoundAlternative,
	engagement.ReasonSchedulingConflict,
	engagement.ReasonOther,
}

// Supplier responds to whatever currently needs the supplier: accepting deal
// pings, confirming or rescheduling tours, confirming instant bookings, and
// signing the agreement.
func Supplier(ctx context.Context, repo Getter, engine Applier, engagementID string, stop <-chan struct{}) error {
	for {
		if done(ctx, stop) {
			return ctx.Err()
		}

		e, err := repo.Get(ctx, engagementID)
		if err != nil {
			sleep(20, 50)
			continue
		}

		var (
			ev engagement.Event
			p  engagement.Payload
		)
		switch e.Status {
		case engagement.StatusDealPingSent:
			ev = engagement.EventAccept
		case engagement.StatusTourRequested, engagement.StatusTourRescheduled:
			if rand.Intn(4) == 0 && e.TourRescheduleCount < 3 {
				ev = engagement.EventProposeNewTime
				t := time.Now().Add(time.Duration(1+rand.Intn(48)) * time.Hour)
				p.ProposedTime = &t
			} else {
				ev = engagement.EventConfirmTour
			}
		case engagement.StatusTourConfirmed:
			ev = engagement.EventCompleteTour
		case engagement.StatusInstantBookRequested:
			ev = engagement.EventConfirmInstantBook
		case engagement.StatusAgreementSent:
			if e.SupplierSignedAt == nil {
				ev = engagement.EventSign
			}
		}
		if ev == "" {
			sleep(10, 30)
			continue
		}

		_, _ = engine.Apply(ctx, engagementID, ev, engagement.ActorSupplier, e.Version, p)
		sleep(10, 30)
	}
}

// Buyer pushes the engagement through the buyer-owned edges: review,
// guarantee signing, path choice, tour verdicts, agreement signature and the
// onboarding checklist.
func Buyer(ctx context.Context, repo Getter, engine Applier, engagementID string, stop <-chan struct{}) error {
	items := []engagement.ChecklistItem{
		engagement.ItemInsurance,
		engagement.ItemCompanyDocs,
		engagement.ItemPayment,
	}

	for {
		if done(ctx, stop) {
			return ctx.Err()
		}

		e, err := repo.Get(ctx, engagementID)
		if err != nil {
			sleep(20, 50)
			continue
		}

		var (
			ev engagement.Event
			p  engagement.Payload
		)
		switch e.Status {
		case engagement.StatusMatched:
			ev = engagement.EventBeginReview
		case engagement.StatusBuyerReviewing:
			ev = engagement.EventAcceptMatch
		case engagement.StatusAccountCreated:
			ev = engagement.EventSignGuarantee
		case engagement.StatusGuaranteeSigned, engagement.StatusAddressRevealed:
			if e.Tier == engagement.Tier1 && rand.Intn(2) == 0 {
				ev = engagement.EventRequestInstantBook
			} else {
				ev = engagement.EventRequestTour
				t := time.Now().Add(time.Duration(1+rand.Intn(24)) * time.Hour)
				p.ProposedTime = &t
			}
		case engagement.StatusTourCompleted:
			ev = engagement.EventBuyerOutcome
			if rand.Intn(10) == 0 {
				p.Outcome = engagement.OutcomePassed
				p.Reason = declineReasons[rand.Intn(len(declineReasons))]
			} else {
				p.Outcome = engagement.OutcomeConfirmed
			}
		case engagement.StatusAgreementSent:
			if e.BuyerSignedAt == nil {
				ev = engagement.EventSign
			}
		case engagement.StatusOnboarding:
			ev = engagement.EventOnboardingItem
			p.Item = items[rand.Intn(len(items))]
		}
		if ev == "" {
			sleep(10, 30)
			continue
		}

		_, _ = engine.Apply(ctx, engagementID, ev, engagement.ActorBuyer, e.Version, p)
		sleep(10, 30)
	}
}

// System fires the system-owned chain edges the platform would run: match
// confirmation, account creation, address reveal and agreement dispatch.
func System(ctx context.Context, repo Getter, engine Applier, engagementID string, stop <-chan struct{}) error {
	for {
		if done(ctx, stop) {
			return ctx.Err()
		}

		e, err := repo.Get(ctx, engagementID)
		if err != nil {
			sleep(20, 50)
			continue
		}

		var ev engagement.Event
		switch e.Status {
		case engagement.StatusDealPingAccepted:
			ev = engagement.EventConfirmMatch
		case engagement.StatusBuyerAccepted:
			ev = engagement.EventCreateAccount
		case engagement.StatusGuaranteeSigned:
			if rand.Intn(2) == 0 {
				ev = engagement.EventRevealAddress
			}
		case engagement.StatusBuyerConfirmed:
			ev = engagement.EventSendAgreement
		}
		if ev == "" {
			sleep(15, 40)
			continue
		}

		_, _ = engine.Apply(ctx, engagementID, ev, engagement.ActorSystem, e.Version, engagement.Payload{})
		sleep(15, 40)
	}
}

// Decliner occasionally declines mid-flight, competing with every other
// actor for the same version.
func Decliner(ctx context.Context, repo Getter, engine Applier, engagementID string, stop <-chan struct{}) error {
	for {
		if done(ctx, stop) {
			return ctx.Err()
		}
		sleep(300, 600)

		if rand.Intn(20) != 0 {
			continue
		}
		e, err := repo.Get(ctx, engagementID)
		if err != nil {
			continue
		}
		if !engagement.IsDeclineEligible(e.Status) {
			continue
		}

		role := engagement.ActorBuyer
		if rand.Intn(2) == 0 {
			role = engagement.ActorSupplier
		}
		p := engagement.Payload{Reason: declineReasons[rand.Intn(len(declineReasons))]}
		_, _ = engine.Apply(ctx, engagementID, engagement.EventDecline, role, e.Version, p)
	}
}

func done(ctx context.Context, stop <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return true
	case <-stop:
		return true
	default:
		return false
	}
}

func sleep(minMs, maxMs int) {
	time.Sleep(time.Duration(minMs+rand.Intn(maxMs-minMs)) * time.Millisecond)
}
