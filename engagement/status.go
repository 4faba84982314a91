package engagement

// Event names an action an actor can fire against an engagement.
type Event string

const (
	EventAccept             Event = "accept"
	EventDecline            Event = "decline"
	EventDeadlinePassed     Event = "deadline_passed"
	EventConfirmMatch       Event = "confirm_match"
	EventBeginReview        Event = "begin_review"
	EventAcceptMatch        Event = "accept_match"
	EventCreateAccount      Event = "create_account"
	EventSignGuarantee      Event = "sign_guarantee"
	EventRevealAddress      Event = "reveal_address"
	EventRequestTour        Event = "request_tour"
	EventRequestInstantBook Event = "request_instant_book"
	EventConfirmTour        Event = "confirm_tour"
	EventProposeNewTime     Event = "propose_new_time"
	EventCompleteTour       Event = "complete_tour"
	EventBuyerOutcome       Event = "buyer_outcome"
	EventConfirmInstantBook Event = "confirm_instant_book"
	EventSendAgreement      Event = "send_agreement"
	EventSign               Event = "sign"
	EventAgreementComplete  Event = "agreement_complete"
	EventBeginOnboarding    Event = "begin_onboarding"
	EventOnboardingItem     Event = "submit_onboarding_item"
	EventOnboardingComplete Event = "onboarding_complete"
	EventCompleteLease      Event = "complete_lease"
)

// Rule is one legal edge of the lifecycle graph: who may fire the event from
// the owning status and where it lands. Next is empty for events whose target
// depends on the actor or payload (decline, buyer_outcome); the engine
// resolves those.
type Rule struct {
	Next   Status
	Actors []ActorRole
}

func (r Rule) permits(role ActorRole) bool {
	for _, a := range r.Actors {
		if a == role {
			return true
		}
	}
	return false
}

var (
	buyerOnly     = []ActorRole{ActorBuyer}
	supplierOnly  = []ActorRole{ActorSupplier}
	systemOnly    = []ActorRole{ActorSystem}
	eitherParty   = []ActorRole{ActorBuyer, ActorSupplier}
	supplierOrSys = []ActorRole{ActorSupplier, ActorSystem}
	buyerOrSystem = []ActorRole{ActorBuyer, ActorSystem}
)

// transitionTable is the authoritative (status, event) → rule mapping.
// Decline edges are not listed per status; see RuleFor.
var transitionTable = map[Status]map[Event]Rule{
	StatusDealPingSent: {
		EventAccept:         {Next: StatusDealPingAccepted, Actors: supplierOnly},
		EventDeadlinePassed: {Next: StatusDealPingExpired, Actors: systemOnly},
	},
	StatusDealPingAccepted: {
		EventConfirmMatch: {Next: StatusMatched, Actors: systemOnly},
	},
	StatusMatched: {
		EventBeginReview: {Next: StatusBuyerReviewing, Actors: buyerOnly},
	},
	StatusBuyerReviewing: {
		EventAcceptMatch: {Next: StatusBuyerAccepted, Actors: buyerOnly},
	},
	StatusBuyerAccepted: {
		EventCreateAccount: {Next: StatusAccountCreated, Actors: systemOnly},
	},
	StatusAccountCreated: {
		EventSignGuarantee: {Next: StatusGuaranteeSigned, Actors: buyerOnly},
	},
	StatusGuaranteeSigned: {
		EventRevealAddress:      {Next: StatusAddressRevealed, Actors: systemOnly},
		EventRequestTour:        {Next: StatusTourRequested, Actors: buyerOnly},
		EventRequestInstantBook: {Next: StatusInstantBookRequested, Actors: buyerOnly},
	},
	StatusAddressRevealed: {
		EventRequestTour:        {Next: StatusTourRequested, Actors: buyerOnly},
		EventRequestInstantBook: {Next: StatusInstantBookRequested, Actors: buyerOnly},
	},
	StatusTourRequested: {
		EventConfirmTour:    {Next: StatusTourConfirmed, Actors: supplierOnly},
		EventProposeNewTime: {Next: StatusTourRescheduled, Actors: supplierOnly},
		EventDeadlinePassed: {Next: StatusExpired, Actors: systemOnly},
	},
	StatusTourRescheduled: {
		EventConfirmTour:    {Next: StatusTourConfirmed, Actors: supplierOnly},
		EventProposeNewTime: {Next: StatusTourRescheduled, Actors: supplierOnly},
		EventDeadlinePassed: {Next: StatusExpired, Actors: systemOnly},
	},
	StatusTourConfirmed: {
		EventCompleteTour: {Next: StatusTourCompleted, Actors: supplierOrSys},
	},
	StatusTourCompleted: {
		EventBuyerOutcome: {Actors: buyerOnly},
	},
	StatusInstantBookRequested: {
		EventConfirmInstantBook: {Next: StatusBuyerConfirmed, Actors: supplierOnly},
	},
	StatusBuyerConfirmed: {
		EventSendAgreement: {Next: StatusAgreementSent, Actors: systemOnly},
	},
	StatusAgreementSent: {
		EventSign:              {Next: StatusAgreementSent, Actors: eitherParty},
		EventAgreementComplete: {Next: StatusAgreementSigned, Actors: systemOnly},
	},
	StatusAgreementSigned: {
		EventBeginOnboarding: {Next: StatusOnboarding, Actors: systemOnly},
	},
	StatusOnboarding: {
		EventOnboardingItem:     {Next: StatusOnboarding, Actors: buyerOrSystem},
		EventOnboardingComplete: {Next: StatusActive, Actors: systemOnly},
	},
	StatusActive: {
		EventCompleteLease: {Next: StatusCompleted, Actors: systemOnly},
	},
}

var statusBuckets = map[Status]Bucket{
	StatusDealPingSent:    BucketActionNeeded,
	StatusTourRequested:   BucketActionNeeded,
	StatusTourRescheduled: BucketActionNeeded,
	StatusAgreementSent:   BucketActionNeeded,

	StatusDealPingAccepted:     BucketInProgress,
	StatusMatched:              BucketInProgress,
	StatusBuyerReviewing:       BucketInProgress,
	StatusBuyerAccepted:        BucketInProgress,
	StatusAccountCreated:       BucketInProgress,
	StatusGuaranteeSigned:      BucketInProgress,
	StatusAddressRevealed:      BucketInProgress,
	StatusTourConfirmed:        BucketInProgress,
	StatusInstantBookRequested: BucketInProgress,
	StatusTourCompleted:        BucketInProgress,
	StatusBuyerConfirmed:       BucketInProgress,
	StatusAgreementSigned:      BucketInProgress,
	StatusOnboarding:           BucketInProgress,

	StatusActive: BucketActive,

	StatusCompleted:          BucketTerminal,
	StatusDeclinedByBuyer:    BucketTerminal,
	StatusDeclinedBySupplier: BucketTerminal,
	StatusExpired:            BucketTerminal,
	StatusDealPingExpired:    BucketTerminal,
	StatusDealPingDeclined:   BucketTerminal,
}

// BucketOf returns the display bucket for a status. Every caller must use
// this query rather than re-deriving the mapping locally.
func BucketOf(st Status) (Bucket, bool) {
	b, ok := statusBuckets[st]
	return b, ok
}

// StatusesInBucket returns the statuses belonging to a bucket.
func StatusesInBucket(b Bucket) []Status {
	out := make([]Status, 0, 16)
	for st, bucket := range statusBuckets {
		if bucket == b {
			out = append(out, st)
		}
	}
	return out
}

// AllStatuses returns every known status.
func AllStatuses() []Status {
	out := make([]Status, 0, len(statusBuckets))
	for st := range statusBuckets {
		out = append(out, st)
	}
	return out
}

// IsTerminal reports whether st is one of the six terminal states. Terminal
// engagements reject every event.
func IsTerminal(st Status) bool {
	return statusBuckets[st] == BucketTerminal
}

// IsDeclineEligible reports whether a decline event may fire from st. Active
// engagements are past the decline checkpoint; terminal ones are immutable.
func IsDeclineEligible(st Status) bool {
	if _, known := statusBuckets[st]; !known {
		return false
	}
	return !IsTerminal(st) && st != StatusActive
}

// deadlineBound lists the states the expiry sweeper watches.
var deadlineBound = []Status{StatusDealPingSent, StatusTourRequested, StatusTourRescheduled}

// DeadlineBoundStatuses returns the states that carry a response deadline.
func DeadlineBoundStatuses() []Status {
	out := make([]Status, len(deadlineBound))
	copy(out, deadlineBound)
	return out
}

// RuleFor returns the rule governing (st, ev), or false when the pair is not
// a legal edge. Decline is legal from every decline-eligible status.
func RuleFor(st Status, ev Event) (Rule, bool) {
	if ev == EventDecline {
		if !IsDeclineEligible(st) {
			return Rule{}, false
		}
		return Rule{Actors: eitherParty}, true
	}
	rules, ok := transitionTable[st]
	if !ok {
		return Rule{}, false
	}
	rule, ok := rules[ev]
	return rule, ok
}

// declineTarget resolves where a decline by role lands from st.
func declineTarget(st Status, role ActorRole) Status {
	if st == StatusDealPingSent && role == ActorBuyer {
		// Buyer withdrawing the inquiry before the supplier responds.
		return StatusDealPingDeclined
	}
	if role == ActorSupplier {
		return StatusDeclinedBySupplier
	}
	return StatusDeclinedByBuyer
}
