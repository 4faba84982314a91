package engagement

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DeadlinePolicy fixes the response windows armed when an engagement enters a
// deadline-bound state. Tier affects the window length, never legality.
type DeadlinePolicy struct {
	DealPingResponse map[Tier]time.Duration
	TourConfirm      map[Tier]time.Duration
}

// DefaultDeadlinePolicy returns the production windows: tier_1 matches get
// tighter supplier response windows than tier_2.
func DefaultDeadlinePolicy() DeadlinePolicy {
	return DeadlinePolicy{
		DealPingResponse: map[Tier]time.Duration{
			Tier1: 24 * time.Hour,
			Tier2: 72 * time.Hour,
		},
		TourConfirm: map[Tier]time.Duration{
			Tier1: 48 * time.Hour,
			Tier2: 72 * time.Hour,
		},
	}
}

func (p DeadlinePolicy) dealPingResponse(t Tier) time.Duration {
	if d, ok := p.DealPingResponse[t]; ok {
		return d
	}
	return 72 * time.Hour
}

func (p DeadlinePolicy) tourConfirm(t Tier) time.Duration {
	if d, ok := p.TourConfirm[t]; ok {
		return d
	}
	return 72 * time.Hour
}

// Repository is the persistence contract the engine mutates engagements
// through. Commit must be atomic: the engagement update and every log entry
// land together or not at all, and the update must compare-and-swap on
// expectedVersion, returning ErrVersionConflict when the row moved underneath.
type Repository interface {
	Get(ctx context.Context, id string) (Engagement, error)
	List(ctx context.Context, filter ListFilter) ([]Engagement, int, error)
	// ListDue returns engagements sitting in one of the given statuses with a
	// deadline at or before the cutoff.
	ListDue(ctx context.Context, statuses []Status, cutoff time.Time, limit int) ([]Engagement, error)
	Timeline(ctx context.Context, engagementID string) ([]EventLogEntry, error)
	Create(ctx context.Context, e Engagement) (Engagement, error)
	Commit(ctx context.Context, expectedVersion int64, e Engagement, entries []EventLogEntry) error
}

// Notifier receives committed log entries for external dispatch. Dispatch is
// fire-and-forget: failures must never block or fail a transition.
type Notifier interface {
	EngagementEvent(ctx context.Context, entry EventLogEntry)
}

// Engine validates and applies events against engagements. It is the only
// component allowed to mutate engagement state.
type Engine struct {
	repo      Repository
	deadlines DeadlinePolicy
	subflows  []subflowResolver
	notifier  Notifier
	log       *zap.Logger
	now       func() time.Time
}

// NewEngine wires a transition engine over the given repository.
func NewEngine(repo Repository, deadlines DeadlinePolicy) *Engine {
	return &Engine{
		repo:      repo,
		deadlines: deadlines,
		subflows: []subflowResolver{
			tourSubflow{deadlines: deadlines},
			instantBookSubflow{},
			agreementSubflow{},
			onboardingSubflow{},
		},
		log: zap.NewNop(),
		now: time.Now,
	}
}

// WithNotifier attaches a fire-and-forget event notifier.
func (en *Engine) WithNotifier(n Notifier) *Engine {
	en.notifier = n
	return en
}

// WithLogger attaches a structured logger.
func (en *Engine) WithLogger(log *zap.Logger) *Engine {
	en.log = log
	return en
}

// WithClock overrides the time source, for tests.
func (en *Engine) WithClock(now func() time.Time) *Engine {
	en.now = now
	return en
}

// Apply validates and applies one event against one engagement. On success it
// commits the new state plus one log entry per transition (auto-transitions
// chained by dual-signature or checklist completion are part of the same
// atomic unit) and returns the new engagement. A rejected event leaves the
// engagement untouched. Re-applying an event that would produce no change is
// a no-op returning the current state.
func (en *Engine) Apply(ctx context.Context, id string, ev Event, role ActorRole, expectedVersion int64, p Payload) (Engagement, error) {
	if id == "" {
		return Engagement{}, validationError("missing engagement id")
	}
	switch role {
	case ActorBuyer, ActorSupplier, ActorSystem:
	default:
		return Engagement{}, validationError("unknown actor role %q", role)
	}
	if ev == EventDecline {
		if p.Reason == "" {
			return Engagement{}, validationError("decline requires a reason")
		}
		if !ValidDeclineReason(p.Reason) {
			return Engagement{}, validationError("unknown decline reason %q", p.Reason)
		}
	}

	eng, err := en.repo.Get(ctx, id)
	if err != nil {
		return Engagement{}, err
	}

	// The version check runs before legality so a raced caller always sees
	// ErrVersionConflict rather than a misleading transition error. The
	// commit CAS below remains the final arbiter.
	if eng.Version != expectedVersion {
		return Engagement{}, ErrVersionConflict
	}

	now := en.now()
	next := eng
	changed, entry, err := en.step(&next, ev, role, p, now)
	if err != nil {
		return Engagement{}, err
	}
	if !changed {
		return eng, nil
	}
	entries := []EventLogEntry{entry}

	// Chase auto-transitions whose entry condition is already satisfied, in
	// the same atomic unit.
	for {
		autoEv, ok := en.pendingAuto(&next)
		if !ok {
			break
		}
		changed, autoEntry, err := en.step(&next, autoEv, ActorSystem, Payload{}, now)
		if err != nil {
			return Engagement{}, err
		}
		if !changed {
			break
		}
		entries = append(entries, autoEntry)
	}

	next.UpdatedAt = now
	if err := en.repo.Commit(ctx, expectedVersion, next, entries); err != nil {
		return Engagement{}, err
	}

	en.log.Debug("engagement transition applied",
		zap.String("engagement_id", id),
		zap.String("event", string(ev)),
		zap.String("actor", string(role)),
		zap.String("from", string(eng.Status)),
		zap.String("to", string(next.Status)),
		zap.Int64("version", next.Version),
	)

	if en.notifier != nil {
		for _, e := range entries {
			en.notifier.EngagementEvent(ctx, e)
		}
	}

	return next, nil
}

// step applies a single transition to e in place, appending nothing: it
// validates legality, actor permission and guards, mutates the snapshot, and
// returns the log entry describing the edge. changed is false for idempotent
// no-ops.
func (en *Engine) step(e *Engagement, ev Event, role ActorRole, p Payload, now time.Time) (bool, EventLogEntry, error) {
	from := e.Status

	if IsTerminal(from) {
		return false, EventLogEntry{}, illegalTransition(ev, from)
	}
	rule, ok := RuleFor(from, ev)
	if !ok {
		return false, EventLogEntry{}, illegalTransition(ev, from)
	}
	if !rule.permits(role) {
		return false, EventLogEntry{}, unauthorizedActor(role, ev)
	}

	changed, err := en.mutate(e, ev, role, p, now)
	if err != nil {
		return false, EventLogEntry{}, err
	}
	if !changed {
		return false, EventLogEntry{}, nil
	}
	if rule.Next != "" {
		e.Status = rule.Next
	}

	e.Version++
	entry := EventLogEntry{
		EngagementID: e.ID,
		Seq:          e.Version - 1,
		EventType:    ev,
		ActorRole:    role,
		FromStatus:   from,
		ToStatus:     e.Status,
		Timestamp:    now,
		Metadata:     entryMetadata(ev, p),
	}
	return true, entry, nil
}

// mutate dispatches the event to its subflow resolver or handles the shared
// edges (accept, decline, deadlines, the linear pre-tour chain, lease close).
func (en *Engine) mutate(e *Engagement, ev Event, role ActorRole, p Payload, now time.Time) (bool, error) {
	for _, sf := range en.subflows {
		if sf.owns(ev) {
			return sf.step(e, ev, role, p, now)
		}
	}

	switch ev {
	case EventAccept:
		stamp(&e.Milestones.DealPingRespondedAt, now)
		e.DeadlineAt = nil
	case EventDecline:
		if e.Status == StatusDealPingSent && role == ActorSupplier {
			stamp(&e.Milestones.DealPingRespondedAt, now)
		}
		markDeclined(e, role, p.Reason, now)
		e.Status = declineTarget(e.Status, role)
	case EventDeadlinePassed:
		if e.DeadlineAt == nil {
			return false, guardViolation("no deadline armed")
		}
		if now.Before(*e.DeadlineAt) {
			return false, guardViolation("deadline %s not reached", e.DeadlineAt.UTC().Format(time.RFC3339))
		}
		e.DeadlineAt = nil
	case EventSignGuarantee:
		stamp(&e.Milestones.GuaranteeSignedAt, now)
	case EventCompleteLease:
		if !p.ManualClose && (e.LeaseEndDate == nil || now.Before(*e.LeaseEndDate)) {
			return false, guardViolation("lease end date not reached")
		}
		stamp(&e.Milestones.LeaseEndedAt, now)
	case EventConfirmMatch, EventBeginReview, EventAcceptMatch, EventCreateAccount, EventRevealAddress:
		// Plain moves along the pre-tour chain; nothing beyond the status.
	}
	return true, nil
}

func (en *Engine) pendingAuto(e *Engagement) (Event, bool) {
	for _, sf := range en.subflows {
		if ev, ok := sf.auto(e); ok {
			return ev, true
		}
	}
	return "", false
}

func entryMetadata(ev Event, p Payload) map[string]any {
	md := make(map[string]any, len(p.Metadata)+2)
	for k, v := range p.Metadata {
		md[k] = v
	}
	if p.Reason != "" {
		md["reason"] = string(p.Reason)
	}
	if p.Outcome != "" {
		md["outcome"] = string(p.Outcome)
	}
	if p.Item != "" {
		md["item"] = string(p.Item)
	}
	if p.ProposedTime != nil {
		md["proposed_time"] = p.ProposedTime.UTC().Format(time.RFC3339)
	}
	if p.ManualClose {
		md["manual_close"] = true
	}
	if len(md) == 0 {
		return nil
	}
	return md
}
