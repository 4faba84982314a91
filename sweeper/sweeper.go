// Package sweeper runs the background process that converts deadline-expired
// engagements into their terminal expiry states. Any number of instances may
// run concurrently; the engine's compare-and-swap commit guarantees at most
// one of them transitions a given engagement.
package sweeper

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"warehousematch/engagement"
)

// Applier is the slice of the transition engine the sweeper needs.
type Applier interface {
	Apply(ctx context.Context, id string, ev engagement.Event, role engagement.ActorRole, expectedVersion int64, p engagement.Payload) (engagement.Engagement, error)
}

// DueLister returns engagements whose deadline has passed.
type DueLister interface {
	ListDue(ctx context.Context, statuses []engagement.Status, cutoff time.Time, limit int) ([]engagement.Engagement, error)
}

// Sweeper scans deadline-bound engagements on a fixed interval and fires
// deadline_passed for each one whose deadline is in the past.
type Sweeper struct {
	repo     DueLister
	engine   Applier
	interval time.Duration
	batch    int
	workers  int
	log      *zap.Logger
	now      func() time.Time
}

// New builds a sweeper over the repository and engine.
func New(repo DueLister, engine Applier, interval time.Duration, log *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{
		repo:     repo,
		engine:   engine,
		interval: interval,
		batch:    200,
		workers:  4,
		log:      log,
		now:      time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Run ticks until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				s.log.Error("sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep performs one pass: list every engagement whose deadline has passed
// and fire deadline_passed for each. Losing a race to another sweeper or to
// an actor responding at the last moment is expected and not an error.
func (s *Sweeper) Sweep(ctx context.Context) error {
	now := s.now()
	due, err := s.repo.ListDue(ctx, engagement.DeadlineBoundStatuses(), now, s.batch)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	s.log.Info("sweeping expired deadlines", zap.Int("due", len(due)))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, e := range due {
		e := e
		g.Go(func() error {
			return s.expire(ctx, e)
		})
	}
	return g.Wait()
}

func (s *Sweeper) expire(ctx context.Context, e engagement.Engagement) error {
	_, err := s.engine.Apply(ctx, e.ID, engagement.EventDeadlinePassed, engagement.ActorSystem, e.Version, engagement.Payload{})
	switch {
	case err == nil:
		s.log.Info("engagement expired",
			zap.String("engagement_id", e.ID),
			zap.String("from", string(e.Status)),
		)
		return nil
	case errors.Is(err, engagement.ErrVersionConflict),
		errors.Is(err, engagement.ErrIllegalTransition),
		errors.Is(err, engagement.ErrGuardViolation),
		errors.Is(err, engagement.ErrNotFound):
		// Another sweeper or a responding actor moved the row first.
		s.log.Debug("expiry lost race",
			zap.String("engagement_id", e.ID),
			zap.Error(err),
		)
		return nil
	default:
		return err
	}
}
