package engagement

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestService(t *testing.T) (*Service, *memRepo) {
	t.Helper()
	repo := newMemRepo()
	engine := NewEngine(repo, DefaultDeadlinePolicy())
	svc := NewService(repo, engine).
		WithClock(func() time.Time { return testTime }).
		WithIDGenerator(func() string { return "eng-fixed" })
	return svc, repo
}

func TestCreateFromMatch(t *testing.T) {
	svc, repo := newTestService(t)

	got, err := svc.CreateFromMatch(context.Background(), CreateMatchParams{
		BuyerID:     "buyer-1",
		SupplierID:  "supplier-1",
		Tier:        Tier2,
		MatchScore:  0.73,
		MonthlyRate: 3100,
		SizeSqft:    8000,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if got.Status != StatusDealPingSent {
		t.Errorf("status = %s, want deal_ping_sent", got.Status)
	}
	if got.Version != 1 {
		t.Errorf("version = %d, want 1", got.Version)
	}
	if got.Path != PathUnset {
		t.Errorf("path = %s, want unset", got.Path)
	}
	if got.DeadlineAt == nil {
		t.Fatalf("response deadline not armed")
	}
	if want := testTime.Add(72 * time.Hour); !got.DeadlineAt.Equal(want) {
		t.Errorf("deadline = %v, want tier_2 window %v", got.DeadlineAt, want)
	}
	if got.Milestones.DealPingSentAt == nil {
		t.Errorf("deal_ping_sent_at not stamped")
	}

	// Creation writes no log entry; the timeline starts with the first
	// transition.
	if entries := repo.timeline(got.ID); len(entries) != 0 {
		t.Errorf("timeline length = %d, want 0", len(entries))
	}
}

func TestCreateFromMatch_Validation(t *testing.T) {
	svc, _ := newTestService(t)

	cases := []struct {
		name   string
		params CreateMatchParams
	}{
		{"missing parties", CreateMatchParams{Tier: Tier1}},
		{"unknown tier", CreateMatchParams{BuyerID: "b", SupplierID: "s", Tier: "tier_3"}},
		{"score out of range", CreateMatchParams{BuyerID: "b", SupplierID: "s", Tier: Tier1, MatchScore: 1.2}},
		{"negative rate", CreateMatchParams{BuyerID: "b", SupplierID: "s", Tier: Tier1, MonthlyRate: -1}},
	}
	for _, c := range cases {
		if _, err := svc.CreateFromMatch(context.Background(), c.params); !errors.Is(err, ErrValidation) {
			t.Errorf("%s: err = %v, want ErrValidation", c.name, err)
		}
	}
}

func TestListEngagements_RequiresASide(t *testing.T) {
	svc, _ := newTestService(t)

	if _, _, err := svc.ListEngagements(context.Background(), ListFilter{}); !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
	if _, _, err := svc.ListEngagements(context.Background(), ListFilter{BuyerID: "b", Bucket: "urgent"}); !errors.Is(err, ErrValidation) {
		t.Errorf("unknown bucket: err = %v, want ErrValidation", err)
	}
}

func TestListEngagements_FiltersByBucket(t *testing.T) {
	svc, repo := newTestService(t)
	seedEngagement(t, repo, func(e *Engagement) { e.ID = "a"; e.BuyerID = "buyer-9" })
	seedEngagement(t, repo, func(e *Engagement) {
		e.ID = "b"
		e.BuyerID = "buyer-9"
		e.Status = StatusActive
		e.DeadlineAt = nil
	})

	list, total, err := svc.ListEngagements(context.Background(), ListFilter{BuyerID: "buyer-9", Bucket: BucketActive})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(list) != 1 || list[0].ID != "b" {
		t.Errorf("list = %v total = %d, want only the active engagement", list, total)
	}
}

func TestGetTimeline_UnknownEngagement(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.GetTimeline(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestGetPaymentSchedule(t *testing.T) {
	svc, repo := newTestService(t)
	svc.WithSettlements(stubSettlements{periods: []time.Time{testTime.AddDate(0, -2, 0)}})

	end := testTime.AddDate(0, 4, 0)
	started := testTime.AddDate(0, -2, 0)
	e := seedEngagement(t, repo, func(e *Engagement) {
		e.Status = StatusActive
		e.DeadlineAt = nil
		e.LeaseEndDate = &end
		e.Milestones.LeaseStartedAt = &started
	})

	schedule, err := svc.GetPaymentSchedule(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if len(schedule) != 6 {
		t.Fatalf("installments = %d, want 6", len(schedule))
	}
	if schedule[0].Status != "paid" {
		t.Errorf("first installment status = %s, want paid", schedule[0].Status)
	}
}

func TestGetPaymentSchedule_RequiresActiveLease(t *testing.T) {
	svc, repo := newTestService(t)
	e := seedEngagement(t, repo, nil)

	if _, err := svc.GetPaymentSchedule(context.Background(), e.ID); !errors.Is(err, ErrGuardViolation) {
		t.Errorf("err = %v, want ErrGuardViolation before active", err)
	}
}

type stubSettlements struct {
	periods []time.Time
}

func (s stubSettlements) PaidPeriods(_ context.Context, _ string) ([]time.Time, error) {
	return s.periods, nil
}
