package payment

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSchedule_MonthlyInstallments(t *testing.T) {
	start := date(2026, time.January, 1)
	end := date(2026, time.July, 1)
	today := date(2026, time.March, 15)

	settled := []time.Time{date(2026, time.January, 1), date(2026, time.February, 1)}
	got := Schedule(start, end, 4200, settled, today)

	if len(got) != 6 {
		t.Fatalf("installments = %d, want 6", len(got))
	}
	for i, inst := range got {
		if inst.Month != i+1 {
			t.Errorf("installment %d month = %d", i, inst.Month)
		}
		if inst.Amount != 4200 {
			t.Errorf("installment %d amount = %v", i, inst.Amount)
		}
		want := start.AddDate(0, i, 0)
		if !inst.DueDate.Equal(want) {
			t.Errorf("installment %d due = %v, want %v", i, inst.DueDate, want)
		}
	}

	wantStatus := []InstallmentStatus{
		StatusPaid,      // Jan: settled, past due
		StatusPaid,      // Feb: settled, past due
		StatusUpcoming,  // Mar: due before today, unsettled, within horizon
		StatusUpcoming,  // Apr: within the next calendar month
		StatusScheduled, // May
		StatusScheduled, // Jun
	}
	for i, want := range wantStatus {
		if got[i].Status != want {
			t.Errorf("installment %d status = %s, want %s", i+1, got[i].Status, want)
		}
	}
}

func TestSchedule_PastDueUnsettledIsNotPaid(t *testing.T) {
	start := date(2026, time.January, 1)
	end := date(2026, time.April, 1)
	today := date(2026, time.March, 20)

	got := Schedule(start, end, 1000, nil, today)
	if len(got) != 3 {
		t.Fatalf("installments = %d, want 3", len(got))
	}
	for _, inst := range got {
		if inst.Status == StatusPaid {
			t.Errorf("installment %d marked paid without a settlement", inst.Month)
		}
	}
}

func TestSchedule_MidMonthAnchorKeepsDay(t *testing.T) {
	start := date(2026, time.January, 15)
	end := date(2026, time.April, 15)
	today := date(2025, time.December, 1)

	got := Schedule(start, end, 900, nil, today)
	if len(got) != 3 {
		t.Fatalf("installments = %d, want 3", len(got))
	}
	for i, inst := range got {
		if inst.DueDate.Day() != 15 {
			t.Errorf("installment %d due day = %d, want 15", i+1, inst.DueDate.Day())
		}
		if inst.Status != StatusScheduled {
			t.Errorf("future installment %d status = %s", i+1, inst.Status)
		}
	}
}

func TestSchedule_DegenerateRange(t *testing.T) {
	day := date(2026, time.May, 1)
	if got := Schedule(day, day, 1000, nil, day); got != nil {
		t.Errorf("start == end should yield no installments, got %v", got)
	}
	if got := Schedule(day, day.AddDate(0, -1, 0), 1000, nil, day); got != nil {
		t.Errorf("end before start should yield no installments, got %v", got)
	}
}
