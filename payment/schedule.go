// Package payment derives the read-only monthly payment schedule for an
// active lease. It is a projection over lease terms and externally recorded
// settlements; it never moves money.
package payment

import "time"

// InstallmentStatus is derived per call, never stored.
type InstallmentStatus string

const (
	StatusPaid      InstallmentStatus = "paid"
	StatusUpcoming  InstallmentStatus = "upcoming"
	StatusScheduled InstallmentStatus = "scheduled"
)

// Installment is one month of the payment schedule.
type Installment struct {
	Month   int
	DueDate time.Time
	Amount  float64
	Status  InstallmentStatus
}

// Schedule projects the ordered monthly installments for a lease running
// from start to end at monthlyAmount. A settlement whose period matches an
// installment's due month marks it paid once the due date is in the past;
// installments due within the next calendar month are upcoming; the rest are
// scheduled.
func Schedule(start, end time.Time, monthlyAmount float64, settledPeriods []time.Time, today time.Time) []Installment {
	if !start.Before(end) {
		return nil
	}

	settled := make(map[string]bool, len(settledPeriods))
	for _, p := range settledPeriods {
		settled[monthKey(p)] = true
	}

	horizon := today.AddDate(0, 1, 0)
	out := make([]Installment, 0, 12)
	for month, due := 1, start; due.Before(end); month, due = month+1, start.AddDate(0, month, 0) {
		inst := Installment{
			Month:   month,
			DueDate: due,
			Amount:  monthlyAmount,
			Status:  StatusScheduled,
		}
		switch {
		case due.Before(today) && settled[monthKey(due)]:
			inst.Status = StatusPaid
		case !due.After(horizon):
			inst.Status = StatusUpcoming
		}
		out = append(out, inst)
	}
	return out
}

func monthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
