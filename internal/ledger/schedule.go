package ledger

import (
	"iter"
	"time"

	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/pkg/utils"
)

// Schedule is the due-date sequence of a plan. Finite plans are materialised
// up front; interest-only plans have no end and are generated on demand.
type Schedule struct {
	plan    *domain.LoanPlan
	entries []domain.ScheduleEntry
}

// GenerateSchedule builds the schedule for a plan. It has no side effects and
// returns the same entries for the same plan.
func GenerateSchedule(plan *domain.LoanPlan) *Schedule {
	s := &Schedule{plan: plan}
	if plan.Kind.IsOpenEnded() {
		return s
	}

	n := plan.Periods()
	s.entries = make([]domain.ScheduleEntry, n)
	for i := 0; i < n; i++ {
		s.entries[i] = s.entry(i)
	}
	return s
}

// DueDate returns the due date of period k (0-based).
func DueDate(plan *domain.LoanPlan, k int) time.Time {
	switch plan.Kind {
	case domain.KindWeeklyInstallment:
		return utils.AddWeeks(plan.AnchorDate, k)
	case domain.KindDailyInstallment:
		return utils.AddDays(plan.AnchorDate, k)
	case domain.KindMonthlyInstallment, domain.KindAmortizedTerm, domain.KindInterestOnly:
		return utils.AddMonthsClamped(plan.AnchorDate, k)
	}
	return utils.AddMonthsClamped(plan.AnchorDate, k)
}

// entry builds period i. The last period of a finite plan carries the
// remainder so the schedule sums exactly to the amount payable.
func (s *Schedule) entry(i int) domain.ScheduleEntry {
	due := s.plan.PeriodicAmount
	if n := s.plan.Periods(); n > 0 && i == n-1 {
		due = s.plan.TotalPayable - s.plan.PeriodicAmount*int64(n-1)
	}
	return domain.ScheduleEntry{
		Index:     i,
		DueDate:   DueDate(s.plan, i),
		DueAmount: due,
	}
}

// Plan returns the plan the schedule was generated from.
func (s *Schedule) Plan() *domain.LoanPlan {
	return s.plan
}

// OpenEnded reports whether the schedule never ends.
func (s *Schedule) OpenEnded() bool {
	return s.plan.Kind.IsOpenEnded()
}

// Len returns the number of periods, or -1 for an open-ended schedule.
func (s *Schedule) Len() int {
	if s.OpenEnded() {
		return -1
	}
	return len(s.entries)
}

// Entries returns a copy of the finite schedule. Open-ended schedules return nil;
// use Through or All instead.
func (s *Schedule) Entries() []domain.ScheduleEntry {
	if s.entries == nil {
		return nil
	}
	out := make([]domain.ScheduleEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Entry returns period i.
func (s *Schedule) Entry(i int) (domain.ScheduleEntry, bool) {
	if i < 0 {
		return domain.ScheduleEntry{}, false
	}
	if s.OpenEnded() {
		return s.entry(i), true
	}
	if i >= len(s.entries) {
		return domain.ScheduleEntry{}, false
	}
	return s.entries[i], true
}

// All yields every period in order. For open-ended schedules the sequence is
// infinite; each range over it starts again from period 0.
func (s *Schedule) All() iter.Seq[domain.ScheduleEntry] {
	return func(yield func(domain.ScheduleEntry) bool) {
		if !s.OpenEnded() {
			for _, e := range s.entries {
				if !yield(e) {
					return
				}
			}
			return
		}
		for i := 0; ; i++ {
			if !yield(s.entry(i)) {
				return
			}
		}
	}
}

// Through returns the periods due on or before asOf.
func (s *Schedule) Through(asOf time.Time) []domain.ScheduleEntry {
	asOf = utils.DateOf(asOf)
	var out []domain.ScheduleEntry
	for e := range s.All() {
		if e.DueDate.After(asOf) {
			break
		}
		out = append(out, e)
	}
	return out
}

// Next returns up to n periods due after asOf.
func (s *Schedule) Next(asOf time.Time, n int) []domain.ScheduleEntry {
	asOf = utils.DateOf(asOf)
	var out []domain.ScheduleEntry
	if n <= 0 {
		return out
	}
	for e := range s.All() {
		if !e.DueDate.After(asOf) {
			continue
		}
		out = append(out, e)
		if len(out) == n {
			break
		}
	}
	return out
}
