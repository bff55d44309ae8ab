package ledger

import (
	"time"

	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/pkg/utils"
)

// Classify splits the unpaid periods into overdue (due before asOf) and
// upcoming (due on or after asOf). DaysOverdue is the age of the oldest
// unpaid period. Open-ended schedules are only walked up to asOf.
func Classify(l *Ledger, schedule *Schedule, asOf time.Time) domain.Classification {
	asOf = utils.DateOf(asOf)
	c := domain.Classification{
		LoanID:   l.Plan().LoanID,
		AsOf:     asOf,
		Overdue:  []domain.ScheduleEntry{},
		Upcoming: []domain.ScheduleEntry{},
	}

	var entries []domain.ScheduleEntry
	if schedule.OpenEnded() {
		entries = schedule.Through(asOf)
	} else {
		entries = schedule.Entries()
	}

	status := l.Project(entries)
	for _, e := range entries {
		if status[e.Index] == domain.PeriodPaid {
			c.PaidCount++
			continue
		}
		if e.DueDate.Before(asOf) {
			c.Overdue = append(c.Overdue, e)
			c.OverdueAmount += e.DueAmount
		} else {
			c.Upcoming = append(c.Upcoming, e)
		}
	}

	c.MissedCount = len(c.Overdue)
	if c.MissedCount > 0 {
		c.DaysOverdue = utils.DaysBetween(c.Overdue[0].DueDate, asOf)
	}
	return c
}
