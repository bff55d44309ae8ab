package domain

import (
	"time"
)

// PeriodStatus is the derived paid state of one schedule period.
type PeriodStatus string

const (
	PeriodPaid   PeriodStatus = "paid"
	PeriodUnpaid PeriodStatus = "unpaid"
)

// ScheduleEntry is one due period. Entries are derived from a LoanPlan and
// never stored.
type ScheduleEntry struct {
	Index     int       `json:"index"`
	DueDate   time.Time `json:"due_date"`
	DueAmount int64     `json:"due_amount"`
}

type ScheduleResponse struct {
	LoanID   string          `json:"loan_id"`
	Kind     LoanKind        `json:"kind"`
	Schedule []ScheduleEntry `json:"schedule"`
	// Status is keyed by period index.
	Status map[int]PeriodStatus `json:"status"`
	// OpenEnded schedules only list periods due up to the request date
	// plus the next one.
	OpenEnded bool `json:"open_ended"`
}

// Classification buckets the unpaid periods of a schedule against a date.
type Classification struct {
	LoanID        string          `json:"loan_id"`
	AsOf          time.Time       `json:"as_of"`
	Overdue       []ScheduleEntry `json:"overdue"`
	Upcoming      []ScheduleEntry `json:"upcoming"`
	PaidCount     int             `json:"paid_count"`
	OverdueAmount int64           `json:"overdue_amount"`
	DaysOverdue   int             `json:"days_overdue"`
	MissedCount   int             `json:"missed_count"`
}

// IsDelinquent reports whether the number of missed periods reached the
// given threshold. A non-positive threshold never flags.
func (c *Classification) IsDelinquent(threshold int) bool {
	return threshold > 0 && c.MissedCount >= threshold
}

// Reminder is emitted for an unpaid period falling due soon.
type Reminder struct {
	LoanID        string        `json:"loan_id"`
	CustomerName  string        `json:"customer_name"`
	CustomerPhone string        `json:"customer_phone"`
	Entry         ScheduleEntry `json:"entry"`
	DaysUntilDue  int           `json:"days_until_due"`
}
