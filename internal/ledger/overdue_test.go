package ledger

import (
	"testing"

	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_ThirtyDaysPastUnpaidPeriod(t *testing.T) {
	l := newTestLedger(t, weeklyRequest())
	pay(t, l, 1000, 3)
	schedule := GenerateSchedule(l.Plan())
	period3, ok := schedule.Entry(3)
	require.True(t, ok)
	asOf := period3.DueDate.AddDate(0, 0, 30)

	c := Classify(l, schedule, asOf)

	require.NotEmpty(t, c.Overdue)
	assert.Equal(t, 3, c.Overdue[0].Index)
	assert.Equal(t, 30, c.DaysOverdue)
	// periods 3..7 fall before Feb 27, 8 and 9 are still ahead
	assert.Equal(t, 5, c.MissedCount)
	assert.Equal(t, int64(5000), c.OverdueAmount)
	assert.Len(t, c.Upcoming, 2)
	assert.Equal(t, 3, c.PaidCount)
	assert.True(t, c.IsDelinquent(2))
	assert.False(t, c.IsDelinquent(6))
	assert.False(t, c.IsDelinquent(0))
}

func TestClassify_DueTodayIsUpcoming(t *testing.T) {
	l := newTestLedger(t, weeklyRequest())
	schedule := GenerateSchedule(l.Plan())

	c := Classify(l, schedule, date(2024, 1, 7))

	assert.Empty(t, c.Overdue)
	assert.Len(t, c.Upcoming, 10)
	assert.Equal(t, 0, c.DaysOverdue)
	assert.Equal(t, int64(0), c.OverdueAmount)
}

func TestClassify_ClosedLoansHaveNothingDue(t *testing.T) {
	paidOff := newTestLedger(t, weeklyRequest())
	pay(t, paidOff, 1000, 10)

	foreclosed := newTestLedger(t, amortizedRequest())
	quote, err := ForecloseQuote(foreclosed, decimal.NewFromInt(2))
	require.NoError(t, err)
	_, _, err = foreclosed.CommitForeclosure(quote, date(2024, 3, 1), domain.PaymentModeCash, "")
	require.NoError(t, err)

	for name, l := range map[string]*Ledger{"settled": paidOff, "foreclosed": foreclosed} {
		t.Run(name, func(t *testing.T) {
			c := Classify(l, GenerateSchedule(l.Plan()), date(2030, 1, 1))
			assert.Empty(t, c.Overdue)
			assert.Empty(t, c.Upcoming)
			assert.Equal(t, 0, c.MissedCount)
		})
	}
}

func TestClassify_InterestOnlyUsesMaterialisedPeriods(t *testing.T) {
	l := newTestLedger(t, interestOnlyRequest())
	pay(t, l, 3000, 2)
	schedule := GenerateSchedule(l.Plan())

	c := Classify(l, schedule, date(2024, 4, 20))

	assert.Equal(t, 2, c.PaidCount)
	require.Len(t, c.Overdue, 2)
	assert.Equal(t, date(2024, 3, 15), c.Overdue[0].DueDate)
	assert.Equal(t, 36, c.DaysOverdue)
	assert.Equal(t, int64(6000), c.OverdueAmount)
	assert.Empty(t, c.Upcoming)

	onDueDate := Classify(l, schedule, date(2024, 4, 15))
	assert.Len(t, onDueDate.Overdue, 1)
	assert.Len(t, onDueDate.Upcoming, 1)
}
