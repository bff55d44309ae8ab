package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "loan_ledger"

// LoansCreated counts disbursed loans by kind.
var LoansCreated = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "loans",
	Name:      "created_total",
	Help:      "Total loans created, by kind.",
}, []string{"kind"})

// RecordsAppended counts ledger records by record kind and payment mode.
var RecordsAppended = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "records_appended_total",
	Help:      "Total payment, settlement and foreclosure records appended.",
}, []string{"kind", "mode"})

// AmountCollected sums collected minor units by record kind.
var AmountCollected = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "amount_collected_minor_total",
	Help:      "Total amount collected in minor currency units.",
}, []string{"kind"})

var RecordsUndone = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "records_undone_total",
	Help:      "Total payments removed by undo.",
})

// Rejections counts refused operations by business error code.
var Rejections = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "rejections_total",
	Help:      "Total rejected ledger operations, by operation and error code.",
}, []string{"operation", "code"})

var OverdueLoans = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "sweep",
	Name:      "overdue_loans",
	Help:      "Loans with at least one overdue period at the last sweep.",
})

var DelinquentLoans = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "sweep",
	Name:      "delinquent_loans",
	Help:      "Loans at or above the delinquency threshold at the last sweep.",
})

var OverdueAmount = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "sweep",
	Name:      "overdue_amount_minor",
	Help:      "Sum of overdue period amounts at the last sweep, in minor units.",
})

var LoansDefaulted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "sweep",
	Name:      "loans_defaulted_total",
	Help:      "Total loans marked defaulted, manually or by the sweep.",
})

var RemindersSent = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "reminders",
	Name:      "sent_total",
	Help:      "Total due-date reminders handed to the notifier.",
})

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
