// Package metrics exposes Prometheus instrumentation for loan origination and
// repayment allocation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "loanledger"

// Operation label values.
const (
	OperationCreateLoan = "create_loan"
	OperationRepayLoan  = "repay_loan"
)

// Repayment outcome label values.
const (
	OutcomeNoop    = "noop"
	OutcomePartial = "partial"
	OutcomeRepaid  = "repaid"
	OutcomeFailed  = "failed"
)

// Recorder records service events. A nil *Recorder is valid and records nothing.
type Recorder struct {
	loansCreated prometheus.Counter
	repayments   *prometheus.CounterVec
	applied      prometheus.Counter
	unapplied    prometheus.Counter
	duration     *prometheus.HistogramVec
}

// NewRecorder registers the service metrics with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		loansCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loans_created_total",
			Help:      "Loans originated with a full repayment schedule.",
		}),
		repayments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "repayments_total",
			Help:      "Repayment allocations by outcome.",
		}, []string{"outcome"}),
		applied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "repayment_applied_minor_total",
			Help:      "Minor currency units applied to scheduled repayments.",
		}),
		unapplied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "repayment_unapplied_minor_total",
			Help:      "Minor currency units tendered beyond the outstanding balance and discarded.",
		}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of loan operations including the store transaction.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

// LoanCreated counts one originated loan.
func (r *Recorder) LoanCreated() {
	if r == nil {
		return
	}
	r.loansCreated.Inc()
}

// RepaymentAllocated counts one committed allocation.
func (r *Recorder) RepaymentAllocated(outcome string, applied, unapplied int64) {
	if r == nil {
		return
	}
	r.repayments.WithLabelValues(outcome).Inc()
	r.applied.Add(float64(applied))
	r.unapplied.Add(float64(unapplied))
}

// RepaymentFailed counts one allocation that did not commit.
func (r *Recorder) RepaymentFailed() {
	if r == nil {
		return
	}
	r.repayments.WithLabelValues(OutcomeFailed).Inc()
}

// ObserveDuration records the time elapsed since start. Meant for defer.
func (r *Recorder) ObserveDuration(operation string, start time.Time) {
	if r == nil {
		return
	}
	r.duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
