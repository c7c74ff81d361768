package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mmynk/loanledger/internal/models"
	"github.com/mmynk/loanledger/internal/storage"
)

const scrapeTimeout = 5 * time.Second

// PortfolioCollector reports loan book totals read from the store at scrape time.
type PortfolioCollector struct {
	store storage.Store

	loans       *prometheus.Desc
	principal   *prometheus.Desc
	outstanding *prometheus.Desc
	up          *prometheus.Desc
}

var _ prometheus.Collector = (*PortfolioCollector)(nil)

// NewPortfolioCollector creates a collector over store.
func NewPortfolioCollector(store storage.Store) *PortfolioCollector {
	return &PortfolioCollector{
		store: store,
		loans: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "portfolio", "loans"),
			"Loans in the store by status.",
			[]string{"status"}, nil,
		),
		principal: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "portfolio", "principal_minor"),
			"Sum of loan principals in minor currency units.",
			nil, nil,
		),
		outstanding: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "portfolio", "outstanding_minor"),
			"Sum of outstanding loan balances in minor currency units.",
			nil, nil,
		),
		up: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "portfolio", "up"),
			"Whether the last portfolio read succeeded.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *PortfolioCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.loans
	ch <- c.principal
	ch <- c.outstanding
	ch <- c.up
}

// Collect implements prometheus.Collector.
func (c *PortfolioCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), scrapeTimeout)
	defer cancel()

	var summary *models.PortfolioSummary
	err := c.store.RunInReadTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		summary, err = tx.PortfolioSummary(ctx)
		return err
	})
	if err != nil {
		slog.Warn("Portfolio scrape failed", "error", err)
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 0)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 1)
	ch <- prometheus.MustNewConstMetric(c.loans, prometheus.GaugeValue, float64(summary.DueLoans), string(models.LoanStatusDue))
	ch <- prometheus.MustNewConstMetric(c.loans, prometheus.GaugeValue, float64(summary.RepaidLoans), string(models.LoanStatusRepaid))
	ch <- prometheus.MustNewConstMetric(c.principal, prometheus.GaugeValue, float64(summary.TotalPrincipal))
	ch <- prometheus.MustNewConstMetric(c.outstanding, prometheus.GaugeValue, float64(summary.TotalOutstanding))
}
