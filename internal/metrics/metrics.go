package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	Scans               prometheus.Counter
	ScanFailures        prometheus.Counter
	MessagesScanned     prometheus.Counter
	InvoicesFound       prometheus.Counter
	AttachmentsArchived prometheus.Counter
	ArchiveFailures     prometheus.Counter
	FetchFailures       prometheus.Counter
	AlreadyProcessed    prometheus.Counter
	Rejections          *prometheus.CounterVec
	ScanDuration        prometheus.Histogram
	LedgerSize          prometheus.Gauge
}

// NewMetrics creates the scanner metrics and registers them on reg. A nil
// reg uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Scans: factory.NewCounter(prometheus.CounterOpts{
			Name: "invoice_scanner_scans_total",
			Help: "Total number of scan passes started",
		}),
		ScanFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "invoice_scanner_scan_failures_total",
			Help: "Total number of scan passes that ended with a fatal error",
		}),
		MessagesScanned: factory.NewCounter(prometheus.CounterOpts{
			Name: "invoice_scanner_messages_scanned_total",
			Help: "Total number of messages classified",
		}),
		InvoicesFound: factory.NewCounter(prometheus.CounterOpts{
			Name: "invoice_scanner_invoices_found_total",
			Help: "Total number of messages accepted as invoices",
		}),
		AttachmentsArchived: factory.NewCounter(prometheus.CounterOpts{
			Name: "invoice_scanner_attachments_archived_total",
			Help: "Total number of attachments stored or found already stored",
		}),
		ArchiveFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "invoice_scanner_archive_failures_total",
			Help: "Total number of attachments that could not be archived",
		}),
		FetchFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "invoice_scanner_fetch_failures_total",
			Help: "Total number of messages whose details could not be fetched",
		}),
		AlreadyProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "invoice_scanner_already_processed_total",
			Help: "Total number of candidates skipped because they were already decided",
		}),
		Rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "invoice_scanner_rejections_total",
			Help: "Rejected messages by reporting bucket",
		}, []string{"bucket"}),
		ScanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "invoice_scanner_scan_duration_seconds",
			Help:    "Time spent in one scan pass",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		LedgerSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "invoice_scanner_ledger_size",
			Help: "Number of message ids in the dedup ledger",
		}),
	}
}
