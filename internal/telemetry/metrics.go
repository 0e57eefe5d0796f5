package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ScansTotal counts driver scans per interface and outcome.
	ScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "linkd",
			Name:      "scans_total",
			Help:      "Total number of driver scans issued",
		},
		[]string{"interface", "outcome"},
	)

	// ScanAPsSeen tracks how many access points the last scan merged in.
	ScanAPsSeen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "linkd",
			Name:      "scan_aps_visible",
			Help:      "Access points in the current merged scan view",
		},
		[]string{"interface"},
	)

	// ActivationsTotal counts finished activations by outcome.
	ActivationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "linkd",
			Name:      "activations_total",
			Help:      "Total number of finished device activations",
		},
		[]string{"interface", "outcome"},
	)

	// ActivationSeconds measures time from activate to DONE.
	ActivationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "linkd",
			Name:      "activation_seconds",
			Help:      "Duration of device activations",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		},
		[]string{"interface"},
	)

	// KeyPromptsTotal counts user key requests per interface.
	KeyPromptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "linkd",
			Name:      "key_prompts_total",
			Help:      "Total number of user key prompts emitted",
		},
		[]string{"interface"},
	)

	// SignalPercent exports the smoothed per-device signal strength.
	SignalPercent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "linkd",
			Name:      "signal_percent",
			Help:      "Smoothed wireless signal strength",
		},
		[]string{"interface"},
	)

	// ARPAnnouncesTotal counts gratuitous ARP announcements.
	ARPAnnouncesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "linkd",
			Name:      "arp_announce_total",
			Help:      "Total number of gratuitous ARP announcements sent",
		},
		[]string{"interface"},
	)
)

var registerOnce sync.Once

// InitMetrics registers all collectors with the default registry. Safe to
// call more than once.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			ScansTotal,
			ScanAPsSeen,
			ActivationsTotal,
			ActivationSeconds,
			KeyPromptsTotal,
			SignalPercent,
			ARPAnnouncesTotal,
		)
	})
}
