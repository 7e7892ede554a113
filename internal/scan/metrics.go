package scan

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taproot_scans_total",
		Help: "Scans finished, by terminal status.",
	}, []string{"status"})

	scansActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "taproot_scans_active",
		Help: "Scans currently running.",
	})

	scanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "taproot_scan_duration_seconds",
		Help:    "Wall time of finished scans.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	devicesDiscovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taproot_scan_devices_discovered_total",
		Help: "Devices upserted by scans.",
	})

	credentialAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taproot_scan_credential_attempts_total",
		Help: "SSH credential attempts, by outcome.",
	}, []string{"outcome"})
)
