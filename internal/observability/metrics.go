package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	entryPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fitlog",
		Subsystem: "persistence",
		Name:      "last_entry_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent entry persisted to the store.",
	})
	entriesCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitlog",
		Subsystem: "api",
		Name:      "entries_created_total",
		Help:      "Entries created, labelled by entry type.",
	}, []string{"type"})
	dashboardCache = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitlog",
		Subsystem: "api",
		Name:      "dashboard_cache_requests_total",
		Help:      "Dashboard cache lookups, labelled by result.",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(entryPersistGauge, entriesCreated, dashboardCache)
}

// RecordEntryPersisted updates the persistence watermark gauge.
func RecordEntryPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	entryPersistGauge.Set(float64(ts.Unix()))
}

// RecordEntryCreated counts a successfully created entry.
func RecordEntryCreated(entryType string) {
	entriesCreated.WithLabelValues(entryType).Inc()
}

// RecordDashboardCache counts a dashboard cache hit or miss.
func RecordDashboardCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	dashboardCache.WithLabelValues(result).Inc()
}

// EntriesCreated exposes the created-entries counter for assertions.
func EntriesCreated() *prometheus.CounterVec { return entriesCreated }

// DashboardCache exposes the cache lookup counter for assertions.
func DashboardCache() *prometheus.CounterVec { return dashboardCache }
