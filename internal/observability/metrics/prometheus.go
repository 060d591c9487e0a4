//revive:disable:var-naming
//revive:disable:exported
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus exposes application metrics and can be injected into the log,
// service and storage layers. It implements dtm0log.Metrics,
// service.Metrics and pebblestore.MetricsHook through method set
// compatibility, without importing those packages.
type Prometheus struct {
	logUpdateDuration  *prometheus.HistogramVec
	logPruneDuration   *prometheus.HistogramVec
	logPrunedTotal     *prometheus.CounterVec
	logFindTotal       *prometheus.CounterVec
	logOutOfOrderTotal *prometheus.CounterVec
	logRecords         *prometheus.GaugeVec
	journalOpDuration  *prometheus.HistogramVec
	journalPrunedTotal *prometheus.CounterVec
	journalPrunerRuns  *prometheus.CounterVec
	storeReadDuration  *prometheus.HistogramVec
	storeReadBytes     *prometheus.HistogramVec
	storeCommitDur     *prometheus.HistogramVec
	storeCommitOps     *prometheus.HistogramVec
	storeCommitBytes   *prometheus.HistogramVec
}

func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Prometheus{
		logUpdateDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "dtm0lab",
				Subsystem: "log",
				Name:      "update_duration_seconds",
				Help:      "Duration of DTM0 log updates under the log lock, by backend and result.",
				Buckets:   []float64{0.00001, 0.000025, 0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01},
			},
			[]string{"backend", "result"},
		),
		logPruneDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "dtm0lab",
				Subsystem: "log",
				Name:      "prune_duration_seconds",
				Help:      "Duration of DTM0 log prunes under the log lock, by backend and result.",
				Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			},
			[]string{"backend", "result"},
		),
		logPrunedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dtm0lab",
				Subsystem: "log",
				Name:      "pruned_records_total",
				Help:      "Records removed from the DTM0 log by prune.",
			},
			[]string{"backend"},
		),
		logFindTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dtm0lab",
				Subsystem: "log",
				Name:      "find_total",
				Help:      "DTM0 log lookups by outcome (hit, miss).",
			},
			[]string{"backend", "result"},
		),
		logOutOfOrderTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dtm0lab",
				Subsystem: "log",
				Name:      "out_of_order_inserts_total",
				Help:      "Inserts whose transaction ID sorts before the current tail.",
			},
			[]string{"backend"},
		),
		logRecords: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "dtm0lab",
				Subsystem: "log",
				Name:      "records",
				Help:      "Number of records currently held by the DTM0 log.",
			},
			[]string{"backend"},
		),
		journalOpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "dtm0lab",
				Subsystem: "journal",
				Name:      "op_duration_seconds",
				Help:      "End-to-end duration of journal operations including the segment commit.",
				Buckets:   []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.02, 0.05, 0.1, 0.5},
			},
			[]string{"node_id", "op", "result"},
		),
		journalPrunedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dtm0lab",
				Subsystem: "journal",
				Name:      "pruned_records_total",
				Help:      "Records removed by journal prune operations.",
			},
			[]string{"node_id"},
		),
		journalPrunerRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dtm0lab",
				Subsystem: "journal",
				Name:      "pruner_runs_total",
				Help:      "Background pruner iterations by result (pruned, idle, error).",
			},
			[]string{"node_id", "result"},
		),
		storeReadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "dtm0lab",
				Subsystem: "store",
				Name:      "read_duration_seconds",
				Help:      "Duration of point reads from the segment store.",
				Buckets:   []float64{0.000005, 0.00001, 0.000025, 0.00005, 0.0001, 0.00025, 0.0005, 0.001},
			},
			nil,
		),
		storeReadBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "dtm0lab",
				Subsystem: "store",
				Name:      "read_bytes",
				Help:      "Value size of point reads from the segment store.",
				Buckets:   []float64{16, 64, 256, 1024, 4096, 16384, 65536, 262144},
			},
			nil,
		),
		storeCommitDur: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "dtm0lab",
				Subsystem: "store",
				Name:      "commit_duration_seconds",
				Help:      "Duration of segment batch commits, including fsync when enabled.",
				Buckets:   []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.02, 0.05},
			},
			nil,
		),
		storeCommitOps: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "dtm0lab",
				Subsystem: "store",
				Name:      "commit_ops",
				Help:      "Number of key operations in a segment batch commit.",
				Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128, 256},
			},
			nil,
		),
		storeCommitBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "dtm0lab",
				Subsystem: "store",
				Name:      "commit_bytes",
				Help:      "Encoded size of a segment batch commit.",
				Buckets:   []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576},
			},
			nil,
		),
	}

	if err := m.register(reg); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Prometheus) register(reg prometheus.Registerer) error {
	histograms := []struct {
		c    **prometheus.HistogramVec
		name string
	}{
		{&m.logUpdateDuration, "log update duration histogram"},
		{&m.logPruneDuration, "log prune duration histogram"},
		{&m.journalOpDuration, "journal op duration histogram"},
		{&m.storeReadDuration, "store read duration histogram"},
		{&m.storeReadBytes, "store read bytes histogram"},
		{&m.storeCommitDur, "store commit duration histogram"},
		{&m.storeCommitOps, "store commit ops histogram"},
		{&m.storeCommitBytes, "store commit bytes histogram"},
	}
	for _, h := range histograms {
		if err := registerOrReuseHistogramVec(reg, h.c); err != nil {
			return fmt.Errorf("register %s: %w", h.name, err)
		}
	}

	counters := []struct {
		c    **prometheus.CounterVec
		name string
	}{
		{&m.logPrunedTotal, "log pruned counter"},
		{&m.logFindTotal, "log find counter"},
		{&m.logOutOfOrderTotal, "log out-of-order counter"},
		{&m.journalPrunedTotal, "journal pruned counter"},
		{&m.journalPrunerRuns, "journal pruner runs counter"},
	}
	for _, c := range counters {
		if err := registerOrReuseCounterVec(reg, c.c); err != nil {
			return fmt.Errorf("register %s: %w", c.name, err)
		}
	}

	if err := registerOrReuseGaugeVec(reg, &m.logRecords); err != nil {
		return fmt.Errorf("register log records gauge: %w", err)
	}
	return nil
}

func registerOrReuseHistogramVec(reg prometheus.Registerer, c **prometheus.HistogramVec) error {
	if err := reg.Register(*c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return err
		}
		existing, ok := already.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return fmt.Errorf("collector type mismatch for %T", *c)
		}
		*c = existing
	}
	return nil
}

func registerOrReuseCounterVec(reg prometheus.Registerer, c **prometheus.CounterVec) error {
	if err := reg.Register(*c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return err
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return fmt.Errorf("collector type mismatch for %T", *c)
		}
		*c = existing
	}
	return nil
}

func registerOrReuseGaugeVec(reg prometheus.Registerer, c **prometheus.GaugeVec) error {
	if err := reg.Register(*c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return err
		}
		existing, ok := already.ExistingCollector.(*prometheus.GaugeVec)
		if !ok {
			return fmt.Errorf("collector type mismatch for %T", *c)
		}
		*c = existing
	}
	return nil
}

func (m *Prometheus) ObserveDTM0LogUpdate(backend, result string, d time.Duration) {
	m.logUpdateDuration.WithLabelValues(backend, result).Observe(d.Seconds())
}

func (m *Prometheus) ObserveDTM0LogPrune(backend, result string, removed int, d time.Duration) {
	m.logPruneDuration.WithLabelValues(backend, result).Observe(d.Seconds())
	if removed > 0 {
		m.logPrunedTotal.WithLabelValues(backend).Add(float64(removed))
	}
}

func (m *Prometheus) IncDTM0LogFind(backend string, found bool) {
	result := "miss"
	if found {
		result = "hit"
	}
	m.logFindTotal.WithLabelValues(backend, result).Inc()
}

func (m *Prometheus) IncDTM0LogOutOfOrder(backend string) {
	m.logOutOfOrderTotal.WithLabelValues(backend).Inc()
}

func (m *Prometheus) SetDTM0LogRecords(backend string, n int) {
	if n < 0 {
		n = 0
	}
	m.logRecords.WithLabelValues(backend).Set(float64(n))
}

func (m *Prometheus) ObserveJournalOp(nodeID, op, result string, d time.Duration) {
	m.journalOpDuration.WithLabelValues(nodeID, op, result).Observe(d.Seconds())
}

func (m *Prometheus) AddJournalPruned(nodeID string, n int) {
	if n <= 0 {
		return
	}
	m.journalPrunedTotal.WithLabelValues(nodeID).Add(float64(n))
}

func (m *Prometheus) IncJournalPrunerRun(nodeID, result string) {
	m.journalPrunerRuns.WithLabelValues(nodeID, result).Inc()
}

func (m *Prometheus) ObserveStoreRead(d time.Duration, bytes int) {
	m.storeReadDuration.WithLabelValues().Observe(d.Seconds())
	if bytes < 0 {
		bytes = 0
	}
	m.storeReadBytes.WithLabelValues().Observe(float64(bytes))
}

func (m *Prometheus) ObserveStoreCommit(d time.Duration, ops uint32, bytes int) {
	m.storeCommitDur.WithLabelValues().Observe(d.Seconds())
	m.storeCommitOps.WithLabelValues().Observe(float64(ops))
	if bytes < 0 {
		bytes = 0
	}
	m.storeCommitBytes.WithLabelValues().Observe(float64(bytes))
}
