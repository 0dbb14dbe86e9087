package observability

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/yungbote/nutrition-etl/internal/platform/logger"
)

const namespace = "nutrition_etl"

type Metrics struct {
	reg *prometheus.Registry

	stageRuns      *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	harmonized     prometheus.Counter
	converted      prometheus.Counter
	missingRule    *prometheus.CounterVec
	skippedLines   *prometheus.CounterVec
	qualityChecks  *prometheus.CounterVec
	qualityBlocked prometheus.Counter
	factsLoaded    prometheus.Counter
	factsDropped   prometheus.Counter
	productsLoaded prometheus.Counter
	apiRequests    *prometheus.CounterVec
	apiLatency     *prometheus.HistogramVec
	pgStats        *prometheus.GaugeVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Init builds the process-wide metrics once. Later calls return the same instance.
func Init() *Metrics {
	initOnce.Do(func() {
		instance = New()
	})
	return instance
}

// Current is nil until Init runs. All Metrics methods accept a nil receiver.
func Current() *Metrics {
	return instance
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		stageRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_runs_total",
			Help:      "Pipeline stage runs by stage and status.",
		}, []string{"stage", "status"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900, 1800},
		}, []string{"stage", "status"}),
		harmonized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_harmonized_total",
			Help:      "Records passed through the unit harmonizer.",
		}),
		converted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "values_converted_total",
			Help:      "Nutrient values rewritten by a conversion rule.",
		}),
		missingRule: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "missing_rule_total",
			Help:      "Values passed through unconverted for lack of a rule, by from->to pair.",
		}, []string{"rule"}),
		skippedLines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_input_total",
			Help:      "Malformed input lines or pages skipped, by stage.",
		}, []string{"stage"}),
		qualityChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quality_checks_total",
			Help:      "Quality checks evaluated by kind and result.",
		}, []string{"kind", "result"}),
		qualityBlocked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quality_rejected_total",
			Help:      "Batches blocked by the quality gate.",
		}),
		factsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "facts_loaded_total",
			Help:      "Fact rows upserted.",
		}),
		factsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "facts_dropped_total",
			Help:      "Fact rows dropped for an unresolved nutrient.",
		}),
		productsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "products_loaded_total",
			Help:      "Product rows upserted.",
		}),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "API requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "API request latency in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"method", "route"}),
		pgStats: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_pool",
			Help:      "Database pool statistics.",
		}, []string{"stat"}),
	}
	m.reg.MustRegister(
		m.stageRuns, m.stageDuration, m.harmonized, m.converted, m.missingRule,
		m.skippedLines, m.qualityChecks, m.qualityBlocked, m.factsLoaded,
		m.factsDropped, m.productsLoaded, m.apiRequests, m.apiLatency, m.pgStats,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// StartServer serves /metrics on addr until ctx is done.
func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) ObserveStage(stage, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if stage == "" {
		stage = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	m.stageRuns.WithLabelValues(stage, status).Inc()
	if dur > 0 {
		m.stageDuration.WithLabelValues(stage, status).Observe(dur.Seconds())
	}
}

func (m *Metrics) ObserveHarmonize(records, converted int, missing map[string]int) {
	if m == nil {
		return
	}
	m.harmonized.Add(float64(records))
	m.converted.Add(float64(converted))
	for rule, n := range missing {
		if n > 0 {
			m.missingRule.WithLabelValues(rule).Add(float64(n))
		}
	}
}

func (m *Metrics) AddSkipped(stage string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.skippedLines.WithLabelValues(stage).Add(float64(n))
}

func (m *Metrics) ObserveQualityCheck(kind string, success bool) {
	if m == nil {
		return
	}
	result := "pass"
	if !success {
		result = "fail"
	}
	m.qualityChecks.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) IncQualityRejected() {
	if m == nil {
		return
	}
	m.qualityBlocked.Inc()
}

func (m *Metrics) ObserveLoad(products, facts, dropped int) {
	if m == nil {
		return
	}
	m.productsLoaded.Add(float64(products))
	m.factsLoaded.Add(float64(facts))
	m.factsDropped.Add(float64(dropped))
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route).Observe(dur.Seconds())
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB, interval time.Duration) {
	if m == nil || db == nil {
		return
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: db stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.pgStats.WithLabelValues("open_connections").Set(float64(stats.OpenConnections))
				m.pgStats.WithLabelValues("in_use").Set(float64(stats.InUse))
				m.pgStats.WithLabelValues("idle").Set(float64(stats.Idle))
				m.pgStats.WithLabelValues("wait_count").Set(float64(stats.WaitCount))
				m.pgStats.WithLabelValues("wait_duration_seconds").Set(stats.WaitDuration.Seconds())
			}
		}
	}()
}
