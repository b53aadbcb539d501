// internal/monitor/metrics.go
package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/coffeye/xpod/internal/opc"
)

// Metrics exports one device's handshake and reading activity.
// It implements opc.Observer and is safe for concurrent use.
type Metrics struct {
	device string
	reg    *prometheus.Registry

	handshakes      *prometheus.CounterVec
	probes          prometheus.Histogram
	busy            prometheus.Counter
	desyncs         prometheus.Counter
	handshakeWait   prometheus.Histogram
	readings        prometheus.Counter
	degraded        prometheus.Counter
	pm              *prometheus.GaugeVec
	flowRate        prometheus.Gauge
	samplePeriod    prometheus.Gauge
	bins            *prometheus.GaugeVec
	publishFailures *prometheus.CounterVec
}

// New registers the collectors on a private registry.
func New(device string) *Metrics {
	constLabels := prometheus.Labels{"device_id": device}

	m := &Metrics{
		device: device,
		reg:    prometheus.NewRegistry(),

		handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "opc_handshakes_total",
			Help:        "Completed link handshakes by command and result.",
			ConstLabels: constLabels,
		}, []string{"command", "result"}),

		probes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "opc_handshake_probes",
			Help:        "Command probes sent per handshake.",
			ConstLabels: constLabels,
			Buckets:     []float64{1, 2, 5, 10, 20, 50, 100, 200, 400},
		}),

		busy: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "opc_handshake_busy_rounds_total",
			Help:        "Probing rounds that ended with the peripheral busy.",
			ConstLabels: constLabels,
		}),

		desyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "opc_handshake_desyncs_total",
			Help:        "Probing rounds that ended with an unexpected status byte.",
			ConstLabels: constLabels,
		}),

		handshakeWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "opc_handshake_wait_seconds",
			Help:        "Delay spent inside a handshake.",
			ConstLabels: constLabels,
			Buckets:     []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 20, 40},
		}),

		readings: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "opc_readings_total",
			Help:        "Histogram frames decoded.",
			ConstLabels: constLabels,
		}),

		degraded: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "opc_readings_degraded_total",
			Help:        "Readings whose bins could not be converted.",
			ConstLabels: constLabels,
		}),

		pm: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "opc_pm_ugm3",
			Help:        "Latest particulate mass concentration.",
			ConstLabels: constLabels,
		}, []string{"size"}),

		flowRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "opc_flow_rate_ml_per_second",
			Help:        "Latest sample flow rate.",
			ConstLabels: constLabels,
		}),

		samplePeriod: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "opc_sample_period_seconds",
			Help:        "Latest sampling period.",
			ConstLabels: constLabels,
		}),

		bins: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "opc_bin",
			Help:        "Latest derived bin value in the configured units.",
			ConstLabels: constLabels,
		}, []string{"bin"}),

		publishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "opc_publish_failures_total",
			Help:        "Failed publications by sink.",
			ConstLabels: constLabels,
		}, []string{"sink"}),
	}

	m.reg.MustRegister(
		m.handshakes,
		m.probes,
		m.busy,
		m.desyncs,
		m.handshakeWait,
		m.readings,
		m.degraded,
		m.pm,
		m.flowRate,
		m.samplePeriod,
		m.bins,
		m.publishFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry exposes the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// ObserveHandshake implements opc.Observer.
func (m *Metrics) ObserveHandshake(s opc.HandshakeStats) {
	m.handshakes.WithLabelValues(commandName(s.Command), handshakeResult(s.Err)).Inc()
	m.probes.Observe(float64(s.Probes))
	m.busy.Add(float64(s.Busy))
	m.desyncs.Add(float64(s.Desyncs))
	m.handshakeWait.Observe(s.Waited.Seconds())
}

// ObserveReading implements opc.Observer.
func (m *Metrics) ObserveReading(r opc.Reading) {
	m.readings.Inc()
	if r.Degraded {
		m.degraded.Inc()
	}

	m.pm.WithLabelValues("pm1").Set(r.PM1)
	m.pm.WithLabelValues("pm2.5").Set(r.PM25)
	m.pm.WithLabelValues("pm10").Set(r.PM10)
	m.flowRate.Set(r.FlowRate)
	m.samplePeriod.Set(r.SamplePeriod)

	for i, v := range r.Bins {
		m.bins.WithLabelValues(fmt.Sprint(i)).Set(v)
	}
}

// ObservePublish counts a failed publication on the named sink.
func (m *Metrics) ObservePublish(sink string, err error) {
	if err != nil {
		m.publishFailures.WithLabelValues(sink).Inc()
	}
}

func commandName(cmd byte) string {
	switch cmd {
	case opc.CmdPower:
		return "power"
	case opc.CmdHistogram:
		return "histogram"
	default:
		return fmt.Sprintf("0x%02x", cmd)
	}
}

func handshakeResult(err error) string {
	switch {
	case err == nil:
		return "ready"
	case errors.Is(err, opc.ErrHandshakeTimeout):
		return "timeout"
	default:
		return "bus_error"
	}
}

// Handler serves /metrics and /health.
func (m *Metrics) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// Serve runs the metrics server until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, listen string, log logrus.FieldLogger) error {
	srv := &http.Server{
		Addr:              listen,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithField("listen", listen).Info("metrics server started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("monitor: %w", err)
	}
	return nil
}
