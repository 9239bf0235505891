package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Recorder holds the cycle's gauges on a private registry. Because the
// monitor is a one-shot process there is no HTTP exporter; metrics are
// written as a node_exporter textfile instead.
type Recorder struct {
	registry *prometheus.Registry

	localHeight  prometheus.Gauge
	remoteHeight prometheus.Gauge
	heightDelta  prometheus.Gauge
	healthy      prometheus.Gauge
	coolingDown  prometheus.Gauge
	lastRun      prometheus.Gauge
	remediations prometheus.Counter
}

// NewRecorder creates a recorder with all metrics registered.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()

	r := &Recorder{
		registry: registry,
		localHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "syncvisor_local_height",
			Help: "Block height reported by the local daemon",
		}),
		remoteHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "syncvisor_remote_height",
			Help: "Block height observed at the remote explorer",
		}),
		heightDelta: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "syncvisor_height_delta",
			Help: "Remote height minus local height",
		}),
		healthy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "syncvisor_healthy",
			Help: "1 when the height delta is within the threshold",
		}),
		coolingDown: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "syncvisor_cooling_down",
			Help: "1 when a remediation grace window is open",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "syncvisor_last_run_timestamp_seconds",
			Help: "Unix time of the last completed evaluation cycle",
		}),
		remediations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "syncvisor_remediations_total",
			Help: "Remediations triggered by this run",
		}),
	}

	registry.MustRegister(
		r.localHeight,
		r.remoteHeight,
		r.heightDelta,
		r.healthy,
		r.coolingDown,
		r.lastRun,
		r.remediations,
	)
	return r
}

// SetHeights records both observed heights and their delta.
func (r *Recorder) SetHeights(local, remote int64) {
	r.localHeight.Set(float64(local))
	r.remoteHeight.Set(float64(remote))
	r.heightDelta.Set(float64(remote - local))
}

// SetHealthy records the cycle's verdict.
func (r *Recorder) SetHealthy(healthy bool) {
	r.healthy.Set(boolGauge(healthy))
}

// SetCoolingDown records whether a grace window is open.
func (r *Recorder) SetCoolingDown(cooling bool) {
	r.coolingDown.Set(boolGauge(cooling))
}

// IncRemediations counts a triggered remediation.
func (r *Recorder) IncRemediations() {
	r.remediations.Inc()
}

// SetLastRun records when the cycle completed.
func (r *Recorder) SetLastRun(unixSeconds int64) {
	r.lastRun.Set(float64(unixSeconds))
}

// WriteTextfile renders the registry in the Prometheus text format to path,
// atomically via a temp file rename, for the node_exporter textfile
// collector to pick up.
func (r *Recorder) WriteTextfile(path string) error {
	families, err := r.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".syncvisor-metrics-*")
	if err != nil {
		return fmt.Errorf("failed to create metrics temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	encoder := expfmt.NewEncoder(tmp, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		if err := encoder.Encode(family); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to encode metrics: %w", err)
		}
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
