// SPDX-License-Identifier: MPL-2.0

// Package metrics records wrapped runs as Prometheus metrics and writes them
// in the node-exporter textfile format.
//
// Each wrapper process performs one run, so the metrics describe the last
// run of a job: a textfile collector picks the file up after every run.
package metrics

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/invowk/scriptwrap/internal/exitguard"
	"github.com/invowk/scriptwrap/pkg/types"
)

const namespace = "scriptwrap"

// Recorder implements runtime.Observer. It is safe for concurrent use.
type Recorder struct {
	path     string
	logger   *log.Logger
	registry *prometheus.Registry

	events   *prometheus.CounterVec
	duration *prometheus.GaugeVec
	exitCode *prometheus.GaugeVec
	records  *prometheus.GaugeVec
	lastRun  *prometheus.GaugeVec
	job      string
	now      func() time.Time
}

// NewTextfile returns a Recorder that rewrites path after each observed run.
// An empty path records without writing. An empty job is reported as "default".
func NewTextfile(path, job string, logger *log.Logger) *Recorder {
	if job == "" {
		job = "default"
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	labels := []string{"job"}
	r := &Recorder{
		path:     path,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		job:      job,
		now:      time.Now,
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "run_events_total",
				Help:      "Wrapped runs by the way they ended",
			},
			[]string{"job", "event"},
		),
		duration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_duration_seconds",
				Help:      "Duration of the last run, cleanup included",
			},
			labels,
		),
		exitCode: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_exit_code",
				Help:      "Exit code requested by the last run",
			},
			labels,
		),
		records: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_records",
				Help:      "Channel records written by the last run",
			},
			labels,
		),
		lastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last run finished",
			},
			labels,
		),
	}
	r.registry.MustRegister(r.events, r.duration, r.exitCode, r.records, r.lastRun)
	return r
}

// Registry returns the registry holding the run metrics.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// ObserveRun records one finished run and writes the textfile. code is the
// exit code the run resolved to. Write failures are logged; they never change
// the outcome of the run.
func (r *Recorder) ObserveRun(ev exitguard.Event, code types.ExitCode, elapsed time.Duration, records int) {
	r.events.WithLabelValues(r.job, ev.Kind.String()).Inc()
	r.duration.WithLabelValues(r.job).Set(elapsed.Seconds())
	r.exitCode.WithLabelValues(r.job).Set(float64(code))
	r.records.WithLabelValues(r.job).Set(float64(records))
	r.lastRun.WithLabelValues(r.job).Set(float64(r.now().Unix()))

	if err := r.Write(); err != nil {
		r.logger.Warn("failed to write metrics", "path", r.path, "error", err)
	}
}

// Write writes the textfile. It is a no-op without a path.
func (r *Recorder) Write() error {
	if r.path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(r.path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
