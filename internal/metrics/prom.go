// README: Prometheus collectors for dispatch, notification, claim and sweep outcomes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Dispatch records dispatch events. A nil *Dispatch is a valid no-op sink.
type Dispatch struct {
	outcomes *prometheus.CounterVec
	sends    *prometheus.CounterVec
	claims   *prometheus.CounterVec
	sweeps   *prometheus.CounterVec
	ranking  prometheus.Histogram
}

// NewDispatch registers dispatch metrics on reg. If reg is nil the default
// registerer is used; already registered collectors are reused.
func NewDispatch(reg prometheus.Registerer) (*Dispatch, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_attempts_total",
		Help: "Dispatch attempts by outcome",
	}, []string{"outcome"})
	sends := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_notifications_total",
		Help: "Driver offer notifications by result",
	}, []string{"result"})
	claims := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_claims_total",
		Help: "Assignment claims by result",
	}, []string{"result"})
	sweeps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_sweep_transitions_total",
		Help: "Assignments moved by the expiry sweep, by target status",
	}, []string{"status"})
	ranking := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_ranking_seconds",
		Help:    "Time spent ranking candidates for one attempt",
		Buckets: prometheus.DefBuckets,
	})

	var err error
	if outcomes, err = register(reg, outcomes); err != nil {
		return nil, err
	}
	if sends, err = register(reg, sends); err != nil {
		return nil, err
	}
	if claims, err = register(reg, claims); err != nil {
		return nil, err
	}
	if sweeps, err = register(reg, sweeps); err != nil {
		return nil, err
	}
	if ranking, err = register(reg, ranking); err != nil {
		return nil, err
	}
	return &Dispatch{outcomes: outcomes, sends: sends, claims: claims, sweeps: sweeps, ranking: ranking}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (d *Dispatch) Outcome(outcome string) {
	if d == nil {
		return
	}
	d.outcomes.WithLabelValues(outcome).Inc()
}

func (d *Dispatch) Send(ok bool) {
	if d == nil {
		return
	}
	result := "failed"
	if ok {
		result = "delivered"
	}
	d.sends.WithLabelValues(result).Inc()
}

func (d *Dispatch) Claim(result string) {
	if d == nil {
		return
	}
	d.claims.WithLabelValues(result).Inc()
}

func (d *Dispatch) Swept(status string) {
	if d == nil {
		return
	}
	d.sweeps.WithLabelValues(status).Inc()
}

func (d *Dispatch) Ranked(elapsed time.Duration) {
	if d == nil {
		return
	}
	d.ranking.Observe(elapsed.Seconds())
}
