// Package metrics collects Prometheus counters for the identity core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is the metrics surface used by the services. A no-op
// implementation backs the tests.
type Recorder interface {
	RecordLogin(result string)
	RecordRegistration()
	RecordTokenRotation()
	RecordOAuthLogin(provider string)
}

// Login result labels.
const (
	LoginSuccess = "success"
	LoginFailure = "failure"
)

// Collector implements Recorder on Prometheus counters.
type Collector struct {
	logins        *prometheus.CounterVec
	registrations prometheus.Counter
	rotations     prometheus.Counter
	oauthLogins   *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todoapi_logins_total",
			Help: "Local login attempts by result.",
		}, []string{"result"}),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "todoapi_registrations_total",
			Help: "Local account registrations.",
		}),
		rotations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "todoapi_token_rotations_total",
			Help: "Successful refresh token rotations.",
		}),
		oauthLogins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todoapi_oauth_logins_total",
			Help: "Federated logins by provider.",
		}, []string{"provider"}),
	}
	reg.MustRegister(c.logins, c.registrations, c.rotations, c.oauthLogins)
	return c
}

func (c *Collector) RecordLogin(result string) { c.logins.WithLabelValues(result).Inc() }
func (c *Collector) RecordRegistration()       { c.registrations.Inc() }
func (c *Collector) RecordTokenRotation()      { c.rotations.Inc() }
func (c *Collector) RecordOAuthLogin(provider string) {
	c.oauthLogins.WithLabelValues(provider).Inc()
}

// Nop discards all measurements.
type Nop struct{}

func (Nop) RecordLogin(string)      {}
func (Nop) RecordRegistration()     {}
func (Nop) RecordTokenRotation()    {}
func (Nop) RecordOAuthLogin(string) {}
