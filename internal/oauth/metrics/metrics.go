package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// Metrics provides observability for the authorization server.
// Tracks protocol outcomes and critical path durations.
type Metrics struct {
	AuthorizationOutcomes *prometheus.CounterVec
	TokenOutcomes         *prometheus.CounterVec
	ConsentsAccepted      prometheus.Counter
	AccessTokenLookups    *prometheus.CounterVec
	AuthorizeDuration     prometheus.Histogram
	TokenDuration         *prometheus.HistogramVec
	UserinfoDuration      prometheus.Histogram
}

// New registers all authorization server metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AuthorizationOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "idp_authorization_requests_total",
			Help: "Authorization info requests by outcome (silent, pending, anonymous, or an error code)",
		}, []string{"outcome"}),
		TokenOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "idp_token_requests_total",
			Help: "Token endpoint requests by grant type and outcome (issued or an OAuth error code)",
		}, []string{"grant_type", "outcome"}),
		ConsentsAccepted: f.NewCounter(prometheus.CounterOpts{
			Name: "idp_consents_accepted_total",
			Help: "Explicit consent approvals that issued a code",
		}),
		AccessTokenLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "idp_access_token_lookups_total",
			Help: "Bearer token lookups by result (valid or invalid)",
		}, []string{"result"}),
		AuthorizeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "idp_authorize_duration_seconds",
			Help:    "Duration of authorization info requests",
			Buckets: durationBuckets,
		}),
		TokenDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "idp_token_duration_seconds",
			Help:    "Duration of token endpoint requests (includes claim lookups and signing)",
			Buckets: durationBuckets,
		}, []string{"grant_type"}),
		UserinfoDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "idp_userinfo_duration_seconds",
			Help:    "Duration of userinfo requests",
			Buckets: durationBuckets,
		}),
	}
}

func (m *Metrics) IncAuthorization(outcome string) {
	m.AuthorizationOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncToken(grantType, outcome string) {
	m.TokenOutcomes.WithLabelValues(grantType, outcome).Inc()
}

func (m *Metrics) IncConsentAccepted() {
	m.ConsentsAccepted.Inc()
}

func (m *Metrics) IncAccessTokenLookup(valid bool) {
	result := "invalid"
	if valid {
		result = "valid"
	}
	m.AccessTokenLookups.WithLabelValues(result).Inc()
}

// ObserveAuthorize records the duration of an authorization info request.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveAuthorize(start time.Time) {
	m.AuthorizeDuration.Observe(time.Since(start).Seconds())
}

// ObserveToken records the duration of a token request.
func (m *Metrics) ObserveToken(grantType string, start time.Time) {
	m.TokenDuration.WithLabelValues(grantType).Observe(time.Since(start).Seconds())
}

// ObserveUserinfo records the duration of a userinfo request.
func (m *Metrics) ObserveUserinfo(start time.Time) {
	m.UserinfoDuration.Observe(time.Since(start).Seconds())
}
