// Package metrics exposes Prometheus counters for the credential engine.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"grapevpn/keyhub/internal/model"
)

const namespace = "keyhub"

type Metrics struct {
	registry        *prometheus.Registry
	tokensIssued    *prometheus.CounterVec
	rateLimited     prometheus.Counter
	redemptions     *prometheus.CounterVec
	referralCredits prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		tokensIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Tokens created, by origin and keypair source.",
		}, []string{"origin", "key_source"}),
		rateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_rate_limited_total",
			Help:      "Token requests rejected by the daily limit.",
		}),
		redemptions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redemptions_total",
			Help:      "Redemption attempts, by outcome.",
		}, []string{"outcome"}),
		referralCredits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "referral_credits_total",
			Help:      "Referral edges credited with a reward batch.",
		}),
	}
}

func (m *Metrics) TokenIssued(origin model.TokenOrigin, source model.KeySource) {
	if m == nil {
		return
	}
	m.tokensIssued.WithLabelValues(string(origin), string(source)).Inc()
}

func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

// Redemption records one attempt; outcome is "redeemed" or a failure reason.
func (m *Metrics) Redemption(outcome string) {
	if m == nil {
		return
	}
	m.redemptions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ReferralCredited() {
	if m == nil {
		return
	}
	m.referralCredits.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
