package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// AuthVerdicts counts adjudicated request outcomes: admin, user, anonymous.
	AuthVerdicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "tewahedo", Name: "auth_verdicts_total", Help: "Number of adjudicated requests by verdict outcome."},
		[]string{"outcome"},
	)
	// AdminSelfHeals counts corrections of the default admin's persisted record.
	AdminSelfHeals = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "tewahedo", Name: "admin_self_heal_total", Help: "Times the default admin record was corrected to isAdmin=true during adjudication."},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "tewahedo", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "tewahedo", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(AuthVerdicts)
	reg.MustRegister(AdminSelfHeals)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}
