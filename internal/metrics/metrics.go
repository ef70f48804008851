package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "budgetauth"

var (
	TokensIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Total number of tokens issued, labeled by purpose.",
		},
		[]string{"purpose"},
	)

	TokenVerifyFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_verify_failures_total",
			Help:      "Total number of rejected tokens, labeled by purpose.",
		},
		[]string{"purpose"},
	)

	AuthContextsBuiltTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_contexts_built_total",
			Help:      "Total number of request authorization contexts, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	AuthContextBuildSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "auth_context_build_seconds",
			Help:      "Time spent building a request authorization context (seconds).",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	GuardDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_denials_total",
			Help:      "Total number of guard rejections, labeled by code.",
		},
		[]string{"code"},
	)

	TokensRevokedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_revoked_total",
			Help:      "Total number of revocations written, labeled by reason.",
		},
		[]string{"reason"},
	)

	RevocationStoreDegradedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revocation_store_degraded_total",
			Help:      "Total number of revocation store operations that failed, labeled by operation.",
		},
		[]string{"op"},
	)

	RevocationCleanupDeletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revocation_cleanup_deleted_total",
			Help:      "Total number of stale revocation entries removed by cleanup.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		TokensIssuedTotal,
		TokenVerifyFailuresTotal,
		AuthContextsBuiltTotal,
		AuthContextBuildSeconds,
		GuardDenialsTotal,
		TokensRevokedTotal,
		RevocationStoreDegradedTotal,
		RevocationCleanupDeletedTotal,
	)
}
