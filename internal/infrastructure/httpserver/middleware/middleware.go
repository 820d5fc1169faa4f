package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/licitafacil/api/internal/core/ports"
)

// MiddlewareCollection holds all middleware instances
type MiddlewareCollection struct {
	Identity *IdentityMiddleware
	Quota    *QuotaMiddleware
	Logging  *LoggingMiddleware
	Metrics  *MetricsMiddleware
}

// NewMiddlewareCollection creates a new collection of all middleware
func NewMiddlewareCollection(
	quotaService ports.QuotaService,
	logger *logrus.Logger,
	jwtSecret string,
	trustProxyHeaders bool,
	requestsTotal *prometheus.CounterVec,
	requestDuration *prometheus.HistogramVec,
	quotaDecisions *prometheus.CounterVec,
	quotaStoreErrors prometheus.Counter,
) *MiddlewareCollection {
	return &MiddlewareCollection{
		Identity: NewIdentityMiddleware(jwtSecret, trustProxyHeaders, logger),
		Quota:    NewQuotaMiddleware(quotaService, logger, quotaDecisions, quotaStoreErrors),
		Logging:  NewLoggingMiddleware(logger),
		Metrics:  NewMetricsMiddleware(requestsTotal, requestDuration),
	}
}
