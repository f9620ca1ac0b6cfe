package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// API endpoint metrics
	APIEndpointRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "splitwise_relay_api_requests_total",
		Help: "Total number of requests handled per relay endpoint",
	}, []string{"endpoint"})
	APIEndpointDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "splitwise_relay_api_request_duration_seconds",
		Help:    "Latency of relay endpoint handlers",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
	APIEndpointErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "splitwise_relay_api_errors_total",
		Help: "Total number of relay responses with status >= 400",
	}, []string{"endpoint", "status"})

	// OAuth handshake metrics
	StateVerifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "splitwise_relay_state_verifications_total",
		Help: "State token verifications at the OAuth callback grouped by result",
	}, []string{"result"})
	TokenExchanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "splitwise_relay_token_exchanges_total",
		Help: "Authorization code exchanges against the upstream token endpoint",
	}, []string{"result"})

	// Upstream call metrics. status is the HTTP status code or "error" for
	// transport failures.
	UpstreamRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "splitwise_relay_upstream_requests_total",
		Help: "Requests issued to the Splitwise API",
	}, []string{"endpoint", "status"})
	UpstreamDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "splitwise_relay_upstream_request_duration_seconds",
		Help:    "Latency of requests issued to the Splitwise API",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)

func init() {
	prometheus.MustRegister(APIEndpointRequests)
	prometheus.MustRegister(APIEndpointDuration)
	prometheus.MustRegister(APIEndpointErrors)
	prometheus.MustRegister(StateVerifications)
	prometheus.MustRegister(TokenExchanges)
	prometheus.MustRegister(UpstreamRequests)
	prometheus.MustRegister(UpstreamDuration)
}

// MetricsHandler returns an http.Handler exposing Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
