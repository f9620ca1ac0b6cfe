// Package api implements the HTTP server (Gin-based) of the Splitwise relay:
// request logging and recovery, liveness and health endpoints, Prometheus
// metrics, and mounting of the relay controllers.
package api
