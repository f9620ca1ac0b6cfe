// Package metrics defines Prometheus metrics for the Splitwise relay,
// covering endpoint traffic, the OAuth state and code exchange handshake,
// and calls to the upstream API.
package metrics
