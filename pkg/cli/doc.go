// Package cli builds the splitwise-relay command tree: the HTTP server and
// small helpers to sign and verify OAuth state tokens offline.
package cli
