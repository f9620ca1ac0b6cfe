// Package relay implements the Splitwise OAuth relay: it starts the
// authorization-code flow with a signed state, completes it at the callback,
// and proxies the current-user and expenses endpoints with the cached
// access token.
//
// The token pair is shared by every caller of the process. There is one
// upstream account per relay instance.
package relay
