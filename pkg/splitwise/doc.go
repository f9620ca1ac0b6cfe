// Package splitwise is a thin client for the Splitwise OAuth 2.0 endpoints
// (authorize, token) and the two read endpoints the relay proxies
// (get_current_user, get_expenses).
package splitwise
