// Package state signs and verifies the short-lived anti-forgery token that is
// round-tripped through the Splitwise OAuth authorize redirect.
package state
