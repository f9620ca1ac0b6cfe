// Package system holds process-wide plumbing shared by the relay packages:
// logger construction and the request-scoped logger stored in the gin context.
package system
