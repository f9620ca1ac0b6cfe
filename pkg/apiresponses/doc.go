// Package apiresponses provides standardized HTTP response helpers
// (JSON errors, raw JSON relay, plain text) shared between the api and
// relay packages without import cycles.
package apiresponses
