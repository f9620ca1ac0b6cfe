// Package config loads the relay configuration from an optional YAML file
// and the process environment.
package config
