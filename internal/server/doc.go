// Package server exposes the optional HTTP status surface: a health check,
// a JSON snapshot of pipeline statistics and the Prometheus metrics endpoint.
package server
