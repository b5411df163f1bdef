// Package api serves the HTTP surface: the service index, the health report
// and read-only listings over the seeded records.
package api
