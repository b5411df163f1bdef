// Package bootstrap prepares a database for the service: it applies the
// schema when no core table exists, seeds reference data when the fields
// table is empty and reports the resulting row counts.
package bootstrap
