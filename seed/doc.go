// Package seed holds the reference catalog of fields, lecturers and
// qualification rules, and inserts it idempotently.
package seed
