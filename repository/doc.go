// Package repository provides a generic repository abstraction built on Bun
// for lookups, pagination and dialect-aware insert-ignore.
package repository
