// Package model declares the Bun models of the assignment record schema.
package model
