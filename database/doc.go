// Package database provides the connection manager, the schema loader,
// catalog inspection, driver error classification and query hooks, all
// built on top of Bun.
package database
