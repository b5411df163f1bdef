// Package scholar is the root of the student-lecturer assignment record
// service. It exposes the generic read Service used by the HTTP layer;
// the database, seed, bootstrap and health packages do the rest.
package scholar
