// Package schema holds the records that cross package boundaries inside a
// session: what the client sensed, what the reasoning model answered, the
// actions it requested and their results.
package schema
