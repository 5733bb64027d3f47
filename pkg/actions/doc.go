// Package actions registers the tools the reasoning model may call and runs
// the calls of one turn concurrently.
//
// A dispatch always yields exactly one result per request, at the same
// position. Unknown tools, invalid arguments, errors, timeouts and panics are
// reported in that request's slot and never affect the other requests.
package actions
