// Package orchestrator runs one conversation session as a finite-state
// machine.
//
// The Engine owns the session State. Each non-terminal Status has a handler
// that talks to the injected collaborators (reasoning agent, memory,
// dispatcher, client, user registry) and mutates the State; Route then picks
// the next Status from a read-only Snapshot of it:
//
//	Initialize -> SETUP | THINKING
//	SETUP    -> SETUP | THINKING | END | ERROR
//	THINKING -> ACTION | WAITING | ERROR
//	ACTION   -> THINKING | WAITING | ERROR
//	WAITING  -> THINKING | END | ERROR
//
// END and ERROR are terminal. Any handler error is recorded as the session
// fault and routes to ERROR; there are no retries. A cancelled context ends
// the session through END at the next state boundary.
package orchestrator
