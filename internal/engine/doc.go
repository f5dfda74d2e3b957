// Package engine defines the contract shared by the chat backends and the
// selector that binds the process to exactly one of them.
//
// # Contract
//
// Both concrete engines (claude, codex) stream a turn as a sequence of opaque
// progress envelopes. The transports never interpret the payloads; the only
// structure they rely on is the envelope kind and, in terminal envelopes, the
// resolved session id. The exactly-one-terminal guarantee is owned by
// session.RunTurn, not by the engines themselves.
//
// # Selection
//
// The Selector probes engines in a fixed priority order at first use.
// Availability probes are idempotent and side-effect free (a PATH lookup).
// Once an engine is chosen it stays chosen: a backend that dies mid-process
// surfaces through per-turn execution errors, not through re-selection.
package engine
