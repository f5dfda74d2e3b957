// ABOUTME: Shared turn runner used by both transports.
// ABOUTME: Owns the exactly-one-terminal-envelope invariant and session correlation.

package session

import (
	"context"

	"github.com/portico-dev/portico/internal/engine"
)

// RunTurn executes one chat turn against eng and forwards every envelope to
// emit in production order, terminated by exactly one done or error envelope.
// Engine progress envelopes pass through unchanged; the terminal envelope is
// synthesized here, carrying the corrected logical session id on success or
// the execution failure on error.
//
// RunTurn blocks for the duration of the turn. It never returns before the
// terminal envelope has been delivered.
func RunTurn(ctx context.Context, eng engine.Engine, req engine.TurnRequest, emit engine.EmitFunc) {
	correlator := NewCorrelator(req.SessionID)

	err := eng.ExecuteTurn(ctx, req, func(env engine.Envelope) {
		correlator.Observe(env)
		emit(env)
	})

	if err != nil {
		emit(engine.Failure(err.Error()))
		return
	}
	emit(engine.Done(correlator.SessionID()))
}
