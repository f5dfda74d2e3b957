// ABOUTME: Probes the configured engines once and caches the first available one.
// ABOUTME: Selection is fixed for the life of the process; crashes surface per turn.

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// ProbeResult records the outcome of one availability probe.
type ProbeResult struct {
	Name      string
	Available bool
}

// UnavailableError is returned when no engine passed its availability probe.
// It carries every probe result so the caller can report actionable
// remediation (which binaries to install).
type UnavailableError struct {
	Probes []ProbeResult
}

func (e *UnavailableError) Error() string {
	names := make([]string, len(e.Probes))
	for i, p := range e.Probes {
		names[i] = p.Name
	}
	return fmt.Sprintf("no chat engine available (probed: %s)", strings.Join(names, ", "))
}

// Selector picks exactly one engine at first use and caches the choice for
// the process lifetime. A later engine failure is reported through the
// per-turn error path, never by re-selection.
type Selector struct {
	engines []Engine
	logger  *slog.Logger

	once     sync.Once
	selected Engine
	err      error
}

// NewSelector creates a selector over engines in priority order.
func NewSelector(logger *slog.Logger, engines ...Engine) *Selector {
	return &Selector{engines: engines, logger: logger}
}

// Select probes each engine in priority order and returns the first available
// one. The probe runs at most once; subsequent calls return the cached result.
func (s *Selector) Select(ctx context.Context) (Engine, error) {
	s.once.Do(func() {
		probes := make([]ProbeResult, 0, len(s.engines))
		for _, e := range s.engines {
			ok := e.Available(ctx)
			probes = append(probes, ProbeResult{Name: e.Name(), Available: ok})
			if ok {
				s.selected = e
				s.logger.Info("chat engine selected", "engine", e.Name())
				return
			}
			s.logger.Debug("chat engine unavailable", "engine", e.Name())
		}
		s.err = &UnavailableError{Probes: probes}
	})

	if s.err != nil {
		return nil, s.err
	}
	return s.selected, nil
}
