// ABOUTME: Reinforcement engine: turns context usage into bounded fact boosts
// ABOUTME: De-dupes, caps the batch, skips the usage window, applies in one tx
package reinforce

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Booster applies a priority and usage bump to a set of facts atomically.
// The storage engine satisfies this.
type Booster interface {
	BoostFacts(ctx context.Context, ids []string, bump, cap float64) error
}

// Options tune one reinforcement engine. Zero fields take the defaults.
type Options struct {
	// BatchCap bounds how many distinct ids one call may boost.
	BatchCap int
	// Window is how long a boosted id is ignored before it may be boosted
	// again. Retries of the same reinforce call inside the window are no-ops.
	Window time.Duration
	// Bump is the per-boost priority increment.
	Bump float64
	// PriorityCap is the ceiling priority can reach through reinforcement.
	PriorityCap float64
}

const (
	defaultBatchCap    = 32
	defaultWindow      = 30 * time.Second
	defaultBump        = 0.5
	defaultPriorityCap = 5.0
)

// Engine records that facts were used in a context bundle and strengthens
// them so future selection favors them.
type Engine struct {
	booster Booster
	opts    Options
	window  *usageWindow
	logger  *slog.Logger
}

func New(b Booster, opts Options) *Engine {
	if opts.BatchCap <= 0 {
		opts.BatchCap = defaultBatchCap
	}
	if opts.Window <= 0 {
		opts.Window = defaultWindow
	}
	if opts.Bump <= 0 {
		opts.Bump = defaultBump
	}
	if opts.PriorityCap <= 0 {
		opts.PriorityCap = defaultPriorityCap
	}
	return &Engine{
		booster: b,
		opts:    opts,
		window:  newUsageWindow(opts.Window),
		logger:  slog.Default().With("component", "reinforce"),
	}
}

// Reinforce boosts the given facts. The batch is de-duplicated in order,
// capped, and stripped of ids boosted within the usage window; the surviving
// set is applied in one transaction, so a failure touches zero rows and
// leaves the window unmarked for a clean retry. Returns the ids applied.
func (e *Engine) Reinforce(ctx context.Context, factIDs []string) ([]string, error) {
	unique := dedupe(factIDs)
	if len(unique) > e.opts.BatchCap {
		e.logger.Warn("reinforce batch truncated", "requested", len(unique), "cap", e.opts.BatchCap)
		unique = unique[:e.opts.BatchCap]
	}

	survivors := unique[:0:len(unique)]
	for _, id := range unique {
		if e.window.Contains(id) {
			continue
		}
		survivors = append(survivors, id)
	}
	if len(survivors) == 0 {
		return nil, nil
	}

	if err := e.booster.BoostFacts(ctx, survivors, e.opts.Bump, e.opts.PriorityCap); err != nil {
		return nil, fmt.Errorf("applying reinforcement: %w", err)
	}
	e.window.Mark(survivors)
	e.logger.Debug("reinforced facts", "count", len(survivors))
	return survivors, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
