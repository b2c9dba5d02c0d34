// Package orchestrator implements the fixed pipeline graph that drives a
// query through the four agents in internal/agents (spec.md §4.11): START ->
// research -> analyst -> comparison -> reporting -> END. Cross-agent
// execution is strictly sequential; all fan-out concurrency lives inside
// each agent, not between them.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"finyx/internal/agents"
	"finyx/internal/eventbus"
	"finyx/internal/progress"
	"finyx/internal/sharedcontext"
)

// node is one stage of the fixed graph.
type node struct {
	name string
	run  func(ctx context.Context, deps *agents.Deps, c *sharedcontext.Context) (*sharedcontext.Context, error)
}

var nodes = []node{
	{agents.AgentResearch, func(ctx context.Context, d *agents.Deps, c *sharedcontext.Context) (*sharedcontext.Context, error) {
		return d.RunResearch(ctx, c)
	}},
	{agents.AgentAnalyst, func(ctx context.Context, d *agents.Deps, c *sharedcontext.Context) (*sharedcontext.Context, error) {
		return d.RunAnalyst(ctx, c)
	}},
	{agents.AgentComparison, func(ctx context.Context, d *agents.Deps, c *sharedcontext.Context) (*sharedcontext.Context, error) {
		return d.RunComparison(ctx, c)
	}},
	{agents.AgentReporting, func(ctx context.Context, d *agents.Deps, c *sharedcontext.Context) (*sharedcontext.Context, error) {
		return d.RunReporting(ctx, c)
	}},
}

// analyticsRecorder is the structural contract internal/store.AnalyticsSink
// satisfies, kept local so this package never imports internal/store.
type analyticsRecorder interface {
	RecordRun(ctx context.Context, c *sharedcontext.Context) error
}

// Workflow wires a StateManager and an agents.Deps bundle into the fixed
// graph. A single Workflow is safe to reuse across concurrent runs: Run and
// Stream never mutate shared state outside the *sharedcontext.Context they
// are handed. Session, Publisher, and Analytics are all optional (nil-safe)
// best-effort collaborators — the graph runs identically without them.
type Workflow struct {
	Deps      *agents.Deps
	State     *sharedcontext.StateManager
	Log       zerolog.Logger
	Session   sharedcontext.SessionStore
	Publisher *eventbus.Publisher
	Analytics analyticsRecorder

	// ContextBudget is the pruner trigger threshold in bytes (spec.md §5); <=0
	// defers to sharedcontext.DefaultMaxContextBytes.
	ContextBudget int
}

// New builds a Workflow over the given agent dependencies.
func New(deps *agents.Deps, state *sharedcontext.StateManager, log zerolog.Logger) *Workflow {
	return &Workflow{Deps: deps, State: state, Log: log}
}

// Snapshot is one stream element: the node that just completed, the shared
// context as of that point, and the progress events emitted during the node
// (spec.md §4.11 "stream yields a snapshot after each node completion").
type Snapshot struct {
	Node           string
	Context        *sharedcontext.Context
	ProgressEvents []progress.Event
}

// Run executes the full graph sequentially and returns the final context.
// A node error aborts the remaining graph and is returned to the caller;
// per-symbol failures inside a node do not reach here — they surface as
// partialSuccess on the returned context instead.
func (w *Workflow) Run(ctx context.Context, initial *sharedcontext.Context) (*sharedcontext.Context, error) {
	c := initial
	for _, n := range nodes {
		var err error
		c, err = w.runNode(ctx, n, c)
		if err != nil {
			return c, fmt.Errorf("orchestrator: node %s: %w", n.name, err)
		}
	}
	w.finalizeRun(ctx, c)
	return c, nil
}

// finalizeRun persists the final context and mirrors run analytics once the
// graph completes. Both collaborators are optional and best-effort — a nil
// Session or Analytics is a normal configuration, not an error.
func (w *Workflow) finalizeRun(ctx context.Context, c *sharedcontext.Context) {
	if w.Session != nil {
		w.State.SaveStateForSession(ctx, w.Session, c.SessionID, c)
		w.State.SaveQueryToHistory(ctx, w.Session, c.SessionID, c)
	}
	if w.Analytics != nil {
		if err := w.Analytics.RecordRun(ctx, c); err != nil {
			w.Log.Warn().Err(err).Str("transactionId", c.TransactionID).Msg("orchestrator: analytics recording failed")
		}
	}
}

// Stream executes the graph like Run but sends a Snapshot on the returned
// channel after each node completes, closing it when the graph finishes or a
// node returns an error. The final error, if any, is available from the
// second return value once the channel is drained.
func (w *Workflow) Stream(ctx context.Context, initial *sharedcontext.Context) (<-chan Snapshot, <-chan error) {
	out := make(chan Snapshot, len(nodes))
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		c := initial
		for _, n := range nodes {
			before := len(c.ProgressEvents)
			next, err := w.runNode(ctx, n, c)
			if err != nil {
				errCh <- fmt.Errorf("orchestrator: node %s: %w", n.name, err)
				return
			}
			c = next

			latest := c.ProgressEvents[minInt(before, len(c.ProgressEvents)):]
			select {
			case out <- Snapshot{Node: n.name, Context: c, ProgressEvents: latest}:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
		w.finalizeRun(ctx, c)
	}()

	return out, errCh
}

// runNode executes a single node and then enforces the context size budget
// (spec.md §4.11: "Between each node the orchestrator calls
// StateManager.updateContextSize then pruneContext if over budget").
func (w *Workflow) runNode(ctx context.Context, n node, c *sharedcontext.Context) (*sharedcontext.Context, error) {
	start := time.Now()
	before := len(c.ProgressEvents)
	next, err := n.run(ctx, w.Deps, c)
	if err != nil {
		return c, err
	}

	w.State.CalculateContextSize(next)
	w.State.PruneContext(next, w.ContextBudget)
	w.Publisher.PublishAll(ctx, next.TransactionID, next.SessionID, next.ProgressEvents, before)

	w.Log.Debug().
		Str("node", n.name).
		Dur("elapsed", time.Since(start)).
		Int("contextBytes", next.ContextSizeBytes).
		Bool("partialSuccess", next.PartialSuccess).
		Msg("orchestrator: node complete")

	return next, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
