// Package scheduler drives a session through the staged agent pipeline.
// Stages execute strictly in order; agents within a stage run
// concurrently, bounded by the shared admission gate and an additional
// per-stage chunk size. An agent failure is recorded on the session and
// never aborts the pipeline.
package scheduler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/finsight-ai/finsight/internal/graph"
	"github.com/finsight-ai/finsight/internal/invoker"
	"github.com/finsight-ai/finsight/internal/session"
)

// TaskRunner executes one task. Satisfied by *invoker.Invoker.
type TaskRunner interface {
	Invoke(ctx context.Context, task invoker.TaskDescriptor, subject string, priorOutputs map[string]string, directive string) invoker.Result
}

// DefaultChunkSize bounds how many agents of one stage are dispatched at
// once. The gate already enforces the global concurrency bound; chunking
// just smooths peak fan-out within a large stage.
const DefaultChunkSize = 3

// Config tunes pipeline construction.
type Config struct {
	// Agents overrides the built-in agent table.
	Agents []invoker.TaskDescriptor
	// IncludeOptional keeps optional-tier agents in the pipeline.
	IncludeOptional bool
	// ChunkSize bounds per-stage dispatch batches (default 3).
	ChunkSize int
}

// Scheduler owns the task table, its derived stage structure, and the
// wiring between task outcomes and the session store.
type Scheduler struct {
	store     *session.Store
	runner    TaskRunner
	tasks     map[string]invoker.TaskDescriptor
	graph     *graph.DependencyGraph
	stages    [][]string
	chunkSize int
}

// New builds a Scheduler, validating the agent dependency graph.
func New(store *session.Store, runner TaskRunner, cfg Config) (*Scheduler, error) {
	agents := cfg.Agents
	if agents == nil {
		agents = DefaultAgents()
	}
	agents = filterByTier(agents, cfg.IncludeOptional)

	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	g := graph.NewDependencyGraph()
	tasks := make(map[string]invoker.TaskDescriptor, len(agents))
	for _, t := range agents {
		g.AddTask(t.AgentID, t.Dependencies)
		tasks[t.AgentID] = t
	}

	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("agent graph: %w", err)
	}
	stages, err := g.Stages()
	if err != nil {
		return nil, fmt.Errorf("agent graph: %w", err)
	}

	return &Scheduler{
		store:     store,
		runner:    runner,
		tasks:     tasks,
		graph:     g,
		stages:    stages,
		chunkSize: chunkSize,
	}, nil
}

// TotalAgents returns the number of agents in the pipeline.
func (s *Scheduler) TotalAgents() int { return len(s.tasks) }

// StageCount returns the number of ordered stages.
func (s *Scheduler) StageCount() int { return len(s.stages) }

// Stages returns the agent ids of each stage in execution order.
func (s *Scheduler) Stages() [][]string {
	out := make([][]string, len(s.stages))
	for i, stage := range s.stages {
		out[i] = append([]string(nil), stage...)
	}
	return out
}

// RunStage dispatches every eligible agent of one stage and waits for all
// of them to reach a terminal state. An agent whose dependencies all
// failed still runs, just with fewer prior outputs to draw on.
func (s *Scheduler) RunStage(ctx context.Context, sessionID string, stage int, directive string) error {
	if stage < 0 || stage >= len(s.stages) {
		return fmt.Errorf("stage %d out of range [0,%d)", stage, len(s.stages))
	}

	view, err := s.store.GetStatus(sessionID)
	if err != nil {
		return err
	}

	prior, err := s.store.CompletedOutputs(sessionID)
	if err != nil {
		return err
	}

	eligible := s.eligible(sessionID, s.stages[stage], prior)
	log.Info().
		Str("session", sessionID).
		Int("stage", stage).
		Strs("agents", eligible).
		Msg("dispatching stage")

	stageIdx := stage
	for start := 0; start < len(eligible); start += s.chunkSize {
		end := start + s.chunkSize
		if end > len(eligible) {
			end = len(eligible)
		}

		grp, grpCtx := errgroup.WithContext(ctx)
		for _, agentID := range eligible[start:end] {
			task := s.tasks[agentID]
			grp.Go(func() error {
				s.runTask(grpCtx, sessionID, task, view.Subject, prior, directive, stageIdx)
				return nil
			})
		}
		_ = grp.Wait()

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

// eligible filters a stage to agents whose dependencies have all reached
// a terminal state. A failed dependency still satisfies the check; its
// output is simply absent from the prior set. Agents that already
// completed are skipped so re-running a stage is harmless.
func (s *Scheduler) eligible(sessionID string, stage []string, prior map[string]string) []string {
	terminal := make(map[string]struct{})
	for id := range s.tasks {
		res, err := s.store.GetAgentResult(sessionID, id)
		if err != nil {
			continue
		}
		if res.Status == session.AgentCompleted || res.Status == session.AgentError {
			terminal[id] = struct{}{}
		}
	}

	var out []string
	for _, id := range s.graph.Eligible(stage, terminal) {
		if _, completed := prior[id]; completed {
			continue
		}
		out = append(out, id)
	}
	return out
}

// runTask invokes one agent and records the outcome on the session.
// Failures are stored as error results, never returned.
func (s *Scheduler) runTask(ctx context.Context, sessionID string, task invoker.TaskDescriptor, subject string, prior map[string]string, directive string, stage int) {
	if _, err := s.store.Update(sessionID, task.AgentID, session.AgentUpdate{
		Status: session.AgentRunning,
		Stage:  &stage,
	}); err != nil {
		log.Warn().Str("session", sessionID).Str("agent", task.AgentID).Err(err).Msg("mark running failed")
		return
	}

	res := s.runner.Invoke(ctx, task, subject, prior, directive)

	upd := session.AgentUpdate{Stage: &stage}
	if res.Success {
		upd.Status = session.AgentCompleted
		upd.Output = res.Output
		upd.Tokens = res.Tokens
	} else {
		upd.Status = session.AgentError
		upd.Error = res.Error
	}

	if _, err := s.store.Update(sessionID, task.AgentID, upd); err != nil {
		log.Warn().Str("session", sessionID).Str("agent", task.AgentID).Err(err).Msg("record result failed")
	}
}

// RunAll starts the session and drives every stage in order, then marks
// the session completed. Agent errors along the way are recorded but do
// not fail the run; only an unknown session, an illegal start, or
// cancellation surface as errors.
func (s *Scheduler) RunAll(ctx context.Context, sessionID, directive string) error {
	if err := s.store.Start(sessionID); err != nil {
		return err
	}
	return s.Resume(ctx, sessionID, directive)
}

// Resume drives every stage of an already-running session in order and
// marks it completed. Used when the caller performed the start transition
// itself.
func (s *Scheduler) Resume(ctx context.Context, sessionID, directive string) error {
	for stage := range s.stages {
		if err := s.RunStage(ctx, sessionID, stage, directive); err != nil {
			_, _ = s.store.Complete(sessionID, false, err.Error())
			return err
		}
	}

	if _, err := s.store.Complete(sessionID, true, ""); err != nil {
		return err
	}
	log.Info().Str("session", sessionID).Msg("analysis complete")
	return nil
}
