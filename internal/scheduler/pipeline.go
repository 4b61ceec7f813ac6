package scheduler

import (
	"context"
	"fmt"

	"github.com/ankaflow/ankaflow/internal/model"
)

// dispatchPipeline implements the sub-pipeline fan-out of §4.L: with a
// prior stage's output available, the nested stage list runs once per row
// of lastname, with loop_control bound to that row; with no prior output,
// the nested pipeline runs once, unscoped.
func (s *Scheduler) dispatchPipeline(ctx context.Context, stage *model.Stage) error {
	if s.lastname == "" {
		return s.runNested(ctx, stage.Stages)
	}

	rel, err := s.Adapter.SQL(ctx, fmt.Sprintf(`SELECT * FROM %q`, s.lastname))
	if err != nil {
		return err
	}
	for _, row := range rel.FetchAll() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.runIteration(ctx, stage.Stages, row); err != nil {
			return err
		}
	}
	return nil
}

// runIteration binds loop_control to row for the duration of one nested
// pipeline run, clearing it unconditionally on every exit path.
func (s *Scheduler) runIteration(ctx context.Context, nested model.Stages, row map[string]any) error {
	s.Variables.SetLoopControl(row)
	defer s.Variables.ClearLoopControl()
	return s.runNested(ctx, nested)
}

// runNested recurses into a fresh Scheduler that shares the SQL-runtime
// handle, Variables, Context and logger, per §4.L/§5's shared-state rules.
func (s *Scheduler) runNested(ctx context.Context, nested model.Stages) error {
	child := &Scheduler{
		Adapter:     s.Adapter,
		Variables:   s.Variables,
		Context:     s.Context,
		Config:      s.Config,
		Renderer:    s.Renderer,
		Logger:      s.Logger,
		FlowControl: s.FlowControl,
	}
	return child.runStages(ctx, nested)
}
