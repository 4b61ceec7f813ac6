// Package scheduler implements the §4.L stage scheduler: the per-stage
// lifecycle (render, skip_if, dispatch, throttle, error policy), the
// handler dispatch table, sub-pipeline fan-out, and preview materialization.
package scheduler

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ankaflow/ankaflow/internal/errs"
	"github.com/ankaflow/ankaflow/internal/model"
	"github.com/ankaflow/ankaflow/internal/render"
	"github.com/ankaflow/ankaflow/internal/sqlrt"
)

// Scheduler holds the collaborators every stage shares within one run
// (§6's "stage↔collaborator contracts") plus the scheduler's own handoff
// state: lastname, the most recently materialized table.
type Scheduler struct {
	Adapter     *sqlrt.Adapter
	Variables   *model.Variables
	Context     model.FlowContext
	Config      *model.ConnectionConfiguration
	Renderer    *render.Renderer
	Logger      *log.Logger
	FlowControl model.FlowControl

	lastname string
}

// New constructs a Scheduler. A nil vars or logger is defaulted; Config and
// Context may be nil and are kept as given.
func New(adapter *sqlrt.Adapter, vars *model.Variables, ctx model.FlowContext, config *model.ConnectionConfiguration, logger *log.Logger, flowControl model.FlowControl) *Scheduler {
	if vars == nil {
		vars = model.NewVariables()
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	api := &render.API{Vars: vars, Context: ctx}
	return &Scheduler{
		Adapter:     adapter,
		Variables:   vars,
		Context:     ctx,
		Config:      config,
		Renderer:    render.New(api),
		Logger:      logger,
		FlowControl: flowControl,
	}
}

// Flow pairs a Scheduler with the stage list it will run, exposing the
// asynchronous run() that returns itself (for chaining) and a synchronous
// wrapper around it.
type Flow struct {
	sched  *Scheduler
	stages model.Stages
	done   chan error
}

// NewFlow builds a Flow ready to Run.
func NewFlow(sched *Scheduler, stages model.Stages) *Flow {
	return &Flow{sched: sched, stages: stages, done: make(chan error, 1)}
}

// Run starts the pipeline on a background goroutine and returns the Flow
// itself, so callers can chain `.Run(ctx).Wait()` or hold the Flow and
// check back later.
func (f *Flow) Run(ctx context.Context) *Flow {
	go func() {
		f.done <- f.sched.runStages(ctx, f.stages)
	}()
	return f
}

// Wait blocks until the run started by Run completes and returns its error.
func (f *Flow) Wait() error {
	return <-f.done
}

// RunSync is the synchronous entry point: it runs the pipeline and blocks
// for its result, wrapping the asynchronous form per §4.L.
func (f *Flow) RunSync(ctx context.Context) error {
	return f.Run(ctx).Wait()
}

func (s *Scheduler) runStages(ctx context.Context, stages model.Stages) error {
	if err := stages.Validate(); err != nil {
		return err
	}
	for i := range stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		stage := stages[i]
		if err := s.runStage(ctx, &stage); err != nil {
			return err
		}
	}
	return nil
}

// runStage executes the seven-step per-stage lifecycle of §4.L.
func (s *Scheduler) runStage(ctx context.Context, stage *model.Stage) error {
	if stage.LogLevel != "" {
		if level, err := log.ParseLevel(stage.LogLevel); err == nil {
			s.Logger.SetLevel(level)
		} else {
			s.Logger.WithField("stage", stage.Name).Warnf("ankaflow: invalid log_level %q", stage.LogLevel)
		}
	}

	if stage.Kind == model.KindHeader {
		return nil
	}

	rendered, err := s.renderStage(stage)
	if err != nil {
		return s.handleStageError(stage, err)
	}

	skip, err := s.evalSkipIf(rendered)
	if err != nil {
		return s.handleStageError(rendered, err)
	}
	if skip {
		s.Logger.WithField("stage", rendered.Name).Info("ankaflow: skip_if matched, skipping stage")
		return nil
	}

	if err := s.dispatch(ctx, rendered); err != nil {
		return s.handleStageError(rendered, err)
	}

	if rendered.Throttle > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(rendered.Throttle * float64(time.Second))):
		}
	}
	return nil
}

// handleStageError applies §7's fail-vs-continue policy: continue only when
// both the stage and the flow agree, otherwise wrap as a FlowRunError.
func (s *Scheduler) handleStageError(stage *model.Stage, err error) error {
	if stage.EffectiveOnError() == model.OnErrorContinue && s.FlowControl.EffectiveOnError() == model.OnErrorContinue {
		s.Logger.WithFields(log.Fields{"stage": stage.Name, "error": err}).Warn("ankaflow: stage failed, continuing per on_error=continue")
		return nil
	}
	return errs.NewFlowRunError(stage.Name, err)
}

func (s *Scheduler) evalSkipIf(stage *model.Stage) (bool, error) {
	if stage.SkipIf == nil {
		return false, nil
	}
	return truthy(stage.SkipIf), nil
}

func truthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v != "" && v != "false" && v != "0"
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case nil:
		return false
	default:
		return true
	}
}
