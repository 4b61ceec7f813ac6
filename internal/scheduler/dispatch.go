package scheduler

import (
	"context"
	"fmt"

	"github.com/ankaflow/ankaflow/internal/connector"
	"github.com/ankaflow/ankaflow/internal/errs"
	"github.com/ankaflow/ankaflow/internal/model"
	"github.com/ankaflow/ankaflow/internal/render"
)

// dispatch routes stage to its handler per the §4.L table, then applies the
// optional show_schema print and show preview common to several kinds.
func (s *Scheduler) dispatch(ctx context.Context, stage *model.Stage) error {
	switch stage.Kind {
	case model.KindSource, model.KindTap:
		return s.dispatchTap(ctx, stage)
	case model.KindTransform:
		return s.dispatchTransform(ctx, stage)
	case model.KindSink:
		return s.dispatchSink(ctx, stage)
	case model.KindSQL:
		return s.dispatchSQL(ctx, stage)
	case model.KindInternal, model.KindSelf:
		return s.dispatchInternal(ctx, stage)
	case model.KindPipeline:
		return s.dispatchPipeline(ctx, stage)
	default:
		return errs.New(errs.Configuration, "ankaflow: unknown stage kind %q", stage.Kind)
	}
}

// buildConnector resolves the effective ConnectionConfiguration (applying
// any stage-local connection.config patch) and constructs the connector for
// stage.Connection.
func (s *Scheduler) buildConnector(stage *model.Stage) (connector.Connector, error) {
	cfg := s.Config
	if len(stage.Connection.Config) > 0 {
		patched, err := render.ApplyConfigPatch(s.Config, stage.Connection.Config)
		if err != nil {
			return nil, err
		}
		cfg = patched
	}
	conn, err := connector.New(connector.Deps{
		Stage:     stage.Name,
		Conn:      stage.Connection,
		Adapter:   s.Adapter,
		Config:    cfg,
		Variables: s.Variables,
		Context:   s.Context,
	})
	if err != nil {
		return nil, err
	}
	s.injectSecrets(stage.Connection, cfg)
	return conn, nil
}

func (s *Scheduler) dispatchTap(ctx context.Context, stage *model.Stage) error {
	conn, err := s.buildConnector(stage)
	if err != nil {
		return err
	}
	if err := conn.Tap(ctx, stage.Query, 0); err != nil {
		return err
	}
	s.lastname = stage.Name
	return s.afterMaterialize(ctx, stage, conn)
}

func (s *Scheduler) dispatchTransform(ctx context.Context, stage *model.Stage) error {
	if stage.Query == "" {
		return errs.New(errs.Configuration, "ankaflow: transform stage %q requires a query", stage.Name)
	}
	ddl := fmt.Sprintf(`CREATE OR REPLACE VIEW %q AS %s`, stage.Name, stage.Query)
	if _, err := s.Adapter.Exec(ctx, ddl); err != nil {
		return err
	}
	s.lastname = stage.Name
	return s.afterMaterialize(ctx, stage, nil)
}

func (s *Scheduler) dispatchSink(ctx context.Context, stage *model.Stage) error {
	conn, err := s.buildConnector(stage)
	if err != nil {
		return err
	}
	source := s.lastname
	if stage.Query != "" {
		ddl := fmt.Sprintf(`CREATE OR REPLACE VIEW %q AS %s`, stage.Name, stage.Query)
		if _, err := s.Adapter.Exec(ctx, ddl); err != nil {
			return err
		}
		source = stage.Name
	}
	if source == "" {
		return errs.New(errs.Configuration, "ankaflow: sink stage %q has no prior stage output to sink", stage.Name)
	}
	return conn.Sink(ctx, source)
}

func (s *Scheduler) dispatchSQL(ctx context.Context, stage *model.Stage) error {
	conn, err := s.buildConnector(stage)
	if err != nil {
		return err
	}
	return conn.SQL(ctx, stage.Query)
}

func (s *Scheduler) dispatchInternal(ctx context.Context, stage *model.Stage) error {
	if stage.Query == "" {
		return errs.New(errs.Configuration, "ankaflow: %s stage %q requires a query", stage.Kind, stage.Name)
	}
	ddl := fmt.Sprintf(`CREATE OR REPLACE VIEW %q AS %s`, stage.Name, stage.Query)
	if _, err := s.Adapter.Exec(ctx, ddl); err != nil {
		return err
	}
	s.lastname = stage.Name
	return s.afterMaterialize(ctx, stage, nil)
}

// afterMaterialize runs the show_schema print and show preview common to
// every handler that produces a named table. conn may be nil for handlers
// that materialize directly through the SQL runtime.
func (s *Scheduler) afterMaterialize(ctx context.Context, stage *model.Stage, conn connector.Connector) error {
	if stage.ShowSchema {
		var (
			cols model.Columns
			err  error
		)
		if conn != nil {
			cols, err = conn.ShowSchema(ctx)
		} else {
			base := connector.Base{Stage: stage.Name, Adapter: s.Adapter, Conn: &model.Connection{}}
			cols, err = base.ProbeSchema(ctx)
		}
		if err != nil {
			return err
		}
		s.Logger.WithField("stage", stage.Name).Infof("ankaflow: schema: %v", cols)
	}
	return s.preview(ctx, stage)
}
