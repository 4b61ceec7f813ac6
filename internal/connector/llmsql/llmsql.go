// Package llmsql implements the §4.K LLM SQL generator connection: a
// prompt is rendered, handed to a chat-completion client, and the model's
// response is parsed for a single SQL statement that is executed as
// "CREATE OR REPLACE VIEW <stage> AS <sql>". A SQL error that the embedded
// engine classifies as replayable is fed back to the model for one more
// attempt, up to the configured retry budget.
package llmsql

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/ankaflow/ankaflow/internal/connector"
	"github.com/ankaflow/ankaflow/internal/errs"
	"github.com/ankaflow/ankaflow/internal/model"
	"github.com/ankaflow/ankaflow/internal/render"
)

func init() {
	connector.Register(model.ConnLLMSQL, newConnector)
}

type llmConnector struct {
	connector.Base
	client   Client
	vars     *model.Variables
	rendered *render.Renderer
}

func newConnector(d connector.Deps) (connector.Connector, error) {
	if d.Config == nil || d.Config.LLM == nil {
		return nil, fmt.Errorf("ankaflow: llmsql connection requires llm configuration")
	}
	client, err := newClient(d.Config.LLM)
	if err != nil {
		return nil, err
	}
	api := &render.API{Vars: d.Variables, Context: d.Context}
	return &llmConnector{
		Base:     connector.NewBase(d),
		client:   client,
		vars:     d.Variables,
		rendered: render.New(api),
	}, nil
}

// Tap renders the prompt (the stage query, or the connection's locator
// when the query is empty), asks the model for SQL, and materializes the
// result as the stage's view. A replayable SQL error retries with the
// failure appended to the prompt, up to llm.max_retries attempts in all.
func (c *llmConnector) Tap(ctx context.Context, query string, limit int) error {
	prompt := query
	if prompt == "" {
		prompt = c.Conn.Locator
	}
	scope := map[string]any{"variables": c.vars.Snapshot(), "fields": c.Conn.Fields}
	renderedPrompt, err := c.rendered.Render(prompt, scope, render.Options{})
	if err != nil {
		return fmt.Errorf("ankaflow: rendering llm prompt: %w", err)
	}
	text, _ := renderedPrompt.(string)
	if text == "" {
		text = prompt
	}

	maxRetries := c.client.MaxRetries()
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			text = fmt.Sprintf("%s\n\nThe previous SQL failed with: %v\nReturn corrected SQL only.", text, lastErr)
		}
		raw, genErr := c.client.Generate(ctx, text)
		if genErr != nil {
			return errs.Wrap(errs.UnrecoverableTap, genErr, "ankaflow: llm sql generation failed")
		}
		sql, parseErr := extractSQL(raw)
		if parseErr != nil {
			lastErr = parseErr
			continue
		}

		ddl := fmt.Sprintf(`CREATE OR REPLACE VIEW %q AS %s`, c.Stage, sql)
		_, execErr := c.Adapter.Exec(ctx, ddl)
		if execErr == nil {
			return nil
		}
		if !errs.IsReplayableSQL(execErr) {
			c.vars.Set(fmt.Sprintf("%s.llm_sql_error", c.Stage), execErr.Error())
			return errs.Wrap(errs.UnrecoverableTap, execErr, "ankaflow: llm-generated sql failed")
		}
		lastErr = execErr
		log.WithFields(log.Fields{"stage": c.Stage, "attempt": attempt + 1}).Warn("ankaflow: llm sql replay after recoverable error")
	}

	c.vars.Set(fmt.Sprintf("%s.llm_sql_error", c.Stage), fmt.Sprintf("%v", lastErr))
	return errs.Wrap(errs.UnrecoverableTap, lastErr, "ankaflow: llm sql generation exhausted retries")
}

func (c *llmConnector) Sink(ctx context.Context, fromName string) error {
	return fmt.Errorf("ankaflow: the llmsql connector is tap-only")
}

func (c *llmConnector) SQL(ctx context.Context, statement string) error {
	return fmt.Errorf("ankaflow: the llmsql connector does not support sql()")
}

func (c *llmConnector) ShowSchema(ctx context.Context) (model.Columns, error) {
	return c.ProbeSchema(ctx)
}
