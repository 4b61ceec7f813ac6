// Command ankaflow runs a stage-document pipeline to completion, per §6's
// CLI surface.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"

	_ "github.com/ankaflow/ankaflow/internal/connector/deltatable"
	_ "github.com/ankaflow/ankaflow/internal/connector/file"
	_ "github.com/ankaflow/ankaflow/internal/connector/llmsql"
	_ "github.com/ankaflow/ankaflow/internal/connector/rest"
	_ "github.com/ankaflow/ankaflow/internal/connector/rowdb"
	_ "github.com/ankaflow/ankaflow/internal/connector/warehouse"
	"github.com/ankaflow/ankaflow/internal/model"
	"github.com/ankaflow/ankaflow/internal/ops"
	"github.com/ankaflow/ankaflow/internal/scheduler"
	"github.com/ankaflow/ankaflow/internal/sqlrt"
)

type options struct {
	Context []string `short:"c" long:"context" description:"flow context entry KEY=VALUE, referenceable as << KEY >>"`
	Vars    []string `short:"v" long:"var" description:"initial variable KEY=VALUE, referenceable as << KEY >>"`
	LogFile string   `short:"l" long:"log-file" description:"write logs to this file instead of stderr"`
	Verbose bool     `long:"verbose" description:"enable debug-level logging"`

	Args struct {
		Path string `positional-arg-name:"path" description:"stage document path, or the literal DEMO"`
	} `positional-args:"yes" required:"yes"`
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	var opts options

	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[OPTIONS] <path|DEMO>"

	// go-flags has no native "two positional values after a flag" support,
	// so -o/--output is parsed out of argv by hand before the rest is
	// handed to the parser.
	rest, outFormat, outPath, err := extractOutputFlag(argv)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ankaflow:", err)
		return 2
	}

	if _, err := parser.ParseArgs(rest); err != nil {
		if flags.WroteHelp(err) {
			return 0
		}
		fmt.Fprintln(os.Stderr, "ankaflow:", err)
		return 2
	}

	logger := log.New()
	if opts.Verbose {
		logger.SetLevel(log.DebugLevel)
	}
	if opts.LogFile != "" {
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintln(os.Stderr, "ankaflow: opening log file:", err)
			return 2
		}
		defer f.Close()
		logger.SetOutput(f)
	}

	flowCtx, err := parseKV(opts.Context)
	if err != nil {
		logger.WithError(err).Error("ankaflow: invalid -c entry")
		return 2
	}
	vars := model.NewVariables()
	varKV, err := parseKV(opts.Vars)
	if err != nil {
		logger.WithError(err).Error("ankaflow: invalid -v entry")
		return 2
	}
	for k, v := range varKV {
		vars.Set(k, v)
	}

	ctx := context.Background()
	stages, err := ops.LoadPath(opts.Args.Path)
	if err != nil {
		logger.WithError(err).Error("ankaflow: loading stage document")
		return 1
	}

	adapter, err := sqlrt.Connect(ctx, sqlrt.Options{})
	if err != nil {
		logger.WithError(err).Error("ankaflow: starting embedded SQL engine")
		return 1
	}
	defer adapter.Close()

	sched := scheduler.New(adapter, vars, model.FlowContext(flowCtx), &model.ConnectionConfiguration{}, logger, model.FlowControl{})
	started := time.Now()
	if err := scheduler.NewFlow(sched, stages).RunSync(ctx); err != nil {
		logger.WithError(err).Error("ankaflow: run failed")
		printFatal(time.Since(started), err)
		return 1
	}

	if outFormat != "" {
		if err := writeOutput(ctx, adapter, stages, outFormat, outPath); err != nil {
			logger.WithError(err).Error("ankaflow: writing output")
			printFatal(time.Since(started), err)
			return 1
		}
	}
	color.New(color.FgGreen).Fprintf(os.Stderr, "ankaflow: run completed in %s\n", time.Since(started).Round(time.Millisecond))
	return 0
}

// printFatal renders §7's user-visible fatal behavior: the run duration and
// the wrapped message naming the stage.
func printFatal(elapsed time.Duration, err error) {
	color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "ankaflow: run failed after %s: %v\n", elapsed.Round(time.Millisecond), err)
}

// writeOutput re-queries the last materialized stage and writes it in the
// requested sink format.
func writeOutput(ctx context.Context, adapter *sqlrt.Adapter, stages model.Stages, format, path string) error {
	last := lastNamedStage(stages)
	if last == "" {
		return fmt.Errorf("no materialized stage to write")
	}
	f, err := ops.ParseFormat(format)
	if err != nil {
		return err
	}
	rel, err := adapter.SQL(ctx, fmt.Sprintf(`SELECT * FROM %q`, last))
	if err != nil {
		return err
	}
	return ops.WriteRelation(f, path, rel)
}

func lastNamedStage(stages model.Stages) string {
	for i := len(stages) - 1; i >= 0; i-- {
		if stages[i].Name != "" && stages[i].Kind != model.KindHeader {
			return stages[i].Name
		}
	}
	return ""
}

func parseKV(entries []string) (map[string]any, error) {
	out := make(map[string]any, len(entries))
	for _, e := range entries {
		k, v, ok := strings.Cut(e, "=")
		if !ok {
			return nil, fmt.Errorf("expected KEY=VALUE, got %q", e)
		}
		out[k] = v
	}
	return out, nil
}

// extractOutputFlag pulls "-o FORMAT PATH" / "--output FORMAT PATH" out of
// argv and returns the remaining arguments for the normal flag parser.
func extractOutputFlag(argv []string) (rest []string, format, path string, err error) {
	for i := 0; i < len(argv); i++ {
		a := argv[i]
		if a == "-o" || a == "--output" {
			if i+2 >= len(argv) {
				return nil, "", "", fmt.Errorf("%s requires FORMAT and PATH arguments", a)
			}
			format, path = argv[i+1], argv[i+2]
			rest = append(rest, argv[:i]...)
			rest = append(rest, argv[i+3:]...)
			return rest, format, path, nil
		}
	}
	return argv, "", "", nil
}
