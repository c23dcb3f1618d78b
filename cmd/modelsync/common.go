package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/modelsync"
	"pkt.systems/modelsync/core"
	"pkt.systems/modelsync/internal/appconfig"
	"pkt.systems/modelsync/internal/eventbus"
	"pkt.systems/modelsync/internal/format"
	"pkt.systems/pslog"
)

// commonFlags are shared by the pull and push commands.
type commonFlags struct {
	cfgPath   string
	workspace string
	output    string
	conflict  string
}

func (f *commonFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVarP(&f.workspace, "workspace", "w", "", "workspace root (overrides config)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output format: text or json")
	cmd.Flags().StringVar(&f.conflict, "conflict", "", "conflict policy: upsert or reject")
}

// load reads the config file and applies the shared flag overrides.
func (f *commonFlags) load(cmd *cobra.Command) (appconfig.Config, error) {
	cfg, err := appconfig.Load(f.cfgPath)
	if err != nil {
		return appconfig.Config{}, err
	}
	if cmd.Flags().Changed("workspace") {
		cfg.Workspace = strings.TrimSpace(f.workspace)
	}
	if cmd.Flags().Changed("output") {
		cfg.Output = strings.ToLower(strings.TrimSpace(f.output))
	}
	if cmd.Flags().Changed("conflict") {
		cfg.ConflictPolicy = strings.ToLower(strings.TrimSpace(f.conflict))
	}
	return cfg, nil
}

// runOutput owns the progress sink of one command invocation.
type runOutput struct {
	json      *format.JSONWriter
	lines     *format.LineRenderer
	stopTrace func()
}

func newRunOutput(w io.Writer, mode string) *runOutput {
	if mode == appconfig.OutputJSON {
		return &runOutput{json: format.NewJSONWriter(w)}
	}
	return &runOutput{lines: format.NewLineRenderer(w, format.IsTerminal(w))}
}

func (o *runOutput) sink() core.ProgressSink {
	if o.json != nil {
		return o.json
	}
	return o.lines
}

// traceEvents mirrors bus events to the trace log until close is called.
func (o *runOutput) traceEvents(bus *eventbus.Bus, logger pslog.Logger) {
	events, cancel := bus.Subscribe(eventbus.AllSessions)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for event := range events {
			logger.Trace("progress event", "type", event.Type, "session", event.Session, "repo", event.Repo, "phase", event.Phase, "done", event.Done, "total", event.Total)
		}
	}()
	o.stopTrace = func() {
		cancel()
		<-done
	}
}

// finish terminates progress output and writes the final report.
func (o *runOutput) finish(w io.Writer, report any, summary []string) error {
	if o.stopTrace != nil {
		o.stopTrace()
	}
	if o.json != nil {
		return o.json.Encode(report)
	}
	if err := o.lines.Close(); err != nil {
		return err
	}
	for _, line := range summary {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func buildReplicator(cmd *cobra.Command, cfg appconfig.Config, out *runOutput) (*modelsync.Replicator, error) {
	logger := pslog.Ctx(cmd.Context())
	rep, err := modelsync.New(modelsync.ConfigFromApp(cfg), modelsync.Deps{
		Sinks:  []core.ProgressSink{out.sink()},
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	out.traceEvents(rep.Bus, logger)
	return rep, nil
}
