package main

import (
	"github.com/spf13/cobra"

	"pkt.systems/modelsync/internal/appconfig"
	"pkt.systems/modelsync/internal/format"
	"pkt.systems/modelsync/schema"
)

func newPushCmd() *cobra.Command {
	var flags commonFlags
	var concurrency int
	var keepGoing bool
	cmd := &cobra.Command{
		Use:   "push [repository...]",
		Short: "Copy every local type and component to one or more repositories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}
			if len(args) > 0 {
				cfg.Push.Targets = args
			}
			if cmd.Flags().Changed("concurrency") {
				cfg.Push.Concurrency = concurrency
			}
			if cmd.Flags().Changed("keep-going") {
				cfg.Push.KeepGoing = keepGoing
			}
			if err := appconfig.Validate(cfg); err != nil {
				return err
			}

			out := newRunOutput(cmd.OutOrStdout(), cfg.Output)
			rep, err := buildReplicator(cmd, cfg, out)
			if err != nil {
				return err
			}
			targets := make([]schema.RepoName, 0, len(cfg.Push.Targets))
			for _, target := range cfg.Push.Targets {
				targets = append(targets, schema.RepoName(target))
			}
			policy := schema.FailFast
			if cfg.Push.KeepGoing {
				policy = schema.CollectAll
			}

			report, runErr := rep.Push(cmd.Context(), schema.PushRequest{
				Targets:     targets,
				Concurrency: cfg.Push.Concurrency,
				Policy:      policy,
			})
			var summary []string
			if len(report.Repositories) > 0 {
				summary = format.PushSummary(report)
			}
			if err := out.finish(cmd.OutOrStdout(), report, summary); err != nil && runErr == nil {
				return err
			}
			return runErr
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "maximum concurrent operations per repository")
	cmd.Flags().BoolVarP(&keepGoing, "keep-going", "k", false, "continue past failures and report every failed model")
	return cmd
}
