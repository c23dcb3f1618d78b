package main

import (
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/modelsync/internal/appconfig"
	"pkt.systems/modelsync/internal/format"
	"pkt.systems/modelsync/schema"
)

func newPullCmd() *cobra.Command {
	var flags commonFlags
	var source string
	var library string
	var concurrency int
	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Copy every remote type and component into the local workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("source") {
				cfg.Pull.Source = strings.TrimSpace(source)
			}
			if cmd.Flags().Changed("library") {
				cfg.Pull.Library = strings.TrimSpace(library)
			}
			if cmd.Flags().Changed("concurrency") {
				cfg.Pull.Concurrency = concurrency
			}
			if err := appconfig.Validate(cfg); err != nil {
				return err
			}

			out := newRunOutput(cmd.OutOrStdout(), cfg.Output)
			rep, err := buildReplicator(cmd, cfg, out)
			if err != nil {
				return err
			}
			if cfg.Pull.Source == "" {
				// Fall back to the repository the workspace was created for.
				if err := rep.Workspace.Init(cmd.Context()); err == nil {
					if wcfg, err := rep.Workspace.Config(); err == nil {
						cfg.Pull.Source = wcfg.RepositoryName
					}
				}
			}

			report, runErr := rep.Pull(cmd.Context(), schema.PullRequest{
				Source:      schema.RepoName(cfg.Pull.Source),
				Library:     schema.LibraryID(cfg.Pull.Library),
				Concurrency: cfg.Pull.Concurrency,
			})
			var summary []string
			if runErr == nil {
				summary = format.PullSummary(report)
			}
			if err := out.finish(cmd.OutOrStdout(), report, summary); err != nil && runErr == nil {
				return err
			}
			return runErr
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&source, "source", "s", "", "repository to pull from (defaults to the workspace repositoryName)")
	cmd.Flags().StringVarP(&library, "library", "l", "", "library receiving pulled components")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "maximum concurrent operations")
	return cmd
}
