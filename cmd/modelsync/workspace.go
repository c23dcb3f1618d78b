package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/modelsync/internal/workspace"
	"pkt.systems/modelsync/schema"
)

func newWorkspaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspace",
		Short: "Manage the local workspace",
	}

	var dir string
	var repository string
	var libraries []string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create a workspace config in the given directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(repository) != "" {
				if _, err := schema.NormalizeRepoName(repository); err != nil {
					return fmt.Errorf("%w: %q", err, repository)
				}
			}
			path := filepath.Join(dir, workspace.ConfigFileName)
			if err := workspace.WriteDefaultConfig(path, strings.TrimSpace(repository), libraries); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return err
		},
	}
	initCmd.Flags().StringVarP(&dir, "workspace", "w", ".", "workspace root")
	initCmd.Flags().StringVarP(&repository, "repository", "r", "", "repository name recorded as the default pull source")
	initCmd.Flags().StringSliceVarP(&libraries, "library", "l", nil, "component library paths (repeatable)")
	cmd.AddCommand(initCmd)
	return cmd
}
