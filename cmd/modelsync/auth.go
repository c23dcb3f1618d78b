package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/modelsync/internal/appconfig"
	"pkt.systems/modelsync/internal/auth"
	"pkt.systems/modelsync/schema"
	"pkt.systems/pslog"
)

func newAuthCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage API credentials",
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file")

	openStore := func(cmd *cobra.Command) (*auth.Store, error) {
		cfg, err := appconfig.Load(cfgPath)
		if err != nil {
			return nil, err
		}
		return auth.NewStore(cfg.Auth.File, auth.Options{
			CookieName: cfg.Auth.Cookie,
			Logger:     pslog.Ctx(cmd.Context()),
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Report whether credentials are available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			source := store.Source(cmd.Context())
			if source == "" {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "not authenticated (auth file %s)\n", store.Path())
				return schema.ErrNotAuthenticated
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "authenticated via %s\n", source)
			return err
		},
	})

	var token string
	var base string
	login := &cobra.Command{
		Use:   "login",
		Short: "Store an API token in the auth file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(token) == "" {
				return errors.New("--token is required")
			}
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			if err := store.Login(token, base); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "credentials written to %s\n", store.Path())
			return err
		},
	}
	login.Flags().StringVarP(&token, "token", "t", "", "API token")
	login.Flags().StringVar(&base, "base", "", "base URL recorded in the auth file")
	cmd.AddCommand(login)

	cmd.AddCommand(&cobra.Command{
		Use:   "logout",
		Short: "Remove the API token from the auth file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			if err := store.Logout(); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return err
		},
	})
	return cmd
}
