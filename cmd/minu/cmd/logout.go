package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	logoutService string
	logoutAll     bool
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke and forget a session",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

func init() {
	rootCmd.AddCommand(logoutCmd)
	logoutCmd.Flags().StringVar(&logoutService, "service", "", "Minu service to sign out of")
	logoutCmd.Flags().BoolVar(&logoutAll, "all", false, "sign out of every service")
	logoutCmd.MarkFlagsMutuallyExclusive("service", "all")
}

func runLogout(cmd *cobra.Command, args []string) error {
	if !logoutAll && logoutService == "" {
		return errors.New("either --service or --all is required")
	}
	a, err := newApp()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if logoutAll {
		if err := a.manager.LogoutAll(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(out, "Signed out of all Minu services.")
		return nil
	}

	service, err := parseService(logoutService)
	if err != nil {
		return err
	}
	if err := a.manager.Logout(cmd.Context(), service); err != nil {
		return err
	}
	fmt.Fprintf(out, "Signed out of Minu %s.\n", service)
	return nil
}
