package cmd

import (
	"fmt"
	"time"

	apperrors "github.com/jrsteele09/minu-sso/internal/errors"
	"github.com/spf13/cobra"
)

var refreshService string

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Renew the access token of a session",
	Args:  cobra.NoArgs,
	RunE:  runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
	refreshCmd.Flags().StringVar(&refreshService, "service", "", "Minu service to refresh")
	_ = refreshCmd.MarkFlagRequired("service")
}

func runRefresh(cmd *cobra.Command, args []string) error {
	service, err := parseService(refreshService)
	if err != nil {
		return err
	}
	a, err := newApp()
	if err != nil {
		return err
	}

	r, err := a.manager.Refresh(cmd.Context(), service)
	if err != nil {
		if apperrors.Classify(err) == apperrors.CategoryExpiredSession {
			return fmt.Errorf("session cannot be refreshed, run 'minu login --service %s': %w", service, err)
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Refreshed Minu %s, valid until %s.\n", service, r.ExpiresAt.Local().Format(time.RFC1123))
	return nil
}
