package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jrsteele09/minu-sso/internal/browser"
	apperrors "github.com/jrsteele09/minu-sso/internal/errors"
	"github.com/jrsteele09/minu-sso/internal/loopback"
	"github.com/spf13/cobra"
)

const loginTimeout = 5 * time.Minute

var (
	loginService   string
	loginScopes    []string
	loginPort      int
	loginNoBrowser bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to a Minu service",
	Long: `Sign in to a Minu service.

A temporary listener on 127.0.0.1 receives the redirect back from the service,
so the browser must run on this machine.`,
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringVar(&loginService, "service", "find", "Minu service (find, frame, build, keep)")
	loginCmd.Flags().StringSliceVar(&loginScopes, "scope", nil, "scopes to request (default $MINU_SCOPES)")
	loginCmd.Flags().IntVar(&loginPort, "port", 8765, "localhost port for the callback, 0 picks a free one")
	loginCmd.Flags().BoolVar(&loginNoBrowser, "no-browser", false, "print the URL instead of opening a browser")
}

func runLogin(cmd *cobra.Command, args []string) error {
	service, err := parseService(loginService)
	if err != nil {
		return err
	}
	a, err := newApp()
	if err != nil {
		return err
	}

	receiver, err := loopback.Listen(loginPort, "")
	if err != nil {
		return fmt.Errorf("failed to start callback listener: %w", err)
	}
	defer receiver.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), loginTimeout)
	defer cancel()

	attempt, err := a.manager.Begin(ctx, service, receiver.RedirectURI(), loginScopes)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Signing in to Minu %s...\n", service)
	if loginNoBrowser {
		fmt.Fprintf(out, "\nOpen this URL in your browser:\n%s\n\n", attempt.URL)
	} else if err := browser.Open(attempt.URL); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Could not open browser: %v\n", err)
		fmt.Fprintf(out, "\nPlease visit this URL manually:\n%s\n\n", attempt.URL)
	} else {
		fmt.Fprintf(out, "If the browser doesn't open, visit:\n%s\n\n", attempt.URL)
	}
	fmt.Fprintf(out, "Waiting for the sign in to complete...\n")

	query, err := receiver.Wait(ctx)
	if err != nil {
		return fmt.Errorf("sign in timed out after %s", loginTimeout)
	}

	outcome, err := a.manager.Complete(ctx, query)
	if err != nil {
		return loginError(err)
	}

	r := outcome.Record
	fmt.Fprintf(out, "\nSigned in to Minu %s", r.Service)
	if r.UserID != "" {
		fmt.Fprintf(out, " as %s", r.UserID)
	}
	if r.Plan != "" {
		fmt.Fprintf(out, " (%s plan)", r.Plan)
	}
	fmt.Fprintf(out, ".\nSession valid until %s.\n", r.ExpiresAt.Local().Format(time.RFC1123))
	return nil
}

// loginError turns a failed login into a message for the terminal
func loginError(err error) error {
	switch apperrors.Classify(err) {
	case apperrors.CategoryDenied:
		return fmt.Errorf("sign in cancelled: access was not granted")
	case apperrors.CategoryCSRF:
		return fmt.Errorf("sign in could not be verified, start again with 'minu login': %w", err)
	case apperrors.CategoryNetwork:
		return fmt.Errorf("the Minu service could not be reached, please retry: %w", err)
	case apperrors.CategoryMalformedRequest:
		return fmt.Errorf("sign in failed: %w", err)
	}
	return err
}
