package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored sessions",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	records, err := a.manager.Sessions().List(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, "Not signed in. Run 'minu login --service <name>'.")
		return nil
	}

	current, _ := a.manager.Sessions().Current(ctx)
	now := time.Now()

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SERVICE\tUSER\tPLAN\tSTATUS\tEXPIRES")
	for _, r := range records {
		name := string(r.Service)
		if r.Service == current {
			name += " *"
		}
		expires := "in " + r.ExpiresAt.Sub(now).Round(time.Second).String()
		if r.Expired(now) {
			expires = "expired"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", name, dash(r.UserID), dash(r.Plan), dash(r.Status), expires)
	}
	return w.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
