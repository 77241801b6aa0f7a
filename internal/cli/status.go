package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/landrecords/pkg/types"
)

func newStatusCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which storage tiers are available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			st := a.orch.Status()
			return e.output(cmd.OutOrStdout(), st, func() {
				out := cmd.OutOrStdout()
				mode := "online"
				if st.Offline {
					mode = "offline"
				}
				fmt.Fprintf(out, "Mode: %s\n", mode)
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "TIER\tAVAILABLE")
				for _, t := range st.Tiers {
					fmt.Fprintf(tw, "%s\t%t\n", t.Name, t.Available)
				}
				tw.Flush()
			})
		},
	}
}

func newWatchCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <module>",
		Short: "Print a line whenever the records of a module change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := e.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			changes := make(chan types.Change, 16)
			sub, err := a.orch.Subscribe(ctx, args[0], func(c types.Change) {
				select {
				case changes <- c:
				default:
				}
			})
			if err != nil {
				return err
			}
			defer sub.Cancel()

			for {
				select {
				case <-ctx.Done():
					return nil
				case c := <-changes:
					fmt.Fprintf(out, "%s %s changed (via %s)\n", a.clock.Now().Format(time.RFC3339), c.Module, c.Tier)
				}
			}
		},
	}
}
