package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/silencegate/internal/cli"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show features, flag sets and the threshold",
	Long: `Show the published state: every feature's visual and stored value,
pending grant requests, health warnings, flag-set selections, the
repeated-call threshold and any advisory.

Examples:
  silencectl state
  silencectl state --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, out, ctx, cancel, err := connect(cmd)
		if err != nil {
			return err
		}
		defer cancel()

		snap, err := c.State(ctx)
		if err != nil {
			return fmt.Errorf("failed to get state: %w", err)
		}
		if quiet {
			return nil
		}
		return cli.PrintState(cmd.OutOrStdout(), snap, out)
	},
}

func init() {
	rootCmd.AddCommand(stateCmd)
}
