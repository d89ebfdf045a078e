package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/silencegate/internal/cli"
)

var activateCmd = &cobra.Command{
	Use:   "activate",
	Short: "Start observing preference changes",
	Long: `Activate the settings screen: the controller registers its listener,
reloads every toggle from the store and re-runs all checks.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return lifecycle(cmd, true)
	},
}

var deactivateCmd = &cobra.Command{
	Use:   "deactivate",
	Short: "Stop observing preference changes",
	Long: `Deactivate the settings screen. Writes made while inactive are picked up
on the next activate; pending prompts stay open.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return lifecycle(cmd, false)
	},
}

func lifecycle(cmd *cobra.Command, activate bool) error {
	c, out, ctx, cancel, err := connect(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	call := c.Deactivate
	if activate {
		call = c.Activate
	}
	st, err := call(ctx)
	if err != nil {
		return fmt.Errorf("failed to change lifecycle: %w", err)
	}
	if quiet {
		return nil
	}
	return cli.PrintStatus(cmd.OutOrStdout(), st, out)
}

func init() {
	rootCmd.AddCommand(activateCmd)
	rootCmd.AddCommand(deactivateCmd)
}
