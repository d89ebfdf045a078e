package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/silencegate/internal/cli"
	"github.com/TimurManjosov/silencegate/internal/client"
	"github.com/TimurManjosov/silencegate/internal/syncctl"
	"github.com/TimurManjosov/silencegate/internal/validation"
)

var capabilitiesCmd = &cobra.Command{
	Use:   "capabilities",
	Short: "List platform capabilities and whether they are granted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, out, ctx, cancel, err := connect(cmd)
		if err != nil {
			return err
		}
		defer cancel()

		caps, err := c.Capabilities(ctx)
		if err != nil {
			return fmt.Errorf("failed to list capabilities: %w", err)
		}
		if quiet {
			return nil
		}
		return cli.PrintCapabilities(cmd.OutOrStdout(), caps, out)
	},
}

var grantCmd = &cobra.Command{
	Use:   "grant <capability>",
	Short: "Grant a capability outside of any prompt",
	Long: `Grant a capability as the system settings screen would. Accepts the full
id or its short form.

Examples:
  silencectl grant READ_SMS
  silencectl grant CALL_SCREENING`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return changeCapability(cmd, args[0], (*client.Client).Grant)
	},
}

var revokeCmd = &cobra.Command{
	Use:   "revoke <capability>",
	Short: "Revoke a capability",
	Long: `Revoke a capability as the system settings screen would. Features that
need it keep their stored value and show a health warning.

Examples:
  silencectl revoke READ_CALL_LOG
  silencectl revoke android.permission.RECEIVE_SMS`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return changeCapability(cmd, args[0], (*client.Client).Revoke)
	},
}

func changeCapability(cmd *cobra.Command, id string, call func(*client.Client, context.Context, string) (*syncctl.Status, error)) error {
	if res, _ := validation.ValidateCapability(id); !res.Valid {
		return fmt.Errorf("invalid capability: %s", res.Errors["capability"])
	}
	c, out, ctx, cancel, err := connect(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	st, err := call(c, ctx, id)
	if err != nil {
		return fmt.Errorf("failed to change %s: %w", id, err)
	}
	if quiet {
		return nil
	}
	return cli.PrintStatus(cmd.OutOrStdout(), st, out)
}

func init() {
	rootCmd.AddCommand(capabilitiesCmd)
	rootCmd.AddCommand(grantCmd)
	rootCmd.AddCommand(revokeCmd)
}
