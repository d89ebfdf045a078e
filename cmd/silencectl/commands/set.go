package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/silencegate/internal/validation"
)

var setCmd = &cobra.Command{
	Use:   "set <feature> <on|off>",
	Short: "Toggle a feature",
	Long: `Request a feature toggle. Turning a feature off, or on while its
capabilities are held, commits immediately. Otherwise a capability prompt is
opened; answer it with 'silencectl answer'.

Features: service, contacted, groups, repeated, messages, stir

Examples:
  silencectl set stir on
  silencectl set messages on
  silencectl set service off`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if res := validation.ValidateFeature(args[0]); !res.Valid {
			return fmt.Errorf("invalid feature: %s", res.Errors["feature"])
		}
		enabled, err := parseOnOff(args[1])
		if err != nil {
			return err
		}

		c, _, ctx, cancel, err := connect(cmd)
		if err != nil {
			return err
		}
		defer cancel()

		res, err := c.SetFeature(ctx, args[0], enabled)
		if err != nil {
			return fmt.Errorf("failed to set %s: %w", args[0], err)
		}
		if quiet {
			return nil
		}
		w := cmd.OutOrStdout()
		if res.Accepted {
			fmt.Fprintf(w, "Capability prompt opened for '%s' (request %s)\n", args[0], res.Request)
			fmt.Fprintf(w, "Answer it with: silencectl answer %s --grant\n", res.Request)
			return nil
		}
		fmt.Fprintf(w, "'%s' is now %s\n", args[0], onOff(res.Value))
		return nil
	},
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "enable", "enabled":
		return true, nil
	case "off", "disable", "disabled":
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid value %q, use on or off", s)
	}
	return b, nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func init() {
	rootCmd.AddCommand(setCmd)
}
