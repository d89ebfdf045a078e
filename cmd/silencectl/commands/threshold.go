package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/silencegate/internal/threshold"
)

var thresholdCmd = &cobra.Command{
	Use:   "threshold <count> <minutes>",
	Short: "Set the repeated-call threshold",
	Long: `Set the repeated-call threshold: a caller is let through after more than
<count> calls within <minutes>. Count must be less than minutes; both fields
are committed together.

Examples:
  silencectl threshold 3 5
  silencectl threshold 4 15
  silencectl threshold --choices`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if thresholdChoices {
			printChoices(cmd.OutOrStdout())
			return nil
		}
		if len(args) != 2 {
			return fmt.Errorf("requires <count> and <minutes>")
		}
		count, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid count %q", args[0])
		}
		minutes, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid minutes %q", args[1])
		}
		draft := threshold.NewDraft(threshold.Default())
		draft.SetCount(count)
		draft.SetMinutes(minutes)
		cfg, err := draft.Confirm()
		if err != nil {
			return err
		}

		c, _, ctx, cancel, err := connect(cmd)
		if err != nil {
			return err
		}
		defer cancel()

		res, err := c.SetThreshold(ctx, cfg.Count, cfg.Minutes)
		if err != nil {
			return fmt.Errorf("failed to set threshold: %w", err)
		}
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "Threshold: %s\n", res.Description)
		}
		return nil
	},
}

var thresholdChoices bool

func printChoices(w io.Writer) {
	fmt.Fprintf(w, "count:   %s\n", joinInts(threshold.CountChoices))
	fmt.Fprintf(w, "minutes: %s\n", joinInts(threshold.MinuteChoices))
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}

func init() {
	thresholdCmd.Flags().BoolVar(&thresholdChoices, "choices", false, "List the values offered by the settings dialog")
	rootCmd.AddCommand(thresholdCmd)
}
