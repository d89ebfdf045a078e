package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/silencegate/internal/cli"
	"github.com/TimurManjosov/silencegate/internal/validation"
)

var answerGrant, answerDeny bool

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "List open capability prompts",
	Long: `List grant requests that are waiting for an answer, oldest first.

Examples:
  silencectl prompts
  silencectl prompts --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, out, ctx, cancel, err := connect(cmd)
		if err != nil {
			return err
		}
		defer cancel()

		p, err := c.Prompts(ctx)
		if err != nil {
			return fmt.Errorf("failed to list prompts: %w", err)
		}
		if quiet {
			return nil
		}
		return cli.PrintPrompts(cmd.OutOrStdout(), p, out)
	},
}

var answerCmd = &cobra.Command{
	Use:   "answer <request-id> (--grant | --deny)",
	Short: "Answer a capability prompt",
	Long: `Answer an open capability prompt as the user would. Granting commits the
pending toggle; denying, or dismissing, rolls it back.

Examples:
  silencectl answer 9b2f6c1e-0d7a-4f55-9b8e-3c1f2a4d5e6f --grant
  silencectl answer 9b2f6c1e-0d7a-4f55-9b8e-3c1f2a4d5e6f --deny`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if answerGrant == answerDeny {
			return fmt.Errorf("exactly one of --grant or --deny is required")
		}
		if res := validation.ValidateRequestID(args[0]); !res.Valid {
			return fmt.Errorf("invalid request id: %s", res.Errors["id"])
		}

		c, out, ctx, cancel, err := connect(cmd)
		if err != nil {
			return err
		}
		defer cancel()

		st, err := c.Answer(ctx, args[0], answerGrant)
		if err != nil {
			return fmt.Errorf("failed to answer prompt: %w", err)
		}
		if quiet {
			return nil
		}
		return cli.PrintStatus(cmd.OutOrStdout(), st, out)
	},
}

func init() {
	rootCmd.AddCommand(promptsCmd)
	rootCmd.AddCommand(answerCmd)
	answerCmd.Flags().BoolVar(&answerGrant, "grant", false, "Grant the prompt")
	answerCmd.Flags().BoolVar(&answerDeny, "deny", false, "Deny the prompt")
}
