package commands

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/silencegate/internal/bitmask"
	"github.com/TimurManjosov/silencegate/internal/client"
	"github.com/TimurManjosov/silencegate/internal/view"
)

var (
	selectValue   int64
	selectCheck   []string
	selectUncheck []string
)

var selectCmd = &cobra.Command{
	Use:   "select <domain> [flag...]",
	Short: "Replace a flag-set selection",
	Long: `Replace the selection of a flag set with the named flags. The whole
selection is committed as one write. With no flags the selection is cleared.
--check and --uncheck edit the stored selection instead; nothing is written
when the edit leaves it unchanged.

Domains and flags:
  contacted      call, message
  groups         toll_free, local, not_local, mobile, local_mobile
  general_flag   notifications, skip_call_log, skip_notification

Examples:
  silencectl select contacted call
  silencectl select groups local mobile
  silencectl select general_flag --value 5
  silencectl select groups --check toll_free --uncheck mobile`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		domain, flags := args[0], args[1:]
		desc, ok := bitmask.Lookup(domain)
		if !ok {
			return fmt.Errorf("unknown domain '%s', valid domains: %s", domain, strings.Join(bitmask.Names(), ", "))
		}

		useValue := cmd.Flags().Changed("value")
		editing := len(selectCheck) > 0 || len(selectUncheck) > 0
		if (useValue && len(flags) > 0) || (editing && (useValue || len(flags) > 0)) {
			return fmt.Errorf("use one of flag names, --value or --check/--uncheck")
		}
		if useValue {
			if selectValue < 0 || selectValue > int64(desc.Mask()) {
				return fmt.Errorf("value must be between 0 and %d", uint32(desc.Mask()))
			}
			if err := desc.Validate(bitmask.Selection(selectValue)); err != nil {
				return err
			}
		} else if !editing {
			if _, err := bitmask.SelectionOf(desc, flags...); err != nil {
				return err
			}
		}

		c, _, ctx, cancel, err := connect(cmd)
		if err != nil {
			return err
		}
		defer cancel()

		var res *client.SelectionResult
		switch {
		case editing:
			snap, stateErr := c.State(ctx)
			if stateErr != nil {
				return fmt.Errorf("failed to get state: %w", stateErr)
			}
			draft, editErr := editDraft(desc, snap)
			if editErr != nil {
				return editErr
			}
			if !draft.Dirty() {
				if !quiet {
					fmt.Fprintf(cmd.OutOrStdout(), "%s unchanged\n", domain)
				}
				return nil
			}
			res, err = c.SetSelectionValue(ctx, domain, uint32(draft.Selection()))
		case useValue:
			res, err = c.SetSelectionValue(ctx, domain, uint32(selectValue))
		default:
			res, err = c.SetSelection(ctx, domain, flags)
		}
		if err != nil {
			return fmt.Errorf("failed to set %s: %w", domain, err)
		}
		if !quiet {
			selected := "(none)"
			if len(res.Selected) > 0 {
				selected = strings.Join(res.Selected, ", ")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %#x: %s\n", res.Domain, res.Selection, selected)
		}
		return nil
	},
}

// editDraft applies --check and --uncheck to the stored selection of desc.
func editDraft(desc bitmask.Descriptor, snap *view.Snapshot) (*bitmask.Draft, error) {
	var stored bitmask.Selection
	for _, d := range snap.Domains {
		if d.Name == desc.Name() {
			stored = bitmask.Selection(d.Selection)
		}
	}
	draft := bitmask.NewDraft(desc, stored)
	labels := desc.Labels()
	set := func(names []string, on bool) error {
		for _, name := range names {
			i := slices.Index(labels, name)
			if i < 0 {
				return fmt.Errorf("unknown flag '%s' for %s, valid flags: %s", name, desc.Name(), strings.Join(labels, ", "))
			}
			if err := draft.Set(i, on); err != nil {
				return err
			}
		}
		return nil
	}
	// Unchecks apply last.
	if err := set(selectCheck, true); err != nil {
		return nil, err
	}
	if err := set(selectUncheck, false); err != nil {
		return nil, err
	}
	return draft, nil
}

func init() {
	rootCmd.AddCommand(selectCmd)
	selectCmd.Flags().Int64Var(&selectValue, "value", 0, "Raw selection value instead of flag names")
	selectCmd.Flags().StringSliceVar(&selectCheck, "check", nil, "Check flags in the stored selection")
	selectCmd.Flags().StringSliceVar(&selectUncheck, "uncheck", nil, "Uncheck flags in the stored selection")
}
