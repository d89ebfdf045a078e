package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/TimurManjosov/silencegate/internal/client"
	"github.com/TimurManjosov/silencegate/internal/syncctl"
	"github.com/TimurManjosov/silencegate/internal/view"
)

// OutputFormat specifies the output format for CLI commands
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format: %s (use table, json or yaml)", s)
	}
}

// render encodes data as JSON or YAML, or calls table for the table format.
func render(w io.Writer, data any, format OutputFormat, table func() error) error {
	switch format {
	case FormatJSON:
		return printJSON(w, data)
	case FormatYAML:
		return printYAML(w, data)
	case FormatTable:
		return table()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintState outputs the published snapshot.
func PrintState(w io.Writer, snap *view.Snapshot, format OutputFormat) error {
	return render(w, snap, format, func() error {
		fmt.Fprintf(w, "Active: %t   Receiver running: %t   ETag: %s\n\n", snap.Active, snap.ReceiverRunning, snap.ETag)

		table := tablewriter.NewWriter(w)
		table.Header("Feature", "Value", "Stored", "Phase", "Pending Request", "Health")
		for _, f := range snap.Features {
			health := "ok"
			if f.HealthWarning {
				health = "missing grant"
			}
			table.Append(string(f.Feature), strconv.FormatBool(f.Value), strconv.FormatBool(f.Stored), f.Phase, f.RequestID, health)
		}
		if err := table.Render(); err != nil {
			return err
		}

		fmt.Fprintln(w)
		domains := tablewriter.NewWriter(w)
		domains.Header("Domain", "Selection", "Selected", "Flags")
		for _, d := range snap.Domains {
			domains.Append(d.Name, fmt.Sprintf("%#x", d.Selection), strings.Join(d.Selected, ", "), strings.Join(d.Flags, ", "))
		}
		if err := domains.Render(); err != nil {
			return err
		}

		fmt.Fprintf(w, "\nThreshold: %s\n", snap.Threshold)
		if snap.Advisory.Active() {
			fmt.Fprintf(w, "Advisory: %s\n", snap.Advisory.Message)
		}
		return nil
	})
}

// PrintStatus outputs the controller status returned by write commands.
func PrintStatus(w io.Writer, st *syncctl.Status, format OutputFormat) error {
	return render(w, st, format, func() error {
		fmt.Fprintf(w, "Active: %t   Receiver should run: %t\n\n", st.Active, st.Derived.ReceiverShouldRun)
		table := tablewriter.NewWriter(w)
		table.Header("Feature", "Value", "Phase", "Pending Request", "Health Warning")
		for _, f := range st.Features {
			table.Append(string(f.Feature), strconv.FormatBool(f.Value), f.Phase, string(f.Request), strconv.FormatBool(f.HealthWarning))
		}
		if err := table.Render(); err != nil {
			return err
		}
		if st.Advisory.Active() {
			fmt.Fprintf(w, "\nAdvisory: %s\n", st.Advisory.Message)
		}
		return nil
	})
}

// PrintPrompts outputs in-flight grant requests.
func PrintPrompts(w io.Writer, p *client.Prompts, format OutputFormat) error {
	return render(w, p, format, func() error {
		if len(p.Pending) == 0 {
			fmt.Fprintln(w, "No pending prompts")
			return nil
		}
		table := tablewriter.NewWriter(w)
		table.Header("Request ID", "Feature", "Capabilities", "Opened At")
		for _, r := range p.Pending {
			caps := make([]string, len(r.Capabilities))
			for i, c := range r.Capabilities {
				caps[i] = string(c)
			}
			table.Append(string(r.ID), r.Tag, strings.Join(caps, ", "), r.OpenedAt.Format("2006-01-02 15:04:05"))
		}
		return table.Render()
	})
}

// PrintCapabilities outputs the platform grants.
func PrintCapabilities(w io.Writer, c *client.Capabilities, format OutputFormat) error {
	return render(w, c, format, func() error {
		granted := make(map[string]bool, len(c.Granted))
		for _, id := range c.Granted {
			granted[string(id)] = true
		}
		table := tablewriter.NewWriter(w)
		table.Header("Capability", "Granted")
		for _, id := range c.Known {
			table.Append(string(id), strconv.FormatBool(granted[string(id)]))
		}
		return table.Render()
	})
}

func printJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func printYAML(w io.Writer, data any) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(data)
}
