package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-rules/internal/rules"
)

// sceneSummary is one scene in the validate report.
type sceneSummary struct {
	Name     string   `json:"name"`
	Default  bool     `json:"default,omitempty"`
	Triggers []string `json:"triggers,omitempty"`
	Priority *int     `json:"priority,omitempty"`
	Interval float64  `json:"interval_seconds"`
	Handlers int      `json:"handlers"`
}

// validateReport is printed by the validate command.
type validateReport struct {
	Valid       bool           `json:"valid"`
	Error       string         `json:"error,omitempty"`
	Scenes      []sceneSummary `json:"scenes,omitempty"`
	UsageStates []string       `json:"usage_states,omitempty"`
}

func newValidateCommand(opts *rootOptions) *cobra.Command {
	var catalogue []string

	cmd := &cobra.Command{
		Use:   "validate <rules.yaml>",
		Short: "Check a rule file and list the states it uses",
		Long: `Parse, resolve and compile a rule file without running it.

Prints every scene and the usage states a producer must emit for the rules
to be reachable. Exits non-zero when the file does not load.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report := validateFile(args[0], catalogue)
			if err := writeReport(cmd.OutOrStdout(), opts.format, report); err != nil {
				return err
			}
			if !report.Valid {
				return fmt.Errorf("%s: %s", args[0], report.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&catalogue, "catalogue", nil, "extra valid state names (comma separated)")
	return cmd
}

func validateFile(path string, catalogue []string) validateReport {
	set, err := rules.LoadFile(path)
	if err != nil {
		return validateReport{Error: err.Error()}
	}
	m, err := rules.Load(set, nil, rules.LoadOptions{Catalogue: catalogue})
	if err != nil {
		return validateReport{Error: err.Error()}
	}

	report := validateReport{Valid: true, UsageStates: m.UsageStates()}
	for _, s := range m.Scenes() {
		report.Scenes = append(report.Scenes, sceneSummary{
			Name:     s.Name,
			Default:  s.IsDefault(),
			Triggers: s.Triggers,
			Priority: s.Priority,
			Interval: s.Interval.Seconds(),
			Handlers: len(s.Handlers),
		})
	}
	return report
}

func writeReport(w io.Writer, format string, r validateReport) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	if !r.Valid {
		_, err := fmt.Fprintf(w, "invalid: %s\n", r.Error)
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "valid: %d scene(s)\n", len(r.Scenes))
	for _, s := range r.Scenes {
		prio := "unset"
		if s.Priority != nil {
			prio = fmt.Sprint(*s.Priority)
		}
		kind := "triggers=" + strings.Join(s.Triggers, ",")
		if s.Default {
			kind = "default"
		}
		fmt.Fprintf(&b, "  %-20s %s priority=%s interval=%gs handlers=%d\n",
			s.Name, kind, prio, s.Interval, s.Handlers)
	}
	fmt.Fprintf(&b, "usage states (%d):\n", len(r.UsageStates))
	for _, name := range r.UsageStates {
		fmt.Fprintf(&b, "  %s\n", name)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
