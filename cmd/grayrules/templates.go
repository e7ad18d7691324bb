package main

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-rules/internal/audit"
	"github.com/nerrad567/gray-logic-rules/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-rules/internal/rules"
)

// auditSource tags audit entries written by this binary.
const auditSource = "cli"

func newTemplatesCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Manage the shared template library",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "import <file.yaml>",
			Short: "Store the templates section of a rule file in the library",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRepository(cmd.Context(), opts.configPath, func(repo rules.TemplateRepository, trail audit.Repository) error {
					set, err := rules.LoadFile(args[0])
					if err != nil {
						return err
					}
					n, err := repo.Import(cmd.Context(), set.Templates)
					if err != nil {
						return err
					}
					if err := trail.Create(cmd.Context(), &audit.Log{
						Action:     audit.ActionImport,
						EntityType: "template_set",
						EntityID:   filepath.Base(args[0]),
						Source:     auditSource,
						Details: map[string]any{
							"count":      n,
							"handlers":   sortedKeys(set.Templates.Handlers),
							"operations": sortedKeys(set.Templates.Operations),
						},
					}); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "imported %d template(s)\n", n)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List stored templates",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withRepository(cmd.Context(), opts.configPath, func(repo rules.TemplateRepository, _ audit.Repository) error {
					infos, err := repo.List(cmd.Context())
					if err != nil {
						return err
					}
					tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "KIND\tNAME\tUPDATED")
					for _, info := range infos {
						fmt.Fprintf(tw, "%s\t%s\t%s\n", info.Kind, info.Name, info.UpdatedAt.Format(time.RFC3339))
					}
					return tw.Flush()
				})
			},
		},
		&cobra.Command{
			Use:   "delete <handler|operation> <name>",
			Short: "Remove a stored template",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				kind := rules.TemplateKind(args[0])
				if kind != rules.KindHandler && kind != rules.KindOperation {
					return fmt.Errorf("unknown template kind %q", args[0])
				}
				return withRepository(cmd.Context(), opts.configPath, func(repo rules.TemplateRepository, trail audit.Repository) error {
					if err := repo.Delete(cmd.Context(), kind, args[1]); err != nil {
						return err
					}
					return trail.Create(cmd.Context(), &audit.Log{
						Action:     audit.ActionDelete,
						EntityType: string(kind),
						EntityID:   args[1],
						Source:     auditSource,
					})
				})
			},
		},
		newTemplatesLogCommand(opts),
	)
	return cmd
}

func newTemplatesLogCommand(opts *rootOptions) *cobra.Command {
	var filter audit.Filter

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show changes made to the template library, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRepository(cmd.Context(), opts.configPath, func(_ rules.TemplateRepository, trail audit.Repository) error {
				res, err := trail.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if opts.format == "json" {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(res)
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TIME\tACTION\tTYPE\tID\tSOURCE")
				for _, l := range res.Logs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
						l.CreatedAt.Format(time.RFC3339), l.Action, l.EntityType, l.EntityID, l.Source)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&filter.Action, "action", "", "only entries with this action (import|delete)")
	cmd.Flags().IntVar(&filter.Limit, "limit", 50, "maximum entries to show")
	return cmd
}

// withRepository opens and migrates the configured database for fn.
func withRepository(ctx context.Context, configPath string, fn func(rules.TemplateRepository, audit.Repository) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // Short-lived command

	return fn(rules.NewSQLiteTemplateRepository(db.DB), audit.NewSQLiteRepository(db.DB))
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
