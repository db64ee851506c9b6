package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ksred/tienda-moves/internal/database"
	"github.com/ksred/tienda-moves/internal/services"
)

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the database the revisions run against",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withManager(cmd, func(ctx context.Context, m *database.Manager) error {
				info := m.Info()
				keys := make([]string, 0, len(info))
				for k := range info {
					keys = append(keys, k)
				}
				sort.Strings(keys)

				rows := make([][]string, 0, len(keys))
				for _, k := range keys {
					rows = append(rows, []string{k, fmt.Sprint(info[k])})
				}
				return renderTable(a.out, infoColumns, rows)
			})
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List revisions and whether each is applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withManager(cmd, func(ctx context.Context, m *database.Manager) error {
				status, err := m.Status(ctx)
				if err != nil {
					return err
				}
				if len(status.Revisions) == 0 && len(status.Orphans) == 0 {
					fmt.Fprintln(a.out, "no revisions found")
					return nil
				}

				rows := make([][]string, 0, len(status.Revisions)+len(status.Orphans))
				for _, r := range status.Revisions {
					mark, applied := "[ ]", ""
					if r.Applied {
						mark = "[x]"
						applied = r.DateApplied.UTC().Format(time.DateTime)
					}
					rows = append(rows, []string{mark, r.ID, applied})
				}
				for _, orphan := range status.Orphans {
					rows = append(rows, []string{"[!]", orphan, "missing revision file"})
				}
				return renderTable(a.out, statusColumns, rows)
			})
		},
	}
}

func newCreateCmd(a *app) *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "create <model>",
		Short: "Write create-table revisions for a model or a module",
		Long: `Write one create-table revision per model. The target is a model
("usuario", "tienda.usuario") or a whole module ("tienda"), in which case
referenced tables get the lower revision numbers. --list shows the known
modules and models.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if list {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withManager(cmd, func(ctx context.Context, m *database.Manager) error {
				if list {
					rows := [][]string{}
					for _, g := range m.Models() {
						rows = append(rows, []string{g.Module, strings.Join(g.Models, ", ")})
					}
					return renderTable(a.out, modelColumns, rows)
				}

				ids, err := m.Create(args[0])
				for _, id := range ids {
					fmt.Fprintf(a.out, "created: %s\n", id)
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVarP(&list, "list", "l", false, "list the modules and models create accepts")
	return cmd
}

func newRevisionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "revision [name]",
		Short: "Write a blank revision",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withManager(cmd, func(ctx context.Context, m *database.Manager) error {
				id, err := m.Revision(strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "created: %s\n", id)
				return nil
			})
		},
	}
}

func newUpgradeCmd(a *app) *cobra.Command {
	var fake bool
	cmd := &cobra.Command{
		Use:   "upgrade [target]",
		Short: "Apply pending revisions, up to target if given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withManager(cmd, func(ctx context.Context, m *database.Manager) error {
				return m.Upgrade(ctx, firstArg(args), fake)
			})
		},
	}
	cmd.Flags().BoolVar(&fake, "fake", false, "record revisions in the ledger without running them")
	return cmd
}

func newDowngradeCmd(a *app) *cobra.Command {
	var fake bool
	cmd := &cobra.Command{
		Use:   "downgrade [target]",
		Short: "Revert the latest revision, or every revision down to target",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withManager(cmd, func(ctx context.Context, m *database.Manager) error {
				return m.Downgrade(ctx, firstArg(args), fake)
			})
		},
	}
	cmd.Flags().BoolVar(&fake, "fake", false, "remove revisions from the ledger without running them")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <target>",
		Short: "Delete a revision file and its ledger row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withManager(cmd, func(ctx context.Context, m *database.Manager) error {
				return m.Delete(ctx, args[0])
			})
		},
	}
}

func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the default storefront data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withManager(cmd, func(ctx context.Context, m *database.Manager) error {
				report, err := services.NewSeedService(m.DB(), a.logger).Seed(ctx)
				if err != nil {
					return err
				}

				tables := make([]string, 0, len(report.Created)+len(report.Existing))
				seen := make(map[string]bool)
				for _, counts := range []map[string]int{report.Created, report.Existing} {
					for table := range counts {
						if !seen[table] {
							seen[table] = true
							tables = append(tables, table)
						}
					}
				}
				sort.Strings(tables)

				rows := make([][]string, 0, len(tables))
				for _, table := range tables {
					rows = append(rows, []string{table, fmt.Sprint(report.Created[table]), fmt.Sprint(report.Existing[table])})
				}
				return renderTable(a.out, seedColumns, rows)
			})
		},
	}
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
