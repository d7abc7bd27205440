package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pumpcore/internal/audit"
	"pumpcore/internal/infra/persistence"
	"pumpcore/internal/service"
	"pumpcore/pkg/domain"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Table      string
	Actor      string
	Operations []string
	From       string
	To         string
	Limit      int
	ShowDiff   bool
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded changes, most recent first",
		Long: `Query the change trail. Filters combine with AND; dates are civil
dates in YYYY-MM-DD form, --from inclusive and --to exclusive, interpreted
in the timezone change timestamps are recorded and displayed in.

Example:
  pumpctl history --actor ops@example.com --op UPDATE --from 2025-06-01 --diff`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Table, "table", "", "filter by table name")
	cmd.Flags().StringVar(&opts.Actor, "actor", "", "filter by acting user")
	cmd.Flags().StringSliceVar(&opts.Operations, "op", nil, "filter by operation (INSERT|UPDATE|DELETE), repeatable")
	cmd.Flags().StringVar(&opts.From, "from", "", "start date, inclusive (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.To, "to", "", "end date, exclusive (YYYY-MM-DD)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "maximum entries to show (0 = all)")
	cmd.Flags().BoolVar(&opts.ShowDiff, "diff", false, "show per-field old/new comparison")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions) error {
	ctx := cmd.Context()
	logger := newLogger(opts.RootOptions)

	filter, err := buildChangeFilter(opts)
	if err != nil {
		return err
	}

	backend, err := persistence.Open(ctx)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer closeBackend(backend, logger)

	svc := service.New(backend, backend, service.WithLogger(logger))
	entries, err := svc.History(ctx, filter)
	if err != nil {
		return err
	}
	if opts.Limit > 0 && len(entries) > opts.Limit {
		entries = entries[:opts.Limit]
	}

	if opts.Format == "json" {
		return printJSON(cmd, entries)
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No matching changes.")
		return nil
	}
	loc := auditLocation()
	for _, entry := range entries {
		fmt.Fprintf(out, "%s  %-6s  %s #%d  by %s",
			entry.ModifiedAt.In(loc).Format("2006-01-02 15:04:05"),
			entry.Operation,
			entry.TableName,
			entry.RecordID,
			entry.ModifiedBy,
		)
		if entry.Description != "" {
			fmt.Fprintf(out, "  (%s)", entry.Description)
		}
		fmt.Fprintln(out)

		if opts.ShowDiff {
			for _, d := range svc.DiffEntry(entry) {
				if d.Status == domain.DiffUnchanged {
					continue
				}
				fmt.Fprintf(out, "    %-20s %s -> %s\n", d.Field+":", d.Old, d.New)
			}
		}
	}
	return nil
}

func buildChangeFilter(opts *HistoryOptions) (domain.ChangeFilter, error) {
	filter := domain.ChangeFilter{
		Table: opts.Table,
		Actor: opts.Actor,
	}
	loc := auditLocation()
	for _, raw := range opts.Operations {
		op, err := domain.ParseOperation(raw)
		if err != nil {
			return domain.ChangeFilter{}, fmt.Errorf("invalid --op %q: must be one of INSERT, UPDATE, DELETE", raw)
		}
		filter.Operations = append(filter.Operations, op)
	}
	if opts.From != "" {
		from, err := parseCivilDate(opts.From, loc)
		if err != nil {
			return domain.ChangeFilter{}, fmt.Errorf("invalid --from: %w", err)
		}
		filter.From = from
	}
	if opts.To != "" {
		to, err := parseCivilDate(opts.To, loc)
		if err != nil {
			return domain.ChangeFilter{}, fmt.Errorf("invalid --to: %w", err)
		}
		filter.To = to
	}
	return filter, nil
}

// parseCivilDate interprets a YYYY-MM-DD date as midnight in loc, so filter
// boundaries line up with the civil dates shown in the listing.
func parseCivilDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not a YYYY-MM-DD date", s)
	}
	return t, nil
}

// auditLocation mirrors the recorder's timezone resolution.
func auditLocation() *time.Location {
	loc, err := time.LoadLocation(audit.DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
