package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"pumpcore/internal/archive"
	"pumpcore/internal/importer"
	"pumpcore/internal/infra/persistence"
	"pumpcore/internal/service"
	"pumpcore/pkg/domain"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Actor       string
	Description string
	NoArchive   bool
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Bulk-load records from a CSV file",
		Long: `Load a CSV file into the record set. The first row names the columns;
each data row becomes one record with an allocated identifier and an INSERT
entry in the change trail. Failed rows are counted and reported without
aborting the run. The source file is archived unless --no-archive is set.

Example:
  pumpctl import ./pumps.csv --actor ops@example.com`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Actor, "actor", "", "email recorded as the acting user (default anonymous)")
	cmd.Flags().StringVar(&opts.Description, "description", "", "annotation for the change trail")
	cmd.Flags().BoolVar(&opts.NoArchive, "no-archive", false, "skip archiving the source file")

	return cmd
}

func runImport(cmd *cobra.Command, opts *ImportOptions, path string) error {
	ctx := cmd.Context()
	logger := newLogger(opts.RootOptions)

	backend, err := persistence.Open(ctx)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer closeBackend(backend, logger)

	svc := service.New(backend, backend, service.WithLogger(logger))

	importerOpts := []importer.Option{importer.WithLogger(logger)}
	if !opts.NoArchive {
		arch, err := archive.Open(ctx)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		importerOpts = append(importerOpts, importer.WithArchive(arch))
	}
	imp := importer.New(svc, importerOpts...)

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	identity := domain.Anonymous()
	if opts.Actor != "" {
		identity = domain.Authenticated(opts.Actor)
	}
	rc := service.RequestContext{Identity: identity, Description: opts.Description}

	result, err := imp.Import(ctx, rc, filepath.Base(path), file)
	if err != nil {
		return err
	}

	switch opts.Format {
	case "json":
		return printJSON(cmd, importResultJSON(result))
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d/%d rows (%d failed)\n", result.Succeeded, result.Total, result.Failed)
		for _, rowErr := range result.Errors {
			fmt.Fprintf(cmd.OutOrStdout(), "  %v\n", rowErr)
		}
		if extra := result.Failed - len(result.Errors); extra > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "  ... and %d more failures\n", extra)
		}
		if result.ArchiveKey != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Source archived as %s\n", result.ArchiveKey)
		}
	}
	if result.Failed > 0 && result.Succeeded == 0 {
		return fmt.Errorf("all %d rows failed", result.Failed)
	}
	return nil
}

type importSummary struct {
	Total      int      `json:"total"`
	Succeeded  int      `json:"succeeded"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors,omitempty"`
	ArchiveKey string   `json:"archive_key,omitempty"`
}

func importResultJSON(result importer.Result) importSummary {
	summary := importSummary{
		Total:      result.Total,
		Succeeded:  result.Succeeded,
		Failed:     result.Failed,
		ArchiveKey: result.ArchiveKey,
	}
	for _, rowErr := range result.Errors {
		summary.Errors = append(summary.Errors, rowErr.Error())
	}
	return summary
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type closer interface{ Close() error }

func closeBackend(backend persistence.Backend, logger interface{ Error(string, ...any) }) {
	if c, ok := backend.(closer); ok {
		if err := c.Close(); err != nil {
			logger.Error("close storage", "error", err.Error())
		}
	}
}
