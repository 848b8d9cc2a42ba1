package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dreschagin/quality-history/internal/application/usecase"
	"github.com/dreschagin/quality-history/internal/domain/repository"
	"github.com/dreschagin/quality-history/internal/infrastructure/legacy"
)

var mergeFlags struct {
	into   string
	from   string
	output string
}

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Append a later history to an earlier one",
	Long: `Append the history in --from to the end of the history in --into.
The first snapshot of --from must be strictly later than the last snapshot of --into.

Without --into the configured history backend is used.

Examples:
  quality-report merge --into history.json --from history-2014.json
  quality-report merge --into a.json --from b.json --output merged.json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if mergeFlags.from == "" {
			return fmt.Errorf("--from is required")
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			into, err := a.historyRepository(ctx, mergeFlags.into)
			if err != nil {
				return err
			}
			from, err := a.historyRepository(ctx, mergeFlags.from)
			if err != nil {
				return err
			}
			var output repository.HistoryRepository
			if mergeFlags.output != "" {
				if output, err = a.historyRepository(ctx, mergeFlags.output); err != nil {
					return err
				}
			}

			uc := usecase.NewMergeHistoryUseCase(a.log).WithCache(a.cache())
			result, err := uc.Execute(ctx, usecase.MergeHistoryCommand{
				Into:   into,
				From:   from,
				Output: output,
			})
			if err != nil {
				return err
			}

			green := color.New(color.FgGreen).SprintFunc()
			fmt.Fprintf(cmd.OutOrStdout(), "%s merged into %s: %d snapshots, %d metrics, %d segments\n",
				green("✓"), result.Location, result.Snapshots, result.Metrics, result.Segments)
			return nil
		})
	},
}

var ingestFlags struct {
	input  string
	output string
	force  bool
}

var ingestCmd = &cobra.Command{
	Use:   "ingest-legacy",
	Short: "Convert a line-per-report legacy history into the compact form",
	Long: `Read the legacy history (one dict literal per line), drop ignored metric ids,
fold the reports into the compact history and save it.

Without --output the configured history backend is used. A history that already
exists there is kept: the converted reports are merged before or after it and
overlapping dates are an error. --force replaces the stored history instead.

Examples:
  quality-report ingest-legacy --input history.txt --output history.json
  quality-report ingest-legacy --input history.txt --output history.json --force`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if ingestFlags.input == "" {
			return fmt.Errorf("--input is required")
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			output, err := a.historyRepository(ctx, ingestFlags.output)
			if err != nil {
				return err
			}

			uc := usecase.NewIngestLegacyHistoryUseCase(a.log).WithCache(a.cache())
			result, err := uc.Execute(ctx, usecase.IngestLegacyHistoryCommand{
				Reader: legacy.NewFileReader(ingestFlags.input),
				Output: output,
				Force:  ingestFlags.force,
			})
			if err != nil {
				return err
			}

			green := color.New(color.FgGreen).SprintFunc()
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d records read, %d skipped, %d ids ignored\n",
				green("✓"), result.Records, result.Skipped, len(result.IgnoredIDs))
			verb := "written to"
			switch {
			case result.Merged:
				verb = "after merging into"
			case result.Replaced:
				verb = "replaced in"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  %d snapshots, %d metrics, %d segments %s %s\n",
				result.Snapshots, result.Metrics, result.Segments, verb, output.Location())
			return nil
		})
	},
}

var compactFlags struct {
	history string
}

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Join adjacent equal segments of a stored history",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			repo, err := a.historyRepository(ctx, compactFlags.history)
			if err != nil {
				return err
			}

			result, err := usecase.NewCompactHistoryUseCase(repo, a.log).WithCache(a.cache()).Execute(ctx)
			if err != nil {
				return err
			}

			if !result.Saved {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is already compact (%d segments)\n", repo.Location(), result.Segments)
				return nil
			}
			green := color.New(color.FgGreen).SprintFunc()
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d merges, %d segments left in %s\n",
				green("✓"), result.Merges, result.Segments, repo.Location())
			return nil
		})
	},
}

func init() {
	mergeCmd.Flags().StringVar(&mergeFlags.into, "into", "", "earlier history file (default: configured backend)")
	mergeCmd.Flags().StringVar(&mergeFlags.from, "from", "", "later history file")
	mergeCmd.Flags().StringVar(&mergeFlags.output, "output", "", "write the result here instead of --into")

	ingestCmd.Flags().StringVar(&ingestFlags.input, "input", "", "legacy history file")
	ingestCmd.Flags().StringVar(&ingestFlags.output, "output", "", "history file to write (default: configured backend)")
	ingestCmd.Flags().BoolVar(&ingestFlags.force, "force", false, "replace an existing history instead of merging into it")

	compactCmd.Flags().StringVar(&compactFlags.history, "history", "", "history file (default: configured backend)")

	rootCmd.AddCommand(mergeCmd, ingestCmd, compactCmd)
}

// withApp выполняет fn с настроенным app и контекстом, отменяемым по сигналу
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	return fn(ctx, a)
}
