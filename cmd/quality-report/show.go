package main

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dreschagin/quality-history/internal/application/dto"
	"github.com/dreschagin/quality-history/internal/application/usecase"
	"github.com/dreschagin/quality-history/internal/domain/valueobject"
)

var showFlags struct {
	metric   string
	recent   int
	segments bool
	history  string
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the history of a metric or the status trend",
	Long: `Show the current status of a metric, the date it started and its recent values.
Without --metric the status counts of the last --recent snapshots are shown.

Examples:
  quality-report show --metric OpenBugsFoo --recent 5
  quality-report show --recent 10`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			repo, err := a.historyRepository(ctx, showFlags.history)
			if err != nil {
				return err
			}
			cache := a.cache()

			if showFlags.metric == "" {
				trend, err := usecase.NewGetStatusTrendUseCase(repo, cache, a.log).Execute(ctx, valueobject.TimeRange{})
				if err != nil {
					return err
				}
				printTrend(cmd.OutOrStdout(), trend, showFlags.recent)
				return nil
			}

			history, err := usecase.NewGetMetricHistoryUseCase(repo, cache, a.log).Execute(ctx, usecase.GetMetricHistoryQuery{
				MetricID:     showFlags.metric,
				Recent:       showFlags.recent,
				WithSegments: showFlags.segments,
			})
			if err != nil {
				return err
			}
			printMetricHistory(cmd.OutOrStdout(), history)
			return nil
		})
	},
}

func init() {
	showCmd.Flags().StringVar(&showFlags.metric, "metric", "", "metric id, e.g. OpenBugsFoo")
	showCmd.Flags().IntVar(&showFlags.recent, "recent", 10, "number of recent snapshots")
	showCmd.Flags().BoolVar(&showFlags.segments, "segments", false, "list the stored segments of the metric")
	showCmd.Flags().StringVar(&showFlags.history, "history", "", "history file (default: configured backend)")
	rootCmd.AddCommand(showCmd)
}

func printMetricHistory(w io.Writer, h *dto.MetricHistoryDTO) {
	since := "beginning of time"
	if h.StatusSince != nil {
		since = valueobject.FormatHistoryDate(*h.StatusSince)
	}
	fmt.Fprintf(w, "%s %s = %s since %s\n",
		statusColor(h.Status).Sprint(h.Status), h.MetricID, formatValue(h.Value), since)

	fmt.Fprint(w, "recent:")
	for _, v := range h.Recent {
		fmt.Fprintf(w, " %s", formatValue(v))
	}
	fmt.Fprintf(w, "\n%d segments\n", h.SegmentCount)

	for _, s := range h.Segments {
		fmt.Fprintf(w, "  %s .. %s  %-8s %s\n",
			valueobject.FormatHistoryDate(s.Start),
			valueobject.FormatHistoryDate(s.End),
			statusColor(s.Status).Sprint(s.Status),
			formatValue(s.Value))
	}
}

func printTrend(w io.Writer, trend *dto.StatusTrendDTO, last int) {
	points := trend.Points
	if last > 0 && len(points) > last {
		points = points[len(points)-last:]
	}
	if len(points) == 0 {
		color.New(color.FgHiBlack).Fprintln(w, "no snapshots")
		return
	}

	for _, p := range points {
		fmt.Fprintf(w, "%s  total %3d ", valueobject.FormatHistoryDate(p.Date), p.Total)
		for _, status := range valueobject.AllStatuses() {
			if n := p.Counts[status.String()]; n > 0 {
				fmt.Fprintf(w, " %s=%d", statusColor(status.String()).Sprint(status.String()), n)
			}
		}
		fmt.Fprintln(w)
	}
}
