package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dreschagin/quality-history/internal/application/dto"
	"github.com/dreschagin/quality-history/internal/application/usecase"
	"github.com/dreschagin/quality-history/internal/domain/service"
	"github.com/dreschagin/quality-history/internal/domain/valueobject"
	"github.com/dreschagin/quality-history/internal/infrastructure/project"
	"github.com/dreschagin/quality-history/internal/infrastructure/report"
	fileSource "github.com/dreschagin/quality-history/internal/infrastructure/source/file"
	"github.com/dreschagin/quality-history/internal/infrastructure/source/registry"
	"github.com/dreschagin/quality-history/internal/infrastructure/source/system"
)

var runFlags struct {
	project   string
	reportDir string
	values    string
	history   string
	failOnRed bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Measure the project metrics and append them to the history",
	Long: `Measure every metric of the project, classify it, append the run to the
history and write <report>/report.json.

Exit codes: 0 on success, 1 on errors, 2 with --fail-on-red when any metric
is red or missing.

Examples:
  quality-report run --project project.yaml --report out
  quality-report run --project project.yaml --report out --values values.yaml --fail-on-red`,
	RunE: runReport,
}

func init() {
	runCmd.Flags().StringVar(&runFlags.project, "project", "project.yaml", "project definition file")
	runCmd.Flags().StringVar(&runFlags.reportDir, "report", "report", "report output directory")
	runCmd.Flags().StringVar(&runFlags.values, "values", "", "YAML file with measured values (source \"file\")")
	runCmd.Flags().StringVar(&runFlags.history, "history", "", "history file, overrides the configured backend")
	runCmd.Flags().BoolVar(&runFlags.failOnRed, "fail-on-red", false, "exit with code 2 when metrics are red or missing")
	rootCmd.AddCommand(runCmd)
}

func runReport(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	// 1. Проект и источники значений
	proj, err := project.Load(runFlags.project)
	if err != nil {
		return err
	}

	sources := registry.New(a.cfg.Fetch.RatePerSecond, a.cfg.Fetch.Burst)
	if runFlags.values != "" {
		values, err := fileSource.NewSource(runFlags.values)
		if err != nil {
			return err
		}
		sources.Register(fileSource.Name, values)
	}
	sources.Register(system.Name, system.NewSource())

	// 2. Хранилище истории и побочные эффекты
	repo, err := a.historyRepository(ctx, runFlags.history)
	if err != nil {
		return err
	}

	writer, err := report.NewJSONWriter(runFlags.reportDir)
	if err != nil {
		return err
	}

	classifier := service.NewStatusClassifier()
	uc := usecase.NewRunReportUseCase(
		repo,
		sources,
		service.NewMetricEvaluator(classifier),
		service.NewMetaMetricCalculator(classifier),
		service.NewDefinitionValidator(),
		usecase.RunReportConfig{Workers: a.cfg.Fetch.Workers},
		a.log,
	).WithReportWriter(writer).
		WithRunMetricsPublisher(a.prometheusMetrics())

	if c := a.cache(); c != nil {
		uc.WithCache(c)
	}
	if p := a.eventPublisher(); p != nil {
		uc.WithEventPublisher(p)
	}
	if idx := a.statusIndex(ctx); idx != nil {
		uc.WithStatusIndex(idx)
	}
	if p := a.cloudWatchMetrics(ctx); p != nil {
		uc.WithRunMetricsPublisher(p)
	}

	// 3. Запуск
	summary, err := uc.Execute(ctx, proj.Command(time.Now()))
	if err != nil {
		return err
	}

	printSummary(cmd.OutOrStdout(), summary)

	if code := exitCodeFor(summary, runFlags.failOnRed); code != exitOK {
		return &exitCodeError{code: code}
	}
	return nil
}

// exitCodeFor возвращает 2, если запрошен --fail-on-red и есть метрики RED или MISSING
func exitCodeFor(summary *dto.RunSummaryDTO, failOnRed bool) int {
	if failOnRed && summary.HasFailures() {
		return exitFailures
	}
	return exitOK
}

// statusColor подбирает цвет вывода для статуса
func statusColor(status string) *color.Color {
	switch valueobject.Status(status) {
	case valueobject.StatusPerfect, valueobject.StatusGreen:
		return color.New(color.FgGreen)
	case valueobject.StatusYellow:
		return color.New(color.FgYellow)
	case valueobject.StatusRed:
		return color.New(color.FgRed, color.Bold)
	case valueobject.StatusGrey:
		return color.New(color.FgHiBlack)
	default:
		return color.New(color.FgMagenta)
	}
}

func formatValue(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%g", *v)
}

// printSummary печатает итог запуска: метрики, сменившие статус, счетчики и мета-метрики
func printSummary(w io.Writer, summary *dto.RunSummaryDTO) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	title := summary.Project
	if title == "" {
		title = "quality report"
	}
	fmt.Fprintf(w, "%s %s\n", cyan("==="), cyan(title))
	fmt.Fprintf(w, "run %s at %s\n", summary.RunID, valueobject.FormatHistoryDate(summary.Date))
	if summary.HistoryDegraded {
		color.New(color.FgRed).Fprintf(w, "history at %s could not be loaded, this run was not saved\n", summary.HistoryLocation)
	}
	fmt.Fprintln(w)

	for _, m := range summary.Measurements {
		c := statusColor(m.Status)
		marker := " "
		if m.StatusChanged {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %-8s %-30s %10s  since %s\n",
			marker,
			c.Sprint(m.Status),
			m.MetricID,
			formatValue(m.Value),
			m.StatusSince.Format("2006-01-02"))
	}
	fmt.Fprintln(w)

	for _, status := range valueobject.AllStatuses() {
		n := summary.Count(status)
		if n == 0 {
			continue
		}
		fmt.Fprintf(w, "%s: %d  ", statusColor(status.String()).Sprint(status.String()), n)
	}
	fmt.Fprintln(w)

	for _, meta := range summary.MetaMetrics {
		fmt.Fprintf(w, "  %-18s %6s%%  %s\n", meta.Name, formatValue(meta.Percentage), statusColor(meta.Status).Sprint(meta.Status))
	}

	if summary.ReportPath != "" {
		fmt.Fprintf(w, "\nreport written to %s\n", summary.ReportPath)
	}
}
