package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Коды завершения
const (
	exitOK       = 0
	exitError    = 1
	exitFailures = 2
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "quality-report",
	Short: "Evaluate quality metrics and keep their compact history",
	Long: `quality-report measures project metrics, classifies them against their norms
and folds every run into a compact per-metric history.

Infrastructure (history backend, cache, events, observability) is configured
through environment variables or a .env file; the metrics of a project are
described in a YAML project file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug|info|warn|error), overrides LOG_LEVEL")
}

// exitCodeError завершает процесс с заданным кодом без вывода ошибки
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}

func main() {
	os.Exit(execute())
}

func execute() int {
	if err := rootCmd.Execute(); err != nil {
		var codeErr *exitCodeError
		if errors.As(err, &codeErr) {
			return codeErr.code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}
	return exitOK
}
