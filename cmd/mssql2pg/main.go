package main

import (
	"errors"
	"fmt"
	"os"

	"mssql2pg/internal/app"
)

// main is the entry point for the mssql2pg migration tool.
func main() {
	runner := app.NewAppRunner()

	err := runner.Run(os.Args[1:])
	if err != nil {
		// Usage-class errors get the help text before the diagnostic.
		if errors.Is(err, app.ErrUsage) || errors.Is(err, app.ErrConfigNotFound) || errors.Is(err, app.ErrMissingArgs) {
			fmt.Fprintln(os.Stderr, "")
			runner.Usage(os.Stderr)
		}

		fmt.Fprintf(os.Stderr, "mssql2pg: %v\n", err)
		os.Exit(1)
	}
}
