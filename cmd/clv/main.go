// Command clv summarizes transaction logs, fits Pareto/NBD customer models,
// and scores customers from the command line.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:           "clv",
	Short:         "Customer lifetime value modeling with the Pareto/NBD model",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	log.SetFlags(0)
	log.SetOutput(os.Stderr)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log progress details")
	rootCmd.AddCommand(summarizeCmd(), fitCmd(), predictCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "clv:", err)
		os.Exit(1)
	}
}

func infof(format string, args ...any) {
	if verbose {
		log.Printf("[INFO] "+format, args...)
	}
}

// openOutput resolves the --output flag; empty means stdout.
func openOutput(path string) (*os.File, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}
