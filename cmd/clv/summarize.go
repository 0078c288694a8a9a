package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wd60622/clv"
)

func summarizeCmd() *cobra.Command {
	var (
		src            sourceFlags
		observationEnd string
		period         string
		output         string
	)
	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Reduce a transaction log to per-customer recency/frequency records",
		RunE: func(cmd *cobra.Command, args []string) error {
			txns, err := src.load()
			if err != nil {
				return err
			}
			end, err := resolveObservationEnd(observationEnd, txns)
			if err != nil {
				return err
			}
			per, err := resolvePeriod(period)
			if err != nil {
				return err
			}
			infof("%d transactions, observation end %s", len(txns), end.Format(time.RFC3339))
			records, err := clv.SummarizeTransactions(txns, end, per)
			if err != nil {
				return err
			}
			infof("%d customers summarized", len(records))
			w, done, err := openOutput(output)
			if err != nil {
				return err
			}
			defer done()
			return writeRecordsCSV(w, records)
		},
	}
	src.register(cmd)
	cmd.Flags().StringVar(&observationEnd, "observation-end", "", "end of the observation window (default: latest transaction)")
	cmd.Flags().StringVar(&period, "period", "weekly", "observation period: daily or weekly")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output CSV path (default: stdout)")
	return cmd
}

func resolveObservationEnd(flag string, txns []clv.Transaction) (time.Time, error) {
	if flag != "" {
		return parseTime(flag)
	}
	var end time.Time
	for _, txn := range txns {
		if txn.Time.After(end) {
			end = txn.Time
		}
	}
	if end.IsZero() {
		return end, fmt.Errorf("no transactions to infer --observation-end from")
	}
	return end, nil
}

func resolvePeriod(name string) (time.Duration, error) {
	switch name {
	case "daily":
		return clv.Daily, nil
	case "weekly":
		return clv.Weekly, nil
	default:
		return 0, fmt.Errorf("unknown period %q: want daily or weekly", name)
	}
}
