package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wd60622/clv"
)

func predictCmd() *cobra.Command {
	var (
		summaryPath string
		fitPath     string
		configPath  string
		quantity    string
		futureT     float64
		nPurchases  int
		output      string
	)
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score customers with a fitted Pareto/NBD model",
		Long: `Score customers with a fitted Pareto/NBD model.

Quantities:
  purchases             expected purchases over the next future-t periods
  alive                 probability the customer is still active
  purchase-probability  probability of exactly n purchases over future-t periods
  new-customer          expected purchases for a brand-new customer`,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readRecordsCSV(summaryPath)
			if err != nil {
				return err
			}
			cfg := clv.DefaultModelConfig()
			if configPath != "" {
				if cfg, err = clv.LoadModelConfig(configPath); err != nil {
					return err
				}
			}
			model, err := clv.NewParetoNBDModel(records, cfg)
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(fitPath)
			if err != nil {
				return err
			}
			var ff fitFile
			if err := yaml.Unmarshal(raw, &ff); err != nil {
				return fmt.Errorf("%s: %w", fitPath, err)
			}
			if err := model.SetFitResult(ff.result()); err != nil {
				return err
			}

			var cube *clv.Cube
			switch quantity {
			case "purchases":
				cube, err = model.ExpectedPurchases(nil, []float64{futureT})
			case "alive":
				cube, err = model.ExpectedProbabilityAlive(nil, []float64{futureT})
			case "purchase-probability":
				cube, err = model.ExpectedPurchaseProbability(nil, []int{nPurchases}, []float64{futureT})
			case "new-customer":
				// One horizon per record keeps the output aligned with the
				// customer axis even without covariates.
				horizons := make([]float64, len(records))
				for i := range horizons {
					horizons[i] = futureT
				}
				cube, err = model.ExpectedPurchasesNewCustomer(nil, horizons)
			default:
				return fmt.Errorf("unknown quantity %q", quantity)
			}
			if err != nil {
				return err
			}

			infof("%s for %d customers over future_t=%v", quantity, len(records), futureT)
			w, done, err := openOutput(output)
			if err != nil {
				return err
			}
			defer done()
			return writePredictions(w, records, cube, quantity)
		},
	}
	cmd.Flags().StringVar(&summaryPath, "summary", "", "summarized records CSV (from clv summarize)")
	cmd.Flags().StringVar(&fitPath, "fit", "", "fitted parameters YAML (from clv fit)")
	cmd.Flags().StringVar(&configPath, "config", "", "model configuration YAML")
	cmd.Flags().StringVar(&quantity, "quantity", "purchases", "quantity to predict")
	cmd.Flags().Float64Var(&futureT, "future-t", 0, "prediction horizon in observation periods")
	cmd.Flags().IntVar(&nPurchases, "n", 0, "purchase count for purchase-probability")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output CSV path (default: stdout)")
	cmd.MarkFlagRequired("summary")
	cmd.MarkFlagRequired("fit")
	return cmd
}

func writePredictions(w *os.File, records []clv.CustomerRecord, cube *clv.Cube, quantity string) error {
	bar := progressbar.NewOptions(len(records),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("writing predictions"),
		progressbar.OptionClearOnFinish(),
	)
	defer bar.Finish()

	mean := cube.Mean()
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"customer_id", quantity}); err != nil {
		return err
	}
	for cu, rec := range records {
		row := []string{rec.CustomerID, strconv.FormatFloat(mean[cu], 'g', -1, 64)}
		if err := cw.Write(row); err != nil {
			return err
		}
		bar.Add(1)
	}
	cw.Flush()
	return cw.Error()
}
