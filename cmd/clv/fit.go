package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wd60622/clv"
)

// fitFile is the on-disk form of a MAP fit, consumed by the predict command.
type fitFile struct {
	R            float64   `yaml:"r"`
	Alpha        float64   `yaml:"alpha"`
	S            float64   `yaml:"s"`
	Beta         float64   `yaml:"beta"`
	PurchaseCoef []float64 `yaml:"purchase_coef,omitempty"`
	DropoutCoef  []float64 `yaml:"dropout_coef,omitempty"`
}

func (f fitFile) result() *clv.FitResult {
	fr := &clv.FitResult{
		Chains: 1, Draws: 1,
		R:          []float64{f.R},
		S:          []float64{f.S},
		AlphaScale: []float64{f.Alpha},
		BetaScale:  []float64{f.Beta},
	}
	if len(f.PurchaseCoef) > 0 {
		fr.PurchaseCoef = [][]float64{f.PurchaseCoef}
	}
	if len(f.DropoutCoef) > 0 {
		fr.DropoutCoef = [][]float64{f.DropoutCoef}
	}
	return fr
}

func fitCmd() *cobra.Command {
	var (
		summaryPath string
		configPath  string
		maxIters    int
		reduceGrad  bool
		output      string
	)
	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Fit the Pareto/NBD model to summarized customer records",
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
			infof("fitting %d customers", len(records))
			fr, err := model.Fit(clv.FitConfig{
				MaxIterations:         maxIters,
				ReduceHyp2F1GradIters: reduceGrad,
			})
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), fr.Summary())

			if output == "" {
				return nil
			}
			out := fitFile{
				R:     fr.R[0],
				Alpha: fr.AlphaScale[0],
				S:     fr.S[0],
				Beta:  fr.BetaScale[0],
			}
			if len(fr.PurchaseCoef) > 0 {
				out.PurchaseCoef = fr.PurchaseCoef[0]
			}
			if len(fr.DropoutCoef) > 0 {
				out.DropoutCoef = fr.DropoutCoef[0]
			}
			raw, err := yaml.Marshal(out)
			if err != nil {
				return err
			}
			return os.WriteFile(output, raw, 0o644)
		},
	}
	cmd.Flags().StringVar(&summaryPath, "summary", "", "summarized records CSV (from clv summarize)")
	cmd.Flags().StringVar(&configPath, "config", "", "model configuration YAML")
	cmd.Flags().IntVar(&maxIters, "max-iters", 0, "cap on optimizer iterations (0: optimizer default)")
	cmd.Flags().BoolVar(&reduceGrad, "reduce-grad-iters", false, "use the reduced hypergeometric gradient iteration bound")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the fitted parameters to a YAML file")
	cmd.MarkFlagRequired("summary")
	return cmd
}
