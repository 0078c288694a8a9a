// Package clv implements the Pareto/NBD customer-lifetime-value model:
// the exact log-likelihood of the underlying purchase/dropout point process
// and the closed-form predictive quantities derived from it.
//
// Customer histories are summarized as recency/frequency/T sufficient
// statistics, and parameter draws carry (chain, draw, customer) axes so the
// same formulas serve both a full posterior and a 1x1 MAP point estimate.
// All heavy lifting happens in log-space: every multiplicative term is a sum
// of log-gamma, log-beta, and log-hypergeometric pieces, combined with
// signed log-sum-exp and exponentiated only at the end.
//
// Example usage:
//
//	records, _ := clv.SummarizeTransactions(txns, end, clv.Daily)
//	model, _ := clv.NewParetoNBDModel(records, clv.DefaultModelConfig())
//	res, _ := model.Fit(clv.FitConfig{ReduceHyp2F1GradIters: true})
//
//	// Expected purchases over the next 10 periods, per customer.
//	purchases, _ := model.ExpectedPurchases(nil, []float64{10})
//
// The formula layer itself is stateless: every predictive method broadcasts
// parameter draws against customer records, computes the log-likelihood once,
// and reuses it across the derived terms of that call.
package clv
