package clv

import (
	"fmt"
	"sort"
	"time"
)

// Observation period lengths for transaction summarization.
const (
	Daily  = 24 * time.Hour
	Weekly = 7 * 24 * time.Hour
)

// Transaction is one raw purchase event.
type Transaction struct {
	CustomerID string
	Time       time.Time
}

// CustomerRecord holds the per-customer sufficient statistics of the
// Pareto/NBD process, in observation-period units.
//
// Invariants Recency <= T and T >= 0 are established by SummarizeTransactions
// (or by the caller when records are built directly) and are assumed, not
// re-checked, by the formula layer.
type CustomerRecord struct {
	CustomerID string
	Frequency  float64 // repeat purchase count
	Recency    float64 // periods between first and last purchase
	T          float64 // periods between first purchase and observation end

	// Covariates holds optional covariate values keyed by column name,
	// consumed only when the model config names covariate columns.
	Covariates map[string]float64
}

// SummarizeTransactions reduces a raw transaction log to one RFM record per
// customer. Multiple purchases within the same period count once, so
// Frequency is the number of distinct repeat-purchase periods. Transactions
// after observationEnd are rejected.
func SummarizeTransactions(txns []Transaction, observationEnd time.Time, period time.Duration) ([]CustomerRecord, error) {
	if period <= 0 {
		return nil, NewInvalidArgError("SummarizeTransactions", "period must be positive")
	}

	periods := make(map[string]map[int64]bool)
	for _, txn := range txns {
		if txn.CustomerID == "" {
			return nil, NewDataError("SummarizeTransactions", "transaction with empty customer_id")
		}
		if txn.Time.After(observationEnd) {
			return nil, NewDataError("SummarizeTransactions",
				fmt.Sprintf("transaction for customer %q at %s is after the observation end %s",
					txn.CustomerID, txn.Time.Format(time.RFC3339), observationEnd.Format(time.RFC3339)))
		}
		p := periods[txn.CustomerID]
		if p == nil {
			p = make(map[int64]bool)
			periods[txn.CustomerID] = p
		}
		p[txn.Time.UnixNano()/int64(period)] = true
	}

	endPeriod := observationEnd.UnixNano() / int64(period)
	records := make([]CustomerRecord, 0, len(periods))
	for id, p := range periods {
		first := int64(1<<63 - 1)
		last := int64(-1 << 63)
		for idx := range p {
			if idx < first {
				first = idx
			}
			if idx > last {
				last = idx
			}
		}
		records = append(records, CustomerRecord{
			CustomerID: id,
			Frequency:  float64(len(p) - 1),
			Recency:    float64(last - first),
			T:          float64(endPeriod - first),
		})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].CustomerID < records[j].CustomerID })
	return records, nil
}

// ValidateRecords checks the structural preconditions the formula layer
// assumes: non-empty input, unique non-empty customer identifiers, and the
// presence of every named covariate column. Value-level invariants
// (Recency <= T) are the summarization step's responsibility and are not
// re-checked here.
func ValidateRecords(records []CustomerRecord, covariateCols []string) error {
	if len(records) == 0 {
		return NewDataError("ValidateRecords", "no customer records")
	}
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		if rec.CustomerID == "" {
			return NewDataError("ValidateRecords", "record with empty customer_id")
		}
		if seen[rec.CustomerID] {
			return NewDataError("ValidateRecords",
				fmt.Sprintf("duplicate customer_id %q", rec.CustomerID))
		}
		seen[rec.CustomerID] = true
		for _, col := range covariateCols {
			if _, ok := rec.Covariates[col]; !ok {
				return NewDataError("ValidateRecords",
					fmt.Sprintf("customer %q is missing covariate column %q", rec.CustomerID, col))
			}
		}
	}
	return nil
}
