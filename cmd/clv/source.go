package main

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/wd60622/clv"
)

const defaultQuery = "SELECT customer_id, purchased_at FROM transactions"

// sourceFlags selects where raw transactions come from: a CSV file or a SQL
// database (mysql or sqlite3).
type sourceFlags struct {
	csvPath string
	driver  string
	dsn     string
	query   string
}

func (s *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.csvPath, "csv", "", "transaction CSV file with customer_id and date columns")
	cmd.Flags().StringVar(&s.driver, "driver", "", "SQL driver: mysql or sqlite3")
	cmd.Flags().StringVar(&s.dsn, "dsn", "", "SQL data source name")
	cmd.Flags().StringVar(&s.query, "query", defaultQuery, "SQL query returning (customer_id, purchased_at)")
}

func (s *sourceFlags) load() ([]clv.Transaction, error) {
	switch {
	case s.csvPath != "":
		return readTransactionsCSV(s.csvPath)
	case s.driver != "":
		return readTransactionsSQL(s.driver, s.dsn, s.query)
	default:
		return nil, fmt.Errorf("no transaction source: set --csv or --driver/--dsn")
	}
}

func progressSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
}

func readTransactionsCSV(path string) ([]clv.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%s: reading header: %w", path, err)
	}
	idCol, dateCol := -1, -1
	for i, name := range header {
		switch name {
		case "customer_id":
			idCol = i
		case "date", "purchased_at":
			dateCol = i
		}
	}
	if idCol < 0 || dateCol < 0 {
		return nil, fmt.Errorf("%s: header must include customer_id and date columns", path)
	}

	bar := progressSpinner("reading transactions")
	defer bar.Finish()

	var txns []clv.Transaction
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		ts, err := parseTime(row[dateCol])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		txns = append(txns, clv.Transaction{CustomerID: row[idCol], Time: ts})
		bar.Add(1)
	}
	return txns, nil
}

func readTransactionsSQL(driver, dsn, query string) ([]clv.Transaction, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bar := progressSpinner("reading transactions")
	defer bar.Finish()

	var txns []clv.Transaction
	for rows.Next() {
		var id string
		var raw any
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		ts, err := scanTime(raw)
		if err != nil {
			return nil, err
		}
		txns = append(txns, clv.Transaction{CustomerID: id, Time: ts})
		bar.Add(1)
	}
	return txns, rows.Err()
}

// scanTime accepts whatever the driver hands back for a timestamp column.
func scanTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return parseTime(t)
	case []byte:
		return parseTime(string(t))
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// writeRecordsCSV renders summarized customer records.
func writeRecordsCSV(w io.Writer, records []clv.CustomerRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"customer_id", "frequency", "recency", "T"}); err != nil {
		return err
	}
	for _, rec := range records {
		row := []string{
			rec.CustomerID,
			strconv.FormatFloat(rec.Frequency, 'g', -1, 64),
			strconv.FormatFloat(rec.Recency, 'g', -1, 64),
			strconv.FormatFloat(rec.T, 'g', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// readRecordsCSV loads summarized records; columns beyond the core four are
// kept as covariates.
func readRecordsCSV(path string) ([]clv.CustomerRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%s: reading header: %w", path, err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	for _, required := range []string{"customer_id", "frequency", "recency", "T"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%s: missing column %q", path, required)
		}
	}

	var records []clv.CustomerRecord
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		rec := clv.CustomerRecord{CustomerID: row[cols["customer_id"]]}
		if rec.Frequency, err = strconv.ParseFloat(row[cols["frequency"]], 64); err != nil {
			return nil, fmt.Errorf("%s: customer %s: %w", path, rec.CustomerID, err)
		}
		if rec.Recency, err = strconv.ParseFloat(row[cols["recency"]], 64); err != nil {
			return nil, fmt.Errorf("%s: customer %s: %w", path, rec.CustomerID, err)
		}
		if rec.T, err = strconv.ParseFloat(row[cols["T"]], 64); err != nil {
			return nil, fmt.Errorf("%s: customer %s: %w", path, rec.CustomerID, err)
		}
		for name, i := range cols {
			switch name {
			case "customer_id", "frequency", "recency", "T":
				continue
			}
			v, err := strconv.ParseFloat(row[i], 64)
			if err != nil {
				return nil, fmt.Errorf("%s: customer %s, covariate %s: %w", path, rec.CustomerID, name, err)
			}
			if rec.Covariates == nil {
				rec.Covariates = make(map[string]float64)
			}
			rec.Covariates[name] = v
		}
		records = append(records, rec)
	}
	return records, nil
}
