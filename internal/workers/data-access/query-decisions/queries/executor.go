package queries

import (
	"context"
	"database/sql"
	"time"

	"gov-decisions-workers/internal/common/database"
)

// Row is one result row keyed by column name.
type Row map[string]interface{}

// Execute runs a bound query read-only and scans every row generically,
// keeping at most maxRows. It returns the rows, whether rows were dropped,
// and the execution time in milliseconds.
func Execute(ctx context.Context, pg *database.PostgresClient, query string, args []interface{}, maxRows int) ([]Row, bool, int64, error) {
	start := time.Now()
	var (
		out       []Row
		truncated bool
	)
	err := pg.QueryReadOnly(ctx, func(rows *sql.Rows) error {
		cols, err := rows.Columns()
		if err != nil {
			return err
		}
		for rows.Next() {
			if maxRows > 0 && len(out) >= maxRows {
				truncated = true
				break
			}
			row, err := scanRow(rows, cols)
			if err != nil {
				return err
			}
			out = append(out, row)
		}
		return nil
	}, query, args...)
	if err != nil {
		return nil, false, time.Since(start).Milliseconds(), err
	}
	if out == nil {
		out = []Row{}
	}
	return out, truncated, time.Since(start).Milliseconds(), nil
}

func scanRow(rows *sql.Rows, cols []string) (Row, error) {
	values := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	row := make(Row, len(cols))
	for i, col := range cols {
		switch v := values[i].(type) {
		case []byte:
			row[col] = string(v)
		case time.Time:
			row[col] = v.Format("2006-01-02")
		default:
			row[col] = v
		}
	}
	return row, nil
}
