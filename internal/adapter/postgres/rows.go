package postgres

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// rowsToStrings drains rows into column names and text cells. With limit > 0
// at most limit rows are read and truncated reports whether more were left.
// rows is closed on return.
func rowsToStrings(rows pgx.Rows, limit int) (columns []string, out [][]string, truncated bool, err error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns = make([]string, len(fields))
	for i, fd := range fields {
		columns[i] = fd.Name
	}

	for rows.Next() {
		if limit > 0 && len(out) == limit {
			truncated = true
			break
		}
		vals, err := rows.Values()
		if err != nil {
			return nil, nil, false, fmt.Errorf("reading row values: %w", err)
		}
		row := make([]string, len(vals))
		for i, v := range vals {
			row[i] = formatValue(v)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, false, fmt.Errorf("iterating rows: %w", err)
	}
	return columns, out, truncated, nil
}

// formatValue renders a decoded column value the way psql would show it.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return val
	case []byte:
		return string(val)
	case [16]byte:
		return uuid.UUID(val).String()
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case driver.Valuer:
		dv, err := val.Value()
		if err != nil || dv == nil {
			return "NULL"
		}
		return formatValue(dv)
	default:
		return fmt.Sprint(val)
	}
}
