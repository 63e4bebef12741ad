package engine

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/gridbase/gridbase/constants"
)

// Export streams the table as CSV with the original display names as the
// header row, ordered by the manual order when present, else by the
// surrogate key.
func (d *Data) Export(ownerID, ref string, w io.Writer) error {
	meta, err := d.reg.Resolve(ownerID, ref)
	if err != nil {
		return err
	}
	if err := requireTabular(meta); err != nil {
		return err
	}

	key, err := surrogateKey(d.db, meta.InternalName)
	if err != nil {
		return err
	}
	manualOrder, err := hasManualOrder(d.db, meta.InternalName)
	if err != nil {
		return err
	}

	if len(meta.Columns) == 0 {
		return validationf("table has no columns to export")
	}

	names := make([]string, len(meta.Columns))
	header := make([]string, len(meta.Columns))
	for i, col := range meta.Columns {
		names[i] = quoteIdent(col.InternalName)
		header[i] = col.DisplayName
	}

	orderBy := quoteIdent(key)
	if manualOrder {
		orderBy = quoteIdent(constants.ColumnSortOrder)
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s ASC",
		strings.Join(names, ", "), quoteIdent(meta.InternalName), orderBy)

	rows, err := d.db.Query(query)
	if err != nil {
		return enginef(err)
	}
	defer rows.Close()

	out := csv.NewWriter(w)
	if err := out.Write(header); err != nil {
		return err
	}

	values := make([]any, len(names))
	scanArgs := make([]any, len(names))
	for i := range values {
		scanArgs[i] = &values[i]
	}
	record := make([]string, len(names))
	for rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return enginef(err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				record[i] = string(b)
			} else {
				record[i] = stringify(v)
			}
		}
		if err := out.Write(record); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return enginef(err)
	}

	out.Flush()
	return out.Error()
}
