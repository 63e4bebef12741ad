package engine

import (
	"database/sql"
	"fmt"

	"github.com/gridbase/gridbase/constants"
	"github.com/gridbase/gridbase/models"
)

// The row order manager hands out fractional REAL keys so a row can be
// inserted between two neighbors without renumbering anything. The
// order column does not exist until the first positional insert asks
// for it.
//
// Repeated inserts at the same boundary halve the gap each time and
// will eventually exhaust float64 precision; no renumbering pass runs
// here.

type queryRower interface {
	QueryRow(query string, args ...any) *sql.Row
	Exec(query string, args ...any) (sql.Result, error)
}

// hasManualOrder reports whether the backing table already carries the
// order column.
func hasManualOrder(q queryRower, table string) (bool, error) {
	var n int
	err := q.QueryRow(
		"SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?",
		table, constants.ColumnSortOrder).Scan(&n)
	if err != nil {
		return false, enginef(err)
	}
	return n > 0, nil
}

// ensureOrderColumn lazily provisions the order column, backfilling every
// existing row with its surrogate id. Runs inside the caller's
// transaction so provisioning and the triggering insert are atomic.
func ensureOrderColumn(tx *sql.Tx, table, keyColumn string) error {
	present, err := hasManualOrder(tx, table)
	if err != nil {
		return err
	}
	if present {
		return nil
	}

	alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s REAL",
		quoteIdent(table), quoteIdent(constants.ColumnSortOrder))
	if _, err := tx.Exec(alter); err != nil {
		return enginef(err)
	}

	backfill := fmt.Sprintf("UPDATE %s SET %s = %s",
		quoteIdent(table), quoteIdent(constants.ColumnSortOrder), quoteIdent(keyColumn))
	if _, err := tx.Exec(backfill); err != nil {
		return enginef(err)
	}
	return nil
}

// orderKeyFor computes the fractional key for an insert anchored at an
// existing row. Before: midpoint of the anchor and its closest smaller
// neighbor (anchor-1 when none). After: symmetric with the closest
// greater neighbor.
func orderKeyFor(tx *sql.Tx, table string, pos *models.RowPosition, keyColumn string) (float64, error) {
	orderCol := quoteIdent(constants.ColumnSortOrder)
	t := quoteIdent(table)

	var anchor float64
	err := tx.QueryRow(
		fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", orderCol, t, quoteIdent(keyColumn)),
		pos.AnchorID).Scan(&anchor)
	if err == sql.ErrNoRows {
		return 0, notFoundErr()
	}
	if err != nil {
		return 0, enginef(err)
	}

	var neighbor sql.NullFloat64
	if pos.Place == models.PlaceBefore {
		err = tx.QueryRow(
			fmt.Sprintf("SELECT MAX(%s) FROM %s WHERE %s < ?", orderCol, t, orderCol),
			anchor).Scan(&neighbor)
	} else {
		err = tx.QueryRow(
			fmt.Sprintf("SELECT MIN(%s) FROM %s WHERE %s > ?", orderCol, t, orderCol),
			anchor).Scan(&neighbor)
	}
	if err != nil {
		return 0, enginef(err)
	}

	other := neighbor.Float64
	if !neighbor.Valid {
		if pos.Place == models.PlaceBefore {
			other = anchor - 1
		} else {
			other = anchor + 1
		}
	}
	return (anchor + other) / 2, nil
}

// appendOrderKey returns the key for a plain append once the order
// column exists: max+1, or 1 for an empty table.
func appendOrderKey(tx *sql.Tx, table string) (float64, error) {
	var max sql.NullFloat64
	err := tx.QueryRow(fmt.Sprintf("SELECT MAX(%s) FROM %s",
		quoteIdent(constants.ColumnSortOrder), quoteIdent(table))).Scan(&max)
	if err != nil {
		return 0, enginef(err)
	}
	if !max.Valid {
		return 1, nil
	}
	return max.Float64 + 1, nil
}
