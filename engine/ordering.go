package engine

import (
	"strings"

	"github.com/gridbase/gridbase/constants"
	"github.com/gridbase/gridbase/models"
)

// BuildOrderBy folds grouping columns and sort keys into one ORDER BY
// sequence. Group columns come first so rows sharing a group prefix are
// contiguous (the client detects group boundaries row to row); remaining
// sort keys follow; with neither, the manual order column or the
// surrogate id keeps pagination deterministic.
//
// Unknown columns are dropped rather than failing the request, but an
// identifier carrying a quote character is rejected outright.
// keyColumn is the table's surrogate key ("id", or "rowid" for tables
// materialized from a query without one).
func BuildOrderBy(groups []string, sorts []models.SortKey, known map[string]bool, hasManualOrder bool, keyColumn string) ([]string, error) {
	var clauses []string
	covered := map[string]bool{}

	direction := func(col string) string {
		for _, s := range sorts {
			if s.Column == col && strings.EqualFold(s.Direction, "DESC") {
				return "DESC"
			}
		}
		return "ASC"
	}

	for _, col := range groups {
		if err := checkOrderIdent(col); err != nil {
			return nil, err
		}
		if !known[col] || covered[col] {
			continue
		}
		covered[col] = true
		clauses = append(clauses, quoteIdent(col)+" "+direction(col))
	}

	for _, s := range sorts {
		if err := checkOrderIdent(s.Column); err != nil {
			return nil, err
		}
		if !known[s.Column] || covered[s.Column] {
			continue
		}
		covered[s.Column] = true
		dir := "ASC"
		if strings.EqualFold(s.Direction, "DESC") {
			dir = "DESC"
		}
		clauses = append(clauses, quoteIdent(s.Column)+" "+dir)
	}

	if len(clauses) == 0 {
		if hasManualOrder {
			clauses = append(clauses, quoteIdent(constants.ColumnSortOrder)+" ASC")
		} else {
			if keyColumn == "" {
				keyColumn = constants.ColumnID
			}
			clauses = append(clauses, quoteIdent(keyColumn)+" ASC")
		}
	}
	return clauses, nil
}

func checkOrderIdent(col string) error {
	if strings.ContainsAny(col, "\"`") {
		return validationf("invalid column identifier %q", col)
	}
	return nil
}
