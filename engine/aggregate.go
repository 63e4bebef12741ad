package engine

import (
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/gridbase/gridbase/constants"
	"github.com/gridbase/gridbase/models"
)

// Aggregator computes per-column aggregates under the same predicate the
// browse path uses, so the footer of a filtered grid matches its rows.
type Aggregator struct {
	db  *sql.DB
	reg *Registry
}

func NewAggregator(conn *sql.DB, reg *Registry) *Aggregator {
	return &Aggregator{db: conn, reg: reg}
}

// Compute evaluates the requested column→function map in one single-row
// query. An engine-level failure (SUM over text and the like) degrades
// to an empty result instead of failing the page.
func (a *Aggregator) Compute(ownerID, ref string, filter *models.FilterNode, specs map[string]string) (map[string]any, error) {
	meta, err := a.reg.Resolve(ownerID, ref)
	if err != nil {
		return nil, err
	}
	if err := requireTabular(meta); err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		return map[string]any{}, nil
	}

	key, err := surrogateKey(a.db, meta.InternalName)
	if err != nil {
		return nil, err
	}
	manualOrder, err := hasManualOrder(a.db, meta.InternalName)
	if err != nil {
		return nil, err
	}
	known := knownColumnSet(meta, key, manualOrder)

	var selects []string
	var order []string
	for column, fn := range specs {
		fn = strings.ToUpper(strings.TrimSpace(fn))
		if !constants.AggregateFunctions[fn] {
			return nil, validationf("unknown aggregate function %q", fn)
		}
		if !known[column] {
			return nil, validationf("unknown column %q", column)
		}
		selects = append(selects, fmt.Sprintf("%s(%s) AS %s", fn, quoteIdent(column), quoteIdent(column)))
		order = append(order, column)
	}

	if err := validateFilterColumns(filter, known); err != nil {
		return nil, err
	}

	q := sq.Select(selects...).From(quoteIdent(meta.InternalName))
	if where := CompileFilter(filter); where != nil {
		q = q.Where(where)
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, enginef(err)
	}

	rows, err := a.db.Query(query, args...)
	if err != nil {
		// type mismatch or similar: degrade, the grid still renders
		return map[string]any{}, nil
	}
	defer rows.Close()

	_, data, err := scanRowMaps(rows, 1)
	if err != nil || len(data) == 0 {
		return map[string]any{}, nil
	}

	result := make(map[string]any, len(order))
	for _, column := range order {
		result[column] = data[0][column]
	}
	return result, nil
}
