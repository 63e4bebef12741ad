package engine

import (
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/gridbase/gridbase/constants"
	"github.com/gridbase/gridbase/models"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Data serves the browse/edit path for one tenant's tables.
type Data struct {
	db  *sql.DB
	reg *Registry
}

func NewData(conn *sql.DB, reg *Registry) *Data {
	return &Data{db: conn, reg: reg}
}

// surrogateKey returns the surrogate key of the backing table: "id" for
// imported tables, "rowid" for tables materialized from a query that did
// not produce an id column.
func surrogateKey(q queryRower, table string) (string, error) {
	var n int
	err := q.QueryRow(
		"SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?",
		table, constants.ColumnID).Scan(&n)
	if err != nil {
		return "", enginef(err)
	}
	if n > 0 {
		return constants.ColumnID, nil
	}
	return "rowid", nil
}

func knownColumnSet(meta *models.TableMeta, keyColumn string, manualOrder bool) map[string]bool {
	known := map[string]bool{keyColumn: true}
	for _, col := range meta.Columns {
		known[col.InternalName] = true
	}
	if manualOrder {
		known[constants.ColumnSortOrder] = true
	}
	return known
}

func requireTabular(meta *models.TableMeta) error {
	if meta.Kind != models.KindTabular {
		return validationf("%q is a document, not a table", meta.DisplayName)
	}
	return nil
}

// GetPage fetches one page of rows under the given filter tree, sort
// keys and visual grouping columns, plus the total row count under the
// same predicate.
func (d *Data) GetPage(ownerID, ref string, page, pageSize uint64, filter *models.FilterNode, sorts []models.SortKey, groups []string) (*models.DataPage, error) {
	meta, err := d.reg.Resolve(ownerID, ref)
	if err != nil {
		return nil, err
	}
	if err := requireTabular(meta); err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	key, err := surrogateKey(d.db, meta.InternalName)
	if err != nil {
		return nil, err
	}
	manualOrder, err := hasManualOrder(d.db, meta.InternalName)
	if err != nil {
		return nil, err
	}
	known := knownColumnSet(meta, key, manualOrder)

	if err := validateFilterColumns(filter, known); err != nil {
		return nil, err
	}
	where := CompileFilter(filter)

	orderBy, err := BuildOrderBy(groups, sorts, known, manualOrder, key)
	if err != nil {
		return nil, err
	}

	countQ := sq.Select("COUNT(*)").From(quoteIdent(meta.InternalName))
	if where != nil {
		countQ = countQ.Where(where)
	}
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return nil, enginef(err)
	}
	var total int64
	if err := d.db.QueryRow(countSQL, countArgs...).Scan(&total); err != nil {
		return nil, enginef(err)
	}

	projection := "*"
	if key == "rowid" {
		projection = "rowid AS " + quoteIdent(constants.ColumnID) + ", *"
	}
	pageQ := sq.Select(projection).
		From(quoteIdent(meta.InternalName)).
		OrderBy(orderBy...).
		Limit(pageSize).
		Offset((page - 1) * pageSize)
	if where != nil {
		pageQ = pageQ.Where(where)
	}
	pageSQL, pageArgs, err := pageQ.ToSql()
	if err != nil {
		return nil, enginef(err)
	}

	rows, err := d.db.Query(pageSQL, pageArgs...)
	if err != nil {
		return nil, enginef(err)
	}
	defer rows.Close()

	_, data, err := scanRowMaps(rows, 0)
	if err != nil {
		return nil, err
	}

	totalPages := total / int64(pageSize)
	if total%int64(pageSize) != 0 {
		totalPages++
	}

	return &models.DataPage{
		Data:       data,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// UpdateCell writes a single cell. The column must be one of the
// table's known columns.
func (d *Data) UpdateCell(ownerID, ref string, rowID int64, column string, value models.CellValue) error {
	meta, err := d.reg.Resolve(ownerID, ref)
	if err != nil {
		return err
	}
	if err := requireTabular(meta); err != nil {
		return err
	}

	col := meta.Column(column)
	if col == nil {
		return validationf("unknown column %q", column)
	}

	key, err := surrogateKey(d.db, meta.InternalName)
	if err != nil {
		return err
	}

	stmt := fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?",
		quoteIdent(meta.InternalName), quoteIdent(col.InternalName), quoteIdent(key))
	res, err := d.db.Exec(stmt, value.Arg(col.Type), rowID)
	if err != nil {
		return enginef(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFoundErr()
	}
	return nil
}

// InsertRow appends a row, or places it before/after an anchor row when
// a position is given. Positional inserts lazily provision the manual
// order column; plain appends keep extending it once it exists.
func (d *Data) InsertRow(ownerID, ref string, data map[string]models.CellValue, pos *models.RowPosition) (int64, error) {
	meta, err := d.reg.Resolve(ownerID, ref)
	if err != nil {
		return 0, err
	}
	if err := requireTabular(meta); err != nil {
		return 0, err
	}

	if pos != nil && pos.Place != models.PlaceBefore && pos.Place != models.PlaceAfter {
		return 0, validationf("position place must be %q or %q", models.PlaceBefore, models.PlaceAfter)
	}

	type insertCol struct {
		name string
		arg  any
	}
	var cols []insertCol
	for name, value := range data {
		col := meta.Column(name)
		if col == nil {
			return 0, validationf("unknown column %q", name)
		}
		cols = append(cols, insertCol{name: col.InternalName, arg: value.Arg(col.Type)})
	}

	key, err := surrogateKey(d.db, meta.InternalName)
	if err != nil {
		return 0, err
	}

	tx, err := d.db.Begin()
	if err != nil {
		return 0, enginef(err)
	}
	defer tx.Rollback()

	var orderKey *float64
	if pos != nil {
		if err := ensureOrderColumn(tx, meta.InternalName, key); err != nil {
			return 0, err
		}
		v, err := orderKeyFor(tx, meta.InternalName, pos, key)
		if err != nil {
			return 0, err
		}
		orderKey = &v
	} else {
		present, err := hasManualOrder(tx, meta.InternalName)
		if err != nil {
			return 0, err
		}
		if present {
			v, err := appendOrderKey(tx, meta.InternalName)
			if err != nil {
				return 0, err
			}
			orderKey = &v
		}
	}

	names := make([]string, 0, len(cols)+1)
	placeholders := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+1)
	for _, c := range cols {
		names = append(names, quoteIdent(c.name))
		placeholders = append(placeholders, "?")
		args = append(args, c.arg)
	}
	if orderKey != nil {
		names = append(names, quoteIdent(constants.ColumnSortOrder))
		placeholders = append(placeholders, "?")
		args = append(args, *orderKey)
	}

	var stmt string
	if len(names) == 0 {
		stmt = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", quoteIdent(meta.InternalName))
	} else {
		stmt = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			quoteIdent(meta.InternalName), strings.Join(names, ", "), strings.Join(placeholders, ", "))
	}
	res, err := tx.Exec(stmt, args...)
	if err != nil {
		return 0, enginef(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, enginef(err)
	}
	if err := tx.Commit(); err != nil {
		return 0, enginef(err)
	}
	return id, nil
}

// DeleteRow removes one row by surrogate id.
func (d *Data) DeleteRow(ownerID, ref string, rowID int64) error {
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
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = ?",
		quoteIdent(meta.InternalName), quoteIdent(key))
	if _, err := d.db.Exec(stmt, rowID); err != nil {
		return enginef(err)
	}
	return nil
}

// scanRowMaps scans a result set into column-name keyed maps, bucketing
// by the engine's reported column types. limit 0 means unbounded.
func scanRowMaps(rows *sql.Rows, limit int) ([]string, []map[string]any, error) {
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, nil, enginef(err)
	}
	names, err := rows.Columns()
	if err != nil {
		return nil, nil, enginef(err)
	}

	out := []map[string]any{}
	for rows.Next() {
		if limit > 0 && len(out) >= limit {
			break
		}

		scanArgs := make([]any, len(columnTypes))
		for i, ct := range columnTypes {
			switch strings.ToUpper(ct.DatabaseTypeName()) {
			case "INTEGER", "INT", "BIGINT":
				scanArgs[i] = new(sql.NullInt64)
			case "REAL", "FLOAT", "DOUBLE", "NUMERIC":
				scanArgs[i] = new(sql.NullFloat64)
			case "BOOL", "BOOLEAN":
				scanArgs[i] = new(sql.NullBool)
			case "TEXT", "VARCHAR", "CHAR", "CLOB":
				scanArgs[i] = new(sql.NullString)
			default:
				// expression columns report no declared type; let the
				// driver's native value through
				scanArgs[i] = new(any)
			}
		}

		if err := rows.Scan(scanArgs...); err != nil {
			return nil, nil, enginef(err)
		}

		rowMap := make(map[string]any, len(names))
		for i, name := range names {
			rowMap[name] = nullableValue(scanArgs[i])
		}
		out = append(out, rowMap)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, enginef(err)
	}
	return names, out, nil
}

func nullableValue(v any) any {
	switch t := v.(type) {
	case *sql.NullInt64:
		if t.Valid {
			return t.Int64
		}
	case *sql.NullFloat64:
		if t.Valid {
			return t.Float64
		}
	case *sql.NullBool:
		if t.Valid {
			return t.Bool
		}
	case *sql.NullString:
		if t.Valid {
			return t.String
		}
	case *any:
		if b, ok := (*t).([]byte); ok {
			return string(b)
		}
		return *t
	}
	return nil
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
