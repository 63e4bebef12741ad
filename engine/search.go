package engine

import (
	"database/sql"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/gridbase/gridbase/models"
)

// searchRowLimit caps matches per table so a search across many tables
// stays cheap.
const searchRowLimit = 5

// Search runs a free-text query and/or filter conditions across every
// table the tenant owns, best effort per table.
type Search struct {
	db  *sql.DB
	reg *Registry
}

func NewSearch(conn *sql.DB, reg *Registry) *Search {
	return &Search{db: conn, reg: reg}
}

// Run searches every owned tabular table within the scope. Heterogeneous
// tables rarely share every filtered column, so per table only the
// conditions whose column exists are applied; a table where neither the
// text clause nor any filter applies is skipped, and a table whose query
// fails (say, a type-mismatched comparison) is skipped silently.
func (s *Search) Run(ownerID, query string, filter *models.FilterNode, scope ProjectScope) ([]models.SearchResult, error) {
	tables, err := s.reg.List(ownerID, scope)
	if err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	conditions := filter.Conditions()

	results := []models.SearchResult{}
	for i := range tables {
		meta := &tables[i]
		if meta.Kind != models.KindTabular || len(meta.Columns) == 0 {
			continue
		}

		matches, ok := s.searchTable(meta, query, conditions)
		if !ok {
			continue
		}
		results = append(results, models.SearchResult{
			Table:     meta.DisplayName,
			TableName: meta.InternalName,
			Matches:   matches,
		})
	}
	return results, nil
}

func (s *Search) searchTable(meta *models.TableMeta, query string, conditions []models.FilterNode) ([]map[string]any, bool) {
	known := make(map[string]bool, len(meta.Columns))
	for _, col := range meta.Columns {
		known[col.InternalName] = true
	}

	var clauses []sq.Sqlizer

	if query != "" {
		parts := make([]string, len(meta.Columns))
		for i, col := range meta.Columns {
			parts[i] = "COALESCE(CAST(" + quoteIdent(col.InternalName) + " AS TEXT), '')"
		}
		concat := strings.Join(parts, " || ' | ' || ")
		clauses = append(clauses, rawSQL{sql: concat + " LIKE ?", args: []any{"%" + query + "%"}})
	}

	// keep only the conditions this table can answer
	applicable := models.FilterNode{Kind: models.FilterGroup, Logic: "AND"}
	for _, cond := range conditions {
		if known[cond.Column] {
			applicable.Items = append(applicable.Items, cond)
		}
	}
	if where := CompileFilter(&applicable); where != nil {
		clauses = append(clauses, where)
	}

	if len(clauses) == 0 {
		return nil, false
	}

	key, err := surrogateKey(s.db, meta.InternalName)
	if err != nil {
		return nil, false
	}
	projection := "*"
	if key == "rowid" {
		projection = "rowid AS \"id\", *"
	}

	sqlText, args, err := sq.Select(projection).
		From(quoteIdent(meta.InternalName)).
		Where(sq.And(clauses)).
		Limit(searchRowLimit).
		ToSql()
	if err != nil {
		return nil, false
	}

	rows, err := s.db.Query(sqlText, args...)
	if err != nil {
		return nil, false
	}
	defer rows.Close()

	_, matches, err := scanRowMaps(rows, searchRowLimit)
	if err != nil || len(matches) == 0 {
		return nil, false
	}
	return matches, true
}
