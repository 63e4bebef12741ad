package engine

import (
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/gridbase/gridbase/constants"
	"github.com/gridbase/gridbase/models"
)

// rawSQL is a precompiled fragment: SQL text with its bound parameters.
// Identifier text only ever enters through quoteIdent; values only ever
// enter through args.
type rawSQL struct {
	sql  string
	args []any
}

func (r rawSQL) ToSql() (string, []any, error) { return r.sql, r.args, nil }

// CompileFilter turns a filter tree into a parameterized predicate.
// Returns nil when the tree contributes nothing. Column names are
// interpolated as quoted identifiers and are trusted here: callers must
// allowlist them against the table schema first.
func CompileFilter(node *models.FilterNode) sq.Sqlizer {
	if node.IsEmpty() {
		return nil
	}
	if node.Kind == models.FilterCondition {
		return compileCondition(node)
	}

	var sqlParts []string
	var args []any
	for i := range node.Items {
		child := CompileFilter(&node.Items[i])
		if child == nil {
			continue
		}
		childSQL, childArgs, err := child.ToSql()
		if err != nil || childSQL == "" {
			continue
		}
		if len(sqlParts) > 0 {
			logic := strings.ToUpper(node.Items[i].Logic)
			if logic != "OR" {
				logic = "AND"
			}
			sqlParts = append(sqlParts, logic)
		}
		sqlParts = append(sqlParts, childSQL)
		args = append(args, childArgs...)
	}
	if len(sqlParts) == 0 {
		return nil
	}
	return rawSQL{sql: "(" + strings.Join(sqlParts, " ") + ")", args: args}
}

func compileCondition(node *models.FilterNode) sq.Sqlizer {
	col := quoteIdent(node.Column)

	switch strings.ToUpper(strings.TrimSpace(node.Operator)) {
	case constants.OpIsEmpty:
		return rawSQL{sql: "(" + col + " IS NULL OR " + col + " = '')"}
	case constants.OpIsNotEmpty:
		return rawSQL{sql: "NOT (" + col + " IS NULL OR " + col + " = '')"}
	case constants.OpLike:
		return rawSQL{sql: col + " LIKE ?", args: []any{likePattern(node.Value)}}
	case constants.OpNotLike:
		return rawSQL{sql: col + " NOT LIKE ?", args: []any{likePattern(node.Value)}}
	case constants.OpNeq:
		return rawSQL{sql: col + " != ?", args: []any{node.Value}}
	case constants.OpGt:
		return rawSQL{sql: col + " > ?", args: []any{node.Value}}
	case constants.OpLt:
		return rawSQL{sql: col + " < ?", args: []any{node.Value}}
	case constants.OpGte:
		return rawSQL{sql: col + " >= ?", args: []any{node.Value}}
	case constants.OpLte:
		return rawSQL{sql: col + " <= ?", args: []any{node.Value}}
	default:
		// unknown operators fall back to equality
		return rawSQL{sql: col + " = ?", args: []any{node.Value}}
	}
}

func likePattern(value any) string {
	s, ok := value.(string)
	if !ok {
		s = stringify(value)
	}
	return "%" + s + "%"
}

// validateFilterColumns checks every condition column in the tree against
// the table's known columns. Unknown columns on the direct data path are
// a validation error; best-effort paths prune instead (see search).
func validateFilterColumns(node *models.FilterNode, known map[string]bool) error {
	for _, cond := range node.Conditions() {
		if cond.Column == "" {
			return validationf("filter condition is missing a column")
		}
		if !known[cond.Column] {
			return validationf("unknown filter column %q", cond.Column)
		}
	}
	return nil
}
