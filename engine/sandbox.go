package engine

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/gridbase/gridbase/constants"
	"github.com/gridbase/gridbase/models"
)

// previewRowLimit caps how many rows a preview returns. Free-form SQL is
// bounded by result truncation only; there is no statement timeout.
const previewRowLimit = 100

// Sandbox validates free-form SQL before it ever reaches the engine. A
// query must survive three independent checks: no mutation keyword, no
// system-table reference, and no table reference outside the caller's
// own tabular tables.
type Sandbox struct {
	db  *sql.DB
	reg *Registry
}

func NewSandbox(conn *sql.DB, reg *Registry) *Sandbox {
	return &Sandbox{db: conn, reg: reg}
}

var mutationKeywords = map[string]bool{
	"DROP": true, "DELETE": true, "UPDATE": true, "INSERT": true,
	"ALTER": true, "TRUNCATE": true, "REPLACE": true, "CREATE": true,
	"PRAGMA": true, "VACUUM": true, "ATTACH": true, "DETACH": true,
	"GRANT": true, "REVOKE": true, "COMMIT": true, "ROLLBACK": true,
}

var systemTables = map[string]bool{
	"meta_tables":        true,
	"meta_projects":      true,
	"users":              true,
	"documents":          true,
	"sqlite_master":      true,
	"sqlite_schema":      true,
	"sqlite_temp_master": true,
	"sqlite_temp_schema": true,
	"sqlite_sequence":    true,
}

type tokenKind int

const (
	tokenWord tokenKind = iota
	tokenIdent
	tokenString
	tokenSymbol
)

type sqlToken struct {
	kind tokenKind
	text string
}

// tokenize splits raw SQL into words, quoted identifiers, string
// literals and symbols, skipping comments. It understands SQLite's
// double-quote, backtick and bracket identifier quoting, which is what
// regex passes over raw text tend to get wrong.
func tokenize(input string) []sqlToken {
	var tokens []sqlToken
	runes := []rune(input)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			i++
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
		case r == '/' && i+1 < len(runes) && runes[i+1] == '*':
			i += 2
			for i+1 < len(runes) && !(runes[i] == '*' && runes[i+1] == '/') {
				i++
			}
			i += 2
		case r == '\'':
			text, next := readQuoted(runes, i, '\'', '\'')
			tokens = append(tokens, sqlToken{kind: tokenString, text: text})
			i = next
		case r == '"':
			text, next := readQuoted(runes, i, '"', '"')
			tokens = append(tokens, sqlToken{kind: tokenIdent, text: text})
			i = next
		case r == '`':
			text, next := readQuoted(runes, i, '`', '`')
			tokens = append(tokens, sqlToken{kind: tokenIdent, text: text})
			i = next
		case r == '[':
			text, next := readQuoted(runes, i, '[', ']')
			tokens = append(tokens, sqlToken{kind: tokenIdent, text: text})
			i = next
		case isWordRune(r):
			start := i
			for i < len(runes) && isWordRune(runes[i]) {
				i++
			}
			tokens = append(tokens, sqlToken{kind: tokenWord, text: string(runes[start:i])})
		default:
			tokens = append(tokens, sqlToken{kind: tokenSymbol, text: string(r)})
			i++
		}
	}
	return tokens
}

func isWordRune(r rune) bool {
	return r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r > 127
}

// readQuoted consumes a quoted region starting at open, handling the
// doubled-close escape. Returns the unquoted text and the next index.
func readQuoted(runes []rune, start int, open, close rune) (string, int) {
	var b strings.Builder
	i := start + 1
	for i < len(runes) {
		if runes[i] == close {
			if open == close && i+1 < len(runes) && runes[i+1] == close {
				b.WriteRune(close)
				i += 2
				continue
			}
			return b.String(), i + 1
		}
		b.WriteRune(runes[i])
		i++
	}
	return b.String(), i
}

// checkMutationKeywords rejects any whole-word mutation keyword. String
// literals do not count as words here.
func checkMutationKeywords(tokens []sqlToken) error {
	for _, t := range tokens {
		if t.kind == tokenWord && mutationKeywords[strings.ToUpper(t.text)] {
			return rejectedf("statement contains forbidden keyword %q", strings.ToUpper(t.text))
		}
	}
	return nil
}

// checkSystemTables rejects references to the registry, projects, users
// and document-index tables, the sqlite schema catalog, and the
// pragma_* table-valued functions, bare or quoted. The catalog and the
// pragma functions list every tenant's backing tables, so reading them
// would leak which tables exist.
func checkSystemTables(tokens []sqlToken) error {
	for _, t := range tokens {
		if t.kind != tokenWord && t.kind != tokenIdent {
			continue
		}
		name := strings.ToLower(t.text)
		if systemTables[name] || strings.HasPrefix(name, "pragma_") {
			return rejectedf("statement references a system table")
		}
	}
	return nil
}

// checkOwnership scans every token shaped like an internal table name and
// requires it to be one of the caller's own tabular tables. A foreign
// table and a nonexistent one are rejected with the same error, so the
// sandbox cannot be used to probe for table existence. String literals
// are scanned too: a table name smuggled into a literal cannot round-trip
// into dynamic SQL unnoticed.
//
// Known gap: this scan recognizes references by the generated naming
// convention only. An identifier that does not match the pattern is
// invisible to it, which is why internal names are never derived from
// user input.
func checkOwnership(tokens []sqlToken, owned map[string]bool) error {
	for _, t := range tokens {
		if t.kind == tokenSymbol {
			continue
		}
		if !InternalTablePattern.MatchString(strings.ToLower(t.text)) {
			continue
		}
		if !owned[strings.ToLower(t.text)] {
			return rejectedf("statement references a table you do not own")
		}
	}
	return nil
}

// Validate runs the three checks in order. All must pass before any
// execution happens.
func (s *Sandbox) Validate(ownerID, query string) error {
	if strings.TrimSpace(query) == "" {
		return validationf("query is required")
	}

	tokens := tokenize(query)

	if err := checkMutationKeywords(tokens); err != nil {
		return err
	}
	if err := checkSystemTables(tokens); err != nil {
		return err
	}

	owned, err := s.reg.OwnedTabularNames(ownerID)
	if err != nil {
		return err
	}
	return checkOwnership(tokens, owned)
}

// Preview validates and runs the query, returning at most 100 rows with
// the column order the engine reported. Execution failures after
// validation are engine errors, not security errors.
func (s *Sandbox) Preview(ownerID, query string) (*models.QueryResult, error) {
	if err := s.Validate(ownerID, query); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, enginef(err)
	}
	defer rows.Close()

	columns, data, err := scanRowMaps(rows, previewRowLimit)
	if err != nil {
		return nil, err
	}
	return &models.QueryResult{Columns: columns, Data: data}, nil
}

// Materialize validates the query, persists its result as a brand-new
// owned table via CREATE TABLE AS, and registers it like any import,
// all in one transaction.
func (s *Sandbox) Materialize(ownerID, query, displayName string, projectID *int64) (*models.TableMeta, error) {
	if strings.TrimSpace(displayName) == "" {
		return nil, validationf("table name is required")
	}
	if err := s.Validate(ownerID, query); err != nil {
		return nil, err
	}

	internal := NewInternalTableName()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, enginef(err)
	}
	defer tx.Rollback()

	create := fmt.Sprintf("CREATE TABLE %s AS %s", quoteIdent(internal), query)
	if _, err := tx.Exec(create); err != nil {
		return nil, enginef(err)
	}

	columns, err := columnsFromSchema(tx, internal)
	if err != nil {
		return nil, err
	}

	meta, err := insertMeta(tx, &models.TableMeta{
		DisplayName:  strings.TrimSpace(displayName),
		InternalName: internal,
		OwnerID:      ownerID,
		ProjectID:    projectID,
		Kind:         models.KindTabular,
		Columns:      columns,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, enginef(err)
	}
	return meta, nil
}

// columnsFromSchema reads the live schema of a materialized table and
// maps the declared types onto the registry's type set using SQLite's
// affinity rules.
func columnsFromSchema(tx *sql.Tx, table string) ([]models.ColumnMeta, error) {
	rows, err := tx.Query("SELECT name, type FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, enginef(err)
	}
	defer rows.Close()

	var columns []models.ColumnMeta
	for rows.Next() {
		var name, declared string
		if err := rows.Scan(&name, &declared); err != nil {
			return nil, enginef(err)
		}
		if name == constants.ColumnID || name == constants.ColumnSortOrder {
			continue
		}
		columns = append(columns, models.ColumnMeta{
			InternalName: name,
			DisplayName:  name,
			Type:         affinityType(declared),
		})
	}
	return columns, rows.Err()
}

func affinityType(declared string) string {
	upper := strings.ToUpper(declared)
	switch {
	case strings.Contains(upper, "INT"):
		return constants.TypeInteger
	case strings.Contains(upper, "REAL"), strings.Contains(upper, "FLOA"), strings.Contains(upper, "DOUB"):
		return constants.TypeReal
	default:
		return constants.TypeText
	}
}
