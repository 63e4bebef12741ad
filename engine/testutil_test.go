package engine

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	dbclass "github.com/gridbase/gridbase/db"
	"github.com/gridbase/gridbase/models"
)

// openTestDB gives every test its own isolated in-memory store. The pool
// is pinned to one connection so ":memory:" stays a single database.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := dbclass.Open(":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func newTestRegistry(t *testing.T) (*sql.DB, *Registry) {
	t.Helper()
	conn := openTestDB(t)
	return conn, NewRegistry(conn, t.TempDir())
}

// importPeople creates the canonical two-column fixture table.
func importPeople(t *testing.T, reg *Registry, owner string) *models.TableMeta {
	t.Helper()
	meta, err := reg.CreateFromRows(owner, "People", nil,
		[]string{"Name", "Age"},
		[][]models.CellValue{
			{models.TextCell("Alice"), models.IntegerCell(30)},
			{models.TextCell("Bob"), {}},
		})
	require.NoError(t, err)
	return meta
}

func cond(column, operator string, value any) models.FilterNode {
	return models.FilterNode{
		Kind:     models.FilterCondition,
		Column:   column,
		Operator: operator,
		Value:    value,
		Logic:    "AND",
	}
}

func orCond(column, operator string, value any) models.FilterNode {
	n := cond(column, operator, value)
	n.Logic = "OR"
	return n
}

func group(logic string, items ...models.FilterNode) models.FilterNode {
	return models.FilterNode{Kind: models.FilterGroup, Logic: logic, Items: items}
}
