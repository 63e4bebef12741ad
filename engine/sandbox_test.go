package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridbase/gridbase/constants"
	"github.com/gridbase/gridbase/models"
)

func TestSandboxOwnershipAllowlist(t *testing.T) {
	conn, reg := newTestRegistry(t)
	meta := importPeople(t, reg, "owner-1")
	sandbox := NewSandbox(conn, reg)

	query := fmt.Sprintf(`SELECT * FROM %q`, meta.InternalName)

	assert.NoError(t, sandbox.Validate("owner-1", query))

	// another caller is rejected, and a nonexistent table is rejected
	// with the same error, so the sandbox leaks no existence signal
	foreignErr := sandbox.Validate("owner-2", query)
	missingErr := sandbox.Validate("owner-2", `SELECT * FROM tbl_00000000000000000000000000000000`)
	require.ErrorIs(t, foreignErr, ErrSandboxRejected)
	require.ErrorIs(t, missingErr, ErrSandboxRejected)
	assert.Equal(t, missingErr.Error(), foreignErr.Error())
}

func TestSandboxRejectsMutationKeywords(t *testing.T) {
	conn, reg := newTestRegistry(t)
	meta := importPeople(t, reg, "owner-1")
	sandbox := NewSandbox(conn, reg)

	bad := []string{
		fmt.Sprintf(`DELETE FROM %q`, meta.InternalName),
		fmt.Sprintf(`drop table %q`, meta.InternalName),
		fmt.Sprintf(`SELECT * FROM %q; UPDATE %q SET "Age" = 0`, meta.InternalName, meta.InternalName),
		`PRAGMA integrity_check`,
		`ATTACH DATABASE 'x' AS y`,
	}
	for _, query := range bad {
		assert.ErrorIs(t, sandbox.Validate("owner-1", query), ErrSandboxRejected, query)
	}

	// the keyword must match as a whole word, not a substring
	ok := fmt.Sprintf(`SELECT "Name" AS updated_name FROM %q`, meta.InternalName)
	assert.NoError(t, sandbox.Validate("owner-1", ok))
}

func TestSandboxKeywordInsideStringLiteralIsAllowed(t *testing.T) {
	conn, reg := newTestRegistry(t)
	meta := importPeople(t, reg, "owner-1")
	sandbox := NewSandbox(conn, reg)

	query := fmt.Sprintf(`SELECT * FROM %q WHERE "Name" = 'DELETE'`, meta.InternalName)
	assert.NoError(t, sandbox.Validate("owner-1", query))
}

func TestSandboxRejectsSystemTables(t *testing.T) {
	conn, reg := newTestRegistry(t)
	importPeople(t, reg, "owner-1")
	sandbox := NewSandbox(conn, reg)

	bad := []string{
		`SELECT * FROM users`,
		`SELECT * FROM "meta_tables"`,
		`SELECT * FROM META_TABLES`,
		"SELECT * FROM `meta_projects`",
		`SELECT * FROM [documents]`,
		`SELECT name, sql FROM sqlite_master`,
		`SELECT * FROM "sqlite_schema"`,
		`SELECT * FROM sqlite_sequence`,
		`SELECT * FROM pragma_database_list`,
		`SELECT * FROM pragma_table_info('meta_tables')`,
	}
	for _, query := range bad {
		assert.ErrorIs(t, sandbox.Validate("owner-1", query), ErrSandboxRejected, query)
	}
}

func TestSandboxBlocksCatalogEnumeration(t *testing.T) {
	conn, reg := newTestRegistry(t)
	importPeople(t, reg, "owner-1")
	sandbox := NewSandbox(conn, reg)

	// a tenant owning nothing must not be able to list other tenants'
	// backing tables through the schema catalog
	_, err := sandbox.Preview("owner-2",
		`SELECT name FROM sqlite_master WHERE name LIKE 'tbl!_%' ESCAPE '!'`)
	assert.ErrorIs(t, err, ErrSandboxRejected)

	_, err = sandbox.Preview("owner-2", `SELECT * FROM pragma_table_list`)
	assert.ErrorIs(t, err, ErrSandboxRejected)
}

func TestSandboxScansCommentsAndLiteralsForTableNames(t *testing.T) {
	conn, reg := newTestRegistry(t)
	meta := importPeople(t, reg, "owner-1")
	other, err := reg.CreateFromRows("owner-2", "Theirs", nil, []string{"a"}, nil)
	require.NoError(t, err)
	sandbox := NewSandbox(conn, reg)

	// a foreign table name inside a string literal is still caught
	smuggled := fmt.Sprintf(`SELECT * FROM %q WHERE "Name" = '%s'`, meta.InternalName, other.InternalName)
	assert.ErrorIs(t, sandbox.Validate("owner-1", smuggled), ErrSandboxRejected)

	// but commented-out text is not part of the statement
	commented := fmt.Sprintf("SELECT * FROM %q -- %s", meta.InternalName, other.InternalName)
	assert.NoError(t, sandbox.Validate("owner-1", commented))
}

func TestSandboxRejectsDocumentReferences(t *testing.T) {
	conn, reg := newTestRegistry(t)
	doc, err := reg.RegisterDocument("owner-1", "Report", nil, "")
	require.NoError(t, err)
	sandbox := NewSandbox(conn, reg)

	query := fmt.Sprintf(`SELECT * FROM %q`, doc.InternalName)
	assert.ErrorIs(t, sandbox.Validate("owner-1", query), ErrSandboxRejected)
}

func TestPreviewCapsRowsAndReportsColumns(t *testing.T) {
	conn, reg := newTestRegistry(t)
	sandbox := NewSandbox(conn, reg)

	var rows [][]models.CellValue
	for i := 0; i < 150; i++ {
		rows = append(rows, []models.CellValue{models.IntegerCell(int64(i))})
	}
	meta, err := reg.CreateFromRows("owner-1", "Numbers", nil, []string{"n"}, rows)
	require.NoError(t, err)

	result, err := sandbox.Preview("owner-1", fmt.Sprintf(`SELECT "n" FROM %q ORDER BY "n"`, meta.InternalName))
	require.NoError(t, err)
	assert.Equal(t, []string{"n"}, result.Columns)
	assert.Len(t, result.Data, 100)
	assert.EqualValues(t, 0, result.Data[0]["n"])
}

func TestPreviewExecutionErrorIsEngineError(t *testing.T) {
	conn, reg := newTestRegistry(t)
	meta := importPeople(t, reg, "owner-1")
	sandbox := NewSandbox(conn, reg)

	_, err := sandbox.Preview("owner-1", fmt.Sprintf(`SELECT nope( FROM %q`, meta.InternalName))
	assert.ErrorIs(t, err, ErrEngine)
	assert.NotErrorIs(t, err, ErrSandboxRejected)
}

func TestMaterializeRegistersNewTable(t *testing.T) {
	conn, reg := newTestRegistry(t)
	meta := importPeople(t, reg, "owner-1")
	sandbox := NewSandbox(conn, reg)
	d := NewData(conn, reg)

	query := fmt.Sprintf(`SELECT "Name", "Age" FROM %q WHERE "Age" IS NOT NULL`, meta.InternalName)
	saved, err := sandbox.Materialize("owner-1", query, "Adults", nil)
	require.NoError(t, err)
	assert.Regexp(t, InternalTablePattern, saved.InternalName)
	require.Len(t, saved.Columns, 2)
	assert.Equal(t, constants.TypeText, saved.Columns[0].Type)
	assert.Equal(t, constants.TypeInteger, saved.Columns[1].Type)

	// the materialized table behaves like any import
	page, err := d.GetPage("owner-1", saved.InternalName, 1, 50, emptyFilter(), nil, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)
	assert.Equal(t, "Alice", page.Data[0]["Name"])

	// and only for its owner
	_, err = d.GetPage("owner-2", saved.InternalName, 1, 50, emptyFilter(), nil, nil)
	assert.ErrorIs(t, err, ErrNotFoundOrForbidden)
}

func TestMaterializeFailureLeavesNoOrphan(t *testing.T) {
	conn, reg := newTestRegistry(t)
	importPeople(t, reg, "owner-1")
	sandbox := NewSandbox(conn, reg)

	before, err := reg.List("owner-1", ProjectScope{})
	require.NoError(t, err)

	_, err = sandbox.Materialize("owner-1", `SELECT broken syntax here from`, "Broken", nil)
	require.Error(t, err)

	after, err := reg.List("owner-1", ProjectScope{})
	require.NoError(t, err)
	assert.Equal(t, len(before), len(after))

	var n int
	require.NoError(t, conn.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name LIKE 'tbl_%'").Scan(&n))
	assert.Equal(t, 1, n)
}
