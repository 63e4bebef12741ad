package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridbase/gridbase/models"
)

func compile(t *testing.T, node models.FilterNode) (string, []any) {
	t.Helper()
	sqlizer := CompileFilter(&node)
	if sqlizer == nil {
		return "", nil
	}
	sqlText, args, err := sqlizer.ToSql()
	require.NoError(t, err)
	return sqlText, args
}

func TestCompileFilterConditions(t *testing.T) {
	cases := []struct {
		name     string
		node     models.FilterNode
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "equality",
			node:     cond("name", "=", "Alice"),
			wantSQL:  `"name" = ?`,
			wantArgs: []any{"Alice"},
		},
		{
			name:     "unknown operator falls back to equality",
			node:     cond("name", "BETWIXT", "Alice"),
			wantSQL:  `"name" = ?`,
			wantArgs: []any{"Alice"},
		},
		{
			name:     "like wraps the value",
			node:     cond("name", "LIKE", "li"),
			wantSQL:  `"name" LIKE ?`,
			wantArgs: []any{"%li%"},
		},
		{
			name:     "not like wraps the value",
			node:     cond("name", "NOT LIKE", "li"),
			wantSQL:  `"name" NOT LIKE ?`,
			wantArgs: []any{"%li%"},
		},
		{
			name:    "is empty binds nothing",
			node:    cond("name", "IS EMPTY", nil),
			wantSQL: `("name" IS NULL OR "name" = '')`,
		},
		{
			name:    "is not empty binds nothing",
			node:    cond("name", "IS NOT EMPTY", nil),
			wantSQL: `NOT ("name" IS NULL OR "name" = '')`,
		},
		{
			name:     "comparison",
			node:     cond("age", ">=", 21),
			wantSQL:  `"age" >= ?`,
			wantArgs: []any{21},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sqlText, args := compile(t, tc.node)
			assert.Equal(t, tc.wantSQL, sqlText)
			assert.Equal(t, tc.wantArgs, args)
		})
	}
}

func TestCompileFilterGroups(t *testing.T) {
	sqlText, args := compile(t, group("AND",
		cond("age", ">", 18),
		orCond("name", "=", "Bob"),
	))
	assert.Equal(t, `("age" > ? OR "name" = ?)`, sqlText)
	assert.Equal(t, []any{18, "Bob"}, args)

	sqlText, _ = compile(t, group("AND",
		cond("age", ">", 18),
		cond("age", "<", 65),
	))
	assert.Equal(t, `("age" > ? AND "age" < ?)`, sqlText)
}

func TestCompileFilterEmptyGroupContributesNothing(t *testing.T) {
	sqlText, args := compile(t, group("AND"))
	assert.Empty(t, sqlText)
	assert.Empty(t, args)

	// an empty group nested anywhere leaves the parent clause unchanged
	with := group("AND",
		cond("age", ">", 18),
		group("OR"),
		cond("name", "=", "Bob"),
	)
	without := group("AND",
		cond("age", ">", 18),
		cond("name", "=", "Bob"),
	)
	withSQL, withArgs := compile(t, with)
	withoutSQL, withoutArgs := compile(t, without)
	assert.Equal(t, withoutSQL, withSQL)
	assert.Equal(t, withoutArgs, withArgs)
}

func TestCompileFilterNestedGroups(t *testing.T) {
	sqlText, args := compile(t, group("AND",
		cond("age", ">", 18),
		group("AND",
			cond("name", "=", "Alice"),
			orCond("name", "=", "Bob"),
		),
	))
	assert.Equal(t, `("age" > ? AND ("name" = ? OR "name" = ?))`, sqlText)
	assert.Len(t, args, 3)
}

func TestLegacyFlatArrayMatchesGroupTree(t *testing.T) {
	var flat models.FilterNode
	require.NoError(t, json.Unmarshal([]byte(
		`[{"column":"age","operator":">","value":18},{"column":"name","operator":"=","value":"Bob","logic":"OR"}]`,
	), &flat))

	var tree models.FilterNode
	require.NoError(t, json.Unmarshal([]byte(
		`{"logic":"AND","items":[{"column":"age","operator":">","value":18},{"column":"name","operator":"=","value":"Bob","logic":"OR"}]}`,
	), &tree))

	flatSQL, flatArgs := compile(t, flat)
	treeSQL, treeArgs := compile(t, tree)
	assert.Equal(t, treeSQL, flatSQL)
	assert.Equal(t, treeArgs, flatArgs)
}

func TestValidateFilterColumns(t *testing.T) {
	known := map[string]bool{"name": true, "age": true}

	ok := group("AND", cond("name", "=", "x"), group("OR", cond("age", ">", 1)))
	assert.NoError(t, validateFilterColumns(&ok, known))

	bad := group("AND", cond("name", "=", "x"), group("OR", cond("salary", ">", 1)))
	err := validateFilterColumns(&bad, known)
	assert.ErrorIs(t, err, ErrValidation)
}
