package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridbase/gridbase/models"
)

func TestSearchFreeTextAcrossTables(t *testing.T) {
	conn, reg := newTestRegistry(t)
	importPeople(t, reg, "owner-1")
	importCities(t, reg, "owner-1")
	importPeople(t, reg, "owner-2")
	search := NewSearch(conn, reg)

	results, err := search.Run("owner-1", "Ana", emptyFilter(), ProjectScope{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Cities", results[0].Table)
	require.Len(t, results[0].Matches, 1)
	assert.Equal(t, "Ana", results[0].Matches[0]["name"])

	// matches in multiple tables come back per table
	results, err = search.Run("owner-1", "o", emptyFilter(), ProjectScope{})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearchFilterAppliesOnlyWhereColumnsExist(t *testing.T) {
	conn, reg := newTestRegistry(t)
	importPeople(t, reg, "owner-1") // columns Name, Age
	importCities(t, reg, "owner-1") // columns city, name, age
	search := NewSearch(conn, reg)

	filter := group("AND", cond("city", "=", "Lima"))
	results, err := search.Run("owner-1", "", &filter, ProjectScope{})
	require.NoError(t, err)

	// People has no "city" column and no text query applies, so it is
	// skipped entirely rather than failing the search
	require.Len(t, results, 1)
	assert.Equal(t, "Cities", results[0].Table)
	assert.Len(t, results[0].Matches, 2)
}

func TestSearchCapsMatchesPerTable(t *testing.T) {
	conn, reg := newTestRegistry(t)
	var rows [][]models.CellValue
	for i := 0; i < 20; i++ {
		rows = append(rows, []models.CellValue{models.TextCell("repeat")})
	}
	_, err := reg.CreateFromRows("owner-1", "Repeats", nil, []string{"word"}, rows)
	require.NoError(t, err)
	search := NewSearch(conn, reg)

	results, err := search.Run("owner-1", "repeat", emptyFilter(), ProjectScope{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Len(t, results[0].Matches, 5)
}

func TestSearchSkipsTablesWithNothingToAsk(t *testing.T) {
	conn, reg := newTestRegistry(t)
	importPeople(t, reg, "owner-1")
	search := NewSearch(conn, reg)

	// neither a text query nor an applicable filter: nothing to search
	results, err := search.Run("owner-1", "", emptyFilter(), ProjectScope{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchScopedToProject(t *testing.T) {
	conn, reg := newTestRegistry(t)
	projects := NewProjects(conn, reg)
	proj, err := projects.Create("owner-1", "Research", "")
	require.NoError(t, err)

	_, err = reg.CreateFromRows("owner-1", "Scoped", &proj.ID, []string{"word"},
		[][]models.CellValue{{models.TextCell("hello")}})
	require.NoError(t, err)
	_, err = reg.CreateFromRows("owner-1", "Unscoped", nil, []string{"word"},
		[][]models.CellValue{{models.TextCell("hello")}})
	require.NoError(t, err)
	search := NewSearch(conn, reg)

	results, err := search.Run("owner-1", "hello", emptyFilter(), ProjectScope{ProjectIDs: []int64{proj.ID}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Scoped", results[0].Table)
}
