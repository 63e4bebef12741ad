package engine

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/gridbase/gridbase/constants"
	"github.com/gridbase/gridbase/models"
)

// typeSampleLimit bounds how many import rows type inference looks at.
const typeSampleLimit = 10

// Registry owns the mapping between tenant-visible tables and their
// backing relational tables, plus the column metadata overlay.
type Registry struct {
	db      *sql.DB
	docsDir string
}

func NewRegistry(conn *sql.DB, docsDir string) *Registry {
	return &Registry{db: conn, docsDir: docsDir}
}

func (r *Registry) DB() *sql.DB { return r.db }

const metaColumns = "id, display_name, internal_name, owner_id, project_id, kind, file_path, columns, created_at"

func scanMeta(row *sql.Row) (*models.TableMeta, error) {
	var meta models.TableMeta
	var columnsJSON string
	err := row.Scan(&meta.ID, &meta.DisplayName, &meta.InternalName, &meta.OwnerID,
		&meta.ProjectID, &meta.Kind, &meta.FilePath, &columnsJSON, &meta.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(columnsJSON), &meta.Columns); err != nil {
		return nil, enginef(err)
	}
	return &meta, nil
}

// Resolve looks a table up by internal name first, then display name,
// always scoped to the owner. A foreign table and a missing table fail
// identically.
func (r *Registry) Resolve(ownerID, ref string) (*models.TableMeta, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, validationf("table reference is required")
	}

	row := r.db.QueryRow(
		"SELECT "+metaColumns+" FROM meta_tables WHERE owner_id = ? AND internal_name = ?",
		ownerID, ref)
	meta, err := scanMeta(row)
	if err == sql.ErrNoRows {
		row = r.db.QueryRow(
			"SELECT "+metaColumns+" FROM meta_tables WHERE owner_id = ? AND display_name = ? LIMIT 1",
			ownerID, ref)
		meta, err = scanMeta(row)
	}
	if err == sql.ErrNoRows {
		return nil, notFoundErr()
	}
	if err != nil {
		return nil, err
	}
	return meta, nil
}

// ProjectScope narrows a table listing: all tables, one or more projects,
// and/or tables not assigned to any project.
type ProjectScope struct {
	ProjectIDs    []int64
	Uncategorized bool
}

func (s ProjectScope) all() bool {
	return len(s.ProjectIDs) == 0 && !s.Uncategorized
}

// List returns every table the owner has within the scope, columns
// expanded and row counts attached.
func (r *Registry) List(ownerID string, scope ProjectScope) ([]models.TableMeta, error) {
	b := sq.Select(metaColumns).From("meta_tables").Where(sq.Eq{"owner_id": ownerID})
	if !scope.all() {
		var parts sq.Or
		if len(scope.ProjectIDs) > 0 {
			parts = append(parts, sq.Eq{"project_id": scope.ProjectIDs})
		}
		if scope.Uncategorized {
			parts = append(parts, sq.Eq{"project_id": nil})
		}
		b = b.Where(parts)
	}
	query, args, err := b.OrderBy("created_at DESC, id DESC").ToSql()
	if err != nil {
		return nil, enginef(err)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, enginef(err)
	}

	// drain the iterator before the row-count queries: a nested query
	// would block on the connection the iterator still holds when the
	// pool is pinned to one connection
	var out []models.TableMeta
	for rows.Next() {
		var meta models.TableMeta
		var columnsJSON string
		if err := rows.Scan(&meta.ID, &meta.DisplayName, &meta.InternalName, &meta.OwnerID,
			&meta.ProjectID, &meta.Kind, &meta.FilePath, &columnsJSON, &meta.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		if err := json.Unmarshal([]byte(columnsJSON), &meta.Columns); err != nil {
			rows.Close()
			return nil, enginef(err)
		}
		out = append(out, meta)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range out {
		if out[i].Kind != models.KindTabular {
			continue
		}
		// best effort, a count failure should not break the listing
		var count int64
		if err := r.db.QueryRow("SELECT COUNT(*) FROM " + quoteIdent(out[i].InternalName)).Scan(&count); err == nil {
			out[i].RowCount = count
		}
	}
	return out, nil
}

func inferColumnType(samples [][]models.CellValue, col int) string {
	limit := len(samples)
	if limit > typeSampleLimit {
		limit = typeSampleLimit
	}
	for i := 0; i < limit; i++ {
		if col >= len(samples[i]) {
			continue
		}
		switch samples[i][col].Kind {
		case models.CellNull:
			continue
		case models.CellInteger, models.CellBool:
			return constants.TypeInteger
		case models.CellReal:
			return constants.TypeReal
		default:
			return constants.TypeText
		}
	}
	return constants.TypeText
}

// buildColumns sanitizes a header row into unique internal column names
// and infers each column's type from the sample rows.
func buildColumns(header []string, rows [][]models.CellValue) []models.ColumnMeta {
	taken := map[string]bool{strings.ToLower(constants.ColumnID): true}
	columns := make([]models.ColumnMeta, 0, len(header))
	for i, raw := range header {
		name := UniqueIdentifier(SanitizeIdentifier(raw), func(candidate string) bool {
			return taken[strings.ToLower(candidate)]
		})
		taken[strings.ToLower(name)] = true
		display := strings.TrimSpace(raw)
		if display == "" {
			display = name
		}
		columns = append(columns, models.ColumnMeta{
			InternalName: name,
			DisplayName:  display,
			Type:         inferColumnType(rows, i),
		})
	}
	return columns
}

// CreateFromRows materializes imported tabular data: backing table with a
// surrogate id, bulk insert, registry entry. One transaction, so a failed
// import leaves no orphaned table behind.
func (r *Registry) CreateFromRows(ownerID, displayName string, projectID *int64, header []string, rows [][]models.CellValue) (*models.TableMeta, error) {
	if strings.TrimSpace(displayName) == "" {
		return nil, validationf("table name is required")
	}
	if len(header) == 0 {
		return nil, validationf("at least one column is required")
	}

	columns := buildColumns(header, rows)
	internal := NewInternalTableName()

	tx, err := r.db.Begin()
	if err != nil {
		return nil, enginef(err)
	}
	defer tx.Rollback()

	defs := make([]string, 0, len(columns)+1)
	defs = append(defs, quoteIdent(constants.ColumnID)+" INTEGER PRIMARY KEY AUTOINCREMENT")
	for _, col := range columns {
		defs = append(defs, quoteIdent(col.InternalName)+" "+col.Type)
	}
	createStmt := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(internal), strings.Join(defs, ", "))
	if _, err := tx.Exec(createStmt); err != nil {
		return nil, enginef(err)
	}

	if len(rows) > 0 {
		names := make([]string, len(columns))
		placeholders := make([]string, len(columns))
		for i, col := range columns {
			names[i] = quoteIdent(col.InternalName)
			placeholders[i] = "?"
		}
		insertStmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			quoteIdent(internal), strings.Join(names, ", "), strings.Join(placeholders, ", "))
		stmt, err := tx.Prepare(insertStmt)
		if err != nil {
			return nil, enginef(err)
		}
		defer stmt.Close()

		for _, row := range rows {
			args := make([]any, len(columns))
			for i, col := range columns {
				if i < len(row) {
					args[i] = row[i].Arg(col.Type)
				}
			}
			if _, err := stmt.Exec(args...); err != nil {
				return nil, enginef(err)
			}
		}
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
	meta.RowCount = int64(len(rows))
	return meta, nil
}

// RegisterDocument records an uploaded non-tabular file under the same
// registry, with no columns and no backing table.
func (r *Registry) RegisterDocument(ownerID, displayName string, projectID *int64, storedPath string) (*models.TableMeta, error) {
	if strings.TrimSpace(displayName) == "" {
		return nil, validationf("document name is required")
	}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, enginef(err)
	}
	defer tx.Rollback()

	meta, err := insertMeta(tx, &models.TableMeta{
		DisplayName:  strings.TrimSpace(displayName),
		InternalName: NewInternalTableName(),
		OwnerID:      ownerID,
		ProjectID:    projectID,
		Kind:         models.KindDocument,
		FilePath:     storedPath,
		Columns:      []models.ColumnMeta{},
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, enginef(err)
	}
	return meta, nil
}

func insertMeta(tx *sql.Tx, meta *models.TableMeta) (*models.TableMeta, error) {
	columnsJSON, err := json.Marshal(meta.Columns)
	if err != nil {
		return nil, enginef(err)
	}
	res, err := tx.Exec(
		`INSERT INTO meta_tables (display_name, internal_name, owner_id, project_id, kind, file_path, columns)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		meta.DisplayName, meta.InternalName, meta.OwnerID, meta.ProjectID, meta.Kind, meta.FilePath, string(columnsJSON))
	if err != nil {
		return nil, enginef(err)
	}
	meta.ID, err = res.LastInsertId()
	if err != nil {
		return nil, enginef(err)
	}
	return meta, nil
}

// UpdateMeta applies a partial update to display name, project
// assignment, or the column overlay. The internal name never changes.
func (r *Registry) UpdateMeta(ownerID, ref string, upd models.UpdateTableRequest) (*models.TableMeta, error) {
	meta, err := r.Resolve(ownerID, ref)
	if err != nil {
		return nil, err
	}

	sets := sq.Update("meta_tables")
	changed := false
	if upd.DisplayName != nil {
		if strings.TrimSpace(*upd.DisplayName) == "" {
			return nil, validationf("display name cannot be empty")
		}
		sets = sets.Set("display_name", strings.TrimSpace(*upd.DisplayName))
		changed = true
	}
	if upd.ProjectID.Set {
		if upd.ProjectID.Valid {
			sets = sets.Set("project_id", upd.ProjectID.ID)
		} else {
			sets = sets.Set("project_id", nil)
		}
		changed = true
	}
	if upd.Columns != nil {
		// overlay only: internal names must match the existing set
		if len(upd.Columns) != len(meta.Columns) {
			return nil, validationf("column overlay must cover every column")
		}
		for i := range upd.Columns {
			if upd.Columns[i].InternalName != meta.Columns[i].InternalName {
				return nil, validationf("internal column names are immutable")
			}
			if !constants.ValidColumnType(upd.Columns[i].Type) {
				return nil, validationf("unknown column type %q", upd.Columns[i].Type)
			}
		}
		columnsJSON, err := json.Marshal(upd.Columns)
		if err != nil {
			return nil, enginef(err)
		}
		sets = sets.Set("columns", string(columnsJSON))
		changed = true
	}
	if !changed {
		return meta, nil
	}

	query, args, err := sets.Where(sq.Eq{"id": meta.ID, "owner_id": ownerID}).ToSql()
	if err != nil {
		return nil, enginef(err)
	}
	if _, err := r.db.Exec(query, args...); err != nil {
		return nil, enginef(err)
	}
	return r.Resolve(ownerID, meta.InternalName)
}

// Drop removes the backing table (or stored document file) together with
// the registry row. Idempotent against a missing backing table.
func (r *Registry) Drop(ownerID, ref string) error {
	meta, err := r.Resolve(ownerID, ref)
	if err != nil {
		return err
	}

	tx, err := r.db.Begin()
	if err != nil {
		return enginef(err)
	}
	defer tx.Rollback()

	if err := dropBacking(tx, meta); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM meta_tables WHERE id = ?", meta.ID); err != nil {
		return enginef(err)
	}
	if err := tx.Commit(); err != nil {
		return enginef(err)
	}

	removeDocumentFile(meta)
	return nil
}

func dropBacking(tx *sql.Tx, meta *models.TableMeta) error {
	if meta.Kind != models.KindTabular {
		return nil
	}
	if _, err := tx.Exec("DROP TABLE IF EXISTS " + quoteIdent(meta.InternalName)); err != nil {
		return enginef(err)
	}
	return nil
}

func removeDocumentFile(meta *models.TableMeta) {
	if meta.Kind == models.KindDocument && meta.FilePath != "" {
		os.Remove(meta.FilePath)
	}
}

// AddColumn alters the backing table and the metadata overlay in one
// transaction. The display name is sanitized into a fresh internal name;
// a sanitized collision gets the usual numeric suffix.
func (r *Registry) AddColumn(ownerID, ref, displayName, columnType string) (*models.TableMeta, error) {
	meta, err := r.Resolve(ownerID, ref)
	if err != nil {
		return nil, err
	}
	if meta.Kind != models.KindTabular {
		return nil, validationf("documents have no columns")
	}
	if strings.TrimSpace(displayName) == "" {
		return nil, validationf("column name is required")
	}
	if columnType == "" {
		columnType = constants.TypeText
	}
	if !constants.ValidColumnType(columnType) {
		return nil, validationf("unknown column type %q", columnType)
	}

	for _, col := range meta.Columns {
		if strings.EqualFold(col.DisplayName, strings.TrimSpace(displayName)) {
			return nil, validationf("column %q already exists", displayName)
		}
	}

	taken := map[string]bool{
		strings.ToLower(constants.ColumnID):        true,
		strings.ToLower(constants.ColumnSortOrder): true,
	}
	for _, col := range meta.Columns {
		taken[strings.ToLower(col.InternalName)] = true
	}
	internal := UniqueIdentifier(SanitizeIdentifier(displayName), func(candidate string) bool {
		return taken[strings.ToLower(candidate)]
	})

	tx, err := r.db.Begin()
	if err != nil {
		return nil, enginef(err)
	}
	defer tx.Rollback()

	alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
		quoteIdent(meta.InternalName), quoteIdent(internal), columnType)
	if _, err := tx.Exec(alter); err != nil {
		return nil, enginef(err)
	}

	columns := append(meta.Columns, models.ColumnMeta{
		InternalName: internal,
		DisplayName:  strings.TrimSpace(displayName),
		Type:         columnType,
	})
	if err := saveColumns(tx, meta.ID, columns); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, enginef(err)
	}
	meta.Columns = columns
	return meta, nil
}

// DropColumn removes a column from the live schema and the overlay as
// one atomic step. Unknown columns are an error, not a no-op.
func (r *Registry) DropColumn(ownerID, ref, name string) (*models.TableMeta, error) {
	meta, err := r.Resolve(ownerID, ref)
	if err != nil {
		return nil, err
	}
	if meta.Kind != models.KindTabular {
		return nil, validationf("documents have no columns")
	}

	col := meta.Column(name)
	if col == nil {
		return nil, validationf("unknown column %q", name)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, enginef(err)
	}
	defer tx.Rollback()

	alter := fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s",
		quoteIdent(meta.InternalName), quoteIdent(col.InternalName))
	if _, err := tx.Exec(alter); err != nil {
		return nil, enginef(err)
	}

	columns := make([]models.ColumnMeta, 0, len(meta.Columns)-1)
	for _, c := range meta.Columns {
		if c.InternalName != col.InternalName {
			columns = append(columns, c)
		}
	}
	if err := saveColumns(tx, meta.ID, columns); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, enginef(err)
	}
	meta.Columns = columns
	return meta, nil
}

func saveColumns(tx *sql.Tx, metaID int64, columns []models.ColumnMeta) error {
	columnsJSON, err := json.Marshal(columns)
	if err != nil {
		return enginef(err)
	}
	if _, err := tx.Exec("UPDATE meta_tables SET columns = ? WHERE id = ?", string(columnsJSON), metaID); err != nil {
		return enginef(err)
	}
	return nil
}

// OwnedTabularNames returns the set of internal table names the owner may
// reference in free-form SQL (documents excluded).
func (r *Registry) OwnedTabularNames(ownerID string) (map[string]bool, error) {
	rows, err := r.db.Query(
		"SELECT internal_name FROM meta_tables WHERE owner_id = ? AND kind = ?",
		ownerID, models.KindTabular)
	if err != nil {
		return nil, enginef(err)
	}
	defer rows.Close()

	owned := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		owned[name] = true
	}
	return owned, rows.Err()
}
