package engine

import (
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/gridbase/gridbase/models"
)

// Projects manages the named groupings tables can be filed under.
// Deleting a project never deletes its tables unless the caller asks.
type Projects struct {
	db  *sql.DB
	reg *Registry
}

func NewProjects(conn *sql.DB, reg *Registry) *Projects {
	return &Projects{db: conn, reg: reg}
}

func (p *Projects) List(ownerID string) ([]models.Project, error) {
	rows, err := p.db.Query(
		"SELECT id, owner_id, name, description, created_at FROM meta_projects WHERE owner_id = ? ORDER BY created_at DESC, id DESC",
		ownerID)
	if err != nil {
		return nil, enginef(err)
	}
	defer rows.Close()

	out := []models.Project{}
	for rows.Next() {
		var proj models.Project
		if err := rows.Scan(&proj.ID, &proj.OwnerID, &proj.Name, &proj.Description, &proj.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, proj)
	}
	return out, rows.Err()
}

func (p *Projects) Create(ownerID, name, description string) (*models.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationf("project name is required")
	}

	res, err := p.db.Exec(
		"INSERT INTO meta_projects (owner_id, name, description) VALUES (?, ?, ?)",
		ownerID, name, description)
	if err != nil {
		return nil, enginef(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, enginef(err)
	}
	return p.get(ownerID, id)
}

func (p *Projects) get(ownerID string, id int64) (*models.Project, error) {
	var proj models.Project
	err := p.db.QueryRow(
		"SELECT id, owner_id, name, description, created_at FROM meta_projects WHERE owner_id = ? AND id = ?",
		ownerID, id).Scan(&proj.ID, &proj.OwnerID, &proj.Name, &proj.Description, &proj.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, notFoundErr()
	}
	if err != nil {
		return nil, err
	}
	return &proj, nil
}

func (p *Projects) Update(ownerID string, id int64, name, description *string) (*models.Project, error) {
	proj, err := p.get(ownerID, id)
	if err != nil {
		return nil, err
	}
	if name != nil {
		if strings.TrimSpace(*name) == "" {
			return nil, validationf("project name cannot be empty")
		}
		proj.Name = strings.TrimSpace(*name)
	}
	if description != nil {
		proj.Description = *description
	}
	if _, err := p.db.Exec(
		"UPDATE meta_projects SET name = ?, description = ? WHERE id = ? AND owner_id = ?",
		proj.Name, proj.Description, id, ownerID); err != nil {
		return nil, enginef(err)
	}
	return proj, nil
}

// Delete removes a project. With deleteTables the member tables go with
// it (backing tables dropped, document files removed); without, they
// detach and become uncategorized. The whole change is one transaction;
// document files are removed only after it commits.
func (p *Projects) Delete(ownerID string, id int64, deleteTables bool) error {
	if _, err := p.get(ownerID, id); err != nil {
		return err
	}

	tx, err := p.db.Begin()
	if err != nil {
		return enginef(err)
	}
	defer tx.Rollback()

	var orphanedFiles []string
	if deleteTables {
		rows, err := tx.Query(
			"SELECT internal_name, kind, file_path, columns FROM meta_tables WHERE owner_id = ? AND project_id = ?",
			ownerID, id)
		if err != nil {
			return enginef(err)
		}
		var members []models.TableMeta
		for rows.Next() {
			var meta models.TableMeta
			var columnsJSON string
			if err := rows.Scan(&meta.InternalName, &meta.Kind, &meta.FilePath, &columnsJSON); err != nil {
				rows.Close()
				return err
			}
			if err := json.Unmarshal([]byte(columnsJSON), &meta.Columns); err != nil {
				rows.Close()
				return enginef(err)
			}
			members = append(members, meta)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		for i := range members {
			if err := dropBacking(tx, &members[i]); err != nil {
				return err
			}
			if members[i].Kind == models.KindDocument && members[i].FilePath != "" {
				orphanedFiles = append(orphanedFiles, members[i].FilePath)
			}
		}
		if _, err := tx.Exec("DELETE FROM meta_tables WHERE owner_id = ? AND project_id = ?", ownerID, id); err != nil {
			return enginef(err)
		}
	} else {
		if _, err := tx.Exec("UPDATE meta_tables SET project_id = NULL WHERE owner_id = ? AND project_id = ?", ownerID, id); err != nil {
			return enginef(err)
		}
	}

	if _, err := tx.Exec("DELETE FROM meta_projects WHERE id = ? AND owner_id = ?", id, ownerID); err != nil {
		return enginef(err)
	}
	if err := tx.Commit(); err != nil {
		return enginef(err)
	}

	for _, path := range orphanedFiles {
		removeDocumentFile(&models.TableMeta{Kind: models.KindDocument, FilePath: path})
	}
	return nil
}
