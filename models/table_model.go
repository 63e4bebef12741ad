package models

import "time"

const (
	KindTabular  = "tabular"
	KindDocument = "document"
)

// TableMeta is the registry entry for one tenant-visible dataset. The
// internal name is the identifier of the backing relational table and is
// generated, never user-chosen.
type TableMeta struct {
	ID           int64        `json:"id"`
	DisplayName  string       `json:"displayName"`
	InternalName string       `json:"tableName"`
	OwnerID      string       `json:"-"`
	ProjectID    *int64       `json:"projectId"`
	Kind         string       `json:"kind"`
	FilePath     string       `json:"-"`
	Columns      []ColumnMeta `json:"columns"`
	CreatedAt    time.Time    `json:"createdAt"`
	RowCount     int64        `json:"rowCount"`
}

// ColumnMeta maps a sanitized internal column name back to the display
// name the user supplied, plus the inferred storage type.
type ColumnMeta struct {
	InternalName string `json:"name"`
	DisplayName  string `json:"displayName"`
	Type         string `json:"type"`
}

// Column looks up a column by internal name, falling back to the display
// name. Returns nil when the table has no such column.
func (t *TableMeta) Column(name string) *ColumnMeta {
	for i := range t.Columns {
		if t.Columns[i].InternalName == name {
			return &t.Columns[i]
		}
	}
	for i := range t.Columns {
		if t.Columns[i].DisplayName == name {
			return &t.Columns[i]
		}
	}
	return nil
}
