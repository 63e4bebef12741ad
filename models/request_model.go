package models

import (
	"bytes"
	"encoding/json"
)

// NullableID distinguishes "field absent" from "field explicitly null"
// in partial updates (a null projectId detaches a table from its project).
type NullableID struct {
	Set   bool
	Valid bool
	ID    int64
}

func (n *NullableID) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Valid = false
		return nil
	}
	if err := json.Unmarshal(data, &n.ID); err != nil {
		return err
	}
	n.Valid = true
	return nil
}

type UpdateTableRequest struct {
	DisplayName *string      `json:"displayName"`
	ProjectID   NullableID   `json:"projectId"`
	Columns     []ColumnMeta `json:"columns"`
}

type UpdateCellRequest struct {
	Column string    `json:"column"`
	Value  CellValue `json:"value"`
}

const (
	PlaceBefore = "before"
	PlaceAfter  = "after"
)

// RowPosition anchors a positional insert relative to an existing row.
type RowPosition struct {
	AnchorID int64  `json:"anchorId"`
	Place    string `json:"place"` // before or after
}

type InsertRowRequest struct {
	Data     map[string]CellValue `json:"data"`
	Position *RowPosition         `json:"position"`
}

type AddColumnRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type QueryRequest struct {
	SQL string `json:"sql"`
}

type SaveQueryRequest struct {
	SQL       string `json:"sql"`
	TableName string `json:"tableName"`
	ProjectID *int64 `json:"projectId"`
}

type ProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// QueryResult is a preview result: column order from the engine, rows as
// column name to value maps.
type QueryResult struct {
	Columns []string         `json:"columns"`
	Data    []map[string]any `json:"data"`
}

// DataPage is one page of table rows plus pagination bookkeeping.
type DataPage struct {
	Data       []map[string]any `json:"data"`
	Total      int64            `json:"total"`
	Page       uint64           `json:"page"`
	PageSize   uint64           `json:"pageSize"`
	TotalPages int64            `json:"totalPages"`
}

// SearchResult is the per-table slice of a cross-table search.
type SearchResult struct {
	Table     string           `json:"table"`     // display name
	TableName string           `json:"tableName"` // internal name
	Matches   []map[string]any `json:"matches"`
}
