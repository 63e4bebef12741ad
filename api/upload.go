package api

import (
	"encoding/csv"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/gridbase/gridbase/models"
	"github.com/gridbase/gridbase/utils"
)

const maxUploadBytes = 64 << 20

// RowSource turns an uploaded tabular file into a header row plus data
// rows. Spreadsheet parsing is an external collaborator; CSV/TSV is the
// built-in implementation and richer formats plug in behind the same
// interface.
type RowSource interface {
	Rows(r io.Reader, filename string, headerRow int) (header []string, rows [][]models.CellValue, err error)
}

// CSVSource parses comma and tab separated files, sniffing each cell
// into the closed cell-value domain.
type CSVSource struct{}

func (CSVSource) Rows(r io.Reader, filename string, headerRow int) ([]string, [][]models.CellValue, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	if strings.EqualFold(filepath.Ext(filename), ".tsv") {
		reader.Comma = '\t'
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if headerRow < 0 || headerRow >= len(records) {
		headerRow = 0
	}
	if len(records) == 0 {
		return nil, nil, io.ErrUnexpectedEOF
	}

	header := records[headerRow]
	var rows [][]models.CellValue
	for _, record := range records[headerRow+1:] {
		row := make([]models.CellValue, len(record))
		for i, field := range record {
			row[i] = models.SniffCell(field)
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

func tabularUpload(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".tsv":
		return true
	}
	return false
}

func (s *APIServer) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		utils.RespondError(w, "invalid multipart request", http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		utils.RespondError(w, "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	var projectID *int64
	if raw := r.FormValue("projectId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			utils.RespondError(w, "invalid project id", http.StatusBadRequest)
			return
		}
		projectID = &id
	}

	name := fileHeader.Filename
	displayName := strings.TrimSuffix(name, filepath.Ext(name))
	owner := ownerID(r)

	if tabularUpload(name) {
		headerRow, _ := strconv.Atoi(r.FormValue("headerRow"))
		header, rows, err := s.parser.Rows(file, name, headerRow)
		if err != nil {
			utils.RespondError(w, "could not parse file: "+err.Error(), http.StatusBadRequest)
			return
		}

		meta, err := s.registry.CreateFromRows(owner, displayName, projectID, header, rows)
		if err != nil {
			respondEngineError(w, err)
			return
		}

		utils.WriteJSON(w, http.StatusOK, map[string]any{
			"tableName": meta.InternalName,
			"columns":   meta.Columns,
		})
		return
	}

	stored, err := s.storeDocument(file, name)
	if err != nil {
		utils.RespondError(w, "could not store file: "+err.Error(), http.StatusInternalServerError)
		return
	}

	meta, err := s.registry.RegisterDocument(owner, displayName, projectID, stored)
	if err != nil {
		os.Remove(stored)
		respondEngineError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"tableName": meta.InternalName,
		"type":      models.KindDocument,
	})
}

func (s *APIServer) storeDocument(file io.Reader, originalName string) (string, error) {
	if err := os.MkdirAll(s.docsDir, 0o755); err != nil {
		return "", err
	}

	stored := filepath.Join(s.docsDir, uuid.NewString()+filepath.Ext(originalName))
	out, err := os.Create(stored)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		os.Remove(stored)
		return "", err
	}
	return stored, nil
}
