package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/gridbase/gridbase/engine"
	"github.com/gridbase/gridbase/models"
	"github.com/gridbase/gridbase/utils"
)

// projectScope reads the projectId / projectIds query parameters.
// projectId=none selects uncategorized tables.
func projectScope(r *http.Request) (engine.ProjectScope, error) {
	var scope engine.ProjectScope

	var raw []string
	if v := r.URL.Query().Get("projectIds"); v != "" {
		raw = strings.Split(v, ",")
	} else if v := r.URL.Query().Get("projectId"); v != "" {
		raw = []string{v}
	}

	for _, part := range raw {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if part == "none" {
			scope.Uncategorized = true
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return scope, err
		}
		scope.ProjectIDs = append(scope.ProjectIDs, id)
	}
	return scope, nil
}

func (s *APIServer) listTables(w http.ResponseWriter, r *http.Request) {
	scope, err := projectScope(r)
	if err != nil {
		utils.RespondError(w, "invalid project id", http.StatusBadRequest)
		return
	}

	tables, err := s.registry.List(ownerID(r), scope)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	if tables == nil {
		tables = []models.TableMeta{}
	}

	utils.WriteJSON(w, http.StatusOK, tables)
}

func (s *APIServer) updateTable(w http.ResponseWriter, r *http.Request) {
	var upd models.UpdateTableRequest
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		utils.RespondError(w, "invalid request format", http.StatusBadRequest)
		return
	}

	meta, err := s.registry.UpdateMeta(ownerID(r), mux.Vars(r)["table"], upd)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, meta)
}

func (s *APIServer) dropTable(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Drop(ownerID(r), mux.Vars(r)["table"]); err != nil {
		respondEngineError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"msg": "success"})
}

func (s *APIServer) addColumn(w http.ResponseWriter, r *http.Request) {
	var req models.AddColumnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, "invalid request format", http.StatusBadRequest)
		return
	}

	meta, err := s.registry.AddColumn(ownerID(r), mux.Vars(r)["table"], req.Name, req.Type)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, meta)
}

func (s *APIServer) dropColumn(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	meta, err := s.registry.DropColumn(ownerID(r), vars["table"], vars["name"])
	if err != nil {
		respondEngineError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, meta)
}
