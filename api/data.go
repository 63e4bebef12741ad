package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/gridbase/gridbase/models"
	"github.com/gridbase/gridbase/utils"
)

func (s *APIServer) getTableData(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, _ := strconv.ParseUint(q.Get("page"), 10, 64)
	pageSize, _ := strconv.ParseUint(q.Get("pageSize"), 10, 64)

	filter, err := models.ParseFilters(q.Get("filters"))
	if err != nil {
		utils.RespondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	sorts, err := models.ParseSorts(q.Get("sorts"))
	if err != nil {
		utils.RespondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	groups, err := models.ParseGroups(q.Get("groups"))
	if err != nil {
		utils.RespondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := s.data.GetPage(ownerID(r), mux.Vars(r)["table"], page, pageSize, &filter, sorts, groups)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, result)
}

func rowID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

func (s *APIServer) updateCell(w http.ResponseWriter, r *http.Request) {
	id, err := rowID(r)
	if err != nil {
		utils.RespondError(w, "invalid row id", http.StatusBadRequest)
		return
	}

	var req models.UpdateCellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, "invalid request format", http.StatusBadRequest)
		return
	}
	if req.Column == "" {
		utils.RespondError(w, "column is required", http.StatusBadRequest)
		return
	}

	if err := s.data.UpdateCell(ownerID(r), mux.Vars(r)["table"], id, req.Column, req.Value); err != nil {
		respondEngineError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{"msg": "success"})
}

func (s *APIServer) insertRow(w http.ResponseWriter, r *http.Request) {
	var req models.InsertRowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, "invalid request format", http.StatusBadRequest)
		return
	}

	id, err := s.data.InsertRow(ownerID(r), mux.Vars(r)["table"], req.Data, req.Position)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{"id": id})
}

func (s *APIServer) deleteRow(w http.ResponseWriter, r *http.Request) {
	id, err := rowID(r)
	if err != nil {
		utils.RespondError(w, "invalid row id", http.StatusBadRequest)
		return
	}

	if err := s.data.DeleteRow(ownerID(r), mux.Vars(r)["table"], id); err != nil {
		respondEngineError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{"msg": "success"})
}

func (s *APIServer) getAggregates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter, err := models.ParseFilters(q.Get("filters"))
	if err != nil {
		utils.RespondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	specs := map[string]string{}
	if raw := q.Get("aggregates"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &specs); err != nil {
			utils.RespondError(w, "invalid aggregates", http.StatusBadRequest)
			return
		}
	}

	result, err := s.aggregates.Compute(ownerID(r), mux.Vars(r)["table"], &filter, specs)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, result)
}

func (s *APIServer) exportTable(w http.ResponseWriter, r *http.Request) {
	ref := mux.Vars(r)["table"]

	meta, err := s.registry.Resolve(ownerID(r), ref)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", meta.DisplayName+".csv"))

	if err := s.data.Export(ownerID(r), ref, w); err != nil {
		respondEngineError(w, err)
		return
	}
}
