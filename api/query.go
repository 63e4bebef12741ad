package api

import (
	"encoding/json"
	"net/http"

	"github.com/gridbase/gridbase/models"
	"github.com/gridbase/gridbase/utils"
)

func (s *APIServer) previewQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, "invalid request format", http.StatusBadRequest)
		return
	}

	result, err := s.sandbox.Preview(ownerID(r), req.SQL)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, result)
}

func (s *APIServer) saveQuery(w http.ResponseWriter, r *http.Request) {
	var req models.SaveQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, "invalid request format", http.StatusBadRequest)
		return
	}

	meta, err := s.sandbox.Materialize(ownerID(r), req.SQL, req.TableName, req.ProjectID)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, meta)
}
