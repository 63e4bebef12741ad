package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/gridbase/gridbase/models"
	"github.com/gridbase/gridbase/utils"
)

func (s *APIServer) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.projects.List(ownerID(r))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, projects)
}

func (s *APIServer) createProject(w http.ResponseWriter, r *http.Request) {
	var req models.ProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, "invalid request format", http.StatusBadRequest)
		return
	}

	project, err := s.projects.Create(ownerID(r), req.Name, req.Description)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, project)
}

func projectID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

func (s *APIServer) updateProject(w http.ResponseWriter, r *http.Request) {
	id, err := projectID(r)
	if err != nil {
		utils.RespondError(w, "invalid project id", http.StatusBadRequest)
		return
	}

	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, "invalid request format", http.StatusBadRequest)
		return
	}

	project, err := s.projects.Update(ownerID(r), id, req.Name, req.Description)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, project)
}

func (s *APIServer) deleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := projectID(r)
	if err != nil {
		utils.RespondError(w, "invalid project id", http.StatusBadRequest)
		return
	}

	deleteTables := r.URL.Query().Get("deleteTables") == "true"

	if err := s.projects.Delete(ownerID(r), id, deleteTables); err != nil {
		respondEngineError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{"msg": "success"})
}
