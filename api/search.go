package api

import (
	"net/http"

	"github.com/gridbase/gridbase/models"
	"github.com/gridbase/gridbase/utils"
)

func (s *APIServer) searchTables(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	scope, err := projectScope(r)
	if err != nil {
		utils.RespondError(w, "invalid project id", http.StatusBadRequest)
		return
	}

	filter, err := models.ParseFilters(q.Get("filters"))
	if err != nil {
		utils.RespondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	results, err := s.search.Run(ownerID(r), q.Get("q"), &filter, scope)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, results)
}
