package api

import (
	"net/http"

	"github.com/gridbase/gridbase/utils"
)

func (s *APIServer) healthCheck(w http.ResponseWriter, r *http.Request) {
	var health string
	if err := s.db.QueryRow("PRAGMA integrity_check;").Scan(&health); err != nil {
		utils.RespondError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{"ok": health == "ok"})
}
