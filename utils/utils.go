package utils

import (
	"encoding/json"
	"net/http"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func RespondError(w http.ResponseWriter, msg string, status int) {
	WriteJSON(w, status, map[string]any{"error": msg})
}
