package httpapi

import (
	"encoding/json"
	"net/http"
)

// Error codes shared with the WebSocket error envelope where they overlap.
const (
	codeBadRequest       = "bad_input"
	codeMethodNotAllowed = "method_not_allowed"
	codeInternal         = "internal"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errCode, msg string) {
	writeJSON(w, status, ErrorResponse{Code: errCode, Message: msg})
}

// requireMethod answers 405 with an Allow header unless r uses method.
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "use "+method)
	return false
}
