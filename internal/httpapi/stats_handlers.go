package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"example.com/guessroom/internal/store"
)

type WeeklyTop interface {
	Top(ctx context.Context, n int) ([]store.CharacterCount, error)
}

type OutcomeCounts interface {
	Counts(ctx context.Context, characterID string) (map[string]int, error)
}

type StatsHandler struct {
	Weekly   WeeklyTop
	Outcomes OutcomeCounts
}

// WeeklyTop serves GET /api/stats/weekly?limit=N.
func (h *StatsHandler) WeeklyTop(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			writeError(w, http.StatusBadRequest, codeBadRequest, "limit must be 1..100")
			return
		}
		limit = n
	}
	top, err := h.Weekly.Top(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeInternal, "stats unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"characters": top})
}

// Character serves GET /api/stats/character/{id}.
func (h *StatsHandler) Character(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "character id is required")
		return
	}
	counts, err := h.Outcomes.Counts(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeInternal, "stats unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"characterId": id, "outcomes": counts})
}
