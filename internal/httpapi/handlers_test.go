package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"example.com/guessroom/internal/auth"
	"example.com/guessroom/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketIssue(t *testing.T) {
	h := &TicketHandler{Auth: auth.NewService([]byte("k"), time.Minute)}

	t.Run("new client", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Issue(rec, httptest.NewRequest(http.MethodPost, "/api/ticket", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp TicketResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.NotEmpty(t, resp.ClientID)

		claims, err := auth.Verify([]byte("k"), resp.Ticket)
		require.NoError(t, err)
		assert.Equal(t, resp.ClientID, claims.ClientID)
	})

	t.Run("keeps client id", func(t *testing.T) {
		const id = "0b6f1c8e-3a4d-4b8e-9f51-2d6c1f2a7e10"
		req := httptest.NewRequest(http.MethodPost, "/api/ticket", nil)
		req.Header.Set("X-Client-Id", id)
		rec := httptest.NewRecorder()
		h.Issue(rec, req)

		var resp TicketResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, id, resp.ClientID)
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Issue(rec, httptest.NewRequest(http.MethodGet, "/api/ticket", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))

		var resp ErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, codeMethodNotAllowed, resp.Code)
	})
}

type fakeWeekly struct {
	top []store.CharacterCount
	err error
	n   int
}

func (f *fakeWeekly) Top(_ context.Context, n int) ([]store.CharacterCount, error) {
	f.n = n
	return f.top, f.err
}

type fakeCounts map[string]int

func (f fakeCounts) Counts(context.Context, string) (map[string]int, error) { return f, nil }

func TestStatsHandlers(t *testing.T) {
	weekly := &fakeWeekly{top: []store.CharacterCount{{CharacterID: "42", Count: 3}}}
	h := &StatsHandler{Weekly: weekly, Outcomes: fakeCounts{"win": 2}}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/stats/weekly", h.WeeklyTop)
	mux.HandleFunc("/api/stats/character/{id}", h.Character)

	cases := []struct {
		name     string
		url      string
		wantCode int
	}{
		{name: "weekly default", url: "/api/stats/weekly", wantCode: http.StatusOK},
		{name: "weekly limit", url: "/api/stats/weekly?limit=5", wantCode: http.StatusOK},
		{name: "weekly bad limit", url: "/api/stats/weekly?limit=0", wantCode: http.StatusBadRequest},
		{name: "character", url: "/api/stats/character/42", wantCode: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.url, nil))
			assert.Equal(t, tc.wantCode, rec.Code)
		})
	}
	assert.Equal(t, 5, weekly.n)

	t.Run("store error", func(t *testing.T) {
		weekly.err = errors.New("down")
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats/weekly", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
