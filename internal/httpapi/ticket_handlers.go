package httpapi

import (
	"net/http"
	"time"

	"example.com/guessroom/internal/auth"
	"github.com/google/uuid"
)

type TicketHandler struct {
	Auth *auth.Service
}

type TicketResponse struct {
	Ticket    string `json:"ticket"`
	ClientID  string `json:"clientId"`
	ExpiresAt int64  `json:"expiresAt"`
}

// Issue hands out a short-lived ticket for opening /ws. A client may send
// its previous clientId back in X-Client-Id to keep it.
func (h *TicketHandler) Issue(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	clientID := r.Header.Get("X-Client-Id")
	if _, err := uuid.Parse(clientID); err != nil {
		clientID = uuid.NewString()
	}

	tok, exp, err := h.Auth.Issue(clientID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeInternal, "failed to issue ticket")
		return
	}
	writeJSON(w, http.StatusOK, TicketResponse{
		Ticket:    tok,
		ClientID:  clientID,
		ExpiresAt: exp.Truncate(time.Second).Unix(),
	})
}
