package game

import (
	"bytes"
	"encoding/json"
)

// Envelope WS envelope: {"type":"...","payload":{...}}
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Sender delivers an envelope to one client without blocking the room.
type Sender interface {
	Send(env Envelope)
}

// FlexID accepts both JSON strings and numbers; catalog ids arrive as either.
type FlexID string

func (f *FlexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	*f = FlexID(b)
	return nil
}

// Answer is the opaque (encrypted) character payload plus its catalog id.
type Answer struct {
	ID      FlexID          `json:"id"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Candidate is a guessed character as the catalog describes it.
type Candidate struct {
	ID   string
	Name string
	Data json.RawMessage
}

func ParseCandidate(raw json.RawMessage) (Candidate, error) {
	var head struct {
		ID   FlexID `json:"id"`
		Name string `json:"name"`
	}
	if len(raw) == 0 {
		return Candidate{}, badInput("guessData is required")
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return Candidate{}, badInput("guessData is not an object")
	}
	if head.ID == "" {
		return Candidate{}, badInput("guessData.id is required")
	}
	return Candidate{ID: string(head.ID), Name: head.Name, Data: raw}, nil
}

type Settings struct {
	SyncMode    bool            `json:"syncMode"`
	NonstopMode bool            `json:"nonstopMode"`
	GlobalPick  bool            `json:"globalPick"`
	TagBan      bool            `json:"tagBan"`
	MaxAttempts int             `json:"maxAttempts"`
	TimeLimit   int             `json:"timeLimit"` // seconds per round, 0 => no server timer
	Catalog     json.RawMessage `json:"catalog,omitempty"`
}

func (s Settings) attempts() int {
	if s.MaxAttempts <= 0 {
		return defaultAttempts
	}
	return s.MaxAttempts
}

// Inbound payloads.

type CreateRoomPayload struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
	AvatarID FlexID `json:"avatarId"`
}

type RoomPayload struct {
	RoomID string `json:"roomId"`
}

type SettingsPayload struct {
	RoomID   string   `json:"roomId"`
	Settings Settings `json:"settings"`
}

type StartGamePayload struct {
	RoomID   string   `json:"roomId"`
	Answer   Answer   `json:"answer"`
	Settings Settings `json:"settings"`
}

type SubmitGuessPayload struct {
	RoomID           string          `json:"roomId"`
	GuessData        json.RawMessage `json:"guessData"`
	IsCorrect        bool            `json:"isCorrect"`
	IsPartialCorrect bool            `json:"isPartialCorrect"`
}

type EndGamePayload struct {
	RoomID string `json:"roomId"`
	Result string `json:"result"`
}

type RevealTagsPayload struct {
	RoomID string   `json:"roomId"`
	Tags   []string `json:"tags"`
}

type TargetPayload struct {
	RoomID   string `json:"roomId"`
	TargetID string `json:"targetId"`
}

type RenamePayload struct {
	RoomID   string `json:"roomId"`
	RoomName string `json:"roomName"`
}

type SetAnswerPayload struct {
	RoomID string          `json:"roomId"`
	Answer Answer          `json:"answer"`
	Hints  json.RawMessage `json:"hints,omitempty"`
}

type MessagePayload struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

type TeamPayload struct {
	RoomID string  `json:"roomId"`
	Team   *string `json:"team"`
}

// Outbound payloads.

type PlayerView struct {
	ID               string  `json:"id"`
	Username         string  `json:"username"`
	AvatarID         string  `json:"avatarId,omitempty"`
	Score            int     `json:"score"`
	Ready            bool    `json:"ready"`
	Team             *string `json:"team"`
	IsHost           bool    `json:"isHost"`
	IsAnswerSetter   bool    `json:"isAnswerSetter"`
	Disconnected     bool    `json:"disconnected"`
	TempObserver     bool    `json:"tempObserver,omitempty"`
	JoinedDuringGame bool    `json:"joinedDuringGame,omitempty"`
	Message          string  `json:"message"`
	Guesses          Track   `json:"guesses"`
}

type RosterPayload struct {
	Players        []PlayerView `json:"players"`
	IsPublic       bool         `json:"isPublic"`
	AnswerSetterID string       `json:"answerSetterId,omitempty"`
}

type GameStartedPayload struct {
	Answer         Answer          `json:"answer"`
	Settings       Settings        `json:"settings"`
	Players        []PlayerView    `json:"players"`
	IsPublic       bool            `json:"isPublic"`
	Hints          json.RawMessage `json:"hints,omitempty"`
	IsAnswerSetter bool            `json:"isAnswerSetter"`
}

type GuessHistoryPayload struct {
	Guesses     []LedgerView     `json:"guesses"`
	TeamGuesses map[string]Track `json:"teamGuesses"`
}

type GuessBroadcastPayload struct {
	GuessData  json.RawMessage `json:"guessData"`
	PlayerID   string          `json:"playerId"`
	PlayerName string          `json:"playerName"`
}

type RoundStartPayload struct {
	Round      int   `json:"round"`
	DeadlineMs int64 `json:"deadlineMs"`
}

type SyncStatus struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Completed bool   `json:"completed"`
}

type RoundWaitingPayload struct {
	Round          int          `json:"round"`
	Status         []SyncStatus `json:"syncStatus"`
	CompletedCount int          `json:"completedCount"`
	TotalCount     int          `json:"totalCount"`
}

type RoundEndingPayload struct {
	WinnerUsername string `json:"winnerUsername"`
}

type TeamWinPayload struct {
	WinnerName string `json:"winnerName"`
}

type NonstopWinnerView struct {
	Username string `json:"username"`
	Rank     int    `json:"rank"`
	Score    int    `json:"score"`
}

type NonstopProgressPayload struct {
	Winners        []NonstopWinnerView `json:"winners"`
	RemainingCount int                 `json:"remainingCount"`
	TotalCount     int                 `json:"totalCount"`
}

type GameEndedPayload struct {
	Guesses      []LedgerView  `json:"guesses"`
	ScoreDetails []ScoreDetail `json:"scoreDetails"`
}

type RoomClosedPayload struct {
	Reason string `json:"reason"`
}

type HostTransferredPayload struct {
	OldHostName string `json:"oldHostName"`
	NewHostID   string `json:"newHostId"`
	NewHostName string `json:"newHostName"`
}

type KickedPayload struct {
	PlayerID string `json:"playerId"`
	Username string `json:"username"`
}

type RoomNamePayload struct {
	RoomName string `json:"roomName"`
}

type TagReveal struct {
	Tag       string   `json:"tag"`
	Revealers []string `json:"revealer"`
}

type TagBanPayload struct {
	Entries []TagReveal `json:"tagBanState"`
}

type WaitForAnswerPayload struct {
	AnswerSetterID string `json:"answerSetterId"`
	SetterUsername string `json:"setterUsername"`
}

type NoticePayload struct {
	Message string `json:"message"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func envelope(typ string, v any) Envelope {
	return Envelope{Type: typ, Payload: mustJSON(v)}
}
