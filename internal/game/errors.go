package game

import (
	"errors"
	"fmt"
)

// Error categories. Every rejected action wraps exactly one of them and
// leaves the room untouched.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidState = errors.New("invalid state")
	ErrConflict     = errors.New("conflict")
	ErrCapacity     = errors.New("capacity")
	ErrBadInput     = errors.New("bad input")
)

var (
	ErrRoomNotFound   = fmt.Errorf("%w: room does not exist", ErrNotFound)
	ErrPlayerNotFound = fmt.Errorf("%w: player is not in this room", ErrNotFound)
	ErrRoomClosed     = fmt.Errorf("%w: room is closed", ErrNotFound)

	ErrNotHost     = fmt.Errorf("%w: only the host can do that", ErrUnauthorized)
	ErrHostNoReady = fmt.Errorf("%w: the host has no ready state", ErrUnauthorized)
	ErrKickSelf    = fmt.Errorf("%w: the host cannot kick themselves", ErrUnauthorized)
	ErrObserver    = fmt.Errorf("%w: observers cannot play", ErrUnauthorized)
	ErrSetterPlays = fmt.Errorf("%w: the answer setter cannot play", ErrUnauthorized)
	ErrNotSetter   = fmt.Errorf("%w: you are not the designated answer setter", ErrUnauthorized)

	ErrSessionActive   = fmt.Errorf("%w: a game is in progress", ErrInvalidState)
	ErrNoSession       = fmt.Errorf("%w: no game in progress", ErrInvalidState)
	ErrNotReady        = fmt.Errorf("%w: every player must be ready", ErrInvalidState)
	ErrNoContenders    = fmt.Errorf("%w: nobody is on a playing team", ErrInvalidState)
	ErrAlreadyFinished = fmt.Errorf("%w: you already finished this game", ErrInvalidState)
	ErrRoundWait       = fmt.Errorf("%w: wait for the round to finish", ErrInvalidState)
	ErrHostOffline     = fmt.Errorf("%w: new host must be connected", ErrInvalidState)
	ErrSetterPending   = fmt.Errorf("%w: waiting for the answer setter", ErrInvalidState)
	ErrAlreadyInRoom   = fmt.Errorf("%w: connection already joined this room", ErrInvalidState)

	ErrRoomExists    = fmt.Errorf("%w: room already exists", ErrConflict)
	ErrNameTaken     = fmt.Errorf("%w: username is taken", ErrConflict)
	ErrAvatarTaken   = fmt.Errorf("%w: avatar is taken", ErrConflict)
	ErrAlreadyPicked = fmt.Errorf("%w: that character was already guessed by another player", ErrConflict)

	ErrRoomsFull = fmt.Errorf("%w: server is full, try again later", ErrCapacity)
)

// ErrorCode maps an error onto the wire code sent back to the client.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrCapacity):
		return "capacity"
	case errors.Is(err, ErrBadInput):
		return "bad_input"
	}
	return "internal"
}

func badInput(msg string) error { return fmt.Errorf("%w: %s", ErrBadInput, msg) }
