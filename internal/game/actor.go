package game

import (
	"context"
	"time"
)

const defaultInbox = 64

// RoomActor owns a Room and applies every command to it on one goroutine,
// in the order the commands were accepted.
type RoomActor struct {
	room  *Room
	inbox chan func(*Room)
	done  chan struct{}
}

func newRoomActor(id string, deps RoomDeps, inbox int) *RoomActor {
	if inbox <= 0 {
		inbox = defaultInbox
	}
	a := &RoomActor{
		inbox: make(chan func(*Room), inbox),
		done:  make(chan struct{}),
	}
	if deps.Timers == nil {
		deps.Timers = actorTimers{a: a}
	}
	a.room = newRoom(id, deps)
	go a.loop()
	return a
}

func (a *RoomActor) ID() string { return a.room.id }

// Done is closed once the room has closed and the actor stopped.
func (a *RoomActor) Done() <-chan struct{} { return a.done }

func (a *RoomActor) loop() {
	for fn := range a.inbox {
		fn(a.room)
		if a.room.closed {
			close(a.done)
			return
		}
	}
}

// Do runs fn on the room goroutine and waits for its result.
func (a *RoomActor) Do(ctx context.Context, fn func(*Room) error) error {
	reply := make(chan error, 1)
	cmd := func(r *Room) { reply <- fn(r) }

	select {
	case a.inbox <- cmd:
	case <-a.done:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-a.done:
		// the command itself may have closed the room
		select {
		case err := <-reply:
			return err
		default:
			return ErrRoomClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Post queues fn without waiting for it to run. It reports false if the room
// is already gone.
func (a *RoomActor) Post(fn func(*Room)) bool {
	select {
	case a.inbox <- fn:
		return true
	case <-a.done:
		return false
	}
}

// TryPost queues fn only if the inbox has room right now.
func (a *RoomActor) TryPost(fn func(*Room)) bool {
	select {
	case a.inbox <- fn:
		return true
	default:
		return false
	}
}

// actorTimers turns timer firings into mailbox commands.
type actorTimers struct {
	a *RoomActor
}

func (t actorTimers) After(d time.Duration, fn func()) func() {
	timer := time.AfterFunc(d, func() {
		t.a.Post(func(*Room) { fn() })
	})
	return func() { timer.Stop() }
}
