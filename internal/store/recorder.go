package store

import (
	"context"
	"log/slog"
	"time"
)

type OutcomeAppender interface {
	Append(ctx context.Context, characterID string, outcomes []string, at time.Time) error
}

type CharacterCounter interface {
	Incr(ctx context.Context, characterID string, n int) error
}

type record struct {
	characterID string
	outcomes    []string
	at          time.Time
}

// Recorder is the fire-and-forget stats sink handed to rooms. Record only
// queues; Run does the writes.
type Recorder struct {
	log      *slog.Logger
	outcomes OutcomeAppender
	weekly   CharacterCounter
	queue    chan record
	timeout  time.Duration
}

func NewRecorder(outcomes OutcomeAppender, weekly CharacterCounter, buffer int, log *slog.Logger) *Recorder {
	if buffer <= 0 {
		buffer = 256
	}
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{
		log:      log,
		outcomes: outcomes,
		weekly:   weekly,
		queue:    make(chan record, buffer),
		timeout:  5 * time.Second,
	}
}

func (r *Recorder) Record(characterID string, outcomes []string) {
	if characterID == "" || len(outcomes) == 0 {
		return
	}
	rec := record{characterID: characterID, outcomes: append([]string(nil), outcomes...), at: time.Now()}
	select {
	case r.queue <- rec:
	default:
		r.log.Warn("stats queue full, dropping", "character", characterID, "outcomes", len(outcomes))
	}
}

// Run drains the queue until ctx is done.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case rec := <-r.queue:
			r.write(ctx, rec)
		}
	}
}

func (r *Recorder) write(ctx context.Context, rec record) {
	wctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if r.outcomes != nil {
		if err := r.outcomes.Append(wctx, rec.characterID, rec.outcomes, rec.at); err != nil {
			r.log.Error("stats append failed", "character", rec.characterID, "err", err)
		}
	}
	if r.weekly != nil {
		if err := r.weekly.Incr(wctx, rec.characterID, 1); err != nil {
			r.log.Error("weekly counter failed", "character", rec.characterID, "err", err)
		}
	}
}
