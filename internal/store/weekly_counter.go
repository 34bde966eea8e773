package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultWeeklyKey = "stats:weekly"

type CharacterCount struct {
	CharacterID string `json:"characterId"`
	Count       int64  `json:"count"`
}

// WeeklyCounter keeps a rolling per-character play count in a sorted set.
type WeeklyCounter struct {
	rdb *redis.Client
	key string
}

func NewWeeklyCounter(rdb *redis.Client, key string) *WeeklyCounter {
	if key == "" {
		key = DefaultWeeklyKey
	}
	return &WeeklyCounter{rdb: rdb, key: key}
}

func (w *WeeklyCounter) Incr(ctx context.Context, characterID string, n int) error {
	if n <= 0 {
		return nil
	}
	if err := w.rdb.ZIncrBy(ctx, w.key, float64(n), characterID).Err(); err != nil {
		return fmt.Errorf("weekly incr: %w", err)
	}
	return nil
}

func (w *WeeklyCounter) Top(ctx context.Context, n int) ([]CharacterCount, error) {
	if n <= 0 {
		n = 10
	}
	zs, err := w.rdb.ZRevRangeWithScores(ctx, w.key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("weekly top: %w", err)
	}
	out := make([]CharacterCount, 0, len(zs))
	for _, z := range zs {
		id, _ := z.Member.(string)
		out = append(out, CharacterCount{CharacterID: id, Count: int64(z.Score)})
	}
	return out, nil
}

func (w *WeeklyCounter) Reset(ctx context.Context) error {
	return w.rdb.Del(ctx, w.key).Err()
}

// weeklyResetDue is true during Monday 04:00-04:59 local time unless a reset
// already happened that day.
func weeklyResetDue(now, last time.Time) bool {
	if now.Weekday() != time.Monday || now.Hour() != 4 {
		return false
	}
	y1, m1, d1 := now.Date()
	y2, m2, d2 := last.Date()
	return y1 != y2 || m1 != m2 || d1 != d2
}

// RunWeeklyReset checks every interval and clears the counter once a week.
func (w *WeeklyCounter) RunWeeklyReset(ctx context.Context, every time.Duration, log *slog.Logger) error {
	if every <= 0 {
		every = time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()

	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-t.C:
			if !weeklyResetDue(now, last) {
				continue
			}
			if err := w.Reset(ctx); err != nil {
				log.Error("weekly reset failed", "key", w.key, "err", err)
				continue
			}
			last = now
			log.Info("weekly stats reset", "key", w.key)
		}
	}
}
