package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OutcomeStore is the append-only log of how sessions ended per character.
type OutcomeStore struct {
	db *pgxpool.Pool
}

func NewOutcomeStore(db *pgxpool.Pool) *OutcomeStore {
	return &OutcomeStore{db: db}
}

func (s *OutcomeStore) Append(ctx context.Context, characterID string, outcomes []string, at time.Time) error {
	if len(outcomes) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(outcomes))
	for _, o := range outcomes {
		rows = append(rows, []any{characterID, o, at})
	}
	_, err := s.db.CopyFrom(ctx,
		pgx.Identifier{"guess_outcomes"},
		[]string{"character_id", "outcome", "recorded_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("append outcomes: %w", err)
	}
	return nil
}

// Counts returns how often each outcome was recorded for characterID.
func (s *OutcomeStore) Counts(ctx context.Context, characterID string) (map[string]int, error) {
	rows, err := s.db.Query(ctx, `
		SELECT outcome, count(*)
		FROM guess_outcomes
		WHERE character_id = $1
		GROUP BY outcome
	`, characterID)
	if err != nil {
		return nil, fmt.Errorf("outcome counts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			outcome string
			n       int
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		out[outcome] = n
	}
	return out, rows.Err()
}
