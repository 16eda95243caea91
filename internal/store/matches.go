package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"match-workers/internal/models"
)

const matchColumns = `id, user_id, matched_user_id, matched_profile, match_type,
	commonalities, conversation_starters, score, generated_at, viewed, passed`

// MatchStore persists generated matches. Regeneration supersedes the current
// set instead of deleting it so recency history survives.
type MatchStore struct {
	db *sql.DB
}

func NewMatchStore(db *sql.DB) *MatchStore {
	return &MatchStore{db: db}
}

// ListCurrent returns the user's live matches, best first.
func (s *MatchStore) ListCurrent(ctx context.Context, userID string) ([]models.Match, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+matchColumns+`
		FROM matches
		WHERE user_id = $1 AND superseded_at IS NULL
		ORDER BY score DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	return collectMatches(rows)
}

// ListHistory returns every match generated for the user since the given
// time, superseded or not.
func (s *MatchStore) ListHistory(ctx context.Context, userID string, since time.Time) ([]models.Match, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+matchColumns+`
		FROM matches
		WHERE user_id = $1 AND generated_at >= $2
		ORDER BY generated_at DESC`, userID, since)
	if err != nil {
		return nil, fmt.Errorf("list match history: %w", err)
	}
	return collectMatches(rows)
}

// ReplaceForUser supersedes the user's current matches and inserts the new
// set in one transaction.
func (s *MatchStore) ReplaceForUser(ctx context.Context, userID string, matches []models.Match, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace matches: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE matches SET superseded_at = $2
		WHERE user_id = $1 AND superseded_at IS NULL`, userID, now); err != nil {
		return fmt.Errorf("supersede matches: %w", err)
	}

	for _, m := range matches {
		profile, err := json.Marshal(m.MatchedProfile)
		if err != nil {
			return fmt.Errorf("encode matched profile: %w", err)
		}
		commonalities, err := json.Marshal(m.Commonalities)
		if err != nil {
			return fmt.Errorf("encode commonalities: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO matches (`+matchColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			m.ID, m.UserID, m.MatchedUserID, profile, string(m.Type),
			commonalities, pq.Array(m.ConversationStarters), m.Score, m.GeneratedAt,
			m.Viewed, m.Passed,
		); err != nil {
			return fmt.Errorf("insert match %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace matches: %w", err)
	}
	return nil
}

// UpdateStatus sets viewed and/or passed on one of the user's current
// matches. Invalid (unset) flags are left unchanged.
func (s *MatchStore) UpdateStatus(ctx context.Context, userID, matchID string, viewed, passed sql.NullBool) (*models.Match, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE matches
		SET viewed = COALESCE($3, viewed), passed = COALESCE($4, passed)
		WHERE id = $1 AND user_id = $2 AND superseded_at IS NULL
		RETURNING `+matchColumns, matchID, userID, viewed, passed)

	m, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("match %s: %w", matchID, ErrMatchNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update match %s: %w", matchID, err)
	}
	return m, nil
}

func collectMatches(rows *sql.Rows) ([]models.Match, error) {
	defer rows.Close()

	var out []models.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanMatch(row rowScanner) (*models.Match, error) {
	var (
		m                      models.Match
		matchType              string
		profile, commonalities []byte
		starters               pq.StringArray
	)
	err := row.Scan(
		&m.ID, &m.UserID, &m.MatchedUserID, &profile, &matchType,
		&commonalities, &starters, &m.Score, &m.GeneratedAt, &m.Viewed, &m.Passed,
	)
	if err != nil {
		return nil, err
	}
	m.Type = models.MatchType(matchType)
	m.ConversationStarters = []string(starters)

	if len(profile) > 0 {
		if err := json.Unmarshal(profile, &m.MatchedProfile); err != nil {
			return nil, fmt.Errorf("decode matched profile: %w", err)
		}
	}
	if len(commonalities) > 0 {
		if err := json.Unmarshal(commonalities, &m.Commonalities); err != nil {
			return nil, fmt.Errorf("decode commonalities: %w", err)
		}
	}
	return &m, nil
}
