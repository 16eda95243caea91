package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"match-workers/internal/models"
)

const participantColumns = `
	u.id, u.name,
	COALESCE(u.title, ''), COALESCE(u.company, ''), COALESCE(u.industry, ''),
	COALESCE(u.leadership_level, ''), COALESCE(u.location, ''), COALESCE(u.bio, ''),
	u.expertise, u.interests, u.goals, COALESCE(u.avatar_url, ''),
	COALESCE(q.answers, '{}'::jsonb)`

// QuestionnaireStore reads attendee profiles joined with their questionnaire
// answers.
type QuestionnaireStore struct {
	db *sql.DB
}

func NewQuestionnaireStore(db *sql.DB) *QuestionnaireStore {
	return &QuestionnaireStore{db: db}
}

// LoadParticipant returns ErrNotFound when the user does not exist. A user
// without answers gets an empty record.
func (s *QuestionnaireStore) LoadParticipant(ctx context.Context, userID string) (*models.Participant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT`+participantColumns+`
		FROM users u
		LEFT JOIN questionnaire_responses q ON q.user_id = u.id
		WHERE u.id = $1`, userID)

	p, err := scanParticipant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("participant %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load participant %s: %w", userID, err)
	}
	return p, nil
}

// ListParticipants returns attendees who answered the questionnaire, other
// than excludeUserID, most recently updated first.
func (s *QuestionnaireStore) ListParticipants(ctx context.Context, excludeUserID string, limit int) ([]models.Participant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT`+participantColumns+`
		FROM users u
		JOIN questionnaire_responses q ON q.user_id = u.id
		WHERE u.id <> $1
		ORDER BY q.updated_at DESC
		LIMIT $2`, excludeUserID, limit)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return collectParticipants(rows)
}

// LoadParticipants fetches the given users. Unknown ids are skipped.
func (s *QuestionnaireStore) LoadParticipants(ctx context.Context, userIDs []string) ([]models.Participant, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT`+participantColumns+`
		FROM users u
		LEFT JOIN questionnaire_responses q ON q.user_id = u.id
		WHERE u.id = ANY($1)`, pq.Array(userIDs))
	if err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}
	return collectParticipants(rows)
}

func collectParticipants(rows *sql.Rows) ([]models.Participant, error) {
	defer rows.Close()

	var out []models.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanParticipant(row rowScanner) (*models.Participant, error) {
	var (
		p                           models.Participant
		expertise, interests, goals pq.StringArray
		answers                     []byte
	)
	err := row.Scan(
		&p.Profile.UserID, &p.Profile.Name,
		&p.Profile.Title, &p.Profile.Company, &p.Profile.Industry,
		&p.Profile.LeadershipLevel, &p.Profile.Location, &p.Profile.Bio,
		&expertise, &interests, &goals, &p.Profile.AvatarURL,
		&answers,
	)
	if err != nil {
		return nil, err
	}

	p.UserID = p.Profile.UserID
	p.Profile.Expertise = []string(expertise)
	p.Profile.Interests = []string(interests)
	p.Profile.Goals = []string(goals)

	p.Record = models.AttributeRecord{}
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &p.Record); err != nil {
			return nil, fmt.Errorf("decode answers for %s: %w", p.UserID, err)
		}
	}
	return &p, nil
}
