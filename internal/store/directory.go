package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"match-workers/internal/models"
)

var ErrDirectoryUnavailable = errors.New("directory unavailable")

const maxDirectoryPage = 1000

// Directory searches the attendee index. Each document is a participant:
// {"userId", "record", "profile"}.
type Directory struct {
	client *elasticsearch.Client
	index  string
}

func NewDirectory(client *elasticsearch.Client, index string) *Directory {
	return &Directory{client: client, index: index}
}

// Candidates returns up to size attendees other than user. Attendees in the
// same industry rank first so a truncated pool keeps the strongest matches;
// everyone else stays eligible.
func (d *Directory) Candidates(ctx context.Context, user models.Participant, size int) ([]models.Participant, error) {
	if d == nil || d.client == nil {
		return nil, ErrDirectoryUnavailable
	}
	if size <= 0 || size > maxDirectoryPage {
		size = maxDirectoryPage
	}

	body, err := json.Marshal(candidateQuery(user))
	if err != nil {
		return nil, fmt.Errorf("encode directory query: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{d.index},
		Body:  bytes.NewReader(body),
		Size:  &size,
	}
	res, err := req.Do(ctx, d.client)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("%w: search %s: %s", ErrDirectoryUnavailable, d.index, res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source models.Participant `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode directory response: %w", err)
	}

	out := make([]models.Participant, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		p := h.Source
		if p.UserID == "" {
			p.UserID = p.Profile.UserID
		}
		if p.UserID == "" || p.UserID == user.UserID {
			continue
		}
		if p.Profile.UserID == "" {
			p.Profile.UserID = p.UserID
		}
		if p.Record == nil {
			p.Record = models.AttributeRecord{}
		}
		out = append(out, p)
	}
	return out, nil
}

func candidateQuery(user models.Participant) map[string]interface{} {
	boolQuery := map[string]interface{}{
		"must_not": []interface{}{
			map[string]interface{}{"term": map[string]interface{}{"userId": user.UserID}},
		},
	}

	industry := user.Record.Get("industry").First()
	if industry == "" {
		industry = user.Profile.Industry
	}
	if industry != "" {
		boolQuery["should"] = []interface{}{
			map[string]interface{}{"match": map[string]interface{}{"record.industry": industry}},
		}
	}

	return map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
	}
}
