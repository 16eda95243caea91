// internal/workers/matching/update-match-status/models.go
package updatematchstatus

import "match-workers/internal/models"

type Input struct {
	UserID  string `json:"userId"`
	MatchID string `json:"matchId"`
	Viewed  *bool  `json:"viewed,omitempty"`
	Passed  *bool  `json:"passed,omitempty"`
}

type Output struct {
	Match            models.Match `json:"match"`
	CacheInvalidated bool         `json:"cacheInvalidated"`
}
