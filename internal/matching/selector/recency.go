package selector

import (
	"time"

	"match-workers/internal/models"
)

const DefaultRecencyWindowDays = 30

// RecentExclusions returns matched user ids from prior matches that were not
// passed and are at most windowDays whole days old at now. Passed matches may
// resurface immediately.
func RecentExclusions(prior []models.Match, now time.Time, windowDays int) []string {
	seen := make(map[string]struct{}, len(prior))
	var out []string
	for _, m := range prior {
		if m.Passed {
			continue
		}
		age := int(now.Sub(m.GeneratedAt).Hours() / 24)
		if age > windowDays {
			continue
		}
		if _, dup := seen[m.MatchedUserID]; dup {
			continue
		}
		seen[m.MatchedUserID] = struct{}{}
		out = append(out, m.MatchedUserID)
	}
	return out
}
