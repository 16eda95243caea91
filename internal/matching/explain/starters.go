package explain

import (
	"fmt"

	"match-workers/internal/models"
)

const (
	MaxStarters       = 3
	startersFromTopic = 2
)

// ConversationStarters phrases the top two commonalities as talking points
// and adds one follow-up for the match type. With no commonalities it returns
// a single generic prompt.
func ConversationStarters(commonalities []models.Commonality, matchType models.MatchType) []string {
	if len(commonalities) == 0 {
		return []string{fallbackStarter(matchType)}
	}

	top := commonalities
	if len(top) > startersFromTopic {
		top = top[:startersFromTopic]
	}

	out := make([]string, 0, MaxStarters)
	seen := make(map[string]struct{}, MaxStarters)
	add := func(s string) {
		if _, dup := seen[s]; dup || len(out) == MaxStarters {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	for _, c := range top {
		add(phrase(c, matchType))
	}
	add(followUp(matchType))
	return out
}

func phrase(c models.Commonality, matchType models.MatchType) string {
	topic := c.Topic
	if topic == "" {
		topic = c.Description
	}

	switch c.Category {
	case models.CategoryHobby:
		return fmt.Sprintf("Bond over your shared interest in %s", topic)
	case models.CategoryValues:
		return fmt.Sprintf("Explore your aligned values around %s", topic)
	case models.CategoryLifestyle:
		return fmt.Sprintf("Compare notes on %s", topic)
	default:
		if matchType == models.MatchTypeStrategic {
			return fmt.Sprintf("Learn how they approach %s", topic)
		}
		return fmt.Sprintf("Discuss your shared experience with %s", topic)
	}
}

func followUp(matchType models.MatchType) string {
	if matchType == models.MatchTypeStrategic {
		return "Ask where your experience could help each other"
	}
	return "Ask what they are hoping to get out of this event"
}

func fallbackStarter(matchType models.MatchType) string {
	if matchType == models.MatchTypeStrategic {
		return "Ask what challenge they are working on right now and where you might help"
	}
	return "Ask what brought them to this event"
}
