// internal/models/match.go
package models

import "time"

type MatchType string

const (
	MatchTypeHighAffinity MatchType = "high-affinity"
	MatchTypeStrategic    MatchType = "strategic"
)

type Category string

const (
	CategoryProfessional Category = "professional"
	CategoryHobby        Category = "hobby"
	CategoryLifestyle    Category = "lifestyle"
	CategoryValues       Category = "values"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryProfessional, CategoryHobby, CategoryLifestyle, CategoryValues:
		return true
	}
	return false
}

// Commonality explains one shared or complementary attribute. Topic is the
// display value the conversation starters refer to.
type Commonality struct {
	Category    Category `json:"category"`
	Description string   `json:"description"`
	Weight      float64  `json:"weight"`
	Topic       string   `json:"topic,omitempty"`
}

type Match struct {
	ID                   string        `json:"id"`
	UserID               string        `json:"userId"`
	MatchedUserID        string        `json:"matchedUserId"`
	MatchedProfile       PublicProfile `json:"matchedProfile"`
	Type                 MatchType     `json:"type"`
	Commonalities        []Commonality `json:"commonalities"`
	ConversationStarters []string      `json:"conversationStarters"`
	Score                float64       `json:"score"`
	GeneratedAt          time.Time     `json:"generatedAt"`
	Viewed               bool          `json:"viewed"`
	Passed               bool          `json:"passed"`
}

// QualityMetrics summarises a generated match set for reporting.
type QualityMetrics struct {
	AverageScore      float64          `json:"averageScore"`
	HighAffinityCount int              `json:"highAffinityCount"`
	StrategicCount    int              `json:"strategicCount"`
	CategoryHistogram map[Category]int `json:"categoryHistogram"`
}
