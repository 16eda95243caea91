// internal/workers/matching/calculate-compatibility/models.go
package calculatecompatibility

import "match-workers/internal/models"

// Input names two users, or carries two records inline. Inline records win
// when both are present.
type Input struct {
	UserIDA string                 `json:"userIdA,omitempty"`
	UserIDB string                 `json:"userIdB,omitempty"`
	RecordA models.AttributeRecord `json:"recordA,omitempty"`
	RecordB models.AttributeRecord `json:"recordB,omitempty"`
}

type Output struct {
	UserIDA              string               `json:"userIdA,omitempty"`
	UserIDB              string               `json:"userIdB,omitempty"`
	Score                float64              `json:"score"`
	Affinity             float64              `json:"affinity"`
	Strategic            float64              `json:"strategic"`
	Type                 models.MatchType     `json:"type"`
	Commonalities        []models.Commonality `json:"commonalities"`
	ConversationStarters []string             `json:"conversationStarters"`
}
