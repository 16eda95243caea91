package main

import (
	"github.com/spf13/cobra"

	"match-workers/internal/matching/explain"
	"match-workers/internal/models"
)

var scoreCmd = &cobra.Command{
	Use:   "score <a.json> <b.json>",
	Short: "Score two attribute records",
	Long: `Score two questionnaire attribute records and print the total, affinity
and strategic scores, the match type, commonalities and conversation starters.

Examples:
  match-preview score alice.json bob.json
  match-preview --tables tables.yaml score alice.json bob.json`,
	Args: cobra.ExactArgs(2),
	RunE: runScore,
}

func init() {
	rootCmd.AddCommand(scoreCmd)
}

type scoreOutput struct {
	Score                float64              `json:"totalScore"`
	Affinity             float64              `json:"affinityScore"`
	Strategic            float64              `json:"strategicScore"`
	Type                 models.MatchType     `json:"matchType"`
	Commonalities        []models.Commonality `json:"commonalities"`
	ConversationStarters []string             `json:"conversationStarters"`
}

func runScore(cmd *cobra.Command, args []string) error {
	var a, b models.AttributeRecord
	if err := readJSON(args[0], &a); err != nil {
		return err
	}
	if err := readJSON(args[1], &b); err != nil {
		return err
	}

	scorer, err := newScorer()
	if err != nil {
		return err
	}

	c := scorer.Score(a, b)
	commonalities := c.Commonalities
	if commonalities == nil {
		commonalities = []models.Commonality{}
	}
	return writeJSON(cmd.OutOrStdout(), scoreOutput{
		Score:                c.Total,
		Affinity:             c.Affinity,
		Strategic:            c.Strategic,
		Type:                 c.Type,
		Commonalities:        commonalities,
		ConversationStarters: explain.ConversationStarters(commonalities, c.Type),
	})
}
