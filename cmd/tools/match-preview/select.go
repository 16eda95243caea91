package main

import (
	"github.com/spf13/cobra"

	"match-workers/internal/matching/selector"
	"match-workers/internal/models"
)

var (
	selectMaxHighAffinity int
	selectMaxStrategic    int
	selectMinScore        float64
	selectDiversityCap    int
	selectExclude         []string
)

var selectCmd = &cobra.Command{
	Use:   "select <user.json> <pool.json>",
	Short: "Run match selection over a candidate pool",
	Long: `Run the selector for one participant against a JSON array of
participants and print the chosen matches with quality metrics.

Examples:
  match-preview select user.json pool.json
  match-preview select --min-score 0.3 --exclude u7 user.json pool.json`,
	Args: cobra.ExactArgs(2),
	RunE: runSelect,
}

func init() {
	rootCmd.AddCommand(selectCmd)

	defaults := selector.DefaultOptions()
	selectCmd.Flags().IntVar(&selectMaxHighAffinity, "max-high-affinity", defaults.MaxHighAffinity, "Maximum high-affinity matches")
	selectCmd.Flags().IntVar(&selectMaxStrategic, "max-strategic", defaults.MaxStrategic, "Maximum strategic matches")
	selectCmd.Flags().Float64Var(&selectMinScore, "min-score", defaults.MinScore, "Minimum total score")
	selectCmd.Flags().IntVar(&selectDiversityCap, "diversity-cap", defaults.DiversityCap, "Maximum matches per dominant category")
	selectCmd.Flags().StringSliceVar(&selectExclude, "exclude", nil, "User IDs to exclude")
}

func runSelect(cmd *cobra.Command, args []string) error {
	var user models.Participant
	if err := readJSON(args[0], &user); err != nil {
		return err
	}
	var pool []models.Participant
	if err := readJSON(args[1], &pool); err != nil {
		return err
	}

	scorer, err := newScorer()
	if err != nil {
		return err
	}

	opts := selector.Options{
		MaxHighAffinity: selectMaxHighAffinity,
		MaxStrategic:    selectMaxStrategic,
		MinScore:        selectMinScore,
		DiversityCap:    selectDiversityCap,
		ExcludeIDs:      selectExclude,
	}
	res := selector.New(scorer).Select(user, pool, opts)
	if res.Matches == nil {
		res.Matches = []models.Match{}
	}
	return writeJSON(cmd.OutOrStdout(), res)
}
