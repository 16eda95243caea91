package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"match-workers/internal/matching/itemset"
	"match-workers/internal/matching/scoring"
)

var tablesPath string

var rootCmd = &cobra.Command{
	Use:   "match-preview",
	Short: "Preview matching results from JSON fixtures",
	Long: `match-preview scores questionnaire records and runs match selection
without Zeebe, Postgres or a cache. Inputs are JSON files; output is JSON.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&tablesPath, "tables", "", "Attribute table YAML (defaults to the built-in table)")
}

func Execute() error {
	return rootCmd.Execute()
}

func newScorer() (*scoring.Scorer, error) {
	table, err := loadTable()
	if err != nil {
		return nil, err
	}
	return scoring.NewScorer(table, scoring.DefaultPolicy()), nil
}

func loadTable() (*itemset.Table, error) {
	if tablesPath == "" {
		return itemset.DefaultTable()
	}
	return itemset.LoadTable(tablesPath)
}

func readJSON(path string, dest interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
