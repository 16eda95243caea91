package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"match-workers/internal/matching/embedding"
	"match-workers/internal/models"
)

var profileTextCmd = &cobra.Command{
	Use:   "profile-text <profile.json>",
	Short: "Print the text a profile is embedded as",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var p models.PublicProfile
		if err := readJSON(args[0], &p); err != nil {
			return err
		}
		_, err := fmt.Fprintln(cmd.OutOrStdout(), embedding.ProfileText(p))
		return err
	},
}

func init() {
	rootCmd.AddCommand(profileTextCmd)
}
