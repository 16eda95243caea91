package main

import (
	"fmt"

	"github.com/spf13/cobra"

	apperrors "match-workers/internal/common/errors"
	"match-workers/internal/common/validation"
	"match-workers/pkg/registry"
)

var registryPath string

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Inspect the activity registry",
}

var registryValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check activities for required fields, schemas, timeouts, retries and error codes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		if err := validateRegistry(reg); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Registry validation passed. Found %d activities.\n", len(reg.Activities))
		return err
	},
}

func init() {
	registryValidateCmd.Flags().StringVar(&registryPath, "path", "", "Registry JSON file (defaults to the embedded registry)")
	registryCmd.AddCommand(registryValidateCmd)
	rootCmd.AddCommand(registryCmd)
}

func loadRegistry() (*registry.ActivityRegistry, error) {
	if registryPath == "" {
		return registry.Default()
	}
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}
	return reg, nil
}

func validateRegistry(reg *registry.ActivityRegistry) error {
	if len(reg.Activities) == 0 {
		return fmt.Errorf("registry contains no activities")
	}

	ids := make(map[string]bool)
	for _, activity := range reg.Activities {
		if activity.ID == "" {
			return fmt.Errorf("activity missing required field: ID")
		}
		if ids[activity.ID] {
			return fmt.Errorf("duplicate activity ID: %s", activity.ID)
		}
		ids[activity.ID] = true

		if activity.DisplayName == "" {
			return fmt.Errorf("activity %s missing required field: DisplayName", activity.ID)
		}
		if activity.TaskType == "" {
			return fmt.Errorf("activity %s missing required field: TaskType", activity.ID)
		}
		if activity.Category == "" {
			return fmt.Errorf("activity %s missing required field: Category", activity.ID)
		}
		if _, err := validation.NewValidator(activity.InputSchema); err != nil {
			return fmt.Errorf("activity %s input schema: %w", activity.ID, err)
		}
		if len(activity.OutputSchema) > 0 {
			if _, err := validation.NewValidator(activity.OutputSchema); err != nil {
				return fmt.Errorf("activity %s output schema: %w", activity.ID, err)
			}
		}
		if _, err := activity.JobTimeout(); err != nil {
			return err
		}
		if activity.Retries < 0 || activity.Retries > registry.MaxRetries {
			return fmt.Errorf("activity %s retries %d outside 0..%d", activity.ID, activity.Retries, registry.MaxRetries)
		}
		for _, code := range activity.ErrorCodes {
			if !knownErrorCode(code) {
				return fmt.Errorf("activity %s declares unknown error code %s", activity.ID, code)
			}
		}
	}
	return nil
}

func knownErrorCode(code string) bool {
	c := apperrors.ErrorCode(code)
	if c == apperrors.ErrCodeInternal {
		return true
	}
	_, ok := apperrors.BPMNErrorMapping[c]
	return ok
}
