// internal/workers/matching/embed-profiles/models.go
package embedprofiles

type Input struct {
	UserIDs []string `json:"userIds"`
}

type Output struct {
	Provider   string   `json:"provider"`
	Dimensions int      `json:"dimensions"`
	Embedded   []string `json:"embedded"`
	// Missing users do not exist; Skipped users have no profile text.
	Missing []string `json:"missing"`
	Skipped []string `json:"skipped"`
}
