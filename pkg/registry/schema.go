// pkg/registry/schema.go
package registry

import (
	"fmt"
	"time"
)

// MaxRetries bounds the retries an activity may declare.
const MaxRetries = 10

// ActivityRegistry is the decoded activities.json document.
type ActivityRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Activities  []Activity `json:"activities"`
}

// Activity describes one matching job type: how BPMN models call it, what it
// accepts and returns, and which error codes it can raise.
type Activity struct {
	ID           string                 `json:"id"`
	DisplayName  string                 `json:"displayName"`
	Description  string                 `json:"description"`
	Category     string                 `json:"category"`
	Version      string                 `json:"version"`
	TaskType     string                 `json:"taskType"`
	InputSchema  map[string]interface{} `json:"inputSchema"`
	OutputSchema map[string]interface{} `json:"outputSchema"`
	ErrorCodes   []string               `json:"errorCodes"`
	Timeout      string                 `json:"timeout"`
	Retries      int                    `json:"retries"`
}

// JobTimeout parses Timeout ("30s"). An empty Timeout returns zero.
func (a Activity) JobTimeout() (time.Duration, error) {
	if a.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(a.Timeout)
	if err != nil {
		return 0, fmt.Errorf("activity %s timeout %q: %w", a.ID, a.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("activity %s timeout %q must be positive", a.ID, a.Timeout)
	}
	return d, nil
}
