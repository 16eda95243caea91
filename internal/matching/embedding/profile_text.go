package embedding

import (
	"strings"

	"match-workers/internal/models"
)

// ProfileText serialises the embeddable profile fields as "Label: value"
// lines in a fixed order. Absent fields are omitted and list fields are
// joined with ", ". The name is not embedded.
func ProfileText(p models.PublicProfile) string {
	var lines []string
	add := func(label, value string) {
		if v := strings.TrimSpace(value); v != "" {
			lines = append(lines, label+": "+v)
		}
	}
	addList := func(label string, values []string) {
		kept := make([]string, 0, len(values))
		for _, v := range values {
			if v = strings.TrimSpace(v); v != "" {
				kept = append(kept, v)
			}
		}
		if len(kept) > 0 {
			lines = append(lines, label+": "+strings.Join(kept, ", "))
		}
	}

	add("Title", p.Title)
	add("Company", p.Company)
	add("Industry", p.Industry)
	add("Leadership Level", p.LeadershipLevel)
	add("Location", p.Location)
	add("Bio", p.Bio)
	addList("Expertise", p.Expertise)
	addList("Interests", p.Interests)
	addList("Goals", p.Goals)

	return strings.Join(lines, "\n")
}
