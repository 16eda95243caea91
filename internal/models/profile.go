// internal/models/profile.go
package models

// PublicProfile is the display data stored alongside a match.
type PublicProfile struct {
	UserID          string   `json:"userId"`
	Name            string   `json:"name"`
	Title           string   `json:"title,omitempty"`
	Company         string   `json:"company,omitempty"`
	Industry        string   `json:"industry,omitempty"`
	LeadershipLevel string   `json:"leadershipLevel,omitempty"`
	Location        string   `json:"location,omitempty"`
	Bio             string   `json:"bio,omitempty"`
	Expertise       []string `json:"expertise,omitempty"`
	Interests       []string `json:"interests,omitempty"`
	Goals           []string `json:"goals,omitempty"`
	AvatarURL       string   `json:"avatarUrl,omitempty"`
}

// Participant pairs an attendee's answers with their public profile.
type Participant struct {
	UserID  string          `json:"userId"`
	Record  AttributeRecord `json:"record"`
	Profile PublicProfile   `json:"profile"`
}
