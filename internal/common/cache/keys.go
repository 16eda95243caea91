package cache

import (
	"strings"
	"time"

	"match-workers/internal/common/config"
)

const (
	DomainMatches        = "matches"
	DomainProfile        = "profile"
	DomainNetworkGraph   = "network_graph"
	DomainCalendarEvents = "calendar_events"
	DomainFilterOptions  = "filter_options"
	DomainQuestionnaire  = "questionnaire_sections"
)

// Key builds "{domain}:{userId}[:{extra}...]".
func Key(domain, userID string, extra ...string) string {
	parts := make([]string, 0, 2+len(extra))
	parts = append(parts, domain, userID)
	parts = append(parts, extra...)
	return strings.Join(parts, ":")
}

func MatchesKey(userID string) string      { return Key(DomainMatches, userID) }
func ProfileKey(userID string) string      { return Key(DomainProfile, userID) }
func NetworkGraphKey(userID string) string { return Key(DomainNetworkGraph, userID) }

// CalendarEventsKey includes the platform and the query window as
// millisecond-precision UTC ISO-8601 timestamps.
func CalendarEventsKey(userID, platform string, timeMin, timeMax time.Time) string {
	return Key(DomainCalendarEvents, userID, platform, isoMillis(timeMin), isoMillis(timeMax))
}

func isoMillis(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// userKeys are the per-user entries dropped by InvalidateUserCache.
func userKeys(userID string) []string {
	return []string{ProfileKey(userID), MatchesKey(userID), NetworkGraphKey(userID)}
}

// TTLs are the per-domain lifetimes.
type TTLs struct {
	Default               time.Duration
	FilterOptions         time.Duration
	QuestionnaireSections time.Duration
	Profile               time.Duration
	Matches               time.Duration
	CalendarEvents        time.Duration
}

func DefaultTTLs() TTLs {
	return TTLs{
		Default:               5 * time.Minute,
		FilterOptions:         30 * time.Minute,
		QuestionnaireSections: 60 * time.Minute,
		Profile:               5 * time.Minute,
		Matches:               10 * time.Minute,
		CalendarEvents:        3 * time.Minute,
	}
}

// TTLsFromConfig converts the seconds-based config, keeping defaults for
// unset values.
func TTLsFromConfig(cfg config.CacheTTLConfig) TTLs {
	t := DefaultTTLs()
	set := func(dst *time.Duration, secs int) {
		if secs > 0 {
			*dst = config.Seconds(secs)
		}
	}
	set(&t.Default, cfg.Default)
	set(&t.FilterOptions, cfg.FilterOptions)
	set(&t.QuestionnaireSections, cfg.QuestionnaireSections)
	set(&t.Profile, cfg.Profile)
	set(&t.Matches, cfg.Matches)
	set(&t.CalendarEvents, cfg.CalendarEvents)
	return t
}
