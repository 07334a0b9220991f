package models

import "time"

// PlaylistType describes how a playlist came to be.
type PlaylistType string

const (
	PlaylistWeekly        PlaylistType = "weekly"
	PlaylistGenerated     PlaylistType = "generated"
	PlaylistCustom        PlaylistType = "custom"
	PlaylistCollaborative PlaylistType = "collaborative"
)

// PlaylistMood tags a playlist with a listening mood.
type PlaylistMood string

const (
	MoodEnergetic   PlaylistMood = "energetic"
	MoodRelaxed     PlaylistMood = "relaxed"
	MoodHappy       PlaylistMood = "happy"
	MoodMelancholic PlaylistMood = "melancholic"
	MoodFocused     PlaylistMood = "focused"
	MoodParty       PlaylistMood = "party"
)

// ParseMood returns the mood named by s, or false for unknown names.
func ParseMood(s string) (PlaylistMood, bool) {
	switch m := PlaylistMood(s); m {
	case MoodEnergetic, MoodRelaxed, MoodHappy, MoodMelancholic, MoodFocused, MoodParty:
		return m, true
	default:
		return "", false
	}
}

// ScheduleFrequency is how often a scheduled playlist refreshes.
type ScheduleFrequency string

const (
	FrequencyDaily   ScheduleFrequency = "daily"
	FrequencyWeekly  ScheduleFrequency = "weekly"
	FrequencyMonthly ScheduleFrequency = "monthly"
)

// PlaylistSchedule describes when a playlist is refreshed.
//
// DayOfWeek follows the 1 = Sunday ... 7 = Saturday convention and is only set for weekly schedules.
type PlaylistSchedule struct {
	Frequency   ScheduleFrequency `json:"frequency"`
	DayOfWeek   *int              `json:"dayOfWeek,omitempty"`
	Time        time.Time         `json:"time"`
	LastUpdated time.Time         `json:"lastUpdated"`
	NextUpdate  time.Time         `json:"nextUpdate"`
}

// Playlist is a named, ordered list of tracks.
type Playlist struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Description     string            `json:"description,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	Tracks          []Track           `json:"tracks"`
	Type            PlaylistType      `json:"type"`
	Mood            PlaylistMood      `json:"mood,omitempty"`
	Genre           string            `json:"genre,omitempty"`
	TempoBPM        *int              `json:"tempo,omitempty"`
	IsCollaborative bool              `json:"isCollaborative"`
	Schedule        *PlaylistSchedule `json:"schedule,omitempty"`
}
