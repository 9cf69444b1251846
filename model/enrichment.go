package model

import (
	"errors"
	"time"
)

// ErrNotFound is returned by collaborators when a lookup has no match.
var ErrNotFound = errors.New("not found")

// GeocodeResult is a reverse geocoding answer.
type GeocodeResult struct {
	DisplayName string `json:"displayName"`
	Name        string `json:"name,omitempty"`
}

// OSMPoi is a point of interest matched in OpenStreetMap.
type OSMPoi struct {
	ID           int64             `json:"id"`
	Type         string            `json:"type"`
	Name         string            `json:"name"`
	Latitude     float64           `json:"latitude"`
	Longitude    float64           `json:"longitude"`
	Tags         map[string]string `json:"tags,omitempty"`
	OpeningHours string            `json:"openingHours,omitempty"`
}

// TimeSpan is a daily opening interval in minutes since midnight. End may exceed 1440
// for spans that run past midnight.
type TimeSpan struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// HoursRule applies spans to a set of weekdays.
type HoursRule struct {
	Days   []time.Weekday `json:"days"`
	Spans  []TimeSpan     `json:"spans"`
	Closed bool           `json:"closed,omitempty"`
}

// ParsedHours is a parsed opening_hours value.
type ParsedHours struct {
	Raw        string      `json:"raw"`
	AlwaysOpen bool        `json:"alwaysOpen,omitempty"`
	Rules      []HoursRule `json:"rules"`
}

// IsOpen reports whether t falls inside an opening span. Later rules override
// earlier ones for the days they name.
func (h ParsedHours) IsOpen(t time.Time) bool {
	if h.AlwaysOpen {
		return true
	}
	minute := t.Hour()*60 + t.Minute()
	today := t.Weekday()
	yesterday := (today + 6) % 7
	todayOpen, overflow := false, false
	for _, r := range h.Rules {
		if hasDay(r.Days, today) {
			todayOpen = false
			if !r.Closed {
				for _, s := range r.Spans {
					if minute >= s.Start && minute < s.End {
						todayOpen = true
					}
				}
			}
		}
		if hasDay(r.Days, yesterday) {
			overflow = false
			if !r.Closed {
				for _, s := range r.Spans {
					if s.End > 24*60 && minute < s.End-24*60 {
						overflow = true
					}
				}
			}
		}
	}
	return todayOpen || overflow
}

func hasDay(days []time.Weekday, d time.Weekday) bool {
	for _, x := range days {
		if x == d {
			return true
		}
	}
	return false
}

// HoursInfo is the payload of the hours section.
type HoursInfo struct {
	POI     OSMPoi      `json:"poi"`
	Hours   ParsedHours `json:"hours"`
	// OpenNow is Hours evaluated when the section loaded.
	OpenNow bool        `json:"openNow"`
}

// NearbyPlace is a POI near the selection.
type NearbyPlace struct {
	POI            OSMPoi  `json:"poi"`
	DistanceMeters float64 `json:"distanceMeters"`
}

// Photo is an image of or near the selection.
type Photo struct {
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	Title        string `json:"title,omitempty"`
	Attribution  string `json:"attribution,omitempty"`
	PageURL      string `json:"pageUrl,omitempty"`
}
