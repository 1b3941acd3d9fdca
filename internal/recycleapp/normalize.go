package recycleapp

import (
	"fmt"
	"strings"
	"time"
)

const DefaultLanguage = "nl"

// ScheduleEntry is one pickup, ready to be displayed or exported.
type ScheduleEntry struct {
	Date     time.Time
	Label    string
	Fraction string
	Color    string
}

var weekdays = map[string][7]string{
	"nl": {"zondag", "maandag", "dinsdag", "woensdag", "donderdag", "vrijdag", "zaterdag"},
	"fr": {"dimanche", "lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi"},
	"de": {"Sonntag", "Montag", "Dienstag", "Mittwoch", "Donnerstag", "Freitag", "Samstag"},
	"en": {"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"},
}

// SupportedLanguage reports whether labels and fraction names exist for lang.
func SupportedLanguage(lang string) bool {
	_, ok := weekdays[lang]
	return ok
}

// DateLabel formats d as "<weekday> DD-MM-YYYY" in lang.
func DateLabel(d time.Time, lang string) string {
	names, ok := weekdays[lang]
	if !ok {
		names = weekdays[DefaultLanguage]
	}
	return names[d.Weekday()] + " " + d.Format("02-01-2006")
}

// Normalize keeps the collection events in source order and flattens them
// into schedule entries.
func Normalize(events []RawEvent, lang string) ([]ScheduleEntry, error) {
	entries := make([]ScheduleEntry, 0, len(events))
	for _, ev := range events {
		if ev.Type != EventTypeCollection {
			continue
		}
		date, err := parseEventDate(ev.Timestamp)
		if err != nil {
			return nil, err
		}
		entries = append(entries, ScheduleEntry{
			Date:     date,
			Label:    DateLabel(date, lang),
			Fraction: ev.Fraction.LocalizedName(lang),
			Color:    ev.Fraction.Color,
		})
	}
	return entries, nil
}

// LocalizedName returns the name in lang, falling back to Dutch.
func (f Fraction) LocalizedName(lang string) string {
	if name := strings.TrimSpace(f.Name[lang]); name != "" {
		return name
	}
	return strings.TrimSpace(f.Name[DefaultLanguage])
}

// parseEventDate keeps the calendar date the API wrote, whatever its offset.
func parseEventDate(ts string) (time.Time, error) {
	ts = strings.TrimSpace(ts)
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	if len(ts) >= len(DateLayout) {
		if t, err := time.Parse(DateLayout, ts[:len(DateLayout)]); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid event timestamp %q", ts)
}
