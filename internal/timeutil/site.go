package timeutil

import (
	"log"
	"time"
)

// Site is the construction site's local time zone. Day keys are derived from
// local calendar fields, not the UTC instant, so a report filed late in the
// evening still lands on the right day.
var Site = time.Local

// SetLocation switches the site time zone by IANA name.
func SetLocation(name string) {
	if name == "" {
		return
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("[Timeutil] Unknown site timezone %q, keeping %s", name, Site)
		return
	}
	Site = loc
}

// Now returns the current time at the site.
func Now() time.Time {
	return time.Now().In(Site)
}

// DayLayout is the canonical calendar-day key format.
const DayLayout = "2006-01-02"

// DayKey returns the calendar-day key for a time, using site-local fields.
func DayKey(t time.Time) string {
	return t.In(Site).Format(DayLayout)
}

// ParseDayKey parses a YYYY-MM-DD key into a site-local midnight time.
// It rejects anything that is not a valid calendar date.
func ParseDayKey(key string) (time.Time, error) {
	return time.ParseInLocation(DayLayout, key, Site)
}

// NextDayKey returns the key for the calendar day after the given one.
func NextDayKey(key string) (string, error) {
	t, err := ParseDayKey(key)
	if err != nil {
		return "", err
	}
	return DayKey(t.AddDate(0, 0, 1)), nil
}
