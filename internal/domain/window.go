package domain

import "time"

// DaylightWindow is the evaluation window of one monitor on one day.
// All instants are naive local timestamps.
type DaylightWindow struct {
	Date    Date
	Sunrise time.Time
	Sunset  time.Time
	Start   time.Time // sunrise + offset
	End     time.Time // sunset - offset
}

// Contains reports whether t lies in [Start, End].
func (w DaylightWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Empty reports whether the offset window has no extent.
func (w DaylightWindow) Empty() bool {
	return w.End.Before(w.Start)
}
