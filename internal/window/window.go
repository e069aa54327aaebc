// internal/window/window.go
package window

import (
	"fmt"
	"time"

	custom_errors "weekend-activity/internal/errors"
)

// Window is the half-open instant range [Start, End) bounding one weekend.
// Both bounds are absolute instants in UTC; the weekend itself is defined in
// the zone the window was computed for, so a window is an immutable range
// value and is never recomputed when configuration changes.
type Window struct {
	Start time.Time
	End   time.Time
}

// ForDate returns the weekend window for the given reference instant and IANA
// zone name. The weekend runs Saturday 00:00:00 through the following Monday
// 00:00:00, exclusive, in the zone. A reference on Saturday or Sunday yields
// the window containing it; a weekday reference yields the most recently
// completed weekend.
func ForDate(ref time.Time, zone string) (Window, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return Window{}, &custom_errors.InvalidTimeZoneError{Zone: zone, Err: err}
	}

	local := ref.In(loc)

	// Walk back to the nearest Saturday at or before the reference day.
	// Monday counts as "after" the weekend that just ended, so it walks back
	// two days to that weekend's Saturday.
	daysBack := int(local.Weekday()-time.Saturday+7) % 7
	sat := local.AddDate(0, 0, -daysBack)

	start := time.Date(sat.Year(), sat.Month(), sat.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 2)

	return Window{Start: start.UTC(), End: end.UTC()}, nil
}

// Now returns the window for the current instant in the given zone.
func Now(zone string) (Window, error) {
	return ForDate(time.Now(), zone)
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// String renders the window as a compact UTC range for logs and headers.
func (w Window) String() string {
	return fmt.Sprintf("%s to %s",
		w.Start.UTC().Format("2006-01-02 15:04 MST"),
		w.End.UTC().Format("2006-01-02 15:04 MST"))
}
