// Package recycleapp talks to the recycleapp.be collections API and turns its
// events into a schedule.
package recycleapp

import "time"

// DateLayout is the date format the collections API expects.
const DateLayout = "2006-01-02"

// DateWindow is an inclusive range of calendar dates.
type DateWindow struct {
	From  time.Time
	Until time.Time
}

// WindowFor returns the query window for today: from the first day of the
// current month until the end of the year. In December the window runs until
// the end of the next year so the new year is always covered.
func WindowFor(today time.Time) DateWindow {
	year, month, _ := today.Date()
	loc := today.Location()

	untilYear := year
	if month == time.December {
		untilYear++
	}

	return DateWindow{
		From:  time.Date(year, month, 1, 0, 0, 0, 0, loc),
		Until: time.Date(untilYear, time.December, 31, 0, 0, 0, 0, loc),
	}
}

func (w DateWindow) FromString() string {
	return w.From.Format(DateLayout)
}

func (w DateWindow) UntilString() string {
	return w.Until.Format(DateLayout)
}
