package domain

import "time"

// RangesOverlap reports whether the inclusive day ranges [aStart, aEnd] and
// [bStart, bEnd] share at least one day.
func RangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !DateOf(aStart).After(DateOf(bEnd)) && !DateOf(bStart).After(DateOf(aEnd))
}

// IsDriverBusy reports whether driver has a trip covering today.
// Trips without a start date never make a driver busy.
func IsDriverBusy(driver string, today time.Time, trips []Trip) bool {
	if driver == "" {
		return false
	}
	for _, t := range trips {
		if t.DriverName != driver || t.StartDate == nil {
			continue
		}
		if RangesOverlap(*t.StartDate, *t.EffectiveEnd(), today, today) {
			return true
		}
	}
	return false
}

// Conflicts returns the trips of driver whose range overlaps [start, end].
// A nil end means a one-day range.
func Conflicts(driver string, start time.Time, end *time.Time, trips []Trip) []Trip {
	out := []Trip{}
	if driver == "" {
		return out
	}
	e := start
	if end != nil {
		e = *end
	}
	for _, t := range trips {
		if t.DriverName != driver || t.StartDate == nil {
			continue
		}
		if RangesOverlap(start, e, *t.StartDate, *t.EffectiveEnd()) {
			out = append(out, t)
		}
	}
	return out
}
