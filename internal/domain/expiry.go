package domain

import (
	"math"
	"time"
)

// DefaultExpiryThreshold is how many days ahead a document counts as
// expiring soon.
const DefaultExpiryThreshold = 30

// NoExpiryDays is the Days value reported for a missing date. It stands in
// for +infinity so NotApplicable sorts after every real deadline.
const NoExpiryDays = math.MaxInt

// ExpiryStatus buckets a compliance-document date relative to today.
type ExpiryStatus int

const (
	ExpiryNotApplicable ExpiryStatus = iota
	ExpiryValid
	ExpiryExpiringSoon
	ExpiryExpired
)

// String returns the wire name of the status.
func (s ExpiryStatus) String() string {
	switch s {
	case ExpiryValid:
		return "valid"
	case ExpiryExpiringSoon:
		return "expiring-soon"
	case ExpiryExpired:
		return "expired"
	case ExpiryNotApplicable:
		return "n/a"
	}
	return "n/a"
}

// MarshalText encodes the status by name.
func (s ExpiryStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Expiry is the classifier result. Days is the signed distance from today to
// the document date (negative once expired), or NoExpiryDays.
type Expiry struct {
	Status ExpiryStatus `json:"status"`
	Days   int          `json:"days"`
}

// NeedsAttention reports whether the document is expired or about to be.
func (e Expiry) NeedsAttention() bool {
	return e.Status == ExpiryExpired || e.Status == ExpiryExpiringSoon
}

// ClassifyExpiry buckets date against today. It is used for driver cards,
// ADR certificates, insurance and inspections alike.
func ClassifyExpiry(date *time.Time, today time.Time, thresholdDays int) Expiry {
	if date == nil || date.IsZero() {
		return Expiry{Status: ExpiryNotApplicable, Days: NoExpiryDays}
	}
	days := DaysBetween(today, *date)
	switch {
	case days < 0:
		return Expiry{Status: ExpiryExpired, Days: days}
	case days <= thresholdDays:
		return Expiry{Status: ExpiryExpiringSoon, Days: days}
	default:
		return Expiry{Status: ExpiryValid, Days: days}
	}
}

// ClassifyExpiryString is ClassifyExpiry for a raw display or input string.
// Unparseable strings are NotApplicable.
func ClassifyExpiryString(s string, today time.Time, thresholdDays int) Expiry {
	t, ok := ParseDisplayDate(s)
	if !ok {
		return ClassifyExpiry(nil, today, thresholdDays)
	}
	return ClassifyExpiry(&t, today, thresholdDays)
}
