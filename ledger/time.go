package ledger

import (
	"time"
)

// =============================================================================
// CALENDAR HELPERS - Mandate settlement is tracked per calendar month
// =============================================================================

const (
	isoDate      = "2006-01-02"
	isoYearMonth = "2006-01"
)

// ISODate formats t as YYYY-MM-DD in t's own location.
func ISODate(t time.Time) string { return t.Format(isoDate) }

// ParseISODate parses YYYY-MM-DD as midnight UTC.
func ParseISODate(s string) (time.Time, error) { return time.Parse(isoDate, s) }

// YearMonth returns the YYYY-MM stamp of t.
func YearMonth(t time.Time) string { return t.Format(isoYearMonth) }

// stampMonth extracts the YYYY-MM prefix of an ISO date or timestamp.
// Anything shorter than that carries no month and returns "".
func stampMonth(stamp string) string {
	if len(stamp) < len(isoYearMonth) {
		return ""
	}
	return stamp[:len(isoYearMonth)]
}

// stampedIn reports whether an ISO stamp falls in the calendar month of t.
func stampedIn(stamp string, t time.Time) bool {
	m := stampMonth(stamp)
	return m != "" && m == YearMonth(t)
}
