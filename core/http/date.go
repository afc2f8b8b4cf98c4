package http

import "time"

// TimeFormat is the preferred HTTP-date layout (RFC 1123 with GMT).
const TimeFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// acceptedDateFormats are tried in order when parsing client-supplied dates.
var acceptedDateFormats = []string{
	TimeFormat,
	"Monday, 02-Jan-06 15:04:05 GMT", // RFC 850
	"Mon Jan _2 15:04:05 2006",       // ANSI C asctime
}

// FormatHTTPDate renders t as an HTTP-date in GMT.
func FormatHTTPDate(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// ParseHTTPDate parses an HTTP-date in any of the three accepted layouts.
func ParseHTTPDate(s string) (time.Time, bool) {
	for _, layout := range acceptedDateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
