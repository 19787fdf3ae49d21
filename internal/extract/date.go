package extract

import (
	"fmt"
	"regexp"
	"time"
)

// Upstream sites disagree wildly on date formats: ISO dates, dotted
// dates with trailing range text, month/day without a year, and bare
// times for same-day posts. NormalizeDate maps them all onto an ISO
// calendar date and never fails; a bad date must not sink an otherwise
// valid record.

var (
	isoDateRe    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	dottedDateRe = regexp.MustCompile(`^(\d{4})\.(\d{1,2})\.(\d{1,2})`)
	monthDayRe   = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})$`)
	timeOnlyRe   = regexp.MustCompile(`^(?:[AP]M\s*)?\d{1,2}:\d{2}(?:\s*[AP]M)?$`)
)

// NormalizeDate converts a scraped date string to YYYY-MM-DD relative to
// now. Rules apply in order, first match wins; everything unparseable
// falls back to today's date.
func NormalizeDate(s string, now time.Time) string {
	switch {
	case isoDateRe.MatchString(s):
		return s

	case dottedDateRe.MatchString(s):
		// Dotted dates may trail extra text, e.g. an event date range
		// where only the start matters.
		m := dottedDateRe.FindStringSubmatch(s)
		return fmt.Sprintf("%s-%s-%s", m[1], pad2(m[2]), pad2(m[3]))

	case monthDayRe.MatchString(s):
		m := monthDayRe.FindStringSubmatch(s)
		return fmt.Sprintf("%04d-%s-%s", now.Year(), pad2(m[1]), pad2(m[2]))

	case timeOnlyRe.MatchString(s):
		// Same-day posts show only a time.
		return now.Format("2006-01-02")

	default:
		return now.Format("2006-01-02")
	}
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}
