package analysis

import (
	"math"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	commaGrouped = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+$`)
	dotGrouped   = regexp.MustCompile(`^[+-]?\d{1,3}(\.\d{3}){2,}$`)
	currencyRe   = regexp.MustCompile(`[$€£¥₹₩]|^(USD|EUR|GBP)\s*|\s*(USD|EUR|GBP)$`)
)

// ParseNumeric coerces a cell to a float after stripping currency symbols,
// percent signs and thousands separators. Accounting negatives "(12)" are
// accepted. NaN and infinities are rejected.
func ParseNumeric(s string) (float64, bool) {
	raw := strings.TrimSpace(strings.ReplaceAll(s, "\u00A0", " "))
	if raw == "" {
		return 0, false
	}
	neg := false
	if strings.HasPrefix(raw, "(") && strings.HasSuffix(raw, ")") {
		neg = true
		raw = strings.TrimSpace(raw[1 : len(raw)-1])
	}
	raw = currencyRe.ReplaceAllString(raw, "")
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "%")
	raw = strings.ReplaceAll(raw, " ", "")
	raw = strings.ReplaceAll(raw, "'", "")
	if raw == "" {
		return 0, false
	}

	cpos := strings.LastIndex(raw, ",")
	dpos := strings.LastIndex(raw, ".")
	switch {
	case cpos >= 0 && dpos >= 0:
		// The rightmost separator is the decimal mark.
		if cpos > dpos {
			raw = strings.ReplaceAll(raw, ".", "")
			raw = strings.Replace(raw, ",", ".", 1)
		} else {
			raw = strings.ReplaceAll(raw, ",", "")
		}
	case cpos >= 0:
		if commaGrouped.MatchString(raw) {
			raw = strings.ReplaceAll(raw, ",", "")
		} else if strings.Count(raw, ",") == 1 {
			raw = strings.Replace(raw, ",", ".", 1)
		} else {
			return 0, false
		}
	case dpos >= 0 && dotGrouped.MatchString(raw):
		raw = strings.ReplaceAll(raw, ".", "")
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if neg {
		f = -f
	}
	return f, true
}

// timeLayouts covers ISO, RFC-2822-like and common locale variants. Order
// matters for ambiguous day/month strings: US month-first wins.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"2006.01.02",
	"2006-01",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"01/02/2006",
	"1/2/2006",
	"02/01/2006",
	"1/2/06",
	"01-02-2006",
	"02.01.2006",
	"2.1.2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"2 Jan 2006",
	"2 January 2006",
	"02-Jan-2006",
	"02-Jan-06",
	"Jan 2006",
	"January 2006",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.RFC822Z,
	time.RFC822,
	time.ANSIC,
	time.UnixDate,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon Jan 2 15:04:05 2006",
	"2 Jan 2006 15:04:05 -0700",
}

// ParseTime attempts every known layout, then the RFC 5322 date parser used
// for mail headers.
func ParseTime(s string) (time.Time, bool) {
	v := strings.TrimSpace(s)
	if v == "" || len(v) < 6 {
		return time.Time{}, false
	}
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, v); err == nil {
			return t, true
		}
	}
	if t, err := mail.ParseDate(v); err == nil {
		return t, true
	}
	return time.Time{}, false
}

var boolVocabulary = map[string]struct{}{
	"true": {}, "false": {}, "yes": {}, "no": {}, "y": {}, "n": {},
	"t": {}, "f": {}, "1": {}, "0": {}, "on": {}, "off": {},
}

// IsBoolToken reports whether s belongs to the truthy/falsy vocabulary.
func IsBoolToken(s string) bool {
	_, ok := boolVocabulary[strings.ToLower(strings.TrimSpace(s))]
	return ok
}
