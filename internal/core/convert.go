package core

// convert.go coerces raw CSV text into the values bound to insert statements.
//
// Curated sources are messy: thousands separators in numbers, day-first
// dates, "NA" for unknown values. Every coercion returns either a Go value
// ready for pgx, nil for SQL NULL, or an error that rejects the row.

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// NullSentinel is the literal that curated sources use for "no value".
const NullSentinel = "NA"

// ISOTimestampLayout is the output format for date fields (UTC, millisecond precision).
const ISOTimestampLayout = "2006-01-02T15:04:05.000Z"

var (
	ErrInvalidInteger = errors.New("invalid integer")
	ErrInvalidFloat   = errors.New("invalid number")
	ErrInvalidDate    = errors.New("invalid date")
	ErrAmbiguousYear  = errors.New("two-digit year is ambiguous")
	ErrInvalidBoolean = errors.New("must be yes/no, true/false, or 1/0")
)

// isoLayouts are tried in order before the day-first rule.
var isoLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006/01/02",
}

// dayFirstRegex matches d/m/y dates with '/', '-' or '.' separators.
var dayFirstRegex = regexp.MustCompile(`^(\d{1,2})([/.\-])(\d{1,2})([/.\-])(\d+)$`)

// IsNull reports whether a raw value means SQL NULL.
func IsNull(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == NullSentinel
}

// stripThousands removes ',' separators and surrounding space.
func stripThousands(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), ",", "")
}

// ToInteger parses an integer with optional thousands separators.
func ToInteger(s string) (int64, error) {
	n, err := strconv.ParseInt(stripThousands(s), 10, 64)
	if err != nil {
		return 0, ErrInvalidInteger
	}
	return n, nil
}

// ToFloat parses a decimal number with optional thousands separators.
// NaN and infinities are rejected.
func ToFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(stripThousands(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrInvalidFloat
	}
	return f, nil
}

// ToDate parses an ISO-like or day/month/year date. Day/month/year input is
// always read day first, independent of locale; two-digit years are
// rejected instead of guessing the century.
func ToDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)

	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}

	m := dayFirstRegex.FindStringSubmatch(s)
	if m == nil || m[2] != m[4] {
		return time.Time{}, ErrInvalidDate
	}
	switch len(m[5]) {
	case 4:
	case 2:
		return time.Time{}, ErrAmbiguousYear
	default:
		return time.Time{}, ErrInvalidDate
	}

	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[3])
	year, _ := strconv.Atoi(m[5])
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (31/02 -> 3 March); reject it instead.
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// ToISOTimestamp parses a date and renders it as an ISO-8601 timestamp.
func ToISOTimestamp(s string) (string, error) {
	t, err := ToDate(s)
	if err != nil {
		return "", err
	}
	return t.Format(ISOTimestampLayout), nil
}

// ToBoolean parses common boolean spellings.
func ToBoolean(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1":
		return true, nil
	case "false", "f", "no", "n", "0":
		return false, nil
	}
	return false, ErrInvalidBoolean
}

// Coerce converts one raw value to the Go value for its field type.
// Null input yields nil regardless of type.
func Coerce(raw string, t FieldType) (any, error) {
	if IsNull(raw) {
		return nil, nil
	}

	switch t {
	case FieldInteger:
		return ToInteger(raw)
	case FieldFloat:
		return ToFloat(raw)
	case FieldDate:
		return ToISOTimestamp(raw)
	case FieldBoolean:
		return ToBoolean(raw)
	case FieldString:
		return strings.TrimSpace(raw), nil
	default:
		return nil, fmt.Errorf("unsupported field type %d", t)
	}
}
