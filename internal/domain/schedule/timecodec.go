// internal/domain/schedule/timecodec.go
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	errClockLayout = errors.New(`expected "H:MM <marker>"`)
	errDateLayout  = errors.New(`expected "D/M/YYYY"`)
	errOutOfRange  = errors.New("value out of range")
)

// ParseError reports a stored date, time or state cell that cannot be read.
type ParseError struct {
	Field string // store column, e.g. "reminder_time"; empty when unknown
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("parse %q: %v", e.Value, e.Err)
	}
	return fmt.Sprintf("parse %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// withField labels a *ParseError with the store column it came from.
func withField(err error, field string) error {
	var pe *ParseError
	if errors.As(err, &pe) && pe.Field == "" {
		pe.Field = field
	}
	return err
}

// Stamp is an instant encoded as the base-10 integer YYYYMMDDHHmm.
// Numeric order of stamps equals chronological order.
type Stamp int64

// StampOf encodes t at minute precision, in t's own location.
func StampOf(t time.Time) Stamp {
	return Stamp(int64(t.Year())*100000000 +
		int64(t.Month())*1000000 +
		int64(t.Day())*10000 +
		int64(t.Hour())*100 +
		int64(t.Minute()))
}

// Time decodes the stamp into loc.
func (s Stamp) Time(loc *time.Location) time.Time {
	v := int64(s)
	minute := int(v % 100)
	v /= 100
	hour := int(v % 100)
	v /= 100
	day := int(v % 100)
	v /= 100
	month := time.Month(v % 100)
	year := int(v / 100)
	return time.Date(year, month, day, hour, minute, 0, 0, loc)
}

func (s Stamp) String() string {
	return fmt.Sprintf("%012d", int64(s))
}

// ParseClock reads a 12-hour "H:MM <marker>" string and returns the 24-hour hour and minute.
// A marker equal to pmMarker adds 12 hours (except at 12); any other marker maps 12 to 0.
func ParseClock(clock, pmMarker string) (hour, minute int, err error) {
	fields := strings.Fields(clock)
	if len(fields) != 2 {
		return 0, 0, &ParseError{Value: clock, Err: errClockLayout}
	}
	parts := strings.Split(fields[0], ":")
	if len(parts) != 2 {
		return 0, 0, &ParseError{Value: clock, Err: errClockLayout}
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, &ParseError{Value: clock, Err: err}
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, &ParseError{Value: clock, Err: err}
	}
	if hour < 0 || hour > 12 || minute < 0 || minute > 59 {
		return 0, 0, &ParseError{Value: clock, Err: errOutOfRange}
	}

	if fields[1] == pmMarker {
		if hour != 12 {
			hour += 12
		}
	} else if hour == 12 {
		hour -= 12
	}
	return hour, minute, nil
}

// ParseDate reads a "D/M/YYYY" string.
func ParseDate(date string) (day, month, year int, err error) {
	parts := strings.Split(strings.TrimSpace(date), "/")
	if len(parts) != 3 {
		return 0, 0, 0, &ParseError{Value: date, Err: errDateLayout}
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, convErr := strconv.Atoi(p)
		if convErr != nil {
			return 0, 0, 0, &ParseError{Value: date, Err: convErr}
		}
		nums[i] = n
	}
	day, month, year = nums[0], nums[1], nums[2]

	// time.Date normalizes overflow (31/2 becomes 2/3); reject instead.
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if year < 1 || year > 9999 || t.Day() != day || int(t.Month()) != month || t.Year() != year {
		return 0, 0, 0, &ParseError{Value: date, Err: errOutOfRange}
	}
	return day, month, year, nil
}

// BuildDateTime combines a 12-hour clock string with a calendar date in loc.
func BuildDateTime(clock string, day, month, year int, pmMarker string, loc *time.Location) (time.Time, error) {
	hour, minute, err := ParseClock(clock, pmMarker)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc), nil
}

// ParseDateTime parses a stored date and clock pair into an instant in loc.
func ParseDateTime(clock, date, pmMarker string, loc *time.Location) (time.Time, error) {
	day, month, year, err := ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	return BuildDateTime(clock, day, month, year, pmMarker, loc)
}

// ToStamp parses a stored clock and date pair into its comparable stamp.
func ToStamp(clock, date, pmMarker string) (Stamp, error) {
	t, err := ParseDateTime(clock, date, pmMarker, time.UTC)
	if err != nil {
		return 0, err
	}
	return StampOf(t), nil
}

// FormatDisplayTime renders a 24-hour time as "HH:MM AM|PM <zone>".
func FormatDisplayTime(hour, minute int, zone string) string {
	marker := "AM"
	if hour >= 12 {
		marker = "PM"
		if hour != 12 {
			hour -= 12
		}
	} else if hour == 0 {
		hour = 12
	}
	return fmt.Sprintf("%02d:%02d %s %s", hour, minute, marker, zone)
}
