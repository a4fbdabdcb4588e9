// internal/domain/schedule/window.go
package schedule

import (
	"fmt"
	"strings"
	"time"
)

var weekdayNames = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

var monthNames = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// Window is the inclusive dispatch range [Now, Ahead], both at minute precision.
// The poll interval must not exceed the window width or due events can be missed.
type Window struct {
	Now   time.Time
	Ahead time.Time
}

// NewWindow opens a window of the given width starting at now.
func NewWindow(now time.Time, delay time.Duration) Window {
	return Window{
		Now:   now.Truncate(time.Minute),
		Ahead: now.Add(delay).Truncate(time.Minute),
	}
}

// Contains reports whether t falls inside the window, bounds included.
// Bounds and t are compared as wall-clock stamps, so a repeated hour at a
// daylight saving change matches what the report shows.
func (w Window) Contains(t time.Time) bool {
	st := StampOf(t)
	return st >= w.NowStamp() && st <= w.AheadStamp()
}

// Passed reports whether t is strictly before the window start.
func (w Window) Passed(t time.Time) bool {
	return StampOf(t) < w.NowStamp()
}

func (w Window) NowStamp() Stamp   { return StampOf(w.Now) }
func (w Window) AheadStamp() Stamp { return StampOf(w.Ahead) }

// ZoneTable maps a record's time zone label to the correction applied to
// its class time before display.
type ZoneTable map[string]time.Duration

// DefaultZones is the IST/EST pair the schedule sheet is filled with.
func DefaultZones() ZoneTable {
	return ZoneTable{
		"IST": 0,
		"EST": -(9*time.Hour + 30*time.Minute),
	}
}

// ParseZoneTable reads "LABEL=duration" pairs separated by commas, e.g. "IST=0,EST=-9h30m".
func ParseZoneTable(spec string) (ZoneTable, error) {
	zones := ZoneTable{}
	for _, pair := range strings.Split(spec, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		label, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("zone entry %q: missing '='", pair)
		}
		d, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("zone entry %q: %w", pair, err)
		}
		zones[strings.TrimSpace(label)] = d
	}
	return zones, nil
}

// Offset returns the correction for a label; unknown labels are not corrected.
func (z ZoneTable) Offset(label string) time.Duration {
	return z[label]
}

// Display holds the class date and time as they appear in the message text.
type Display struct {
	Weekday string // "Wednesday"
	Date    string // "25 Dec 2024"
	Time    string // "02:00 PM IST"
}

// ComputeDisplay derives the message fields from the record's class date and time,
// shifted by the zone correction of the record's time zone.
func ComputeDisplay(r *Record, zones ZoneTable, pmMarker string, loc *time.Location) (Display, error) {
	day, month, year, err := ParseDate(r.ClassDate)
	if err != nil {
		return Display{}, withField(err, "class_date")
	}
	t, err := BuildDateTime(r.ClassTime, day, month, year, pmMarker, loc)
	if err != nil {
		return Display{}, withField(err, "class_time")
	}
	t = t.Add(zones.Offset(r.TimeZone))

	return Display{
		Weekday: weekdayNames[(int(t.Weekday())+6)%7],
		Date:    fmt.Sprintf("%d %s %d", t.Day(), monthNames[t.Month()-1], t.Year()),
		Time:    FormatDisplayTime(t.Hour(), t.Minute(), r.TimeZone),
	}, nil
}

// ScheduledTime parses the instant at which a kind is due.
func ScheduledTime(r *Record, kind Kind, pmMarker string, loc *time.Location) (time.Time, error) {
	date, clock := r.ScheduledAt(kind)
	day, month, year, err := ParseDate(date)
	if err != nil {
		return time.Time{}, withField(err, string(kind)+"_date")
	}
	t, err := BuildDateTime(clock, day, month, year, pmMarker, loc)
	if err != nil {
		return time.Time{}, withField(err, string(kind)+"_time")
	}
	return t, nil
}

// View bundles the window bounds with a record's display fields.
type View struct {
	Window
	Display
}

// ComputeWindow evaluates the dispatch window for now and the record's display fields.
func ComputeWindow(r *Record, now time.Time, delay time.Duration, zones ZoneTable, pmMarker string) (View, error) {
	d, err := ComputeDisplay(r, zones, pmMarker, now.Location())
	if err != nil {
		return View{}, err
	}
	return View{Window: NewWindow(now, delay), Display: d}, nil
}
