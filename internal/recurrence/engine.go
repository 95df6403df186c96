package recurrence

import (
	"errors"
	"fmt"
	"time"
)

// Pattern identifies the supported recurrence shapes.
type Pattern int

const (
	// PatternUnspecified indicates the rule pattern is not set.
	PatternUnspecified Pattern = iota
	// PatternOnce produces a single occurrence on the anchor date.
	PatternOnce
	// PatternDaily produces an occurrence for every day in the range.
	PatternDaily
	// PatternWeekly produces occurrences every seven days, or on an explicit
	// weekday selection when one is provided.
	PatternWeekly
	// PatternMonthly produces occurrences once per calendar month, either on
	// the anchor's day-of-month or on the nth weekday of each month.
	PatternMonthly
)

// Rule describes a recurrence configuration for a booking request.
//
// EndDate is inclusive and required for every pattern except PatternOnce.
// Weekdays applies to weekly rules only. WeekOfMonth (1-4, or 5 meaning
// "last") together with MonthlyWeekday selects the nth-weekday monthly
// variant; when WeekOfMonth is zero the plain same-day-of-month variant is
// used.
type Rule struct {
	Pattern        Pattern
	AnchorDate     time.Time
	EndDate        time.Time
	Weekdays       []time.Weekday
	WeekOfMonth    int
	MonthlyWeekday *time.Weekday
}

// Cap bounds occurrence generation regardless of the rule's own end date.
type Cap struct {
	// MaxOccurrences is the hard ceiling on the number of generated dates.
	MaxOccurrences int
	// MaxMonths limits the generation window to this many calendar months
	// past the anchor date.
	MaxMonths int
}

// DefaultCap bounds runaway series to six months and a generous daily count.
var DefaultCap = Cap{MaxOccurrences: 200, MaxMonths: 6}

// ErrInvalidRule indicates the recurrence configuration is missing a required
// field or combines fields that do not belong together. Generation never
// starts for an invalid rule.
var ErrInvalidRule = errors.New("recurrence: invalid rule")

// Engine expands recurrence rules into concrete calendar dates. All dates are
// normalized to midnight in the engine's location; the service operates on a
// single facility-local calendar.
type Engine struct {
	location *time.Location
}

// NewEngine constructs an Engine that normalizes dates to the provided
// location. If loc is nil, the process-local timezone is used.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{location: loc}
}

// Location returns the calendar location the engine normalizes to.
func (e *Engine) Location() *time.Location {
	if e == nil || e.location == nil {
		return time.Local
	}
	return e.location
}

// Validate reports whether the rule is internally consistent. Every failure
// wraps ErrInvalidRule so callers can classify it as fatal to the request.
func (r Rule) Validate() error {
	switch r.Pattern {
	case PatternOnce:
		if r.AnchorDate.IsZero() {
			return fmt.Errorf("%w: anchor date is required", ErrInvalidRule)
		}
		return nil
	case PatternDaily, PatternWeekly, PatternMonthly:
	default:
		return fmt.Errorf("%w: unknown pattern", ErrInvalidRule)
	}

	if r.AnchorDate.IsZero() {
		return fmt.Errorf("%w: anchor date is required", ErrInvalidRule)
	}
	if r.EndDate.IsZero() {
		return fmt.Errorf("%w: end date is required for recurring rules", ErrInvalidRule)
	}
	// A recurring booking must span at least one day beyond the anchor.
	if r.EndDate.Before(r.AnchorDate.AddDate(0, 0, 1)) {
		return fmt.Errorf("%w: end date must be at least one day after the anchor", ErrInvalidRule)
	}

	if r.Pattern != PatternWeekly && len(r.Weekdays) > 0 {
		return fmt.Errorf("%w: weekday selection is only valid for weekly rules", ErrInvalidRule)
	}
	for _, day := range r.Weekdays {
		if day < time.Sunday || day > time.Saturday {
			return fmt.Errorf("%w: weekday index out of range", ErrInvalidRule)
		}
	}

	if r.Pattern != PatternMonthly && (r.WeekOfMonth != 0 || r.MonthlyWeekday != nil) {
		return fmt.Errorf("%w: week-of-month selection is only valid for monthly rules", ErrInvalidRule)
	}
	if r.WeekOfMonth < 0 || r.WeekOfMonth > 5 {
		return fmt.Errorf("%w: week of month must be between 1 and 5", ErrInvalidRule)
	}
	if r.WeekOfMonth != 0 && r.MonthlyWeekday == nil {
		return fmt.Errorf("%w: week of month requires a weekday", ErrInvalidRule)
	}
	if r.WeekOfMonth == 0 && r.MonthlyWeekday != nil {
		return fmt.Errorf("%w: monthly weekday requires a week of month", ErrInvalidRule)
	}

	return nil
}

// Generate expands the rule into an ordered, duplicate-free sequence of
// calendar dates at midnight in the engine's location. The sequence starts at
// the anchor date (when the rule selects it) and never extends past the
// rule's end date or the cap. An empty result is valid; callers decide how to
// surface a rule that selects no dates.
func (e *Engine) Generate(rule Rule, limits Cap) ([]time.Time, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	loc := e.Location()
	anchor := dateOnly(rule.AnchorDate, loc)

	if rule.Pattern == PatternOnce {
		return []time.Time{anchor}, nil
	}

	if limits.MaxOccurrences <= 0 {
		limits.MaxOccurrences = DefaultCap.MaxOccurrences
	}
	if limits.MaxMonths <= 0 {
		limits.MaxMonths = DefaultCap.MaxMonths
	}

	end := dateOnly(rule.EndDate, loc)
	if horizon := anchor.AddDate(0, limits.MaxMonths, 0); horizon.Before(end) {
		end = horizon
	}

	var dates []time.Time
	switch rule.Pattern {
	case PatternDaily:
		dates = generateByStep(anchor, end, 1, limits.MaxOccurrences, nil)
	case PatternWeekly:
		if len(rule.Weekdays) == 0 {
			dates = generateByStep(anchor, end, 7, limits.MaxOccurrences, nil)
		} else {
			// Literal day-by-day scan: the anchor date itself is included
			// only when its weekday is part of the selection.
			set := make(map[time.Weekday]struct{}, len(rule.Weekdays))
			for _, day := range rule.Weekdays {
				set[day] = struct{}{}
			}
			dates = generateByStep(anchor, end, 1, limits.MaxOccurrences, set)
		}
	case PatternMonthly:
		if rule.WeekOfMonth == 0 {
			dates = generateMonthlyByDay(anchor, end, limits.MaxOccurrences)
		} else {
			dates = generateMonthlyByWeekday(anchor, end, rule.WeekOfMonth, *rule.MonthlyWeekday, limits.MaxOccurrences)
		}
	}

	return dates, nil
}

func generateByStep(anchor, end time.Time, stepDays, limit int, weekdays map[time.Weekday]struct{}) []time.Time {
	dates := make([]time.Time, 0)
	for current := anchor; !current.After(end); current = current.AddDate(0, 0, stepDays) {
		if weekdays != nil {
			if _, ok := weekdays[current.Weekday()]; !ok {
				continue
			}
		}
		dates = append(dates, current)
		if len(dates) >= limit {
			break
		}
	}
	return dates
}

// generateMonthlyByDay steps by calendar month keeping the anchor's
// day-of-month. Months without that day (e.g. February 31st) yield no
// occurrence; the date is skipped, never clamped to the month boundary.
func generateMonthlyByDay(anchor, end time.Time, limit int) []time.Time {
	day := anchor.Day()
	loc := anchor.Location()
	dates := make([]time.Time, 0)

	for month := firstOfMonth(anchor); !month.After(end); month = month.AddDate(0, 1, 0) {
		candidate := time.Date(month.Year(), month.Month(), day, 0, 0, 0, 0, loc)
		if candidate.Month() != month.Month() {
			continue // day does not exist in this month
		}
		if candidate.Before(anchor) || candidate.After(end) {
			continue
		}
		dates = append(dates, candidate)
		if len(dates) >= limit {
			break
		}
	}
	return dates
}

// generateMonthlyByWeekday emits the nth occurrence of the given weekday in
// each month. weekOfMonth 5 means the last occurrence, found by walking
// backward from the month's final day. A month whose nth occurrence would
// land outside the month yields nothing; it never rolls into the next month.
func generateMonthlyByWeekday(anchor, end time.Time, weekOfMonth int, weekday time.Weekday, limit int) []time.Time {
	dates := make([]time.Time, 0)

	for month := firstOfMonth(anchor); !month.After(end); month = month.AddDate(0, 1, 0) {
		candidate, ok := nthWeekdayOfMonth(month, weekOfMonth, weekday)
		if !ok {
			continue
		}
		if candidate.Before(anchor) || candidate.After(end) {
			continue
		}
		dates = append(dates, candidate)
		if len(dates) >= limit {
			break
		}
	}
	return dates
}

func nthWeekdayOfMonth(monthStart time.Time, weekOfMonth int, weekday time.Weekday) (time.Time, bool) {
	if weekOfMonth == 5 {
		last := monthStart.AddDate(0, 1, -1)
		for current := last; current.Month() == monthStart.Month(); current = current.AddDate(0, 0, -1) {
			if current.Weekday() == weekday {
				return current, true
			}
		}
		return time.Time{}, false
	}

	offset := (int(weekday) - int(monthStart.Weekday()) + 7) % 7
	candidate := monthStart.AddDate(0, 0, offset+(weekOfMonth-1)*7)
	if candidate.Month() != monthStart.Month() {
		return time.Time{}, false
	}
	return candidate, true
}

func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// dateOnly re-anchors the value's calendar date at midnight in loc. The
// year/month/day are taken as given, never converted through the instant:
// callers hand in dates parsed in arbitrary zones (typically UTC), and
// converting the instant would shift the calendar day for any facility
// west of the parse zone.
func dateOnly(t time.Time, loc *time.Location) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}
