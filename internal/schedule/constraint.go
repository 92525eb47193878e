package schedule

import (
	"encoding/json"
	"time"
)

// maxResolveSteps bounds the convergence loop in Next. A constraint that
// has not matched after this many rolls has no solution (for example
// date=31 pinned into February).
const maxResolveSteps = 100000

// FieldValues constrains one calendar field: either a single pinned value
// or a set of allowed values. The distinction matters beyond matching — a
// pinned field is written onto the candidate directly and rolls the next
// coarser unit, while a set steps the field's own unit.
//
// The JSON form is a bare number for a pinned value and an array for a set,
// matching the persisted record shape.
type FieldValues struct {
	single *int
	set    []int
}

// One pins a field to exactly v.
func One(v int) *FieldValues { return &FieldValues{single: &v} }

// AnyOf allows any of vs.
func AnyOf(vs ...int) *FieldValues { return &FieldValues{set: append([]int(nil), vs...)} }

func (f *FieldValues) pinned() (int, bool) {
	if f == nil || f.single == nil {
		return 0, false
	}
	return *f.single, true
}

func (f *FieldValues) matches(v int) bool {
	if f == nil {
		return true
	}
	if f.single != nil {
		return *f.single == v
	}
	for _, a := range f.set {
		if a == v {
			return true
		}
	}
	return false
}

func (f *FieldValues) values() []int {
	if f == nil {
		return nil
	}
	if f.single != nil {
		return []int{*f.single}
	}
	return f.set
}

func (f *FieldValues) MarshalJSON() ([]byte, error) {
	if f.single != nil {
		return json.Marshal(*f.single)
	}
	return json.Marshal(f.set)
}

func (f *FieldValues) UnmarshalJSON(data []byte) error {
	var v int
	if err := json.Unmarshal(data, &v); err == nil {
		f.single = &v
		f.set = nil
		return nil
	}
	var vs []int
	if err := json.Unmarshal(data, &vs); err != nil {
		return err
	}
	f.single = nil
	f.set = vs
	return nil
}

// Constraint is a partial calendar specification selecting recurring
// instants. Nil fields are "don't care", except that a coarser field
// defaults finer unset fields per withDefaults. Day is the weekday with
// Sunday=0; Month is zero-based with January=0.
type Constraint struct {
	Minute *FieldValues `json:"minute,omitempty"`
	Hour   *FieldValues `json:"hour,omitempty"`
	Day    *FieldValues `json:"day,omitempty"`
	Date   *FieldValues `json:"date,omitempty"`
	Month  *FieldValues `json:"month,omitempty"`
}

func (c Constraint) String() string {
	b, err := json.Marshal(c)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func (c Constraint) isEmpty() bool {
	return c.Minute == nil && c.Hour == nil && c.Day == nil && c.Date == nil && c.Month == nil
}

// maxDaysOfMonth deliberately keeps the historical month-length rule, which
// indexes the table as if months were 1-based (see DESIGN.md). The date
// bound stays permissive for February, so impossibilities like February
// 31st surface as unsatisfiable at resolve time rather than being rejected
// at validation time.
func maxDaysOfMonth(m int) int {
	if m == 2 {
		return 29
	}
	x := 0
	if m > 7 {
		x = 1
	}
	if (m^x)&1 == 1 {
		return 31
	}
	return 30
}

// Validate checks that every present field holds values inside its range.
// The date upper bound depends on the month constraint when one is present.
func (c Constraint) Validate() error {
	if c.isEmpty() {
		return &InvalidConstraintError{}
	}

	maxDate := 31
	if months := c.Month.values(); len(months) > 0 {
		maxDate = 0
		for _, m := range months {
			if d := maxDaysOfMonth(m); d > maxDate {
				maxDate = d
			}
		}
	}

	fields := []struct {
		name     string
		fv       *FieldValues
		min, max int
	}{
		{"minute", c.Minute, 0, 59},
		{"hour", c.Hour, 0, 23},
		{"day", c.Day, 0, 6},
		{"date", c.Date, 1, maxDate},
		{"month", c.Month, 0, 11},
	}
	for _, f := range fields {
		if f.fv == nil {
			continue
		}
		vals := f.fv.values()
		if len(vals) == 0 {
			return &InvalidConstraintError{Field: f.name, NoValues: true}
		}
		for _, v := range vals {
			if v < f.min || v > f.max {
				return &InvalidConstraintError{Field: f.name, Value: v, Min: f.min, Max: f.max}
			}
		}
	}
	return nil
}

// withDefaults fills finer unset fields when a coarser one is present, so a
// bare month fires at the top of the month, a bare hour at the top of the
// hour, and so on. Day and date are mutually exclusive defaults beneath
// month; when neither is given the first of the month is used.
func (c Constraint) withDefaults() Constraint {
	if c.Month != nil {
		if c.Minute == nil {
			c.Minute = One(0)
		}
		if c.Hour == nil {
			c.Hour = One(0)
		}
		if c.Day == nil && c.Date == nil {
			c.Date = One(1)
		}
	} else if c.Date != nil || c.Day != nil {
		if c.Minute == nil {
			c.Minute = One(0)
		}
		if c.Hour == nil {
			c.Hour = One(0)
		}
	} else if c.Hour != nil {
		if c.Minute == nil {
			c.Minute = One(0)
		}
	}
	return c
}

func monthOf(t time.Time) int { return int(t.Month()) - 1 }

func addMinutes(n int) func(time.Time) time.Time {
	return func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute()+n, 0, 0, t.Location())
	}
}

func addHours(n int) func(time.Time) time.Time {
	return func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+n, t.Minute(), 0, 0, t.Location())
	}
}

func addDays(n int) func(time.Time) time.Time {
	return func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day()+n, t.Hour(), t.Minute(), 0, 0, t.Location())
	}
}

func addMonths(n int) func(time.Time) time.Time {
	return func(t time.Time) time.Time {
		return time.Date(t.Year(), time.Month(int(t.Month())+n), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
	}
}

func addYears(n int) func(time.Time) time.Time {
	return func(t time.Time) time.Time {
		return time.Date(t.Year()+n, t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
	}
}

// Next returns the first instant strictly after now that satisfies the
// constraint. Sub-minute precision is discarded: the search starts at the
// next whole minute.
//
// Single-valued fields are written onto the candidate up front (carrying
// into the next coarser unit when the current value has already passed);
// the finest present field picks the roll unit applied by the convergence
// loop. Every roll re-checks all present fields from scratch, because
// advancing a coarse field can invalidate a finer one that matched before.
func (c Constraint) Next(now time.Time) (time.Time, error) {
	c = c.withDefaults()

	t := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute()+1, 0, 0, now.Location())

	var roll func(time.Time) time.Time

	if fv := c.Minute; fv != nil {
		if v, ok := fv.pinned(); ok {
			roll = addHours(1)
			if t.Minute() > v {
				t = addHours(1)(t)
			}
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), v, 0, 0, t.Location())
		} else {
			roll = addMinutes(1)
		}
	}
	if fv := c.Hour; fv != nil {
		if v, ok := fv.pinned(); ok {
			roll = addDays(1)
			if t.Hour() > v {
				t = addDays(1)(t)
			}
			t = time.Date(t.Year(), t.Month(), t.Day(), v, t.Minute(), 0, 0, t.Location())
		} else {
			roll = addHours(1)
		}
	}
	if fv := c.Date; fv != nil {
		if v, ok := fv.pinned(); ok {
			roll = addMonths(1)
			if t.Day() > v {
				t = addMonths(1)(t)
			}
			t = time.Date(t.Year(), t.Month(), v, t.Hour(), t.Minute(), 0, 0, t.Location())
		} else {
			roll = addDays(1)
		}
	}
	// Day runs after Date so the weekday branch wins the roll unit when both
	// are present. A pinned weekday snaps 0-6 days forward and rolls a whole
	// week at a time; a simple unit increment would skip valid weeks.
	if fv := c.Day; fv != nil {
		if v, ok := fv.pinned(); ok {
			roll = addDays(7)
			t = addDays((v-int(t.Weekday())+7)%7)(t)
		} else {
			roll = addDays(1)
		}
	}
	if fv := c.Month; fv != nil {
		if v, ok := fv.pinned(); ok {
			roll = addYears(1)
			if monthOf(t) > v {
				t = addYears(1)(t)
			}
			t = time.Date(t.Year(), time.Month(v+1), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
		} else {
			roll = addMonths(1)
		}
	}
	if roll == nil {
		return time.Time{}, &UnsatisfiableConstraintError{Constraint: c}
	}

	for steps := 0; ; steps++ {
		if c.satisfiedBy(t) {
			return t, nil
		}
		if steps >= maxResolveSteps {
			return time.Time{}, &UnsatisfiableConstraintError{Constraint: c}
		}
		t = roll(t)
	}
}

func (c Constraint) satisfiedBy(t time.Time) bool {
	return c.Minute.matches(t.Minute()) &&
		c.Hour.matches(t.Hour()) &&
		c.Day.matches(int(t.Weekday())) &&
		c.Date.matches(t.Day()) &&
		c.Month.matches(monthOf(t))
}
