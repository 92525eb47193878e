package schedule

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"
)

// 2024-01-03 was a Wednesday.
func wednesday(hour, min int) time.Time {
	return time.Date(2024, time.January, 3, hour, min, 0, 0, time.UTC)
}

func TestNextWeekdayScenario(t *testing.T) {
	t.Parallel()
	c := Constraint{Day: AnyOf(0, 5, 6), Hour: One(18)}

	got, err := c.Next(wednesday(10, 0))
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	want := time.Date(2024, time.January, 5, 18, 0, 0, 0, time.UTC) // that week's Friday
	if !got.Equal(want) {
		t.Fatalf("Next from Wed 10:00 = %v, want %v", got, want)
	}

	friday := time.Date(2024, time.January, 5, 19, 0, 0, 0, time.UTC)
	got, err = c.Next(friday)
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	want = time.Date(2024, time.January, 6, 18, 0, 0, 0, time.UTC) // Saturday
	if !got.Equal(want) {
		t.Fatalf("Next from Fri 19:00 = %v, want %v", got, want)
	}
}

func TestNextFebruary31Unsatisfiable(t *testing.T) {
	t.Parallel()
	c := Constraint{Date: One(31), Month: One(1)}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate rejected February 31st up front: %v", err)
	}
	_, err := c.Next(wednesday(10, 0))
	var unsat *UnsatisfiableConstraintError
	if !errors.As(err, &unsat) {
		t.Fatalf("Next error = %v, want UnsatisfiableConstraintError", err)
	}
}

func TestNextSatisfiesPresentFields(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		c    Constraint
		now  time.Time
	}{
		{name: "minute set", c: Constraint{Minute: AnyOf(0, 15, 30, 45)}, now: wednesday(10, 31)},
		{name: "pinned minute", c: Constraint{Minute: One(7)}, now: wednesday(10, 31)},
		{name: "pinned hour", c: Constraint{Hour: One(9)}, now: wednesday(10, 30)},
		{name: "hour set", c: Constraint{Hour: AnyOf(6, 18)}, now: wednesday(23, 59)},
		{name: "date", c: Constraint{Date: One(15)}, now: wednesday(0, 0)},
		{name: "weekday", c: Constraint{Day: One(1)}, now: wednesday(12, 0)},
		{name: "month", c: Constraint{Month: One(5)}, now: wednesday(10, 30)},
		{name: "day and date", c: Constraint{Day: One(5), Date: One(13)}, now: wednesday(0, 0)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := tt.c.Next(tt.now)
			if err != nil {
				t.Fatalf("Next error: %v", err)
			}
			if !got.After(tt.now) {
				t.Fatalf("Next = %v, not after now %v", got, tt.now)
			}
			if got.Second() != 0 || got.Nanosecond() != 0 {
				t.Fatalf("Next = %v, expected whole-minute precision", got)
			}
			if !tt.c.satisfiedBy(got) {
				t.Fatalf("Next = %v does not satisfy %s", got, tt.c)
			}
		})
	}
}

func TestNextNeverRepeats(t *testing.T) {
	t.Parallel()
	c := Constraint{Day: AnyOf(0, 5, 6), Hour: One(18)}
	now := wednesday(10, 0)
	for i := 0; i < 10; i++ {
		got, err := c.Next(now)
		if err != nil {
			t.Fatalf("Next error at step %d: %v", i, err)
		}
		if !got.After(now) {
			t.Fatalf("step %d: Next = %v, not after %v", i, got, now)
		}
		now = got
	}
}

func TestNextDefaults(t *testing.T) {
	t.Parallel()
	// Bare hour fires at the top of that hour.
	got, err := Constraint{Hour: One(9)}.Next(wednesday(10, 30))
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	want := time.Date(2024, time.January, 4, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("hour-only Next = %v, want %v", got, want)
	}

	// Bare month fires at the first of the month, midnight.
	got, err = Constraint{Month: One(5)}.Next(wednesday(10, 30))
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	want = time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("month-only Next = %v, want %v", got, want)
	}
}

func TestNextDiscardsSubMinutePrecision(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, time.January, 3, 10, 30, 45, 123456, time.UTC)
	got, err := Constraint{Minute: AnyOf(31)}.Next(now)
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	want := time.Date(2024, time.January, 3, 10, 31, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		c         Constraint
		wantField string
	}{
		{name: "empty", c: Constraint{}, wantField: ""},
		{name: "minute too large", c: Constraint{Minute: One(60)}, wantField: "minute"},
		{name: "negative hour", c: Constraint{Hour: AnyOf(8, -1)}, wantField: "hour"},
		{name: "weekday out of range", c: Constraint{Day: One(7)}, wantField: "day"},
		{name: "month out of range", c: Constraint{Month: One(12)}, wantField: "month"},
		{name: "date zero", c: Constraint{Date: One(0)}, wantField: "date"},
		{name: "date beyond month bound", c: Constraint{Date: One(31), Month: One(9)}, wantField: "date"},
		{name: "empty value set", c: Constraint{Minute: AnyOf()}, wantField: "minute"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.c.Validate()
			var inv *InvalidConstraintError
			if !errors.As(err, &inv) {
				t.Fatalf("Validate = %v, want InvalidConstraintError", err)
			}
			if inv.Field != tt.wantField {
				t.Fatalf("Field = %q, want %q", inv.Field, tt.wantField)
			}
		})
	}

	ok := Constraint{Minute: AnyOf(0, 30), Hour: One(12), Day: AnyOf(1, 3), Date: One(28), Month: AnyOf(0, 6)}
	if err := ok.Validate(); err != nil {
		t.Fatalf("Validate rejected a valid constraint: %v", err)
	}
}

func TestFieldValuesJSONRoundTrip(t *testing.T) {
	t.Parallel()
	in := Constraint{Minute: One(30), Day: AnyOf(0, 5, 6)}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"minute":30,"day":[0,5,6]}`
	if string(b) != want {
		t.Fatalf("marshal = %s, want %s", b, want)
	}
	var out Constraint
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(in.Day.values(), out.Day.values()) {
		t.Fatalf("day values = %v, want %v", out.Day.values(), in.Day.values())
	}
	if v, ok := out.Minute.pinned(); !ok || v != 30 {
		t.Fatalf("minute = (%d, %v), want pinned 30", v, ok)
	}
}
