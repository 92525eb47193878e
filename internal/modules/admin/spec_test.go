package admin

import (
	"strings"
	"testing"
)

func TestParseConstraintSpec(t *testing.T) {
	t.Parallel()

	c, err := ParseConstraintSpec("minute=0,30;hour=9")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Minute == nil || c.Hour == nil || c.Day != nil || c.Date != nil || c.Month != nil {
		t.Fatalf("unexpected fields: %s", c)
	}
	if got := c.String(); got != `{"minute":[0,30],"hour":9}` {
		t.Fatalf("constraint = %s", got)
	}

	c, err = ParseConstraintSpec("day=0,5,6; hour=18")
	if err != nil {
		t.Fatalf("parse with spaces: %v", err)
	}
	if c.Day == nil || c.Hour == nil {
		t.Fatalf("unexpected fields: %s", c)
	}

	c, err = ParseConstraintSpec("date=1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("parsed constraint invalid: %v", err)
	}
}

func TestParseConstraintSpecErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		sub  string
	}{
		{name: "no equals", in: "minute 30", sub: "field=values"},
		{name: "unknown field", in: "second=30", sub: "unknown field"},
		{name: "duplicate field", in: "hour=9;hour=18", sub: "twice"},
		{name: "not a number", in: "minute=abc", sub: "not a number"},
		{name: "empty values", in: "minute=,", sub: "no values"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseConstraintSpec(tt.in)
			if err == nil || !strings.Contains(err.Error(), tt.sub) {
				t.Fatalf("ParseConstraintSpec(%q) = %v, want error containing %q", tt.in, err, tt.sub)
			}
		})
	}
}

// Empty specs parse fine but fail constraint validation downstream.
func TestParseConstraintSpecEmpty(t *testing.T) {
	t.Parallel()
	c, err := ParseConstraintSpec("")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := c.Validate(); err == nil {
		t.Fatal("empty constraint should fail validation")
	}
}
