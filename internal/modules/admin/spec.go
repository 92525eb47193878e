package admin

import (
	"fmt"
	"strconv"
	"strings"

	"tockbot/internal/schedule"
)

// ParseConstraintSpec parses the compact reminder grammar
// "field=v[,v...][;field=...]" into a calendar constraint. Fields are
// minute, hour, day, date and month; each may appear once.
func ParseConstraintSpec(s string) (schedule.Constraint, error) {
	var c schedule.Constraint
	seen := map[string]bool{}

	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return schedule.Constraint{}, fmt.Errorf("expected field=values, got %q", part)
		}
		field := strings.ToLower(strings.TrimSpace(k))
		if seen[field] {
			return schedule.Constraint{}, fmt.Errorf("field %q given twice", field)
		}
		seen[field] = true

		vals, err := parseValues(field, v)
		if err != nil {
			return schedule.Constraint{}, err
		}
		switch field {
		case "minute":
			c.Minute = vals
		case "hour":
			c.Hour = vals
		case "day":
			c.Day = vals
		case "date":
			c.Date = vals
		case "month":
			c.Month = vals
		default:
			return schedule.Constraint{}, fmt.Errorf("unknown field %q", field)
		}
	}
	return c, nil
}

func parseValues(field, raw string) (*schedule.FieldValues, error) {
	parts := strings.Split(raw, ",")
	nums := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not a number", field, p)
		}
		nums = append(nums, n)
	}
	switch len(nums) {
	case 0:
		return nil, fmt.Errorf("%s: no values", field)
	case 1:
		return schedule.One(nums[0]), nil
	default:
		return schedule.AnyOf(nums...), nil
	}
}
