package timeparse

import (
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	want := time.Date(2022, 10, 1, 0, 15, 0, 0, time.UTC)

	cases := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"unix_seconds", "1664583300", want},
		{"rfc3339_z", "2022-10-01T00:15:00Z", want},
		{"rfc3339_offset", "2022-10-01T00:15:00+00:00", want},
		{"space_separated", "2022-10-01 00:15:00", want},
		{"pure_date_dash", "2022-10-01", time.Date(2022, 10, 1, 0, 0, 0, 0, time.UTC)},
		{"pure_date_slash", "2022/10/01", time.Date(2022, 10, 1, 0, 0, 0, 0, time.UTC)},
		{"pure_date_dot", "2022.10.01", time.Date(2022, 10, 1, 0, 0, 0, 0, time.UTC)},
		{"pure_date_compact", "20221001", time.Date(2022, 10, 1, 0, 0, 0, 0, time.UTC)},
		{"with_whitespace", "  2022-10-01  ", time.Date(2022, 10, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := Parse(c.input)
			if err != nil {
				t.Fatalf("Parse(%q): %v", c.input, err)
			}
			if !got.Equal(c.want) {
				t.Errorf("Parse(%q) = %v, want %v", c.input, got, c.want)
			}
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, input := range []string{"", "not-a-date", "2022-13-40", "Oct 1 2022"} {
		if _, err := Parse(input); err == nil {
			t.Errorf("Parse(%q): expected error, got nil", input)
		}
	}
}
