package autopilot

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseCommands(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", []string{}},
		{"whitespace only", " \n\t\n  ", []string{}},
		{"single", "apt-get update -y", []string{"apt-get update -y"}},
		{"trims and drops blanks", "  apt-get update -y \n\n\tapt-get install -y nginx\n", []string{"apt-get update -y", "apt-get install -y nginx"}},
		{"crlf", "ls -la\r\npwd\r\n", []string{"ls -la", "pwd"}},
		{"keeps order", "c\nb\na", []string{"c", "b", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseCommands(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ParseCommands(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseCommandsIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"apt-get update\napt-get install -y nginx",
		"  a  \n\n b\r\n\t\tc \n",
		"echo 'x  y'\n   \nsystemctl status nginx",
	}
	for _, raw := range inputs {
		once := ParseCommands(raw)
		twice := ParseCommands(strings.Join(once, "\n"))
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("not idempotent for %q: %q vs %q", raw, once, twice)
		}
	}
}
