package autopilot

import "strings"

// ParseCommands splits a model reply into non-empty trimmed lines, in order.
func ParseCommands(raw string) []string {
	lines := strings.Split(raw, "\n")
	commands := make([]string, 0, len(lines))
	for _, line := range lines {
		if cmd := strings.TrimSpace(line); cmd != "" {
			commands = append(commands, cmd)
		}
	}
	return commands
}
