package agent

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// StripANSI removes terminal escape sequences and surrounding whitespace.
func StripANSI(s string) string {
	return strings.TrimSpace(ansi.Strip(s))
}

var stderrNoise = []string{
	"ExperimentalWarning",
	"DeprecationWarning",
	"trace-warnings",
	"trace-deprecation",
}

// FilterStderr drops runtime warning lines that do not indicate a failure.
func FilterStderr(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if !isNoise(line) {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func isNoise(line string) bool {
	for _, marker := range stderrNoise {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}
