package character

import (
	"regexp"
	"strings"
)

// namePattern finds "name is Bob", "name: Bob Smith" or "name Bob" in free
// text. Only the keyword is case-insensitive; the name itself must be
// capitalized words.
var namePattern = regexp.MustCompile(`(?i:\bname\b)(?:\s+(?i:is))?(?:\s*:)?\s*([A-Z][a-zA-Z]*(?:[ \t]+[A-Z][a-zA-Z]*)*)(?:[.,;:!?]|\s|$)`)

// ExtractName returns the name stated in instructions, or "".
func ExtractName(instructions string) string {
	match := namePattern.FindStringSubmatch(instructions)
	if match == nil {
		return ""
	}
	return strings.TrimSpace(match[1])
}

// ResolveName prefers a name stated in instructions over fallback.
func ResolveName(instructions, fallback string) string {
	if name := ExtractName(instructions); name != "" {
		return name
	}
	return fallback
}
