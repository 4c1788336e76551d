// Package prompts builds the system and user prompts sent to the model when
// drafting or refining a character.
package prompts

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"charsmith/character"
)

const (
	KeepKnowledgeInstruction = "DO NOT modify the existing knowledge array."
	NewKnowledgeInstruction  = "Create new knowledge entries if appropriate."
)

var outputRules = []string{
	"ONLY output a JSON object following the exact template structure provided",
	"Start with { and end with }",
	"NO text before or after the JSON",
	"NO apologies or explanations",
	"NO content warnings or disclaimers",
}

var contentRules = []string{
	"Every sentence must end with a period",
	"Adjectives must be single words",
	"Knowledge entries MUST be an array of strings, each ending with a period",
	"Each knowledge entry MUST be a complete sentence",
}

// GenerationSystemPrompt is the system prompt for a fresh character.
var GenerationSystemPrompt = systemPrompt("generation",
	slices.Concat(outputRules, contentRules, []string{
		"Use the suggested name if provided, or generate an appropriate one",
	}),
	"You will receive a character description and template. Generate a complete character profile.",
)

// RefinementSystemPrompt is the system prompt for refining an existing
// character.
var RefinementSystemPrompt = systemPrompt("refinement",
	slices.Concat(outputRules, []string{
		"Maintain the character's core traits while incorporating refinements",
	}, contentRules, []string{
		"Use the new name if provided in the refinement instructions",
	}),
	"You will receive the current character data and refinement instructions. Enhance and modify the character while maintaining consistency.",
)

func systemPrompt(kind string, rules []string, closing string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a character %s assistant that MUST ONLY output valid JSON. NEVER output apologies, explanations, or any other text.\n\n", kind)
	b.WriteString("CRITICAL RULES:\n")
	for i, rule := range rules {
		fmt.Fprintf(&b, "%d. %s\n", i+1, rule)
	}
	b.WriteString("\n")
	b.WriteString(closing)
	return b.String()
}

// GenerationUserPrompt embeds the template and the free-text description.
func GenerationUserPrompt(template *character.Document, description string) (string, error) {
	tmpl, err := indent(template)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`Template to follow:
%s

Character description: %s

Generate a complete character profile as a single JSON object following the exact template structure. Include relevant knowledge entries based on the description.`,
		tmpl, description), nil
}

// RefinementUserPrompt embeds the current character, the template and the
// refinement instructions. keepKnowledge tells the model to leave the
// knowledge array alone.
func RefinementUserPrompt(current, template *character.Document, instructions string, keepKnowledge bool) (string, error) {
	cur, err := indent(current)
	if err != nil {
		return "", err
	}
	tmpl, err := indent(template)
	if err != nil {
		return "", err
	}
	knowledge := NewKnowledgeInstruction
	if keepKnowledge {
		knowledge = KeepKnowledgeInstruction
	}
	return fmt.Sprintf(`Current character data:
%s

Template to follow:
%s

Refinement instructions: %s

Output the refined character data as a single JSON object following the exact template structure. %s`,
		cur, tmpl, instructions, knowledge), nil
}

func indent(doc *character.Document) (string, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding character: %w", err)
	}
	return string(data), nil
}
