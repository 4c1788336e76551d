package prompts

import (
	"strings"
	"testing"

	"charsmith/character"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemPrompts(t *testing.T) {
	assert.True(t, strings.HasPrefix(GenerationSystemPrompt, "You are a character generation assistant"))
	assert.Contains(t, GenerationSystemPrompt, "10. Use the suggested name if provided")
	assert.NotContains(t, GenerationSystemPrompt, "core traits")

	assert.True(t, strings.HasPrefix(RefinementSystemPrompt, "You are a character refinement assistant"))
	assert.Contains(t, RefinementSystemPrompt, "6. Maintain the character's core traits")
	assert.Contains(t, RefinementSystemPrompt, "7. Every sentence must end with a period")
	assert.Contains(t, RefinementSystemPrompt, "11. Use the new name if provided")
}

func TestGenerationUserPrompt(t *testing.T) {
	prompt, err := GenerationUserPrompt(character.NewTemplate("Bob"), "A baker named Bob.")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(prompt, "Template to follow:\n{\n  \"name\": \"Bob\""))
	assert.Contains(t, prompt, "Character description: A baker named Bob.")
	assert.Contains(t, prompt, `"knowledge": []`)
}

func TestRefinementUserPrompt(t *testing.T) {
	current := character.NewTemplate("Ada")
	current.Knowledge = []string{"Engines compute."}
	tmpl := character.RefineTemplate(current, "Ada")

	prompt, err := RefinementUserPrompt(current, tmpl, "Make her wittier.", true)
	require.NoError(t, err)

	cur := strings.Index(prompt, "Current character data:")
	tpl := strings.Index(prompt, "Template to follow:")
	ins := strings.Index(prompt, "Refinement instructions: Make her wittier.")
	assert.True(t, cur == 0 && cur < tpl && tpl < ins, "sections out of order")
	assert.True(t, strings.HasSuffix(prompt, KeepKnowledgeInstruction))

	prompt, err = RefinementUserPrompt(current, tmpl, "Make her wittier.", false)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(prompt, NewKnowledgeInstruction))
}
