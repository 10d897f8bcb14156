package llm

// DefaultSystemPrompt is the assistant persona used when no preset or
// explicit prompt is configured.
const DefaultSystemPrompt = "You are a helpful personal assistant. Keep responses concise and friendly."

// SystemPrompts maps preset names to system prompts. Factories resolve the
// descriptor parameter "preset" against this table when no explicit
// system_prompt parameter is set.
var SystemPrompts = map[string]string{
	"default":      DefaultSystemPrompt,
	"casual":       "You are a friendly companion. Be conversational and helpful.",
	"professional": "You are a professional assistant. Provide clear, accurate information.",
	"creative":     "You are a creative assistant. Be imaginative and inspiring in your responses.",
}

// ResolvePreset returns the named preset prompt, falling back to the
// default for unknown or empty names.
func ResolvePreset(name string) string {
	if prompt, ok := SystemPrompts[name]; ok {
		return prompt
	}
	return DefaultSystemPrompt
}

// IsPreset reports whether name is a known prompt preset.
func IsPreset(name string) bool {
	_, ok := SystemPrompts[name]
	return ok
}
