package ai

import "strings"

// StripCodeFence removes a surrounding markdown code fence from a model
// response, if one is present. Models asked for JSON frequently wrap it in
// ```json ... ``` blocks; the inner text is returned trimmed. Text without a
// fence is returned unchanged apart from whitespace trimming.
func StripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)

	start := strings.Index(trimmed, "```json")
	offset := 7
	if start == -1 {
		start = strings.Index(trimmed, "```")
		offset = 3
	}
	if start == -1 {
		return trimmed
	}

	inner := trimmed[start+offset:]
	end := strings.Index(inner, "```")
	if end == -1 {
		return strings.TrimSpace(inner)
	}

	return strings.TrimSpace(inner[:end])
}
