package reasoning

import (
	"encoding/json"
	"strings"
)

// systemPrompt frames every generation. The activity's description arrives
// as the user message; the contract is one JSON object, no prose.
const systemPrompt = `You execute a single activity inside a business workflow. ` +
	`The user message describes the activity and includes the current workflow data. ` +
	`Respond with exactly one JSON object. Its keys are merged into the workflow data ` +
	`for downstream activities. Do not wrap the object in code fences or add commentary.`

// buildMessages assembles the chat transcript for one activity execution:
// the fixed system contract plus a user message carrying the activity
// prompt and a JSON rendering of the token's data.
func buildMessages(prompt string, data map[string]any) []chatMessage {
	var b strings.Builder
	b.WriteString(prompt)

	if len(data) > 0 {
		if rendered, err := json.MarshalIndent(data, "", "  "); err == nil {
			b.WriteString("\n\nCurrent workflow data:\n")
			b.Write(rendered)
		}
	}

	return []chatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: b.String()},
	}
}
