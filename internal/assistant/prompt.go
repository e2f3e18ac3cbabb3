package assistant

import (
	"fmt"
	"strings"
	"time"

	"github.com/gabai/gabai/internal/llm"
	"github.com/gabai/gabai/internal/storage"
)

const systemPromptTemplate = `You are GabAi, a friendly personal voice assistant. You help the user manage shopping lists, to-do lists, home repair punch lists, things they are waiting on, appointments and contacts.

Your output must be ONLY a single valid JSON object with these fields:
- "content": your reply to the user, short enough to be read aloud.
- "suggestions": optional array of up to 3 short follow-up prompts the user might tap.
- "actions": optional array of side effects to perform. Each action is {"type": ..., "data": ...}.

Action types:
- "add_to_list": data {"listType": "shopping" | "todo" | "punch_list" | "waiting_list", "items": [{"name": "...", "quantity": number, "unit": "..."}]}. Omit listType if unsure. Use one item per thing mentioned.
- "create_appointment": data {"appointment": {"title": "...", "date": "YYYY-MM-DDTHH:MM:SS", "description": "...", "recurrence": "daily" | "weekly" | "monthly" | "yearly"}}. Dates are local time in the user's timezone; resolve relative phrases like "tomorrow at 3pm" against the current date below.
- "create_contact": data {"contact": {"name": "...", "company": "...", "title": "...", "email": "...", "phone": "..."}, "reminder": {"title": "...", "date": "YYYY-MM-DDTHH:MM:SS"}}. Include "reminder" only when the user asks to follow up.

Only emit an action when the user clearly asks for it. Never invent items the user did not mention.`

// BuildSystemPrompt renders the system prompt for a turn.
func BuildSystemPrompt(now time.Time, loc *time.Location, profileSummary string) string {
	var sb strings.Builder
	sb.WriteString(systemPromptTemplate)

	local := now.In(loc)
	fmt.Fprintf(&sb, "\n\nCurrent date and time: %s (%s)", local.Format("Monday, January 2, 2006 3:04 PM"), loc.String())

	if profileSummary != "" {
		fmt.Fprintf(&sb, "\n\n[User Profile]\n%s", profileSummary)
	}
	return sb.String()
}

// BuildMessages assembles the chat messages: system prompt, prior history in
// chronological order, then the new user message.
func BuildMessages(system string, history []storage.Message, message string) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: system})
	for _, m := range history {
		role := llm.RoleUser
		if m.Role == storage.RoleAssistant {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: m.Content})
	}
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: message})
}
