package classify

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kalambet/murmur/internal/openai"
)

const systemPrompt = `You are an extraction engine that classifies user voice input and extracts structured data. Your output must be ONLY a single valid JSON object conforming to the provided schema.

Tasks:
1. Determine the INTENT:
   - "NOTE": a statement of fact, observation, or information to remember
   - "REMINDER": a task or action item that needs to be done
   - "QUERY": a question or request for information

2. Clean up the CONTENT: remove filler words, fix grammar, keep it concise.

3. Assign a CATEGORY: a short topic label like "Work", "Personal", "Health", "Finance".

4. Resolve DUE_DATE for reminders as an ISO 8601 datetime, using the current datetime given in the user message as the reference point:
   - "tomorrow" = current date + 1 day
   - "next <weekday>" = the nearest future occurrence of that weekday, strictly after today
   - "in N days" = current date + N days
   - "end of month" = last calendar day of the current month
   - "next week" = current date + 7 days
   Resolved dates fall at the start of the day unless an explicit clock time is stated.
   If the intent is not REMINDER, or no timeframe is mentioned, set due_date to null. Never default it to the current time.

5. Decide IS_COMPLETE:
   - REMINDER: false when actionable specifics (when, who, what) are missing
   - NOTE: true unless the fragment is incoherent
   - QUERY: false when the question itself is ambiguous

6. When is_complete is false, produce a CLARIFICATION_QUESTION; otherwise set it to null.`

// BuildPrompt constructs the chat messages for one classification call.
// History, when present, is inserted between the system instructions and the
// current user turn so multi-turn clarification flows carry over. The
// invocation time is embedded in the user turn so relative dates resolve
// against it deterministically.
func BuildPrompt(text string, history []Message, contextVars map[string]string, now time.Time) []openai.Message {
	messages := make([]openai.Message, 0, len(history)+2)
	messages = append(messages, openai.Message{Role: "system", Content: systemPrompt})

	for _, m := range history {
		messages = append(messages, openai.Message{Role: m.Role, Content: m.Content})
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Current datetime: %s\n\nUser input: %q\n", now.Format(time.RFC3339), text)

	if len(contextVars) > 0 {
		keys := make([]string, 0, len(contextVars))
		for k := range contextVars {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString("\nGlobal context:\n")
		for _, k := range keys {
			fmt.Fprintf(&sb, "- %s: %s\n", k, contextVars[k])
		}
	}

	messages = append(messages, openai.Message{Role: "user", Content: sb.String()})
	return messages
}
