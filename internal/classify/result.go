package classify

import "time"

// Intent is the closed classification of a user utterance.
type Intent string

const (
	IntentNote     Intent = "NOTE"
	IntentReminder Intent = "REMINDER"
	IntentQuery    Intent = "QUERY"
)

// Valid reports whether i is one of the three known intents.
func (i Intent) Valid() bool {
	return i == IntentNote || i == IntentReminder || i == IntentQuery
}

// Message is a single conversation turn passed as classification history.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Result is the structured classification of one input. It is created per
// invocation and never mutated; identity is assigned by storage if persisted.
type Result struct {
	Intent                Intent     `json:"intent"`
	Content               string     `json:"content"`
	Category              string     `json:"category"`
	DueDate               *time.Time `json:"due_date,omitempty"`
	IsComplete            bool       `json:"is_complete"`
	ClarificationQuestion string     `json:"clarification_question,omitempty"`
}

// fallbackClarification is asked when the extraction provider fails and the
// input is kept as an unclassified note.
const fallbackClarification = "I had trouble processing that. Could you please rephrase?"

// defaultClarification is used when the provider marks a result incomplete
// but omits its own follow-up question.
const defaultClarification = "Could you share a bit more detail so I can act on this?"

// Fallback returns the deterministic result used whenever structured
// extraction fails: the raw input is preserved as an uncategorized,
// incomplete note. Every failure path must go through this constructor so
// the fallback contract cannot drift.
func Fallback(text string) Result {
	return Result{
		Intent:                IntentNote,
		Content:               text,
		Category:              "Uncategorized",
		IsComplete:            false,
		ClarificationQuestion: fallbackClarification,
	}
}
