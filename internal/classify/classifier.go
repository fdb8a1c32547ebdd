package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/murmur/internal/openai"
)

const classifyTimeout = 30 * time.Second

// Chatter is the structured-extraction capability the classifier depends on:
// a function from role-tagged messages plus a target schema to a
// schema-conforming JSON value or an error. Any backend that speaks this
// contract can be substituted.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []openai.Message, jsonSchema *openai.Schema) (string, error)
}

// Clock abstracts the invocation time for testability. Relative dates always
// resolve against Clock.Now(), never against an ambient clock.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Classifier turns free-form user input into a structured Result using an
// LLM with schema-enforced output. It never returns an error: any provider
// or schema failure degrades to the deterministic Fallback result.
type Classifier struct {
	client Chatter
	model  string
	clock  Clock
}

// NewClassifier creates a Classifier using the given extraction backend and
// model name.
func NewClassifier(client Chatter, model string) *Classifier {
	return &Classifier{client: client, model: model, clock: realClock{}}
}

// NewClassifierWithClock creates a Classifier with a custom clock (for testing).
func NewClassifierWithClock(client Chatter, model string, clock Clock) *Classifier {
	return &Classifier{client: client, model: model, clock: clock}
}

// Classify classifies a single input with optional caller-supplied context
// variables (an open key/value mapping, read-only to the classifier).
func (c *Classifier) Classify(ctx context.Context, text string, contextVars map[string]string) Result {
	return c.classify(ctx, text, nil, contextVars)
}

// ClassifyWithHistory classifies input with prior conversation turns for
// context-aware re-classification, e.g. when the user answers a previously
// asked clarification question.
func (c *Classifier) ClassifyWithHistory(ctx context.Context, text string, history []Message, contextVars map[string]string) Result {
	return c.classify(ctx, text, history, contextVars)
}

func (c *Classifier) classify(ctx context.Context, text string, history []Message, contextVars map[string]string) Result {
	if text == "" {
		return Fallback(text)
	}

	ctx, cancel := context.WithTimeout(ctx, classifyTimeout)
	defer cancel()

	now := c.clock.Now()
	messages := BuildPrompt(text, history, contextVars, now)

	raw, err := c.client.Chat(ctx, c.model, messages, resultSchema())
	if err != nil {
		slog.Warn("classification chat failed", "error", err)
		return Fallback(text)
	}

	res, err := parseResult(raw)
	if err != nil {
		slog.Warn("classification response rejected", "error", err, "response", raw)
		return Fallback(text)
	}

	return normalize(res, text, now)
}

// wireResult mirrors the provider's JSON reply. due_date arrives as an ISO
// string (or null) and is parsed separately.
type wireResult struct {
	Intent                string  `json:"intent"`
	Content               string  `json:"content"`
	Category              string  `json:"category"`
	DueDate               *string `json:"due_date"`
	IsComplete            bool    `json:"is_complete"`
	ClarificationQuestion *string `json:"clarification_question"`
}

// dueDateLayouts are accepted in decreasing order of specificity; providers
// sometimes omit the timezone or the time entirely.
var dueDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseResult validates the raw provider reply against the Result schema.
// A malformed payload or unknown intent is a schema violation and yields an
// error, which callers treat identically to a provider failure.
func parseResult(raw string) (Result, error) {
	var w wireResult
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return Result{}, fmt.Errorf("unmarshalling result: %w", err)
	}

	intent := Intent(w.Intent)
	if !intent.Valid() {
		return Result{}, fmt.Errorf("unknown intent %q", w.Intent)
	}

	res := Result{
		Intent:     intent,
		Content:    w.Content,
		Category:   w.Category,
		IsComplete: w.IsComplete,
	}
	if w.ClarificationQuestion != nil {
		res.ClarificationQuestion = *w.ClarificationQuestion
	}
	if w.DueDate != nil && *w.DueDate != "" {
		t, err := parseDueDate(*w.DueDate)
		if err != nil {
			return Result{}, err
		}
		res.DueDate = &t
	}
	return res, nil
}

func parseDueDate(s string) (time.Time, error) {
	for _, layout := range dueDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable due_date %q", s)
}

// normalize enforces the Result invariants regardless of what the provider
// returned: content is never empty for non-empty input, due dates exist only
// on reminders, and a clarification question is present exactly when the
// result is incomplete. When the provider omits a reminder's due date but the
// input states a recognizable timeframe, the local resolver supplies it.
func normalize(res Result, text string, now time.Time) Result {
	if res.Content == "" {
		res.Content = text
	}
	if res.Category == "" {
		res.Category = "Uncategorized"
	}

	if res.Intent != IntentReminder {
		res.DueDate = nil
	} else if res.DueDate == nil {
		if due, ok := ResolveDueDate(text, now); ok {
			res.DueDate = &due
		}
	}

	if res.IsComplete {
		res.ClarificationQuestion = ""
	} else if res.ClarificationQuestion == "" {
		res.ClarificationQuestion = defaultClarification
	}
	return res
}

// resultSchema returns the strict JSON schema the provider must conform to.
func resultSchema() *openai.Schema {
	return &openai.Schema{
		Type: "object",
		Properties: map[string]openai.SchemaProperty{
			"intent": {
				Type:        "string",
				Description: "Classification of the input",
				Enum:        []string{string(IntentNote), string(IntentReminder), string(IntentQuery)},
			},
			"content":  {Type: "string", Description: "Cleaned-up version of the input"},
			"category": {Type: "string", Description: "Short topic label, e.g. Work, Personal, Health"},
			"due_date": {
				Type:        []string{"string", "null"},
				Description: "ISO 8601 due datetime for reminders; null otherwise",
			},
			"is_complete": {Type: "boolean", Description: "Whether the instruction has enough detail to act on"},
			"clarification_question": {
				Type:        []string{"string", "null"},
				Description: "Follow-up question when is_complete is false; null otherwise",
			},
		},
		Required: []string{"intent", "content", "category", "due_date", "is_complete", "clarification_question"},
	}
}
