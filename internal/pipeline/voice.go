package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/murmur/internal/classify"
	"github.com/kalambet/murmur/internal/storage"
	"github.com/kalambet/murmur/internal/transcribe"
)

// Stage sentinels. Callers match with errors.Is to tell an upstream
// provider failure apart from a local persistence failure.
var (
	ErrTranscription = errors.New("transcription failed")
	ErrPersistence   = errors.New("persisting entry")
)

// Transcriber converts an audio payload to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio transcribe.Audio) (transcribe.Transcription, error)
}

// Classifier produces a structured classification. It cannot fail observably:
// provider errors degrade to the classify fallback result.
type Classifier interface {
	Classify(ctx context.Context, text string, contextVars map[string]string) classify.Result
	ClassifyWithHistory(ctx context.Context, text string, history []classify.Message, contextVars map[string]string) classify.Result
}

// Embedder returns an embedding vector, or an empty vector when none is
// available.
type Embedder interface {
	Embed(ctx context.Context, text string) []float32
}

// EntryStore is the persistence gateway consumed by the pipeline. It is
// called at most once per NOTE classification.
type EntryStore interface {
	CreateEntry(e storage.Entry) error
}

// Outcome is what one pipeline invocation hands back to the caller. EntryID
// is set only when a NOTE was persisted.
type Outcome struct {
	Transcript string          `json:"transcript,omitempty"`
	Language   string          `json:"language,omitempty"`
	Result     classify.Result `json:"result"`
	EntryID    string          `json:"entry_id,omitempty"`
}

// Pipeline sequences transcription, classification, and the conditional
// embedding/persistence step. Each invocation is independent; the pipeline
// holds no per-invocation state and performs no compensation on failure.
type Pipeline struct {
	transcriber Transcriber
	classifier  Classifier
	embedder    Embedder
	entries     EntryStore
}

// New creates a Pipeline wired to all stage dependencies.
func New(transcriber Transcriber, classifier Classifier, embedder Embedder, entries EntryStore) *Pipeline {
	return &Pipeline{
		transcriber: transcriber,
		classifier:  classifier,
		embedder:    embedder,
		entries:     entries,
	}
}

// Process runs the full voice pipeline for one audio payload:
//
//	audio -> transcript -> classification -> (NOTE only) embedding + entry
//
// Transcription and persistence failures are fatal to the invocation;
// classification and embedding failures degrade per their own contracts.
// REMINDER and QUERY results are returned without persistence; storing
// reminders is the caller's responsibility.
func (p *Pipeline) Process(ctx context.Context, userID string, audio transcribe.Audio, contextVars map[string]string) (Outcome, error) {
	start := time.Now()

	tr, err := p.transcriber.Transcribe(ctx, audio)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", ErrTranscription, err)
	}

	res := p.classifier.Classify(ctx, tr.Text, contextVars)

	entryID, err := p.persistNote(ctx, userID, res)
	if err != nil {
		return Outcome{}, err
	}

	slog.Debug("voice pipeline complete",
		"user_id", userID,
		"intent", res.Intent,
		"persisted", entryID != "",
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return Outcome{
		Transcript: tr.Text,
		Language:   tr.Language,
		Result:     res,
		EntryID:    entryID,
	}, nil
}

// ProcessText runs the pipeline on already-transcribed text, optionally with
// conversation history for multi-turn clarification flows.
func (p *Pipeline) ProcessText(ctx context.Context, userID, text string, history []classify.Message, contextVars map[string]string) (Outcome, error) {
	var res classify.Result
	if len(history) > 0 {
		res = p.classifier.ClassifyWithHistory(ctx, text, history, contextVars)
	} else {
		res = p.classifier.Classify(ctx, text, contextVars)
	}

	entryID, err := p.persistNote(ctx, userID, res)
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{Result: res, EntryID: entryID}, nil
}

// persistNote embeds and stores NOTE results. An empty embedding does not
// abort persistence; the entry is stored without a search-ready vector.
func (p *Pipeline) persistNote(ctx context.Context, userID string, res classify.Result) (string, error) {
	if res.Intent != classify.IntentNote {
		return "", nil
	}

	vec := p.embedder.Embed(ctx, res.Content)
	if len(vec) == 0 {
		slog.Warn("storing entry without embedding", "user_id", userID)
	}

	entry := storage.Entry{
		ID:        uuid.New().String(),
		UserID:    userID,
		Content:   res.Content,
		Intent:    string(res.Intent),
		Category:  res.Category,
		Embedding: vec,
		CreatedAt: time.Now().UTC(),
	}
	if err := p.entries.CreateEntry(entry); err != nil {
		return "", fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return entry.ID, nil
}
