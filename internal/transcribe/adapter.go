package transcribe

import (
	"context"
	"fmt"

	"github.com/kalambet/murmur/internal/openai"
)

// SpeechClient is the speech-to-text provider dependency.
type SpeechClient interface {
	Transcribe(ctx context.Context, req openai.TranscriptionRequest) (openai.TranscriptionResult, error)
}

// Audio is one uploaded audio payload with its metadata hints.
type Audio struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Transcription is the text produced from an audio payload.
type Transcription struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Adapter converts audio into text by delegating to an external speech-to-text
// provider. It holds no state across calls and performs no retries; format and
// duration validation are the provider's responsibility.
type Adapter struct {
	client   SpeechClient
	model    string
	language string // optional hint forwarded to the provider
}

// NewAdapter creates an Adapter using the given provider client and model.
func NewAdapter(client SpeechClient, model, language string) *Adapter {
	return &Adapter{client: client, model: model, language: language}
}

// Transcribe converts the audio payload to text. Any provider error
// propagates unchanged as a transcription failure.
func (a *Adapter) Transcribe(ctx context.Context, audio Audio) (Transcription, error) {
	if len(audio.Data) == 0 {
		return Transcription{}, fmt.Errorf("empty audio payload")
	}

	res, err := a.client.Transcribe(ctx, openai.TranscriptionRequest{
		Data:        audio.Data,
		Filename:    audio.Filename,
		ContentType: audio.ContentType,
		Model:       a.model,
		Language:    a.language,
	})
	if err != nil {
		return Transcription{}, fmt.Errorf("transcribing audio: %w", err)
	}

	return Transcription{Text: res.Text, Language: res.Language}, nil
}
