package transcribe

import (
	"context"
	"errors"
	"testing"

	"github.com/kalambet/murmur/internal/openai"
)

type mockSpeech struct {
	result openai.TranscriptionResult
	err    error
	got    *openai.TranscriptionRequest
}

func (m *mockSpeech) Transcribe(ctx context.Context, req openai.TranscriptionRequest) (openai.TranscriptionResult, error) {
	m.got = &req
	return m.result, m.err
}

func TestTranscribe(t *testing.T) {
	mock := &mockSpeech{result: openai.TranscriptionResult{Text: "call mom tomorrow", Language: "english"}}
	a := NewAdapter(mock, "whisper-1", "en")

	got, err := a.Transcribe(context.Background(), Audio{
		Data:        []byte("audio-bytes"),
		Filename:    "memo.webm",
		ContentType: "audio/webm",
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Text != "call mom tomorrow" {
		t.Errorf("Text = %q, want transcript", got.Text)
	}
	if got.Language != "english" {
		t.Errorf("Language = %q, want english", got.Language)
	}
	if mock.got.Model != "whisper-1" || mock.got.Language != "en" {
		t.Errorf("request = %+v, want model and language hint forwarded", mock.got)
	}
	if mock.got.Filename != "memo.webm" || mock.got.ContentType != "audio/webm" {
		t.Errorf("request = %+v, want filename and content type forwarded", mock.got)
	}
}

func TestTranscribe_EmptyAudio(t *testing.T) {
	mock := &mockSpeech{}
	a := NewAdapter(mock, "whisper-1", "")

	if _, err := a.Transcribe(context.Background(), Audio{Filename: "empty.wav"}); err == nil {
		t.Fatal("Transcribe: want error for empty payload, got nil")
	}
	if mock.got != nil {
		t.Error("provider should not be called for empty payload")
	}
}

func TestTranscribe_ProviderErrorPropagates(t *testing.T) {
	provErr := errors.New("quota exceeded")
	mock := &mockSpeech{err: provErr}
	a := NewAdapter(mock, "whisper-1", "")

	_, err := a.Transcribe(context.Background(), Audio{Data: []byte("x"), Filename: "a.wav"})
	if !errors.Is(err, provErr) {
		t.Errorf("error = %v, want wrapped provider error", err)
	}
}
