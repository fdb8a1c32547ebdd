package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/murmur/internal/classify"
	"github.com/kalambet/murmur/internal/pipeline"
	"github.com/kalambet/murmur/internal/storage"
	"github.com/kalambet/murmur/internal/transcribe"
)

const maxRequestBodySize = 1 << 20 // 1MB
const maxAudioBodySize = 25 << 20  // provider upload cap

// defaultUserID is assumed when the caller sends no X-User-ID header,
// which covers single-user local deployments.
const defaultUserID = "local"

// VoicePipeline runs the full capture flow for audio or text input.
type VoicePipeline interface {
	Process(ctx context.Context, userID string, audio transcribe.Audio, contextVars map[string]string) (pipeline.Outcome, error)
	ProcessText(ctx context.Context, userID, text string, history []classify.Message, contextVars map[string]string) (pipeline.Outcome, error)
}

// Transcriber converts audio to text without classification.
type Transcriber interface {
	Transcribe(ctx context.Context, audio transcribe.Audio) (transcribe.Transcription, error)
}

// QueryEmbedder embeds recall queries for similarity search.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) []float32
}

type AppDeps struct {
	Store       *storage.Store
	Pipeline    VoicePipeline
	Transcriber Transcriber
	Embedder    QueryEmbedder
	Token       string // empty disables bearer auth
}

func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}

		r.Post("/v1/voice/transcribe", handleTranscribe(deps))
		r.Post("/v1/voice/process", handleProcessVoice(deps))
		r.Post("/v1/agent/classify", handleClassify(deps))
		r.Get("/v1/recall", handleRecall(deps))

		r.Get("/v1/context", handleListContext(deps))
		r.Get("/v1/context/{key}", handleGetContext(deps))
		r.Put("/v1/context/{key}", handleSetContext(deps))
		r.Delete("/v1/context/{key}", handleDeleteContext(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// userID resolves the caller identity. Identity is established upstream;
// the header carries an already-resolved user id.
func userID(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return defaultUserID
}

// readAudio extracts the uploaded audio file from a multipart form. The
// field is named "audio"; "file" is accepted as a fallback.
func readAudio(w http.ResponseWriter, r *http.Request) (transcribe.Audio, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBodySize)

	file, header, err := r.FormFile("audio")
	if err != nil {
		file, header, err = r.FormFile("file")
	}
	if err != nil {
		return transcribe.Audio{}, fmt.Errorf("audio file is required: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return transcribe.Audio{}, fmt.Errorf("reading audio upload: %w", err)
	}

	return transcribe.Audio{
		Data:        data,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
	}, nil
}

func handleTranscribe(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		audio, err := readAudio(w, r)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		tr, err := deps.Transcriber.Transcribe(r.Context(), audio)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "transcription failed: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"text":     tr.Text,
			"language": tr.Language,
		})
	}
}

func handleProcessVoice(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := userID(r)

		audio, err := readAudio(w, r)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		contextVars, err := deps.Store.AllContextValues(uid)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading user context: %v", err)
			return
		}

		outcome, err := deps.Pipeline.Process(r.Context(), uid, audio, contextVars)
		// Persistence is local, provider stages are upstream; the status
		// codes reflect who failed.
		if errors.Is(err, pipeline.ErrPersistence) {
			httpError(w, http.StatusInternalServerError, "api_error", "processing voice input: %v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "processing voice input: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(outcome)
	}
}

type classifyRequest struct {
	Text    string             `json:"text"`
	History []classify.Message `json:"history"`
}

func handleClassify(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req classifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Text == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "text is required")
			return
		}

		uid := userID(r)
		contextVars, err := deps.Store.AllContextValues(uid)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading user context: %v", err)
			return
		}

		outcome, err := deps.Pipeline.ProcessText(r.Context(), uid, req.Text, req.History, contextVars)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "processing text input: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(outcome)
	}
}

type recallResult struct {
	ID        string  `json:"id"`
	Content   string  `json:"content"`
	Category  string  `json:"category"`
	Score     float32 `json:"score"`
	CreatedAt string  `json:"created_at"`
}

func handleRecall(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		if query == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "q is required")
			return
		}
		limit := parseIntParam(r, "limit", 5, 50)

		vec := deps.Embedder.Embed(r.Context(), query)
		if len(vec) == 0 {
			httpError(w, http.StatusBadGateway, "api_error", "failed to embed query")
			return
		}

		scored, err := deps.Store.SearchSimilar(userID(r), vec, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "search failed: %v", err)
			return
		}

		results := make([]recallResult, len(scored))
		for i, s := range scored {
			results[i] = recallResult{
				ID:        s.ID,
				Content:   s.Content,
				Category:  s.Category,
				Score:     s.Score,
				CreatedAt: s.CreatedAt.Format(time.RFC3339),
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(results)
	}
}

func handleListContext(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		values, err := deps.Store.AllContextValues(userID(r))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing context: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(values)
	}
}

func handleGetContext(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")

		value, err := deps.Store.GetContextValue(userID(r), key)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "context key not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reading context: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"key": key, "value": value})
	}
}

type setContextRequest struct {
	Value       string `json:"value"`
	Description string `json:"description"`
}

func handleSetContext(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		key := chi.URLParam(r, "key")

		var req setContextRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Value == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "value is required")
			return
		}

		if err := deps.Store.SetContextValue(userID(r), key, req.Value, req.Description); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "saving context: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "updated"})
	}
}

func handleDeleteContext(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")

		err := deps.Store.DeleteContextValue(userID(r), key)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "context key not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "deleting context: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
