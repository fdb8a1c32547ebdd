package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

// DefaultBaseURL targets the hosted OpenAI API. Any OpenAI-compatible
// server (e.g. a local gateway) can be substituted via config.
const DefaultBaseURL = "https://api.openai.com/v1"

// Message represents a chat message in the OpenAI API format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Schema describes the expected JSON output structure for structured
// chat responses (response_format: json_schema, strict mode).
type Schema struct {
	Type                 string                    `json:"type"`
	Properties           map[string]SchemaProperty `json:"properties"`
	Required             []string                  `json:"required,omitempty"`
	AdditionalProperties bool                      `json:"additionalProperties"`
}

// SchemaProperty describes a single field within a Schema.
// Type is either a string or a []string (for nullable fields,
// e.g. ["string","null"]).
type SchemaProperty struct {
	Type        any      `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// Client communicates with an OpenAI-compatible API over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a Client for the given base URL and API key.
// An empty baseURL falls back to DefaultBaseURL.
func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 0,
		},
	}
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return c.httpClient.Do(req)
}

// apiError extracts a short error description from a non-2xx response body.
func apiError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error.Message != "" {
		return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, envelope.Error.Message)
	}
	return fmt.Errorf("%s: unexpected status %d", op, resp.StatusCode)
}

// TranscriptionRequest carries an audio payload for speech-to-text.
type TranscriptionRequest struct {
	Data        []byte
	Filename    string
	ContentType string
	Model       string
	Language    string // optional hint, e.g. "en"
}

// TranscriptionResult is the provider's transcription output.
type TranscriptionResult struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Transcribe sends audio to POST /audio/transcriptions and returns the
// transcript. verbose_json is requested so the detected language is included.
func (c *Client) Transcribe(ctx context.Context, req TranscriptionRequest) (TranscriptionResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := createFilePart(mw, req.Filename, req.ContentType)
	if err != nil {
		return TranscriptionResult{}, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(req.Data); err != nil {
		return TranscriptionResult{}, fmt.Errorf("writing audio payload: %w", err)
	}
	if err := mw.WriteField("model", req.Model); err != nil {
		return TranscriptionResult{}, err
	}
	if err := mw.WriteField("response_format", "verbose_json"); err != nil {
		return TranscriptionResult{}, err
	}
	if req.Language != "" {
		if err := mw.WriteField("language", req.Language); err != nil {
			return TranscriptionResult{}, err
		}
	}
	if err := mw.Close(); err != nil {
		return TranscriptionResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return TranscriptionResult{}, fmt.Errorf("creating transcription request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.do(httpReq)
	if err != nil {
		return TranscriptionResult{}, fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return TranscriptionResult{}, apiError("transcribe", resp)
	}

	var result TranscriptionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return TranscriptionResult{}, fmt.Errorf("decoding transcription response: %w", err)
	}
	return result, nil
}

// createFilePart adds a file part with an explicit Content-Type header;
// mime/multipart's CreateFormFile hardcodes application/octet-stream.
func createFilePart(mw *multipart.Writer, filename, contentType string) (io.Writer, error) {
	if contentType == "" {
		return mw.CreateFormFile("file", filename)
	}
	h := make(map[string][]string)
	h["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name="file"; filename=%q`, filename)}
	h["Content-Type"] = []string{contentType}
	return mw.CreatePart(h)
}

// chatRequest is the JSON body for POST /chat/completions.
type chatRequest struct {
	Model          string    `json:"model"`
	Messages       []Message `json:"messages"`
	ResponseFormat any       `json:"response_format,omitempty"`
}

type jsonSchemaFormat struct {
	Type       string         `json:"type"`
	JSONSchema jsonSchemaSpec `json:"json_schema"`
}

type jsonSchemaSpec struct {
	Name   string  `json:"name"`
	Strict bool    `json:"strict"`
	Schema *Schema `json:"schema"`
}

// chatResponse is the JSON returned by POST /chat/completions.
type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Chat sends messages to the given model and returns the assistant's response
// content. When jsonSchema is non-nil, a strict schema-conforming JSON reply
// is requested via response_format.
func (c *Client) Chat(ctx context.Context, model string, messages []Message, jsonSchema *Schema) (string, error) {
	cr := chatRequest{
		Model:    model,
		Messages: messages,
	}
	if jsonSchema != nil {
		cr.ResponseFormat = jsonSchemaFormat{
			Type: "json_schema",
			JSONSchema: jsonSchemaSpec{
				Name:   "extraction",
				Strict: true,
				Schema: jsonSchema,
			},
		}
	}

	body, err := json.Marshal(cr)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apiError("chat", resp)
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("chat: empty choices array")
	}
	return result.Choices[0].Message.Content, nil
}

// embedRequest is the JSON body for POST /embeddings.
type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// embedResponse is the JSON returned by POST /embeddings.
type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the embedding vector for the given text using the specified model.
func (c *Client) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: model, Input: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError("embed", resp)
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding embed response: %w", err)
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("embed: empty data array")
	}
	return result.Data[0].Embedding, nil
}
