package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gabai/gabai/internal/metrics"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 30 * time.Second
	// maxErrorBody caps how much of a failed response is kept in APIError.
	maxErrorBody = 4 << 10
)

// ErrEmptyResponse is returned when the provider answers 200 without choices.
var ErrEmptyResponse = errors.New("llm: empty response")

// Client talks to an OpenAI-compatible API. Calls are never retried.
type Client struct {
	apiKey     string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a client. An empty baseURL selects the OpenAI API; a zero
// timeout selects 30s.
func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

// Chat sends a chat completion and returns the first choice's content.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (string, error) {
	msgs := make([]wireMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = wireMessage{Role: m.Role, Content: m.Content}
	}
	body := chatBody{
		Model:       req.Model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	return c.complete(ctx, "chat", body)
}

// Vision asks a multimodal model about a single image given as a URL or a
// data: URL, and returns the text answer.
func (c *Client) Vision(ctx context.Context, model, prompt, imageDataURL string) (string, error) {
	body := chatBody{
		Model: model,
		Messages: []wireMessage{{
			Role: RoleUser,
			Content: []contentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &imageURL{URL: imageDataURL}},
			},
		}},
		ResponseFormat: &responseFormat{Type: "json_object"},
	}
	return c.complete(ctx, "vision", body)
}

func (c *Client) complete(ctx context.Context, op string, body chatBody) (text string, err error) {
	start := time.Now()
	defer func() { metrics.ObserveLLM(op, start, err) }()

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.setAuth(httpReq)

	var resp chatResponse
	if err := c.do(httpReq, op, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// Transcribe uploads audio to the transcription endpoint and returns the text.
func (c *Client) Transcribe(ctx context.Context, model, filename string, audio io.Reader) (text string, err error) {
	start := time.Now()
	defer func() { metrics.ObserveLLM("transcribe", start, err) }()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("model", model); err != nil {
		return "", err
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(fw, audio); err != nil {
		return "", fmt.Errorf("reading audio: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	c.setAuth(httpReq)

	var resp transcriptionResponse
	if err := c.do(httpReq, "transcribe", &resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

func (c *Client) do(req *http.Request, op string, v any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing %s request: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding %s response: %w", op, err)
	}
	return nil
}

func (c *Client) setAuth(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}
