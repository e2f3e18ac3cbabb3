// Package voice turns speech into text through the LLM transcription endpoint
// and text into speech through ElevenLabs.
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gabai/gabai/internal/llm"
	"github.com/gabai/gabai/internal/metrics"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	ttsModel       = "eleven_multilingual_v2"
	maxSpeakChars  = 5000
	maxErrorBody   = 4 << 10
)

var (
	ErrEmptyText     = errors.New("text is required")
	ErrTextTooLong   = fmt.Errorf("text exceeds %d characters", maxSpeakChars)
	ErrNotConfigured = errors.New("text-to-speech is not configured")
)

// Transcriber is the subset of llm.Client used for speech-to-text.
type Transcriber interface {
	Transcribe(ctx context.Context, model, filename string, audio io.Reader) (string, error)
}

type Service struct {
	transcriber     Transcriber
	transcribeModel string

	apiKey     string
	baseURL    string
	voiceID    string
	timeout    time.Duration
	httpClient *http.Client
}

type Config struct {
	TranscribeModel string
	BaseURL         string
	APIKey          string
	VoiceID         string
	Timeout         time.Duration
}

func NewService(t Transcriber, cfg Config) *Service {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Service{
		transcriber:     t,
		transcribeModel: cfg.TranscribeModel,
		apiKey:          cfg.APIKey,
		baseURL:         strings.TrimRight(base, "/"),
		voiceID:         cfg.VoiceID,
		timeout:         timeout,
		httpClient:      &http.Client{},
	}
}

// Transcribe returns the text spoken in audio.
func (s *Service) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	if filename == "" {
		filename = "audio.webm"
	}
	text, err := s.transcriber.Transcribe(ctx, s.transcribeModel, filename, audio)
	if err != nil {
		return "", fmt.Errorf("transcribing audio: %w", err)
	}
	return text, nil
}

type speakBody struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Speak synthesizes text and returns MP3 audio.
func (s *Service) Speak(ctx context.Context, text string) (audio []byte, err error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if len([]rune(text)) > maxSpeakChars {
		return nil, ErrTextTooLong
	}
	if s.apiKey == "" {
		return nil, ErrNotConfigured
	}

	start := time.Now()
	defer func() { metrics.ObserveLLM("speak", start, err) }()

	data, err := json.Marshal(speakBody{Text: text, ModelID: ttsModel})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", s.baseURL, s.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing speak request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &llm.APIError{Op: "speak", Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	audio, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading audio: %w", err)
	}
	return audio, nil
}
