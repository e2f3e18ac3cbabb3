// Package ocr extracts contact details from business card images and PDFs.
package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/gabai/gabai/internal/llm"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrNoText          = errors.New("no text found in document")
	ErrNoContact       = errors.New("no contact details found")
)

// maxPDFTextChars bounds the extracted text sent to the model.
const maxPDFTextChars = 8000

const cardPrompt = `Extract the contact details from this business card. Respond with ONLY a JSON object with these string fields (use "" when absent): "name", "company", "title", "email", "phone", "website", "address", "notes".`

// Model is the subset of llm.Client the scanner uses.
type Model interface {
	Chat(ctx context.Context, req llm.ChatRequest) (string, error)
	Vision(ctx context.Context, model, prompt, imageDataURL string) (string, error)
}

// Card is the contact extracted from a scan.
type Card struct {
	Name    string `json:"name"`
	Company string `json:"company"`
	Title   string `json:"title"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Website string `json:"website"`
	Address string `json:"address"`
	Notes   string `json:"notes"`
}

func (c Card) empty() bool {
	return c.Name == "" && c.Company == "" && c.Email == "" && c.Phone == ""
}

// Scanner routes images to the vision model and PDFs through text
// extraction plus the chat model.
type Scanner struct {
	model       Model
	visionModel string
	chatModel   string
}

func NewScanner(model Model, visionModel, chatModel string) *Scanner {
	return &Scanner{model: model, visionModel: visionModel, chatModel: chatModel}
}

// Scan sniffs the content type of data and extracts a Card.
func (s *Scanner) Scan(ctx context.Context, data []byte) (Card, error) {
	contentType := http.DetectContentType(data)
	switch {
	case contentType == "application/pdf":
		return s.scanPDF(ctx, data)
	case isImage(contentType):
		return s.scanImage(ctx, contentType, data)
	default:
		return Card{}, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
}

func isImage(ct string) bool {
	switch ct {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	}
	return false
}

func (s *Scanner) scanImage(ctx context.Context, contentType string, data []byte) (Card, error) {
	url := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
	out, err := s.model.Vision(ctx, s.visionModel, cardPrompt, url)
	if err != nil {
		return Card{}, fmt.Errorf("reading card image: %w", err)
	}
	return parseCard(out)
}

func (s *Scanner) scanPDF(ctx context.Context, data []byte) (Card, error) {
	text, err := ExtractPDFText(data)
	if err != nil {
		return Card{}, err
	}
	if r := []rune(text); len(r) > maxPDFTextChars {
		text = string(r[:maxPDFTextChars])
	}

	zero := 0.0
	out, err := s.model.Chat(ctx, llm.ChatRequest{
		Model: s.chatModel,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: cardPrompt},
			{Role: llm.RoleUser, Content: text},
		},
		JSON:        true,
		Temperature: &zero,
	})
	if err != nil {
		return Card{}, fmt.Errorf("reading card text: %w", err)
	}
	return parseCard(out)
}

// ExtractPDFText returns the text layer of a PDF. Scanned PDFs without a
// text layer return ErrNoText.
func ExtractPDFText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("parsing pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(strings.ToValidUTF8(string(b), ""))
	if text == "" || !utf8.ValidString(text) {
		return "", ErrNoText
	}
	return text, nil
}

func parseCard(raw string) (Card, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")

	var c Card
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Card{}, fmt.Errorf("%w: model reply is not JSON: %v", ErrNoContact, err)
	}
	c = Card{
		Name:    strings.TrimSpace(c.Name),
		Company: strings.TrimSpace(c.Company),
		Title:   strings.TrimSpace(c.Title),
		Email:   strings.ToLower(strings.TrimSpace(c.Email)),
		Phone:   strings.TrimSpace(c.Phone),
		Website: strings.TrimSpace(c.Website),
		Address: strings.TrimSpace(c.Address),
		Notes:   strings.TrimSpace(c.Notes),
	}
	if c.empty() {
		return Card{}, ErrNoContact
	}
	return c, nil
}
