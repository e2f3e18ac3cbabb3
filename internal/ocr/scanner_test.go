package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/gabai/gabai/internal/llm"
)

type mockModel struct {
	chatReply   string
	visionReply string
	err         error
	chatReqs    []llm.ChatRequest
	visionURLs  []string
}

func (m *mockModel) Chat(ctx context.Context, req llm.ChatRequest) (string, error) {
	m.chatReqs = append(m.chatReqs, req)
	return m.chatReply, m.err
}

func (m *mockModel) Vision(ctx context.Context, model, prompt, imageDataURL string) (string, error) {
	m.visionURLs = append(m.visionURLs, imageDataURL)
	return m.visionReply, m.err
}

// buildPDF assembles a one-page PDF whose content stream shows lines of text.
func buildPDF(lines ...string) []byte {
	var content strings.Builder
	content.WriteString("BT /F1 12 Tf 72 720 Td 14 TL\n")
	for _, l := range lines {
		fmt.Fprintf(&content, "(%s) Tj T*\n", l)
	}
	content.WriteString("ET")

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", content.Len(), content.String()),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestExtractPDFText(t *testing.T) {
	text, err := ExtractPDFText(buildPDF("Ada Lovelace", "Analytical Engines Ltd"))
	if err != nil {
		t.Fatalf("ExtractPDFText: %v", err)
	}
	if !strings.Contains(text, "Ada Lovelace") || !strings.Contains(text, "Analytical Engines Ltd") {
		t.Errorf("text = %q", text)
	}
}

func TestExtractPDFText_Invalid(t *testing.T) {
	if _, err := ExtractPDFText([]byte("%PDF-1.4\ngarbage")); err == nil {
		t.Error("expected error for truncated pdf")
	}
	if _, err := ExtractPDFText([]byte("hello")); err == nil {
		t.Error("expected error for non-pdf")
	}
}

func TestScan_PDFUsesChatModel(t *testing.T) {
	m := &mockModel{chatReply: `{"name":" Ada Lovelace ","company":"Analytical Engines","email":"ADA@EXAMPLE.COM"}`}
	s := NewScanner(m, "vision-model", "chat-model")

	card, err := s.Scan(context.Background(), buildPDF("Ada Lovelace", "ada@example.com"))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	want := Card{Name: "Ada Lovelace", Company: "Analytical Engines", Email: "ada@example.com"}
	if card != want {
		t.Errorf("card = %+v, want %+v", card, want)
	}
	if len(m.chatReqs) != 1 || len(m.visionURLs) != 0 {
		t.Fatalf("chat calls = %d, vision calls = %d", len(m.chatReqs), len(m.visionURLs))
	}
	req := m.chatReqs[0]
	if req.Model != "chat-model" || !req.JSON || !strings.Contains(req.Messages[1].Content, "Ada Lovelace") {
		t.Errorf("chat request = %+v", req)
	}
}

func TestScan_ImageUsesVision(t *testing.T) {
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	m := &mockModel{visionReply: "```json\n{\"name\":\"Grace Hopper\",\"phone\":\"+1 555 0100\"}\n```"}
	s := NewScanner(m, "vision-model", "chat-model")

	card, err := s.Scan(context.Background(), png)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if card.Name != "Grace Hopper" || card.Phone != "+1 555 0100" {
		t.Errorf("card = %+v", card)
	}
	if len(m.visionURLs) != 1 || !strings.HasPrefix(m.visionURLs[0], "data:image/png;base64,") {
		t.Errorf("vision urls = %v", m.visionURLs)
	}
}

func TestScan_Errors(t *testing.T) {
	s := NewScanner(&mockModel{}, "v", "c")
	if _, err := s.Scan(context.Background(), []byte("just some text")); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("text file = %v, want ErrUnsupportedType", err)
	}

	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	failing := NewScanner(&mockModel{err: errors.New("503")}, "v", "c")
	if _, err := failing.Scan(context.Background(), png); err == nil {
		t.Error("expected upstream error")
	}

	empty := NewScanner(&mockModel{visionReply: `{"notes":"blurry"}`}, "v", "c")
	if _, err := empty.Scan(context.Background(), png); !errors.Is(err, ErrNoContact) {
		t.Errorf("empty card = %v, want ErrNoContact", err)
	}

	prose := NewScanner(&mockModel{visionReply: "I can't read this card."}, "v", "c")
	if _, err := prose.Scan(context.Background(), png); !errors.Is(err, ErrNoContact) {
		t.Errorf("prose reply = %v, want ErrNoContact", err)
	}
}
