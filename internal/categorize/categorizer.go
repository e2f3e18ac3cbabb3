// Package categorize assigns taxonomy categories to list items.
package categorize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gabai/gabai/internal/llm"
	"github.com/gabai/gabai/internal/metrics"
)

// Sources reported by Resolve.
const (
	SourceLLM      = "llm"
	SourceKeyword  = "keyword"
	SourceFallback = "fallback"
)

// Chatter is the interface for chat completion.
type Chatter interface {
	Chat(ctx context.Context, req llm.ChatRequest) (string, error)
}

// Categorizer classifies shopping items with a remote model and every other
// list type with local keyword dictionaries.
type Categorizer struct {
	client Chatter
	model  string
}

func New(client Chatter, model string) *Categorizer {
	return &Categorizer{client: client, model: model}
}

var systemPrompt = "You categorize grocery and household shopping items. " +
	"Answer with exactly one of these categories and nothing else: " +
	strings.Join(ShoppingCategories, ", ") + "."

// Categorize returns the category for itemName. Shopping items go to the
// remote model; its answer is validated against ShoppingCategories and
// anything unrecognised becomes "Other". A failed remote call is returned as
// an error and the caller is expected to use FallbackCategory.
func (c *Categorizer) Categorize(ctx context.Context, itemName, listType string) (string, error) {
	if listType != TypeShopping {
		return FallbackCategory(itemName, listType), nil
	}

	zero := 0.0
	answer, err := c.client.Chat(ctx, llm.ChatRequest{
		Model: c.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: itemName},
		},
		Temperature: &zero,
		MaxTokens:   10,
	})
	if err != nil {
		return "", fmt.Errorf("categorizing %q: %w", itemName, err)
	}
	return normalizeAnswer(answer), nil
}

// normalizeAnswer maps a model answer onto the shopping taxonomy.
func normalizeAnswer(answer string) string {
	answer = strings.TrimSpace(answer)
	answer = strings.Trim(answer, " \t\r\n\"'`.,;:!*")
	if c, ok := InTaxonomy(TypeShopping, answer); ok {
		return c
	}
	return "Other"
}

// Result is a category plus where it came from.
type Result struct {
	Category string
	Source   string
}

// Resolve never fails: remote errors are logged and replaced with the local
// fallback, reported as SourceFallback.
func (c *Categorizer) Resolve(ctx context.Context, itemName, listType string) Result {
	var res Result
	if listType != TypeShopping {
		res = Result{Category: FallbackCategory(itemName, listType), Source: SourceKeyword}
	} else if cat, err := c.Categorize(ctx, itemName, listType); err != nil {
		slog.Warn("remote categorization failed, using keyword fallback", "item", itemName, "error", err)
		res = Result{Category: FallbackCategory(itemName, listType), Source: SourceFallback}
	} else {
		res = Result{Category: cat, Source: SourceLLM}
	}
	metrics.Categorized(listType, res.Source)
	return res
}
