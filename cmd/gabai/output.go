package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gabai/gabai/internal/assistant"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+fmt.Sprintf(format, args...)))
}

func printError(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+fmt.Sprintf(format, args...)))
}

func printWarning(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+fmt.Sprintf(format, args...)))
}

func printStatus(label string, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s %s\n", colorize(colorBold, label+":"), fmt.Sprintf(format, args...))
}

// Wire shapes of the API responses the CLI renders.

type turnOutcome struct {
	Type   string `json:"type"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

type turnResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	ConversationID string        `json:"conversationId"`
	Suggestions    []string      `json:"suggestions"`
	Outcomes       []turnOutcome `json:"outcomes"`
}

type listItem struct {
	Name      string   `json:"name"`
	Category  string   `json:"category"`
	Completed bool     `json:"completed"`
	Quantity  *float64 `json:"quantity"`
	Unit      string   `json:"unit"`
}

type smartList struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Type     string     `json:"type"`
	IsShared bool       `json:"isShared"`
	Items    []listItem `json:"items"`
}

type reminder struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	DueDate    time.Time `json:"dueDate"`
	Category   string    `json:"category"`
	Completed  bool      `json:"completed"`
	Recurrence string    `json:"recurrence"`
}

func renderTurn(w io.Writer, t turnResponse) {
	fmt.Fprintln(w, t.Message.Content)
	for _, o := range t.Outcomes {
		mark, color := "✓", colorGreen
		if o.Status != assistant.StatusOK {
			mark, color = "✗", colorRed
		}
		line := fmt.Sprintf("%s %s", mark, strings.ReplaceAll(o.Type, "_", " "))
		if o.Error != "" {
			line += ": " + o.Error
		}
		fmt.Fprintln(w, colorize(color, line))
	}
	if len(t.Suggestions) > 0 {
		fmt.Fprintln(w, colorize(colorDim, "Try: "+strings.Join(t.Suggestions, " | ")))
	}
}

func renderLists(w io.Writer, ls []smartList) {
	if len(ls) == 0 {
		fmt.Fprintln(w, "No lists yet.")
		return
	}
	for i, l := range ls {
		if i > 0 {
			fmt.Fprintln(w)
		}
		title := fmt.Sprintf("%s (%s)", l.Name, l.Type)
		if l.IsShared {
			title += " [shared]"
		}
		fmt.Fprintln(w, colorize(colorBold, title))
		if len(l.Items) == 0 {
			fmt.Fprintln(w, "  (empty)")
			continue
		}
		for _, it := range l.Items {
			box := "[ ]"
			if it.Completed {
				box = "[x]"
			}
			name := it.Name
			if it.Quantity != nil {
				name = strings.Join(strings.Fields(fmt.Sprintf("%g %s %s", *it.Quantity, it.Unit, it.Name)), " ")
			}
			fmt.Fprintf(w, "  %s %s %s\n", box, name, colorize(colorCyan, it.Category))
		}
	}
}

func renderReminders(w io.Writer, rs []reminder, loc *time.Location, pendingOnly bool) {
	shown := 0
	for _, r := range rs {
		if pendingOnly && r.Completed {
			continue
		}
		box := "[ ]"
		if r.Completed {
			box = "[x]"
		}
		line := fmt.Sprintf("  %s %s  %s", box, r.DueDate.In(loc).Format("Mon Jan 2 15:04"), r.Title)
		if r.Recurrence != "" {
			line += colorize(colorDim, " ("+r.Recurrence+")")
		}
		fmt.Fprintln(w, line)
		shown++
	}
	if shown == 0 {
		fmt.Fprintln(w, "No reminders.")
	}
}
