package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gabai/gabai/internal/assistant"
	"github.com/gabai/gabai/internal/calendar"
	"github.com/gabai/gabai/internal/lists"
	"github.com/gabai/gabai/internal/storage"
)

// MCPDeps holds dependencies for the MCP server. Every tool acts as UserID.
type MCPDeps struct {
	Store       *storage.Store
	Resolver    ListResolver
	Categorizer ItemCategorizer
	Assistant   TurnHandler // optional; if nil, the chat tool returns an error
	UserID      string
	Location    *time.Location
}

// NewMCPServer creates an MCP server with all gabai tools registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	s := server.NewMCPServer(
		"gabai",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("gabai: personal assistant with smart shopping/to-do lists and reminders."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("add_to_list",
			mcp.WithDescription("Add an item to the user's smart list. The list and category are chosen automatically unless given."),
			mcp.WithString("item", mcp.Description("Item name, e.g. \"almonds\""), mcp.Required()),
			mcp.WithString("list_type", mcp.Description("shopping, todo, punch_list or waiting_list; inferred when omitted")),
			mcp.WithString("category", mcp.Description("Category override")),
		),
		mcpAddToList(deps),
	)

	s.AddTool(
		mcp.NewTool("create_reminder",
			mcp.WithDescription("Create a reminder. Dates are RFC 3339 or local YYYY-MM-DDTHH:MM; missing dates default to 24 hours from now."),
			mcp.WithString("title", mcp.Description("Reminder title"), mcp.Required()),
			mcp.WithString("due_date", mcp.Description("When the reminder is due")),
			mcp.WithString("description", mcp.Description("Optional details")),
			mcp.WithString("recurrence", mcp.Description("daily, weekly, monthly or yearly")),
		),
		mcpCreateReminder(deps),
	)

	s.AddTool(
		mcp.NewTool("list_smart_lists",
			mcp.WithDescription("Return the user's smart lists with their items as JSON."),
		),
		mcpListSmartLists(deps),
	)

	s.AddTool(
		mcp.NewTool("list_reminders",
			mcp.WithDescription("Return the user's reminders as JSON."),
			mcp.WithBoolean("pending_only", mcp.Description("Only reminders that are not completed")),
		),
		mcpListReminders(deps),
	)

	s.AddTool(
		mcp.NewTool("chat",
			mcp.WithDescription("Send a message to the assistant. Actions in the reply (adding items, appointments, contacts) are executed."),
			mcp.WithString("message", mcp.Description("The user's message"), mcp.Required()),
			mcp.WithString("conversation_id", mcp.Description("Continue an existing conversation")),
		),
		mcpChat(deps),
	)

	return s
}

func mcpAddToList(deps MCPDeps) server.ToolHandlerFunc {
	items := lists.NewAdder(deps.Store, deps.Categorizer)
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		item, err := req.RequireString("item")
		if err != nil || strings.TrimSpace(item) == "" {
			return mcpError("item is required"), nil
		}
		item = strings.TrimSpace(item)

		res, err := deps.Resolver.Resolve(ctx, deps.UserID, req.GetString("list_type", ""), item)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to resolve list: %v", err)), nil
		}
		if res.RouteToReminder {
			return mcpError("that looks like an appointment; use create_reminder instead"), nil
		}

		stored, err := items.Add(ctx, res.List, storage.ListItem{
			Name:     item,
			Category: strings.TrimSpace(req.GetString("category", "")),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to save item: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Added %q to %s under %s", item, res.List.Name, stored.Category)), nil
	}
}

func mcpCreateReminder(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		title, err := req.RequireString("title")
		if err != nil || strings.TrimSpace(title) == "" {
			return mcpError("title is required"), nil
		}
		recurrence := strings.ToLower(strings.TrimSpace(req.GetString("recurrence", "")))
		if !calendar.ValidRecurrence(recurrence) {
			return mcpError("recurrence must be one of daily, weekly, monthly, yearly"), nil
		}

		due, _ := assistant.ParseDue(req.GetString("due_date", ""), deps.Location, time.Now())
		rem := storage.Reminder{
			ID:          uuid.NewString(),
			UserID:      deps.UserID,
			Title:       strings.TrimSpace(title),
			Description: strings.TrimSpace(req.GetString("description", "")),
			DueDate:     due,
			Category:    defaultReminderCategory,
			Recurrence:  recurrence,
		}
		if err := deps.Store.CreateReminder(rem); err != nil {
			return mcpError(fmt.Sprintf("failed to save reminder: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Reminder %q set for %s", rem.Title, due.In(deps.Location).Format("Mon Jan 2, 2006 3:04 PM"))), nil
	}
}

func mcpListSmartLists(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ls, err := deps.Store.ListListsForUser(deps.UserID)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load lists: %v", err)), nil
		}

		type itemResult struct {
			Name      string `json:"name"`
			Category  string `json:"category"`
			Completed bool   `json:"completed"`
		}
		type listResult struct {
			ID    string       `json:"id"`
			Name  string       `json:"name"`
			Type  string       `json:"type"`
			Items []itemResult `json:"items"`
		}

		results := make([]listResult, 0, len(ls))
		for _, l := range ls {
			items, err := deps.Store.ListItems(l.ID)
			if err != nil {
				return mcpError(fmt.Sprintf("failed to load items: %v", err)), nil
			}
			lr := listResult{ID: l.ID, Name: l.Name, Type: l.Type, Items: make([]itemResult, len(items))}
			for i, it := range items {
				lr.Items[i] = itemResult{Name: it.Name, Category: it.Category, Completed: it.Completed}
			}
			results = append(results, lr)
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal lists: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListReminders(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rems, err := deps.Store.ListReminders(deps.UserID)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load reminders: %v", err)), nil
		}
		pendingOnly := req.GetBool("pending_only", false)

		type reminderResult struct {
			ID         string `json:"id"`
			Title      string `json:"title"`
			DueDate    string `json:"due_date"`
			Category   string `json:"category"`
			Completed  bool   `json:"completed"`
			Recurrence string `json:"recurrence,omitempty"`
		}
		results := []reminderResult{}
		for _, r := range rems {
			if pendingOnly && r.Completed {
				continue
			}
			results = append(results, reminderResult{
				ID:         r.ID,
				Title:      r.Title,
				DueDate:    r.DueDate.In(deps.Location).Format(time.RFC3339),
				Category:   r.Category,
				Completed:  r.Completed,
				Recurrence: r.Recurrence,
			})
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal reminders: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpChat(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Assistant == nil {
			return mcpError("chat not available: no model configured"), nil
		}
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}

		res, err := deps.Assistant.HandleTurn(ctx, assistant.TurnRequest{
			Message:        message,
			UserID:         deps.UserID,
			ConversationID: req.GetString("conversation_id", ""),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("chat failed: %v", err)), nil
		}

		var b strings.Builder
		b.WriteString(res.Message.Content)
		for _, o := range res.Outcomes {
			fmt.Fprintf(&b, "\n[%s: %s", o.Type, o.Status)
			if o.Error != "" {
				fmt.Fprintf(&b, " (%s)", o.Error)
			}
			b.WriteString("]")
		}
		fmt.Fprintf(&b, "\n(conversation %s)", res.ConversationID)
		return mcpText(b.String()), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
