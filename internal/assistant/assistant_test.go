package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gabai/gabai/internal/categorize"
	"github.com/gabai/gabai/internal/lists"
	"github.com/gabai/gabai/internal/llm"
	"github.com/gabai/gabai/internal/profile"
	"github.com/gabai/gabai/internal/storage"
)

// mockChatter implements Chatter for testing.
type mockChatter struct {
	mu       sync.Mutex
	response string
	err      error
	reqs     []llm.ChatRequest
}

func (m *mockChatter) Chat(ctx context.Context, req llm.ChatRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reqs = append(m.reqs, req)
	return m.response, m.err
}

type fixture struct {
	store    *storage.Store
	chat     *mockChatter
	catChat  *mockChatter
	handler  *Handler
	loc      *time.Location
	baseTime time.Time
}

func newFixture(t *testing.T, reply string) *fixture {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	for _, id := range []string{"u1", "u2"} {
		if err := store.CreateUser(storage.User{ID: id, Email: id + "@example.com", Name: id}); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
	}

	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	base := time.Date(2026, 10, 19, 10, 0, 0, 0, loc)
	var tick int
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	catChat := &mockChatter{response: "Snacks"}
	d := NewDispatcher(store, lists.NewResolver(store), categorize.New(catChat, "gpt-4o-mini"), loc)
	d.now = clock

	chat := &mockChatter{response: reply}
	h := NewHandler(store, chat, profile.NewManager(store), d, HandlerConfig{Model: "gpt-4o", Location: loc, HistoryLimit: 10})
	h.now = clock

	return &fixture{store: store, chat: chat, catChat: catChat, handler: h, loc: loc, baseTime: base}
}

func TestHandleTurn_AddToShoppingList(t *testing.T) {
	f := newFixture(t, `{"content":"Added almonds and chocolate to your shopping list.","suggestions":["Show my list"],"actions":[{"type":"add_to_list","data":{"listType":"shopping","items":[{"name":"almonds"},{"name":"chocolate"}]}}]}`)

	res, err := f.handler.HandleTurn(context.Background(), TurnRequest{Message: "add almonds and chocolate to my list", UserID: "u1"})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}

	if len(res.Actions) != 1 || res.Actions[0].Type != ActionAddToList {
		t.Fatalf("actions = %+v", res.Actions)
	}
	if len(res.Outcomes) != 1 || res.Outcomes[0].Status != StatusOK {
		t.Fatalf("outcomes = %+v", res.Outcomes)
	}
	if res.Message.Content != "Added almonds and chocolate to your shopping list." {
		t.Errorf("message = %q", res.Message.Content)
	}
	if len(res.Suggestions) != 1 {
		t.Errorf("suggestions = %v", res.Suggestions)
	}

	all, err := f.store.ListListsForUser("u1")
	if err != nil {
		t.Fatalf("ListListsForUser: %v", err)
	}
	if len(all) != 1 || all[0].Type != categorize.TypeShopping {
		t.Fatalf("lists = %+v, want exactly one shopping list", all)
	}
	items, err := f.store.ListItems(all[0].ID)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 2 || items[0].Name != "almonds" || items[1].Name != "chocolate" {
		t.Fatalf("items = %+v", items)
	}
	for _, it := range items {
		if _, ok := categorize.InTaxonomy(categorize.TypeShopping, it.Category); !ok {
			t.Errorf("item %q category %q outside taxonomy", it.Name, it.Category)
		}
	}
	if len(f.catChat.reqs) != 2 {
		t.Errorf("categorizer calls = %d, want 2", len(f.catChat.reqs))
	}
}

func TestHandleTurn_DentistAppointmentEastern(t *testing.T) {
	f := newFixture(t, `{"content":"I'll remind you.","actions":[{"type":"create_appointment","data":{"appointment":{"title":"Call the dentist","date":"2026-10-20T15:00:00"}}}]}`)

	res, err := f.handler.HandleTurn(context.Background(), TurnRequest{Message: "remind me to call the dentist tomorrow at 3pm", UserID: "u1"})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if res.Outcomes[0].Status != StatusOK {
		t.Fatalf("outcome = %+v", res.Outcomes[0])
	}

	sys := f.chat.reqs[0].Messages[0].Content
	if !strings.Contains(sys, "Monday, October 19, 2026") || !strings.Contains(sys, "America/New_York") {
		t.Errorf("system prompt lacks current local time: %q", sys[len(sys)-120:])
	}

	rs, err := f.store.ListReminders("u1")
	if err != nil {
		t.Fatalf("ListReminders: %v", err)
	}
	if len(rs) != 1 {
		t.Fatalf("reminders = %d, want 1", len(rs))
	}
	r := rs[0]
	if r.Category != CategoryAppointment {
		t.Errorf("category = %q, want Appointment", r.Category)
	}
	due := r.DueDate.In(f.loc)
	if due.Year() != 2026 || due.Month() != time.October || due.Day() != 20 || due.Hour() != 15 || due.Minute() != 0 {
		t.Errorf("due = %v, want 2026-10-20 15:00 Eastern", due)
	}
}

func TestHandleTurn_ValidAndMalformedActions(t *testing.T) {
	f := newFixture(t, `{"content":"Done.","actions":[
		{"type":"add_to_list","data":{"items":"oops"}},
		{"type":"send_email","data":{}},
		{"type":"create_appointment","data":{"appointment":{"title":"Haircut","date":"next-ish"}}}
	]}`)

	res, err := f.handler.HandleTurn(context.Background(), TurnRequest{Message: "haircut sometime", UserID: "u1"})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if res.Message.Content != "Done." {
		t.Errorf("message = %q", res.Message.Content)
	}

	wantStatus := []string{StatusRejected, StatusRejected, StatusOK}
	if len(res.Outcomes) != len(wantStatus) {
		t.Fatalf("outcomes = %+v", res.Outcomes)
	}
	for i, want := range wantStatus {
		if res.Outcomes[i].Status != want {
			t.Errorf("outcome[%d] = %+v, want %s", i, res.Outcomes[i], want)
		}
	}
	if !strings.Contains(res.Outcomes[1].Error, "unknown action type") {
		t.Errorf("unknown action error = %q", res.Outcomes[1].Error)
	}

	rs, _ := f.store.ListReminders("u1")
	if len(rs) != 1 {
		t.Fatalf("reminders = %d, want 1", len(rs))
	}
	// Unparseable date: 24h after the dispatcher's clock.
	wantMin := f.baseTime.Add(24 * time.Hour)
	if rs[0].DueDate.Before(wantMin) || rs[0].DueDate.After(wantMin.Add(time.Minute)) {
		t.Errorf("due = %v, want about %v", rs[0].DueDate, wantMin)
	}
}

func TestHandleTurn_ModelFailureKeepsUserMessage(t *testing.T) {
	f := newFixture(t, "")
	f.chat.err = &llm.APIError{Op: "chat", Status: 500, Body: "boom"}

	_, err := f.handler.HandleTurn(context.Background(), TurnRequest{Message: "hello", UserID: "u1"})
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("error = %v, want ErrUpstream", err)
	}

	convs, _ := f.store.ListConversations("u1")
	if len(convs) != 1 {
		t.Fatalf("conversations = %d, want 1", len(convs))
	}
	msgs, _ := f.store.ListMessages(convs[0].ID)
	if len(msgs) != 1 || msgs[0].Role != storage.RoleUser || msgs[0].Content != "hello" {
		t.Errorf("messages = %+v, want only the user message", msgs)
	}
}

func TestHandleTurn_ValidationLeavesNoState(t *testing.T) {
	f := newFixture(t, `{"content":"hi"}`)

	for _, req := range []TurnRequest{
		{Message: "   ", UserID: "u1"},
		{Message: "hi", UserID: ""},
		{Message: strings.Repeat("a", maxMessageChars+1), UserID: "u1"},
	} {
		if _, err := f.handler.HandleTurn(context.Background(), req); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("HandleTurn(%.10q) = %v, want ErrInvalidInput", req.Message, err)
		}
	}

	if _, err := f.handler.HandleTurn(context.Background(), TurnRequest{Message: "hi", UserID: "ghost"}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("unknown user error = %v, want ErrNotFound", err)
	}

	convs, _ := f.store.ListConversations("u1")
	if len(convs) != 0 || len(f.chat.reqs) != 0 {
		t.Errorf("state after invalid turns: %d conversations, %d model calls", len(convs), len(f.chat.reqs))
	}
}

// failingStore fails the writes that open a conversation.
type failingStore struct {
	*storage.Store
	err error
}

func (s failingStore) StartConversation(storage.Conversation, storage.Message) error {
	return s.err
}

func TestHandleTurn_StoreFailureLeavesNoConversation(t *testing.T) {
	f := newFixture(t, `{"content":"hi"}`)
	diskFull := errors.New("disk full")
	h := NewHandler(failingStore{Store: f.store, err: diskFull}, f.chat, profile.NewManager(f.store), f.handler.dispatcher, f.handler.cfg)

	if _, err := h.HandleTurn(context.Background(), TurnRequest{Message: "hi", UserID: "u1"}); !errors.Is(err, diskFull) {
		t.Fatalf("HandleTurn = %v, want disk full", err)
	}

	convs, err := f.store.ListConversations("u1")
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(convs) != 0 || len(f.chat.reqs) != 0 {
		t.Errorf("state after failed turn: %d conversations, %d model calls", len(convs), len(f.chat.reqs))
	}
}

func TestHandleTurn_ConversationOwnership(t *testing.T) {
	f := newFixture(t, `{"content":"hi"}`)

	res, err := f.handler.HandleTurn(context.Background(), TurnRequest{Message: "hi", UserID: "u1"})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}

	_, err = f.handler.HandleTurn(context.Background(), TurnRequest{Message: "hi", UserID: "u2", ConversationID: res.ConversationID})
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("other user's conversation = %v, want ErrForbidden", err)
	}
	_, err = f.handler.HandleTurn(context.Background(), TurnRequest{Message: "hi", UserID: "u1", ConversationID: "nope"})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("unknown conversation = %v, want ErrNotFound", err)
	}
}

func TestHandleTurn_HistoryIsSentAndLimited(t *testing.T) {
	f := newFixture(t, `{"content":"ok"}`)
	f.handler.cfg.HistoryLimit = 4

	res, err := f.handler.HandleTurn(context.Background(), TurnRequest{Message: "turn 0", UserID: "u1"})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	for i := 1; i <= 3; i++ {
		msg := "turn " + string(rune('0'+i))
		if _, err := f.handler.HandleTurn(context.Background(), TurnRequest{Message: msg, UserID: "u1", ConversationID: res.ConversationID}); err != nil {
			t.Fatalf("HandleTurn %d: %v", i, err)
		}
	}

	last := f.chat.reqs[len(f.chat.reqs)-1].Messages
	// system + 4 history + new message
	if len(last) != 6 {
		t.Fatalf("messages sent = %d, want 6", len(last))
	}
	if last[1].Content != "turn 1" || last[2].Role != llm.RoleAssistant || last[5].Content != "turn 3" {
		t.Errorf("history = %+v", last)
	}
	if !f.chat.reqs[0].JSON || f.chat.reqs[0].Model != "gpt-4o" {
		t.Errorf("request = %+v, want JSON mode on gpt-4o", f.chat.reqs[0])
	}
}

func TestHandleTurn_IncludesPreferences(t *testing.T) {
	f := newFixture(t, `{"content":"ok"}`)
	m := profile.NewManager(f.store)
	if _, err := m.Set("u1", profile.Preferences{Dietary: []string{"vegetarian"}}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if _, err := f.handler.HandleTurn(context.Background(), TurnRequest{Message: "dinner ideas?", UserID: "u1"}); err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if sys := f.chat.reqs[0].Messages[0].Content; !strings.Contains(sys, "vegetarian") {
		t.Error("system prompt should include the user's dietary preferences")
	}
}

func TestParseReply(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		content     string
		actions     int
		suggestions int
	}{
		{"plain text", "Sure thing!", "Sure thing!", 0, 0},
		{"fenced json", "```json\n{\"content\":\"hi\",\"actions\":[{\"type\":\"add_to_list\"}]}\n```", "hi", 1, 0},
		{"object suggestions dropped", `{"content":"hi","suggestions":[{"text":"x"}],"actions":[{"type":"x"}]}`, "hi", 1, 0},
		{"suggestions capped", `{"content":"hi","suggestions":["a","b"," ","c","d"]}`, "hi", 0, 3},
		{"empty content", `{"content":"  "}`, fallbackResponse, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := parseReply(tt.raw)
			if r.Content != tt.content || len(r.Actions) != tt.actions || len(r.Suggestions) != tt.suggestions {
				t.Errorf("parseReply = %+v", r)
			}
			if r.Actions == nil || r.Suggestions == nil {
				t.Error("slices must be non-nil for JSON output")
			}
		})
	}
}
