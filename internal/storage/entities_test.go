package storage

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func seedUser(t *testing.T, s *Store, id string) User {
	t.Helper()
	u := User{ID: id, Email: id + "@example.com", Name: "User " + id, PasswordHash: "hash"}
	if err := s.CreateUser(u); err != nil {
		t.Fatalf("CreateUser(%s): %v", id, err)
	}
	return u
}

func seedList(t *testing.T, s *Store, id, userID, typ string) SmartList {
	t.Helper()
	l := SmartList{ID: id, UserID: userID, Name: "List " + id, Type: typ, Categories: []string{"Produce", "Other"}}
	if err := s.CreateList(l); err != nil {
		t.Fatalf("CreateList(%s): %v", id, err)
	}
	return l
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	s := openTestStore(t)
	seedUser(t, s, "u1")

	err := s.CreateUser(User{ID: "u2", Email: "  U1@Example.com "})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("error = %v, want ErrConflict", err)
	}
}

func TestGetUserByEmail_CaseInsensitive(t *testing.T) {
	s := openTestStore(t)
	seedUser(t, s, "u1")

	got, err := s.GetUserByEmail("U1@EXAMPLE.COM")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got.ID != "u1" {
		t.Errorf("ID = %q, want u1", got.ID)
	}
	if got.PreferencesJSON != "{}" {
		t.Errorf("PreferencesJSON = %q, want {}", got.PreferencesJSON)
	}
}

func TestUpdateUser(t *testing.T) {
	s := openTestStore(t)
	seedUser(t, s, "u1")

	name := "Dana"
	done := true
	got, err := s.UpdateUser("u1", UserPatch{Name: &name, OnboardingCompleted: &done})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if got.Name != "Dana" || !got.OnboardingCompleted {
		t.Errorf("got %+v", got)
	}
	if got.Email != "u1@example.com" {
		t.Errorf("Email changed to %q", got.Email)
	}

	if _, err := s.UpdateUser("missing", UserPatch{Name: &name}); err != ErrNotFound {
		t.Errorf("missing user error = %v, want ErrNotFound", err)
	}
	if _, err := s.UpdateUser("missing", UserPatch{}); err != ErrNotFound {
		t.Errorf("empty patch on missing user error = %v, want ErrNotFound", err)
	}
}

func TestRecentMessages_ChronologicalAndLimited(t *testing.T) {
	s := openTestStore(t)
	seedUser(t, s, "u1")
	if err := s.CreateConversation(Conversation{ID: "c1", UserID: "u1", Title: "Chat"}); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for j := 0; j < 12; j++ {
		role := RoleUser
		if j%2 == 1 {
			role = RoleAssistant
		}
		m := Message{ID: fmt.Sprintf("m-%02d", j), ConversationID: "c1", Role: role, Content: fmt.Sprintf("msg %d", j), CreatedAt: base.Add(time.Duration(j) * time.Minute)}
		if err := s.SaveMessage(m); err != nil {
			t.Fatalf("SaveMessage %d: %v", j, err)
		}
	}

	got, err := s.RecentMessages("c1", 10)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("got %d messages, want 10", len(got))
	}
	if got[0].ID != "m-02" || got[9].ID != "m-11" {
		t.Errorf("window = %s..%s, want m-02..m-11", got[0].ID, got[9].ID)
	}

	c, err := s.GetConversation("c1")
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if !c.UpdatedAt.Equal(base.Add(11 * time.Minute)) {
		t.Errorf("UpdatedAt = %v, want last message time", c.UpdatedAt)
	}
}

func TestStartConversation(t *testing.T) {
	s := openTestStore(t)
	seedUser(t, s, "u1")

	first := Message{ID: "m1", Role: RoleUser, Content: "add oat milk"}
	if err := s.StartConversation(Conversation{ID: "c1", UserID: "u1", Title: "add oat milk"}, first); err != nil {
		t.Fatalf("StartConversation: %v", err)
	}
	msgs, err := s.ListMessages("c1")
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != "m1" || msgs[0].ConversationID != "c1" {
		t.Errorf("messages = %+v", msgs)
	}

	// The message violates the role check, so the conversation must not stay.
	bad := Message{ID: "m2", Role: "system", Content: "hello"}
	if err := s.StartConversation(Conversation{ID: "c2", UserID: "u1", Title: "hello"}, bad); err == nil {
		t.Fatal("expected error for invalid role")
	}
	if _, err := s.GetConversation("c2"); err != ErrNotFound {
		t.Errorf("GetConversation(c2) = %v, want ErrNotFound", err)
	}
	convs, _ := s.ListConversations("u1")
	if len(convs) != 1 {
		t.Errorf("conversations = %d, want 1", len(convs))
	}
}

func TestSaveMessage_UnknownConversation(t *testing.T) {
	s := openTestStore(t)

	err := s.SaveMessage(Message{ID: "m1", ConversationID: "nope", Role: RoleUser, Content: "hi"})
	if err != ErrNotFound {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestListListsForUser_IncludesCollaborations(t *testing.T) {
	s := openTestStore(t)
	seedUser(t, s, "owner")
	seedUser(t, s, "friend")

	seedList(t, s, "l1", "owner", "shopping")
	seedList(t, s, "l2", "friend", "todo")

	if _, err := s.AddCollaborator("l1", "friend"); err != nil {
		t.Fatalf("AddCollaborator: %v", err)
	}

	got, err := s.ListListsForUser("friend")
	if err != nil {
		t.Fatalf("ListListsForUser: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d lists, want 2", len(got))
	}
	if got[0].ID != "l1" {
		t.Errorf("first list = %q, want l1 (oldest first)", got[0].ID)
	}
	if !got[0].HasAccess("friend") {
		t.Error("friend should have access to l1")
	}

	owned, err := s.ListListsForUser("owner")
	if err != nil {
		t.Fatalf("ListListsForUser(owner): %v", err)
	}
	if len(owned) != 1 {
		t.Errorf("owner sees %d lists, want 1", len(owned))
	}
}

func TestAddCollaborator_Rejections(t *testing.T) {
	s := openTestStore(t)
	seedUser(t, s, "owner")
	seedUser(t, s, "friend")
	seedList(t, s, "l1", "owner", "todo")

	if _, err := s.AddCollaborator("l1", "owner"); err != ErrConflict {
		t.Errorf("owner as collaborator error = %v, want ErrConflict", err)
	}
	if _, err := s.AddCollaborator("l1", "friend"); err != nil {
		t.Fatalf("AddCollaborator: %v", err)
	}
	if _, err := s.AddCollaborator("l1", "friend"); err != ErrConflict {
		t.Errorf("duplicate collaborator error = %v, want ErrConflict", err)
	}
	if _, err := s.AddCollaborator("missing", "friend"); err != ErrNotFound {
		t.Errorf("missing list error = %v, want ErrNotFound", err)
	}
}

func TestAddCollaborator_ConcurrentInvitesAllLand(t *testing.T) {
	s := openTestStore(t)
	seedUser(t, s, "owner")
	seedList(t, s, "l1", "owner", "todo")
	const n = 8
	for i := range n {
		seedUser(t, s, fmt.Sprintf("friend%d", i))
	}

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.AddCollaborator("l1", fmt.Sprintf("friend%d", i)); err != nil {
				t.Errorf("AddCollaborator(friend%d): %v", i, err)
			}
		}()
	}
	wg.Wait()

	l, err := s.GetList("l1")
	if err != nil {
		t.Fatalf("GetList: %v", err)
	}
	if len(l.Collaborators) != n {
		t.Fatalf("collaborators = %v, want %d", l.Collaborators, n)
	}
	for i := range n {
		if !l.HasAccess(fmt.Sprintf("friend%d", i)) {
			t.Errorf("friend%d lost from collaborators", i)
		}
	}
}

func TestSetListSharing(t *testing.T) {
	s := openTestStore(t)
	seedUser(t, s, "u1")
	seedList(t, s, "l1", "u1", "shopping")

	shared, err := s.SetListSharing("l1", "abc123")
	if err != nil {
		t.Fatalf("SetListSharing: %v", err)
	}
	if !shared.IsShared || shared.ShareCode != "abc123" {
		t.Errorf("shared = %+v", shared)
	}

	byCode, err := s.GetListByShareCode("abc123")
	if err != nil {
		t.Fatalf("GetListByShareCode: %v", err)
	}
	if byCode.ID != "l1" {
		t.Errorf("ID = %q, want l1", byCode.ID)
	}

	unshared, err := s.SetListSharing("l1", "")
	if err != nil {
		t.Fatalf("SetListSharing(unshare): %v", err)
	}
	if unshared.IsShared || unshared.ShareCode != "" {
		t.Errorf("unshared = %+v", unshared)
	}
	if _, err := s.GetListByShareCode("abc123"); err != ErrNotFound {
		t.Errorf("old code error = %v, want ErrNotFound", err)
	}
}

func TestShareCode_Unique(t *testing.T) {
	s := openTestStore(t)
	seedUser(t, s, "u1")
	seedList(t, s, "l1", "u1", "shopping")
	seedList(t, s, "l2", "u1", "todo")

	if _, err := s.SetListSharing("l1", "dup"); err != nil {
		t.Fatalf("SetListSharing l1: %v", err)
	}
	if _, err := s.SetListSharing("l2", "dup"); err != ErrConflict {
		t.Errorf("error = %v, want ErrConflict", err)
	}
}

func TestCreateItem_AppendsPosition(t *testing.T) {
	s := openTestStore(t)
	seedUser(t, s, "u1")
	seedList(t, s, "l1", "u1", "shopping")

	for j, name := range []string{"milk", "eggs", "bread"} {
		item, err := s.CreateItem(ListItem{ID: fmt.Sprintf("i%d", j), ListID: "l1", Name: name, Category: "Dairy"})
		if err != nil {
			t.Fatalf("CreateItem(%s): %v", name, err)
		}
		if item.Position != j {
			t.Errorf("%s position = %d, want %d", name, item.Position, j)
		}
	}

	items, err := s.ListItems("l1")
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 3 || items[2].Name != "bread" {
		t.Errorf("items = %+v", items)
	}

	if _, err := s.CreateItem(ListItem{ID: "x", ListID: "nope", Name: "ghost"}); err != ErrNotFound {
		t.Errorf("missing list error = %v, want ErrNotFound", err)
	}
}

func TestItemOptionalFields(t *testing.T) {
	s := openTestStore(t)
	seedUser(t, s, "u1")
	seedList(t, s, "l1", "u1", "waiting_list")

	amount := 42.5
	if _, err := s.CreateItem(ListItem{ID: "i1", ListID: "l1", Name: "refund", Category: "Payments", Amount: &amount, Currency: "USD"}); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	got, err := s.GetItem("i1")
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.Amount == nil || *got.Amount != 42.5 {
		t.Errorf("Amount = %v, want 42.5", got.Amount)
	}
	if got.Quantity != nil {
		t.Errorf("Quantity = %v, want nil", *got.Quantity)
	}
}

func TestToggleAndUpdateItem(t *testing.T) {
	s := openTestStore(t)
	seedUser(t, s, "u1")
	seedList(t, s, "l1", "u1", "shopping")
	if _, err := s.CreateItem(ListItem{ID: "i1", ListID: "l1", Name: "milk", Category: "Other"}); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	toggled, err := s.ToggleItem("i1")
	if err != nil {
		t.Fatalf("ToggleItem: %v", err)
	}
	if !toggled.Completed {
		t.Error("expected completed after first toggle")
	}
	toggled, err = s.ToggleItem("i1")
	if err != nil {
		t.Fatalf("ToggleItem: %v", err)
	}
	if toggled.Completed {
		t.Error("expected incomplete after second toggle")
	}

	cat := "Dairy"
	updated, err := s.UpdateItem("i1", ItemPatch{Category: &cat})
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if updated.Category != "Dairy" || updated.Name != "milk" {
		t.Errorf("updated = %+v", updated)
	}

	if _, err := s.ToggleItem("missing"); err != ErrNotFound {
		t.Errorf("missing item error = %v, want ErrNotFound", err)
	}
}

func TestDeleteList_RemovesItems(t *testing.T) {
	s := openTestStore(t)
	seedUser(t, s, "u1")
	seedList(t, s, "l1", "u1", "todo")
	if _, err := s.CreateItem(ListItem{ID: "i1", ListID: "l1", Name: "call mom"}); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	if err := s.DeleteList("l1"); err != nil {
		t.Fatalf("DeleteList: %v", err)
	}
	if _, err := s.GetList("l1"); err != ErrNotFound {
		t.Errorf("GetList error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetItem("i1"); err != ErrNotFound {
		t.Errorf("GetItem error = %v, want ErrNotFound", err)
	}
	if err := s.DeleteList("l1"); err != ErrNotFound {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestReminders(t *testing.T) {
	s := openTestStore(t)
	seedUser(t, s, "u1")

	base := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	for j, title := range []string{"late", "early"} {
		r := Reminder{ID: "r-" + title, UserID: "u1", Title: title, Category: "Personal", DueDate: base.Add(time.Duration(1-j) * 24 * time.Hour)}
		if err := s.CreateReminder(r); err != nil {
			t.Fatalf("CreateReminder: %v", err)
		}
	}

	got, err := s.ListReminders("u1")
	if err != nil {
		t.Fatalf("ListReminders: %v", err)
	}
	if len(got) != 2 || got[0].Title != "early" {
		t.Fatalf("reminders = %+v, want early first", got)
	}
	if !got[0].DueDate.Equal(base) {
		t.Errorf("DueDate = %v, want %v", got[0].DueDate, base)
	}

	toggled, err := s.ToggleReminder("r-early")
	if err != nil {
		t.Fatalf("ToggleReminder: %v", err)
	}
	if !toggled.Completed {
		t.Error("expected completed")
	}

	pending, err := s.PendingReminders("u1", base.Add(72*time.Hour))
	if err != nil {
		t.Fatalf("PendingReminders: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "r-late" {
		t.Errorf("pending = %+v, want only r-late", pending)
	}

	weekly := "weekly"
	updated, err := s.UpdateReminder("r-late", ReminderPatch{Recurrence: &weekly})
	if err != nil {
		t.Fatalf("UpdateReminder: %v", err)
	}
	if updated.Recurrence != "weekly" {
		t.Errorf("Recurrence = %q", updated.Recurrence)
	}

	if err := s.DeleteReminder("r-late"); err != nil {
		t.Fatalf("DeleteReminder: %v", err)
	}
	if err := s.DeleteReminder("r-late"); err != ErrNotFound {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestContacts(t *testing.T) {
	s := openTestStore(t)
	seedUser(t, s, "u1")

	if err := s.CreateContact(Contact{ID: "c1", UserID: "u1", Name: "Ana Ruiz", Company: "Acme"}); err != nil {
		t.Fatalf("CreateContact: %v", err)
	}
	got, err := s.GetContact("c1")
	if err != nil {
		t.Fatalf("GetContact: %v", err)
	}
	if got.Source != "manual" {
		t.Errorf("Source = %q, want manual", got.Source)
	}

	email := "ana@acme.test"
	updated, err := s.UpdateContact("c1", ContactPatch{Email: &email})
	if err != nil {
		t.Fatalf("UpdateContact: %v", err)
	}
	if updated.Email != email || updated.Company != "Acme" {
		t.Errorf("updated = %+v", updated)
	}

	list, err := s.ListContacts("u1")
	if err != nil {
		t.Fatalf("ListContacts: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("got %d contacts, want 1", len(list))
	}

	if err := s.DeleteContact("c1"); err != nil {
		t.Fatalf("DeleteContact: %v", err)
	}
	if _, err := s.GetContact("c1"); err != ErrNotFound {
		t.Errorf("GetContact error = %v, want ErrNotFound", err)
	}
}
