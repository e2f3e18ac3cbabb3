package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gabai/gabai/internal/categorize"
	"github.com/gabai/gabai/internal/lists"
	"github.com/gabai/gabai/internal/metrics"
	"github.com/gabai/gabai/internal/storage"
)

// Outcome statuses.
const (
	StatusOK       = "ok"
	StatusFailed   = "failed"
	StatusRejected = "rejected"
)

// Reminder categories set by the dispatcher.
const (
	CategoryAppointment = "Appointment"
	CategoryFollowUp    = "Follow-up"
)

// Created identifies an entity written while executing an action.
type Created struct {
	Kind string `json:"kind"` // list, list_item, reminder, contact
	ID   string `json:"id"`
}

// Outcome reports what happened to one action.
type Outcome struct {
	Type    string    `json:"type"`
	Status  string    `json:"status"`
	Error   string    `json:"error,omitempty"`
	Created []Created `json:"created,omitempty"`
}

// Store defines the storage operations the Dispatcher needs.
// Implemented by storage.Store.
type Store interface {
	CreateItem(i storage.ListItem) (storage.ListItem, error)
	CreateReminder(r storage.Reminder) error
	CreateContact(c storage.Contact) error
	EnqueueJob(job storage.Job) error
}

// ListResolver is implemented by lists.Resolver.
type ListResolver interface {
	Resolve(ctx context.Context, userID, requestedType, itemName string) (lists.Resolution, error)
}

// ItemCategorizer is implemented by categorize.Categorizer.
type ItemCategorizer interface {
	Resolve(ctx context.Context, itemName, listType string) categorize.Result
}

// Dispatcher executes model-proposed actions against storage.
type Dispatcher struct {
	store    Store
	resolver ListResolver
	items    *lists.Adder
	loc      *time.Location
	now      func() time.Time
	newID    func() string
}

func NewDispatcher(store Store, resolver ListResolver, categorizer ItemCategorizer, loc *time.Location) *Dispatcher {
	if loc == nil {
		loc = time.UTC
	}
	return &Dispatcher{
		store:    store,
		resolver: resolver,
		items:    lists.NewAdder(store, categorizer),
		loc:      loc,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Dispatch runs actions in order and returns one Outcome per action. A
// rejected or failed action never stops the ones after it.
func (d *Dispatcher) Dispatch(ctx context.Context, userID string, actions []RawAction) []Outcome {
	outcomes := make([]Outcome, 0, len(actions))
	for i, raw := range actions {
		out := d.dispatchOne(ctx, userID, raw)
		switch out.Status {
		case StatusOK:
			slog.Debug("action dispatched", "index", i, "type", out.Type, "created", len(out.Created))
		default:
			slog.Warn("action not applied", "index", i, "type", out.Type, "status", out.Status, "error", out.Error, "user_id", userID)
		}
		metrics.ActionOutcome(out.Type, out.Status)
		outcomes = append(outcomes, out)
	}
	return outcomes
}

func (d *Dispatcher) dispatchOne(ctx context.Context, userID string, raw RawAction) Outcome {
	out := Outcome{Type: raw.Type}
	if out.Type == "" {
		out.Type = "unknown"
	}

	action, err := DecodeAction(raw)
	if err != nil {
		out.Status = StatusRejected
		out.Error = err.Error()
		return out
	}

	var created []Created
	switch a := action.(type) {
	case AddToList:
		created, err = d.addToList(ctx, userID, a)
	case CreateAppointment:
		created, err = d.createAppointment(userID, a)
	case CreateContact:
		created, err = d.createContact(userID, a)
	}

	out.Created = created
	if err != nil {
		out.Status = StatusFailed
		out.Error = err.Error()
		return out
	}
	out.Status = StatusOK
	return out
}

func (d *Dispatcher) addToList(ctx context.Context, userID string, a AddToList) ([]Created, error) {
	// Without an explicit type the first item decides for the whole action.
	listType := lists.NormalizeType(a.ListType)
	if listType == "" {
		listType = lists.InferType(a.Items[0].Name)
	}
	if listType == lists.TypeAppointment {
		return d.itemsToReminders(userID, a.Items)
	}

	var created []Created
	var errs []error
	for _, in := range a.Items {
		name := strings.TrimSpace(in.Name)
		res, err := d.resolver.Resolve(ctx, userID, listType, name)
		if err != nil {
			errs = append(errs, fmt.Errorf("resolving list for %q: %w", name, err))
			continue
		}
		if res.Created {
			created = append(created, Created{Kind: "list", ID: res.List.ID})
		}

		item, err := d.items.Add(ctx, res.List, storage.ListItem{
			Name:     name,
			Category: strings.TrimSpace(in.Category),
			Quantity: in.Quantity,
			Unit:     in.Unit,
			Amount:   in.Amount,
			Currency: in.Currency,
			Priority: in.Priority,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("adding %q to list %s: %w", name, res.List.ID, err))
			continue
		}
		created = append(created, Created{Kind: "list_item", ID: item.ID})
	}
	return created, errors.Join(errs...)
}

// itemsToReminders turns an add_to_list action that reads like an
// appointment into one reminder per item.
func (d *Dispatcher) itemsToReminders(userID string, items []ItemInput) ([]Created, error) {
	var created []Created
	var errs []error
	for _, in := range items {
		r := storage.Reminder{
			ID:       d.newID(),
			UserID:   userID,
			Title:    strings.TrimSpace(in.Name),
			DueDate:  d.now().Add(defaultDueOffset),
			Category: CategoryAppointment,
		}
		if err := d.store.CreateReminder(r); err != nil {
			errs = append(errs, fmt.Errorf("creating reminder for %q: %w", r.Title, err))
			continue
		}
		created = append(created, Created{Kind: "reminder", ID: r.ID})
	}
	return created, errors.Join(errs...)
}

func (d *Dispatcher) createAppointment(userID string, a CreateAppointment) ([]Created, error) {
	in := a.Appointment
	due := d.parseDue(in.Date)
	r := storage.Reminder{
		ID:          d.newID(),
		UserID:      userID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		DueDate:     due,
		Category:    CategoryAppointment,
		Recurrence:  in.Recurrence,
	}
	if err := d.store.CreateReminder(r); err != nil {
		return nil, fmt.Errorf("creating appointment: %w", err)
	}
	return []Created{{Kind: "reminder", ID: r.ID}}, nil
}

func (d *Dispatcher) createContact(userID string, a CreateContact) ([]Created, error) {
	in := a.Contact
	c := storage.Contact{
		ID:      d.newID(),
		UserID:  userID,
		Name:    strings.TrimSpace(in.Name),
		Company: in.Company,
		Title:   in.Title,
		Email:   in.Email,
		Phone:   in.Phone,
		Website: in.Website,
		Address: in.Address,
		Notes:   in.Notes,
		Source:  "business_card",
	}
	if err := d.store.CreateContact(c); err != nil {
		return nil, fmt.Errorf("creating contact: %w", err)
	}
	created := []Created{{Kind: "contact", ID: c.ID}}

	if a.Reminder == nil {
		return created, nil
	}
	title := strings.TrimSpace(a.Reminder.Title)
	if title == "" {
		who := c.Name
		if who == "" {
			who = c.Company
		}
		title = strings.TrimSpace("Follow up with " + who)
	}
	r := storage.Reminder{
		ID:       d.newID(),
		UserID:   userID,
		Title:    title,
		DueDate:  d.parseDue(a.Reminder.Date),
		Category: CategoryFollowUp,
	}
	if err := d.store.CreateReminder(r); err != nil {
		return created, fmt.Errorf("creating follow-up reminder: %w", err)
	}
	return append(created, Created{Kind: "reminder", ID: r.ID}), nil
}

func (d *Dispatcher) parseDue(s string) time.Time {
	due, ok := ParseDue(s, d.loc, d.now())
	if !ok && strings.TrimSpace(s) != "" {
		slog.Warn("unparseable due date, defaulting to 24h from now", "value", s)
	}
	return due
}
