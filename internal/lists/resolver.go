package lists

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/gabai/gabai/internal/storage"
)

// ListStore defines the storage operations the Resolver needs.
// Implemented by storage.Store.
type ListStore interface {
	ListListsForUser(userID string) ([]storage.SmartList, error)
	CreateList(l storage.SmartList) error
}

// Resolution is the outcome of Resolve. When RouteToReminder is set no list
// was touched and List is the zero value.
type Resolution struct {
	List            storage.SmartList
	Type            string
	Created         bool
	RouteToReminder bool
}

// Resolver selects or creates the list an item should be added to.
// Concurrent resolutions for the same user and type share one lookup, so
// a single process never creates the same default list twice.
type Resolver struct {
	store ListStore
	group singleflight.Group
	newID func() string
}

func NewResolver(store ListStore) *Resolver {
	return &Resolver{store: store, newID: uuid.NewString}
}

// Resolve returns a persisted list for the item. requestedType may be empty,
// in which case the type is inferred from itemName.
func (r *Resolver) Resolve(ctx context.Context, userID, requestedType, itemName string) (Resolution, error) {
	listType := NormalizeType(requestedType)
	if listType == "" {
		listType = InferType(itemName)
		if listType == TypeAppointment {
			return Resolution{Type: TypeAppointment, RouteToReminder: true}, nil
		}
	}

	ch := r.group.DoChan(userID+"\x00"+listType, func() (any, error) {
		return r.selectOrCreate(userID, listType)
	})
	select {
	case <-ctx.Done():
		return Resolution{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Resolution{}, res.Err
		}
		return res.Val.(Resolution), nil
	}
}

func (r *Resolver) selectOrCreate(userID, listType string) (Resolution, error) {
	existing, err := r.store.ListListsForUser(userID)
	if err != nil {
		return Resolution{}, fmt.Errorf("listing lists for %s: %w", userID, err)
	}
	if l, ok := SelectList(existing, listType); ok {
		return Resolution{List: l, Type: listType}, nil
	}

	tmpl := TemplateFor(listType)
	l := storage.SmartList{
		ID:         r.newID(),
		UserID:     userID,
		Name:       tmpl.Name,
		Type:       listType,
		Categories: tmpl.Categories,
	}
	if err := r.store.CreateList(l); err != nil {
		return Resolution{}, fmt.Errorf("creating %s list: %w", listType, err)
	}
	slog.Info("created list from template", "user_id", userID, "list_id", l.ID, "type", listType)
	return Resolution{List: l, Type: listType, Created: true}, nil
}
