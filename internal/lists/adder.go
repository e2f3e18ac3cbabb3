package lists

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/gabai/gabai/internal/categorize"
	"github.com/gabai/gabai/internal/storage"
	"github.com/gabai/gabai/internal/worker"
)

// ItemStore persists items and queues their recategorization.
// Implemented by storage.Store.
type ItemStore interface {
	CreateItem(i storage.ListItem) (storage.ListItem, error)
	EnqueueJob(job storage.Job) error
}

// Categorizer is implemented by categorize.Categorizer.
type Categorizer interface {
	Resolve(ctx context.Context, itemName, listType string) categorize.Result
}

// Adder stores items on an already resolved list.
type Adder struct {
	store       ItemStore
	categorizer Categorizer
	newID       func() string
}

func NewAdder(store ItemStore, categorizer Categorizer) *Adder {
	return &Adder{store: store, categorizer: categorizer, newID: uuid.NewString}
}

// Add stores item on list. A supplied category is kept, in its canonical
// spelling, only when it belongs to the list type's taxonomy; otherwise the
// item is categorized. Items that got the keyword fallback because the
// remote categorizer failed are queued for a recategorize_item job.
func (a *Adder) Add(ctx context.Context, list storage.SmartList, item storage.ListItem) (storage.ListItem, error) {
	if item.ID == "" {
		item.ID = a.newID()
	}
	item.ListID = list.ID
	item.Name = strings.TrimSpace(item.Name)

	source := ""
	if canon, ok := categorize.InTaxonomy(list.Type, item.Category); ok {
		item.Category = canon
	} else {
		if item.Category != "" {
			slog.Debug("ignoring category outside list taxonomy", "category", item.Category, "list_type", list.Type)
		}
		res := a.categorizer.Resolve(ctx, item.Name, list.Type)
		item.Category, source = res.Category, res.Source
	}

	stored, err := a.store.CreateItem(item)
	if err != nil {
		return storage.ListItem{}, err
	}
	if source == categorize.SourceFallback {
		if err := a.store.EnqueueJob(worker.NewRecategorizeJob(a.newID(), stored, list.Type)); err != nil {
			slog.Warn("could not enqueue recategorization", "item_id", stored.ID, "error", err)
		}
	}
	return stored, nil
}
