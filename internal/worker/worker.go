// Package worker runs background jobs from the SQLite job queue.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gabai/gabai/internal/metrics"
	"github.com/gabai/gabai/internal/storage"
)

// JobRecategorizeItem retries remote categorization for an item that was
// stored with its keyword fallback category.
const JobRecategorizeItem = "recategorize_item"

// JobStore abstracts the job queue and the item operations jobs need.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
	GetItem(id string) (storage.ListItem, error)
	UpdateItem(id string, p storage.ItemPatch) (storage.ListItem, error)
}

// Categorizer is implemented by categorize.Categorizer.
type Categorizer interface {
	Categorize(ctx context.Context, itemName, listType string) (string, error)
}

// Worker processes recategorize_item jobs.
type Worker struct {
	store       JobStore
	categorizer Categorizer
	poll        time.Duration
	logger      *slog.Logger
}

// NewWorker creates a Worker. If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, categorizer Categorizer, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:       store,
		categorizer: categorizer,
		poll:        pollInterval,
		logger:      slog.Default().With("component", "worker"),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobRecategorizeItem})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "attempt", job.Attempts+1, "error", err)
		metrics.JobProcessed(job.Type, "failed")
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	metrics.JobProcessed(job.Type, "completed")
	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

// RecategorizePayload is the JSON payload of a recategorize_item job.
type RecategorizePayload struct {
	ItemID   string `json:"item_id"`
	Name     string `json:"name"`
	ListType string `json:"list_type"`
	// Category is the fallback the item was stored with; a different current
	// category means the user has changed it and the job is skipped.
	Category string `json:"category"`
}

// NewRecategorizeJob builds the queue entry for an item stored with a
// fallback category.
func NewRecategorizeJob(jobID string, item storage.ListItem, listType string) storage.Job {
	payload, _ := json.Marshal(RecategorizePayload{
		ItemID:   item.ID,
		Name:     item.Name,
		ListType: listType,
		Category: item.Category,
	})
	return storage.Job{
		ID:          jobID,
		Type:        JobRecategorizeItem,
		PayloadJSON: string(payload),
	}
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	var payload RecategorizePayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}

	item, err := w.store.GetItem(payload.ItemID)
	if errors.Is(err, storage.ErrNotFound) {
		w.logger.Debug("item deleted before recategorization", "item_id", payload.ItemID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading item %s: %w", payload.ItemID, err)
	}
	if item.Category != payload.Category {
		w.logger.Debug("item category changed since enqueue, skipping", "item_id", item.ID)
		return nil
	}

	category, err := w.categorizer.Categorize(ctx, item.Name, payload.ListType)
	if err != nil {
		return err
	}
	if category == item.Category {
		return nil
	}

	if _, err := w.store.UpdateItem(item.ID, storage.ItemPatch{Category: &category}); err != nil {
		return fmt.Errorf("updating item %s: %w", item.ID, err)
	}
	w.logger.Info("item recategorized", "item_id", item.ID, "from", payload.Category, "to", category)
	return nil
}
