package scan

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the processing state of a batch item
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
)

func (s Status) String() string { return string(s) }

// Terminal reports whether the item is finished
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError
}

// Item is one tracked unit of batch work.
// Payload is set iff Status is success, ErrorMessage iff Status is error.
type Item struct {
	Index        int             `json:"index"`
	FileName     string          `json:"file_name"`
	Status       Status          `json:"status"`
	Payload      json.RawMessage `json:"data,omitempty"`
	ErrorMessage string          `json:"error,omitempty"`
	Err          error           `json:"-"`
}

// Counts summarizes a snapshot
type Counts struct {
	Total      int
	Pending    int
	Processing int
	Succeeded  int
	Failed     int
}

// Snapshot is an immutable copy of a batch's items
type Snapshot struct {
	BatchID string
	Items   []Item
}

// Done reports whether every item has left pending and processing
func (s Snapshot) Done() bool {
	for _, item := range s.Items {
		if !item.Status.Terminal() {
			return false
		}
	}
	return true
}

// Counts tallies the items by status
func (s Snapshot) Counts() Counts {
	c := Counts{Total: len(s.Items)}
	for _, item := range s.Items {
		switch item.Status {
		case StatusPending:
			c.Pending++
		case StatusProcessing:
			c.Processing++
		case StatusSuccess:
			c.Succeeded++
		case StatusError:
			c.Failed++
		}
	}
	return c
}

// Tracker owns the items of the current batch. Submitting a new batch
// discards the previous items; updates addressed to a discarded batch are ignored.
type Tracker struct {
	mu      sync.Mutex
	batchID string
	items   []Item
}

// NewTracker creates an empty Tracker
func NewTracker() *Tracker {
	return &Tracker{}
}

// Snapshot returns a copy of the current batch
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Snapshot {
	items := make([]Item, len(t.items))
	for i, item := range t.items {
		if item.Payload != nil {
			item.Payload = append(json.RawMessage(nil), item.Payload...)
		}
		items[i] = item
	}
	return Snapshot{BatchID: t.batchID, Items: items}
}

// start replaces the current batch with one pending item per name
func (t *Tracker) start(names []string) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.batchID = uuid.NewString()
	t.items = make([]Item, len(names))
	for i, name := range names {
		t.items[i] = Item{Index: i, FileName: name, Status: StatusPending}
	}
	return t.snapshotLocked()
}

// update is the single mutation entry point. It returns false when batchID
// is no longer the current batch.
func (t *Tracker) update(batchID string, index int, fn func(*Item)) (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if batchID != t.batchID || index < 0 || index >= len(t.items) {
		return Snapshot{}, false
	}
	item := t.items[index]
	fn(&item)
	t.items[index] = item
	return t.snapshotLocked(), true
}

// Batch drives an ordered list of images through a Scanner, one at a time
type Batch struct {
	scanner Scanner
	tracker *Tracker
	log     *slog.Logger
}

// NewBatch creates a Batch reporting into tracker
func NewBatch(scanner Scanner, tracker *Tracker) *Batch {
	return NewBatchWithLogger(scanner, tracker, slog.Default())
}

// NewBatchWithLogger creates a Batch with a custom logger
func NewBatchWithLogger(scanner Scanner, tracker *Tracker, log *slog.Logger) *Batch {
	return &Batch{
		scanner: scanner,
		tracker: tracker,
		log:     log,
	}
}

// ProcessAll scans images sequentially in input order. observe, when not
// nil, receives a snapshot after every status transition. A failed item never
// stops the batch. If another batch is started on the same tracker the
// remaining items of this one are abandoned.
func (b *Batch) ProcessAll(ctx context.Context, images []Image, endpoint string, observe func(Snapshot)) Snapshot {
	names := make([]string, len(images))
	for i, img := range images {
		names[i] = img.Name
	}

	last := b.tracker.start(names)
	batchID := last.BatchID
	notify := func(s Snapshot) {
		last = s
		if observe != nil {
			observe(s)
		}
	}
	notify(last)

	log := b.log.With("batch_id", batchID)
	log.Info("Starting batch", "items", len(images))
	start := time.Now()

	for i, img := range images {
		snap, ok := b.tracker.update(batchID, i, func(item *Item) {
			item.Status = StatusProcessing
		})
		if !ok {
			log.Warn("Batch superseded, abandoning remaining items", "index", i)
			return last
		}
		notify(snap)

		outcome := b.scanner.Scan(ctx, img, endpoint)

		snap, ok = b.tracker.update(batchID, i, func(item *Item) {
			if outcome.Succeeded() {
				item.Status = StatusSuccess
				item.Payload = outcome.Payload
				return
			}
			item.Status = StatusError
			item.Err = outcome.Err
			item.ErrorMessage = outcome.Message()
		})
		if !ok {
			log.Warn("Ignoring result for superseded batch", "index", i, "filename", img.Name)
			return last
		}
		if !outcome.Succeeded() {
			log.Error("Batch item failed", "index", i, "filename", img.Name, "error", outcome.Err)
		}
		notify(snap)
	}

	counts := last.Counts()
	log.Info("Batch finished",
		"total", counts.Total,
		"succeeded", counts.Succeeded,
		"failed", counts.Failed,
		"duration", time.Since(start),
	)
	return last
}
