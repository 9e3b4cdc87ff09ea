package queue

import (
	"sync"
	"time"

	"TextChainSettler/internal/models"

	"github.com/google/uuid"
)

// Queue is the in-memory intent store. Producers enqueue concurrently; a
// single scheduler drains. An intent is owned by the queue until the drain
// that removes it, and by exactly one batch afterwards.
type Queue struct {
	mu      sync.Mutex
	intents []*models.PaymentIntent
}

func New() *Queue {
	return &Queue{}
}

// Enqueue assigns the intent id and appends in arrival order. Never blocks on
// settlement activity.
func (q *Queue) Enqueue(intent *models.PaymentIntent) string {
	q.mu.Lock()
	defer q.mu.Unlock()
	if intent.ID == "" {
		intent.ID = uuid.NewString()
	}
	if intent.SubmittedAt.IsZero() {
		intent.SubmittedAt = time.Now().UTC()
	}
	q.intents = append(q.intents, intent)
	return intent.ID
}

// Restore reloads journaled intents at startup, ahead of anything enqueued
// since. Callers pass them in submitted-at order.
func (q *Queue) Restore(intents []*models.PaymentIntent) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.intents = append(append([]*models.PaymentIntent{}, intents...), q.intents...)
}

func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.intents)
}

// DrainAll atomically snapshots the queue into a batch and empties it. No
// intent is ever visible both in the returned batch and in the queue. Returns
// nil when the queue is empty; a batch is non-empty by construction.
func (q *Queue) DrainAll() *models.Batch {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.intents) == 0 {
		return nil
	}
	drained := q.intents
	q.intents = nil
	return &models.Batch{
		ID:        uuid.NewString(),
		Intents:   drained,
		DrainedAt: time.Now().UTC(),
	}
}
