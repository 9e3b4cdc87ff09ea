package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"TextChainSettler/internal/models"
)

type IntentSource interface {
	Depth() int
	DrainAll() *models.Batch
}

type Settler interface {
	Run(ctx context.Context, batch *models.Batch) *models.SettlementOutcome
}

type Crediter interface {
	Credit(ctx context.Context, batch *models.Batch, settledIDs []string) (map[string]string, error)
}

type Journal interface {
	MarkIntents(ctx context.Context, batchID string, ids []string, status models.IntentStatus) error
	InsertOutcome(ctx context.Context, outcome *models.SettlementOutcome) error
}

type Notifier interface {
	Emit(ctx context.Context, batch *models.Batch, outcome *models.SettlementOutcome)
}

// Worker runs the batch cadence: a fixed ticker, a minimum-depth gate, and at
// most one settlement session in flight. A tick that fires mid-session is
// skipped outright; undrained intents simply wait for a later tick.
type Worker struct {
	Queue        IntentSource
	Session      Settler
	Bridge       Crediter
	Journal      Journal
	Notifier     Notifier
	Interval     time.Duration
	MinBatchSize int

	mu sync.Mutex
}

func (w *Worker) Run(ctx context.Context) {
	interval := w.Interval
	if interval <= 0 {
		interval = 3 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// An in-flight session is allowed to reach a terminal state on
			// shutdown; cancellation only stops the loop.
			w.Tick(context.WithoutCancel(ctx))
		}
	}
}

// Tick performs one gated settlement pass. Returns whether a batch was
// drained.
func (w *Worker) Tick(ctx context.Context) bool {
	if !w.mu.TryLock() {
		log.Printf("tick skipped: session in flight")
		return false
	}
	defer w.mu.Unlock()
	return w.settleOnce(ctx)
}

func (w *Worker) settleOnce(ctx context.Context) bool {
	min := w.MinBatchSize
	if min < 1 {
		min = 1
	}
	if depth := w.Queue.Depth(); depth < min {
		return false
	}
	batch := w.Queue.DrainAll()
	if batch == nil {
		return false
	}
	log.Printf("batch %s drained intents=%d", batch.ID, len(batch.Intents))

	outcome := w.Session.Run(ctx, batch)
	if outcome.OnChainRefs == nil {
		outcome.OnChainRefs = map[string]string{}
	}

	if len(outcome.SettledIntentIDs) > 0 {
		refs, err := w.Bridge.Credit(ctx, batch, outcome.SettledIntentIDs)
		if err != nil {
			log.Printf("credit alert batch=%s: %v", batch.ID, err)
		}
		for id, ref := range refs {
			outcome.OnChainRefs[id] = ref
		}
	}

	if err := w.Journal.MarkIntents(ctx, batch.ID, outcome.SettledIntentIDs, models.IntentSettled); err != nil {
		log.Printf("journal settled failed batch=%s: %v", batch.ID, err)
	}
	if err := w.Journal.MarkIntents(ctx, batch.ID, outcome.FailedIntentIDs, models.IntentFailed); err != nil {
		log.Printf("journal failed failed batch=%s: %v", batch.ID, err)
	}
	if err := w.Journal.InsertOutcome(ctx, outcome); err != nil {
		log.Printf("journal outcome failed batch=%s: %v", batch.ID, err)
	}

	w.Notifier.Emit(ctx, batch, outcome)

	log.Printf("batch %s concluded settled=%d failed=%d alert=%t",
		batch.ID, len(outcome.SettledIntentIDs), len(outcome.FailedIntentIDs), outcome.WithdrawalAlert)
	return true
}
