package queue

import (
	"fmt"
	"sync"
	"testing"

	"TextChainSettler/internal/models"
)

func intent(originator string) *models.PaymentIntent {
	return &models.PaymentIntent{
		RecipientAddress: "0x4d054FB258A260982F0bFab9560340d33D9E698B",
		Amount:           "100",
		Asset:            "TXTC",
		OriginatorPhone:  originator,
	}
}

func TestDrainPreservesEnqueueOrder(t *testing.T) {
	q := New()
	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, q.Enqueue(intent(fmt.Sprintf("+1555000%04d", i))))
	}

	batch := q.DrainAll()
	if batch == nil {
		t.Fatal("expected a batch")
	}
	if len(batch.Intents) != 5 {
		t.Fatalf("expected 5 intents, got %d", len(batch.Intents))
	}
	for i, in := range batch.Intents {
		if in.ID != ids[i] {
			t.Fatalf("intent %d out of order: got %s want %s", i, in.ID, ids[i])
		}
	}
	if q.Depth() != 0 {
		t.Fatalf("queue not emptied, depth=%d", q.Depth())
	}
}

func TestDrainAllEmptyReturnsNil(t *testing.T) {
	q := New()
	if batch := q.DrainAll(); batch != nil {
		t.Fatalf("expected nil batch, got %d intents", len(batch.Intents))
	}
}

func TestConcurrentEnqueueNeverLosesOrDuplicates(t *testing.T) {
	q := New()
	const producers = 8
	const perProducer = 200

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(intent(fmt.Sprintf("+1%03d%04d", p, i)))
			}
		}(p)
	}

	seen := make(map[string]int)
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	for {
		if batch := q.DrainAll(); batch != nil {
			for _, in := range batch.Intents {
				seen[in.ID]++
			}
		}
		select {
		case <-done:
			if batch := q.DrainAll(); batch != nil {
				for _, in := range batch.Intents {
					seen[in.ID]++
				}
			}
			if len(seen) != producers*perProducer {
				t.Fatalf("expected %d unique intents, got %d", producers*perProducer, len(seen))
			}
			for id, n := range seen {
				if n != 1 {
					t.Fatalf("intent %s drained %d times", id, n)
				}
			}
			if q.Depth() != 0 {
				t.Fatalf("intents left behind, depth=%d", q.Depth())
			}
			return
		default:
		}
	}
}

func TestRestoredIntentsDrainFirst(t *testing.T) {
	q := New()
	live := q.Enqueue(intent("+15550001111"))

	restored := []*models.PaymentIntent{intent("+15550002222"), intent("+15550003333")}
	restored[0].ID = "restored-1"
	restored[1].ID = "restored-2"
	q.Restore(restored)

	batch := q.DrainAll()
	if got := len(batch.Intents); got != 3 {
		t.Fatalf("expected 3 intents, got %d", got)
	}
	want := []string{"restored-1", "restored-2", live}
	for i, in := range batch.Intents {
		if in.ID != want[i] {
			t.Fatalf("position %d: got %s want %s", i, in.ID, want[i])
		}
	}
}
