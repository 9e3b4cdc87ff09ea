package bridge

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"TextChainSettler/internal/models"
)

type stubCredits struct {
	recorded map[string]string
}

func (c *stubCredits) GetCredit(ctx context.Context, intentID string) (string, bool, error) {
	hash, ok := c.recorded[intentID]
	return hash, ok, nil
}

func (c *stubCredits) RecordCredit(ctx context.Context, intentID, txHash string) error {
	if c.recorded == nil {
		c.recorded = make(map[string]string)
	}
	c.recorded[intentID] = txHash
	return nil
}

type stubLedger struct {
	submits    []creditTx
	failIntent string
}

func (l *stubLedger) SubmitTx(ctx context.Context, tx any) (string, error) {
	ct := tx.(creditTx)
	if ct.IntentID == l.failIntent {
		return "", errors.New("broadcast failed")
	}
	l.submits = append(l.submits, ct)
	return fmt.Sprintf("0xtx%d", len(l.submits)), nil
}

func (l *stubLedger) WaitConfirmed(ctx context.Context, hash string) error { return nil }

func creditBatch(n int) *models.Batch {
	b := &models.Batch{ID: "batch-1"}
	for i := 0; i < n; i++ {
		b.Intents = append(b.Intents, &models.PaymentIntent{
			ID:               fmt.Sprintf("intent-%d", i),
			RecipientAddress: "0x4d054FB258A260982F0bFab9560340d33D9E698B",
			Amount:           "100",
			Asset:            "TXTC",
		})
	}
	return b
}

func TestCreditIsIdempotentAcrossRuns(t *testing.T) {
	credits := &stubCredits{}
	ledger := &stubLedger{}
	b := &Bridge{Credits: credits, Ledger: ledger, Contract: "0xcontract"}
	batch := creditBatch(2)
	settled := []string{"intent-0", "intent-1"}

	refs, err := b.Credit(context.Background(), batch, settled)
	if err != nil {
		t.Fatalf("first credit: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("refs %v", refs)
	}
	if len(ledger.submits) != 2 {
		t.Fatalf("submissions %d", len(ledger.submits))
	}

	again, err := b.Credit(context.Background(), batch, settled)
	if err != nil {
		t.Fatalf("second credit: %v", err)
	}
	if len(ledger.submits) != 2 {
		t.Fatalf("replay submitted new transactions: %d", len(ledger.submits))
	}
	for id, ref := range refs {
		if again[id] != ref {
			t.Fatalf("ref changed on replay for %s: %s vs %s", id, ref, again[id])
		}
	}
}

func TestCreditOnlySettledIntents(t *testing.T) {
	ledger := &stubLedger{}
	b := &Bridge{Credits: &stubCredits{}, Ledger: ledger, Contract: "0xcontract"}
	batch := creditBatch(3)

	refs, err := b.Credit(context.Background(), batch, []string{"intent-0", "intent-2"})
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("refs %v", refs)
	}
	if _, ok := refs["intent-1"]; ok {
		t.Fatal("unsettled intent credited")
	}
	for _, tx := range ledger.submits {
		if tx.IntentID == "intent-1" {
			t.Fatal("unsettled intent submitted")
		}
	}
}

func TestCreditFailureContinuesWithRemaining(t *testing.T) {
	ledger := &stubLedger{failIntent: "intent-1"}
	b := &Bridge{Credits: &stubCredits{}, Ledger: ledger, Contract: "0xcontract"}
	batch := creditBatch(3)

	refs, err := b.Credit(context.Background(), batch, []string{"intent-0", "intent-1", "intent-2"})
	if err == nil {
		t.Fatal("expected an error for the failed credit")
	}
	if len(refs) != 2 {
		t.Fatalf("refs %v", refs)
	}
	if _, ok := refs["intent-2"]; !ok {
		t.Fatal("credit after the failure was not attempted")
	}
}
