package bridge

import (
	"context"
	"errors"
	"fmt"
	"log"

	"TextChainSettler/internal/models"
)

// Credits is the persisted idempotency registry (store.Store in production).
type Credits interface {
	GetCredit(ctx context.Context, intentID string) (string, bool, error)
	RecordCredit(ctx context.Context, intentID, txHash string) error
}

type Ledger interface {
	SubmitTx(ctx context.Context, tx any) (string, error)
	WaitConfirmed(ctx context.Context, hash string) error
}

type creditTx struct {
	Type      string `json:"type"`
	Contract  string `json:"contract"`
	IntentID  string `json:"intent_id"`
	Recipient string `json:"recipient"`
	Asset     string `json:"asset"`
	Amount    string `json:"amount"`
}

// Bridge performs the on-chain leg that makes a settled transfer visible to
// its recipient. Credit is idempotent per intent id: a restart between the
// off-chain acknowledgment and the credit must not double-credit.
type Bridge struct {
	Credits  Credits
	Ledger   Ledger
	Contract string
}

// Credit issues one on-chain credit per settled intent, in batch order, and
// returns the per-intent transaction references. A failed credit does not
// stop the remaining ones; the joined error is the operational alert.
func (b *Bridge) Credit(ctx context.Context, batch *models.Batch, settledIDs []string) (map[string]string, error) {
	settled := make(map[string]struct{}, len(settledIDs))
	for _, id := range settledIDs {
		settled[id] = struct{}{}
	}

	refs := make(map[string]string, len(settledIDs))
	var errs []error
	for _, intent := range batch.Intents {
		if _, ok := settled[intent.ID]; !ok {
			continue
		}
		ref, err := b.creditOne(ctx, intent)
		if err != nil {
			log.Printf("credit failed intent=%s: %v", intent.ID, err)
			errs = append(errs, fmt.Errorf("intent %s: %w", intent.ID, err))
			continue
		}
		refs[intent.ID] = ref
	}
	return refs, errors.Join(errs...)
}

func (b *Bridge) creditOne(ctx context.Context, intent *models.PaymentIntent) (string, error) {
	if hash, found, err := b.Credits.GetCredit(ctx, intent.ID); err != nil {
		return "", err
	} else if found {
		return hash, nil
	}

	hash, err := b.Ledger.SubmitTx(ctx, creditTx{
		Type:      "credit",
		Contract:  b.Contract,
		IntentID:  intent.ID,
		Recipient: intent.RecipientAddress,
		Asset:     intent.Asset,
		Amount:    intent.Amount,
	})
	if err != nil {
		return "", err
	}
	if err := b.Ledger.WaitConfirmed(ctx, hash); err != nil {
		return "", err
	}
	if err := b.Credits.RecordCredit(ctx, intent.ID, hash); err != nil {
		return "", err
	}
	return hash, nil
}
