package session

import (
	"testing"

	"TextChainSettler/internal/models"
)

func TestRequiredFundingAddsReserveRoundedUp(t *testing.T) {
	batch := &models.Batch{Intents: []*models.PaymentIntent{
		{ID: "a", Amount: "100", Asset: "TXTC"},
		{ID: "b", Amount: "33", Asset: "TXTC"},
	}}

	// 133 + ceil(133 * 150 / 10000) = 133 + 2
	got, err := requiredFunding(batch, "TXTC", 150)
	if err != nil {
		t.Fatalf("requiredFunding: %v", err)
	}
	if got != "135" {
		t.Fatalf("got %s want 135", got)
	}
}

func TestRequiredFundingSkipsOtherAssets(t *testing.T) {
	batch := &models.Batch{Intents: []*models.PaymentIntent{
		{ID: "a", Amount: "100", Asset: "TXTC"},
		{ID: "b", Amount: "500", Asset: "USDX"},
	}}

	got, err := requiredFunding(batch, "TXTC", 0)
	if err != nil {
		t.Fatalf("requiredFunding: %v", err)
	}
	if got != "100" {
		t.Fatalf("got %s want 100", got)
	}
}

func TestRequiredFundingRejectsInvalidAmount(t *testing.T) {
	batch := &models.Batch{Intents: []*models.PaymentIntent{
		{ID: "a", Amount: "12.5", Asset: "TXTC"},
	}}
	if _, err := requiredFunding(batch, "TXTC", 0); err == nil {
		t.Fatal("expected error for non-integer amount")
	}
}
