package notify

import (
	"context"
	"errors"
	"testing"

	"TextChainSettler/internal/models"
)

type stubPublisher struct {
	keys   []string
	bodies []any
	err    error
}

func (p *stubPublisher) Publish(ctx context.Context, routingKey string, body any) error {
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, routingKey)
	p.bodies = append(p.bodies, body)
	return nil
}

func notifyBatch() *models.Batch {
	return &models.Batch{ID: "batch-1", Intents: []*models.PaymentIntent{
		{
			ID:               "intent-0",
			RecipientAddress: "0x4d054FB258A260982F0bFab9560340d33D9E698B",
			RecipientPhone:   "+15550002222",
			Amount:           "100",
			Asset:            "TXTC",
			OriginatorPhone:  "+15550001111",
		},
		{
			ID:               "intent-1",
			RecipientAddress: "0x6b5b8b917f3161aeb72105b988E55910e231d240",
			Amount:           "50",
			Asset:            "TXTC",
			OriginatorPhone:  "+15550003333",
		},
	}}
}

func TestBuildEventsFansOutToBothParties(t *testing.T) {
	batch := notifyBatch()
	outcome := &models.SettlementOutcome{
		BatchID:          "batch-1",
		SettledIntentIDs: []string{"intent-0"},
		FailedIntentIDs:  []string{"intent-1"},
		OnChainRefs:      map[string]string{"intent-0": "0xtx1"},
	}

	events := BuildEvents(batch, outcome)

	// intent-0 has a known recipient phone: originator + recipient. intent-1
	// only has an address: originator alone.
	if len(events) != 3 {
		t.Fatalf("events %d", len(events))
	}

	first := events[0]
	if first.Identity != "+15550001111" || first.Role != models.RoleOriginator {
		t.Fatalf("event 0: %+v", first)
	}
	if first.Outcome != "settled" || first.Reference != "0xtx1" {
		t.Fatalf("event 0 outcome: %+v", first)
	}
	if first.Counterpart != "+15550002222" {
		t.Fatalf("event 0 counterpart: %s", first.Counterpart)
	}

	second := events[1]
	if second.Identity != "+15550002222" || second.Role != models.RoleRecipient {
		t.Fatalf("event 1: %+v", second)
	}
	if second.Counterpart != "+15550001111" {
		t.Fatalf("event 1 counterpart: %s", second.Counterpart)
	}

	third := events[2]
	if third.Identity != "+15550003333" || third.Outcome != "failed" {
		t.Fatalf("event 2: %+v", third)
	}
	if third.Counterpart != "0x6b5b8b917f3161aeb72105b988E55910e231d240" {
		t.Fatalf("event 2 counterpart: %s", third.Counterpart)
	}
	if third.Reference != "" {
		t.Fatalf("failed intent carries a reference: %s", third.Reference)
	}
}

func TestEmitRoutesByOutcome(t *testing.T) {
	pub := &stubPublisher{}
	n := &Notifier{Publisher: pub}
	outcome := &models.SettlementOutcome{
		BatchID:          "batch-1",
		SettledIntentIDs: []string{"intent-0"},
		FailedIntentIDs:  []string{"intent-1"},
		OnChainRefs:      map[string]string{"intent-0": "0xtx1"},
	}

	n.Emit(context.Background(), notifyBatch(), outcome)

	want := []string{"settlement.settled", "settlement.settled", "settlement.failed"}
	if len(pub.keys) != len(want) {
		t.Fatalf("published keys %v", pub.keys)
	}
	for i, key := range want {
		if pub.keys[i] != key {
			t.Fatalf("key %d: got %s want %s", i, pub.keys[i], key)
		}
	}
}

func TestEmitPublishesWithdrawalAlert(t *testing.T) {
	pub := &stubPublisher{}
	n := &Notifier{Publisher: pub}
	outcome := &models.SettlementOutcome{
		BatchID:          "batch-1",
		ChannelID:        "ch-1",
		SettledIntentIDs: []string{"intent-0", "intent-1"},
		WithdrawalAlert:  true,
		WithdrawalReason: "custody locked",
	}

	n.Emit(context.Background(), notifyBatch(), outcome)

	last := pub.keys[len(pub.keys)-1]
	if last != "settlement.alert" {
		t.Fatalf("last key %s", last)
	}
	alert, ok := pub.bodies[len(pub.bodies)-1].(withdrawalAlert)
	if !ok {
		t.Fatalf("alert body %T", pub.bodies[len(pub.bodies)-1])
	}
	if alert.Reason != "custody locked" || alert.ChannelID != "ch-1" {
		t.Fatalf("alert %+v", alert)
	}
}

func TestEmitSwallowsPublishFailures(t *testing.T) {
	pub := &stubPublisher{err: errors.New("broker down")}
	n := &Notifier{Publisher: pub}
	outcome := &models.SettlementOutcome{
		BatchID:          "batch-1",
		SettledIntentIDs: []string{"intent-0", "intent-1"},
	}

	// Must not panic or propagate.
	n.Emit(context.Background(), notifyBatch(), outcome)
}
