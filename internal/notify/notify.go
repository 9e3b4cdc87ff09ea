package notify

import (
	"context"
	"log"

	"TextChainSettler/internal/models"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, body any) error
}

// Notifier turns a settlement outcome into per-identity events and hands them
// to the delivery channel. Dispatch is fire-and-forget: a publish failure is
// logged and dropped, never fed back into the settlement result.
type Notifier struct {
	Publisher Publisher
}

type withdrawalAlert struct {
	BatchID   string `json:"batch_id"`
	ChannelID string `json:"channel_id,omitempty"`
	Reason    string `json:"reason"`
}

func (n *Notifier) Emit(ctx context.Context, batch *models.Batch, outcome *models.SettlementOutcome) {
	for _, event := range BuildEvents(batch, outcome) {
		key := "settlement." + event.Outcome
		if err := n.Publisher.Publish(ctx, key, event); err != nil {
			log.Printf("notify publish failed identity=%s key=%s: %v", event.Identity, key, err)
		}
	}
	if outcome.WithdrawalAlert {
		alert := withdrawalAlert{
			BatchID:   outcome.BatchID,
			ChannelID: outcome.ChannelID,
			Reason:    outcome.WithdrawalReason,
		}
		if err := n.Publisher.Publish(ctx, "settlement.alert", alert); err != nil {
			log.Printf("notify alert publish failed batch=%s: %v", outcome.BatchID, err)
		}
	}
}

// BuildEvents produces one event per originator and, when the intent carries
// a distinct known recipient phone, one per recipient.
func BuildEvents(batch *models.Batch, outcome *models.SettlementOutcome) []models.NotificationEvent {
	settled := make(map[string]struct{}, len(outcome.SettledIntentIDs))
	for _, id := range outcome.SettledIntentIDs {
		settled[id] = struct{}{}
	}

	var events []models.NotificationEvent
	for _, intent := range batch.Intents {
		result := "failed"
		if _, ok := settled[intent.ID]; ok {
			result = "settled"
		}
		ref := outcome.OnChainRefs[intent.ID]

		counterpart := intent.RecipientPhone
		if counterpart == "" {
			counterpart = intent.RecipientAddress
		}
		events = append(events, models.NotificationEvent{
			Identity:    intent.OriginatorPhone,
			Role:        models.RoleOriginator,
			Amount:      intent.Amount,
			Asset:       intent.Asset,
			Counterpart: counterpart,
			Outcome:     result,
			Reference:   ref,
		})

		if intent.RecipientPhone != "" && intent.RecipientPhone != intent.OriginatorPhone {
			events = append(events, models.NotificationEvent{
				Identity:    intent.RecipientPhone,
				Role:        models.RoleRecipient,
				Amount:      intent.Amount,
				Asset:       intent.Asset,
				Counterpart: intent.OriginatorPhone,
				Outcome:     result,
				Reference:   ref,
			})
		}
	}
	return events
}
