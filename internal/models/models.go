package models

import "time"

type IntentStatus string

const (
	IntentPending IntentStatus = "pending"
	IntentSettled IntentStatus = "settled"
	IntentFailed  IntentStatus = "failed"
)

// PaymentIntent is one user-initiated transfer awaiting settlement. Immutable
// after enqueue; amounts are decimal strings in the asset's base unit.
type PaymentIntent struct {
	ID               string
	RecipientAddress string
	RecipientPhone   string
	Amount           string
	Asset            string
	OriginatorPhone  string
	SubmittedAt      time.Time
}

// Batch is an ordered snapshot drained atomically from the intent queue for
// one settlement session. Never empty.
type Batch struct {
	ID        string
	SessionID string
	Intents   []*PaymentIntent
	DrainedAt time.Time
}

func (b *Batch) IntentIDs() []string {
	ids := make([]string, 0, len(b.Intents))
	for _, in := range b.Intents {
		ids = append(ids, in.ID)
	}
	return ids
}

type Phase string

const (
	PhaseAuthenticating Phase = "authenticating"
	PhaseChannelOpening Phase = "channel_opening"
	PhaseFunding        Phase = "funding"
	PhaseTransferring   Phase = "transferring"
	PhaseClosing        Phase = "closing"
	PhaseWithdrawing    Phase = "withdrawing"
	PhaseComplete       Phase = "complete"
)

// SettlementOutcome is the terminal record of one batch. SettledIntentIDs and
// FailedIntentIDs partition the batch's intents; the boundary is the number
// of off-chain transfers acknowledged before the session stopped.
type SettlementOutcome struct {
	BatchID          string
	SessionID        string
	ChannelID        string
	SettledIntentIDs []string
	FailedIntentIDs  []string
	OnChainRefs      map[string]string
	FailedPhase      Phase
	FailureReason    string
	WithdrawalAlert  bool
	WithdrawalReason string
	ConcludedAt      time.Time
}

func (o *SettlementOutcome) FullSuccess() bool {
	return o.FailureReason == "" && len(o.FailedIntentIDs) == 0
}

type Role string

const (
	RoleOriginator Role = "originator"
	RoleRecipient  Role = "recipient"
)

// NotificationEvent is the per-identity handoff to the delivery channel.
type NotificationEvent struct {
	Identity    string `json:"identity"`
	Role        Role   `json:"role"`
	Amount      string `json:"amount"`
	Asset       string `json:"asset"`
	Counterpart string `json:"counterpart"`
	Outcome     string `json:"outcome"`
	Reference   string `json:"reference,omitempty"`
}
