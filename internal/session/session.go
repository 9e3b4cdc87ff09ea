package session

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"TextChainSettler/internal/clearnode"
	"TextChainSettler/internal/models"
	"TextChainSettler/internal/signer"

	"github.com/google/uuid"
)

// Counterpart is one authenticated settlement connection. Implemented by
// clearnode.Client; stubbed in tests.
type Counterpart interface {
	Authenticate(ctx context.Context, account, ephemeral *signer.Identity) error
	CreateChannel(ctx context.Context, asset string) (*clearnode.SignedState, error)
	ResizeChannel(ctx context.Context, channelID, amount string) (*clearnode.SignedState, error)
	Transfer(ctx context.Context, channelID, destination, asset, amount string) error
	CloseChannel(ctx context.Context, channelID string) (*clearnode.SignedState, error)
	LedgerBalance(ctx context.Context, asset string) (string, error)
	Withdraw(ctx context.Context, asset, amount string) (*clearnode.SignedState, error)
	Close()
}

// Dialer opens a fresh counterpart connection; one per session.
type Dialer interface {
	Dial(ctx context.Context) (Counterpart, error)
}

// Ledger submits co-signed channel states and waits for finality.
type Ledger interface {
	SubmitTx(ctx context.Context, tx any) (string, error)
	WaitConfirmed(ctx context.Context, hash string) error
}

// stateTx is the on-chain submission for an open/resize/close/withdraw state.
type stateTx struct {
	Type      string                 `json:"type"`
	State     clearnode.ChannelState `json:"state"`
	ServerSig string                 `json:"server_sig"`
	ClientSig string                 `json:"client_sig"`
}

// Runner drives one settlement session per batch through the fixed phase
// sequence. Run never returns an error: every failure is folded into the
// outcome so the scheduler always reaches its next tick.
type Runner struct {
	Dialer           Dialer
	Ledger           Ledger
	Account          *signer.Identity
	PhaseTimeout     time.Duration
	ReserveMarginBps int64

	// NewEphemeral is swappable in tests; defaults to signer.NewEphemeral.
	NewEphemeral func() (*signer.Identity, error)
}

func (r *Runner) Run(ctx context.Context, batch *models.Batch) *models.SettlementOutcome {
	sessionID := uuid.NewString()
	batch.SessionID = sessionID
	out := &models.SettlementOutcome{
		BatchID:     batch.ID,
		SessionID:   sessionID,
		OnChainRefs: map[string]string{},
	}

	completed := 0
	fail := func(phase models.Phase, reason string) *models.SettlementOutcome {
		log.Printf("session %s failed phase=%s reason=%s settled=%d/%d",
			sessionID, phase, reason, completed, len(batch.Intents))
		out.FailedPhase = phase
		out.FailureReason = reason
		splitByCount(out, batch, completed)
		out.ConcludedAt = time.Now().UTC()
		return out
	}

	ephemeral, err := r.newEphemeral()
	if err != nil {
		return fail(models.PhaseAuthenticating, fmt.Sprintf("session key generation: %v", err))
	}

	// Authenticating
	pctx, cancel := r.phaseCtx(ctx)
	cp, err := r.Dialer.Dial(pctx)
	if err != nil {
		cancel()
		return fail(models.PhaseAuthenticating, fmt.Sprintf("dial: %v", err))
	}
	defer cp.Close()
	err = cp.Authenticate(pctx, r.Account, ephemeral)
	cancel()
	if err != nil {
		return fail(models.PhaseAuthenticating, err.Error())
	}

	asset := batch.Intents[0].Asset

	// ChannelOpening
	pctx, cancel = r.phaseCtx(ctx)
	state, err := cp.CreateChannel(pctx, asset)
	if err == nil {
		out.ChannelID = state.State.ChannelID
		err = r.submitState(pctx, "channel_open", state)
	}
	cancel()
	if err != nil {
		return fail(models.PhaseChannelOpening, err.Error())
	}
	log.Printf("session %s channel=%s open asset=%s intents=%d",
		sessionID, out.ChannelID, asset, len(batch.Intents))

	// Funding
	required, err := requiredFunding(batch, asset, r.ReserveMarginBps)
	if err != nil {
		return fail(models.PhaseFunding, err.Error())
	}
	pctx, cancel = r.phaseCtx(ctx)
	state, err = cp.ResizeChannel(pctx, out.ChannelID, required)
	if err == nil && compareAmounts(state.State.Amount, required) < 0 {
		// Contract violation: never submit an underfunded resize.
		err = fmt.Errorf("underfunded resize: got %s, need %s", state.State.Amount, required)
	}
	if err == nil {
		err = r.submitState(pctx, "channel_resize", state)
	}
	cancel()
	if err != nil {
		return fail(models.PhaseFunding, err.Error())
	}

	// Transferring, strict arrival order. A failure halts the loop with the
	// acknowledged count frozen; no retry, no skip-ahead.
	for i, intent := range batch.Intents {
		if intent.Asset != asset {
			return fail(models.PhaseTransferring,
				fmt.Sprintf("transfer %d/%d: asset %s does not match channel asset %s",
					i+1, len(batch.Intents), intent.Asset, asset))
		}
		pctx, cancel = r.phaseCtx(ctx)
		err = cp.Transfer(pctx, out.ChannelID, intent.RecipientAddress, intent.Asset, intent.Amount)
		cancel()
		if err != nil {
			return fail(models.PhaseTransferring,
				fmt.Sprintf("transfer %d/%d: %v", i+1, len(batch.Intents), err))
		}
		completed++
	}

	// Closing
	pctx, cancel = r.phaseCtx(ctx)
	state, err = cp.CloseChannel(pctx, out.ChannelID)
	if err == nil {
		err = r.submitState(pctx, "channel_close", state)
	}
	cancel()
	if err != nil {
		return fail(models.PhaseClosing, err.Error())
	}

	// Withdrawing is best effort: a failure here strands custodial funds but
	// does not unwind settled transfers. Surface it as a distinct alert.
	pctx, cancel = r.phaseCtx(ctx)
	r.withdrawResidual(pctx, cp, asset, out)
	cancel()

	splitByCount(out, batch, completed)
	out.ConcludedAt = time.Now().UTC()
	log.Printf("session %s complete channel=%s settled=%d", sessionID, out.ChannelID, completed)
	return out
}

func (r *Runner) withdrawResidual(ctx context.Context, cp Counterpart, asset string, out *models.SettlementOutcome) {
	balance, err := cp.LedgerBalance(ctx, asset)
	if err != nil {
		out.WithdrawalAlert = true
		out.WithdrawalReason = fmt.Sprintf("balance query: %v", err)
		return
	}
	if compareAmounts(balance, "0") <= 0 {
		return
	}
	state, err := cp.Withdraw(ctx, asset, balance)
	if err == nil {
		err = r.submitState(ctx, "withdrawal", state)
	}
	if err != nil {
		out.WithdrawalAlert = true
		out.WithdrawalReason = fmt.Sprintf("withdraw %s %s: %v", balance, asset, err)
	}
}

// submitState co-signs the counterpart's state with the long-lived identity,
// broadcasts it, and blocks until finality.
func (r *Runner) submitState(ctx context.Context, kind string, state *clearnode.SignedState) error {
	digest := signer.Keccak([]byte(state.State.StateHash))
	tx := stateTx{
		Type:      kind,
		State:     state.State,
		ServerSig: state.ServerSig,
		ClientSig: hex.EncodeToString(r.Account.Sign(digest)),
	}
	hash, err := r.Ledger.SubmitTx(ctx, tx)
	if err != nil {
		return fmt.Errorf("%s submit: %w", kind, err)
	}
	if err := r.Ledger.WaitConfirmed(ctx, hash); err != nil {
		return fmt.Errorf("%s confirm: %w", kind, err)
	}
	return nil
}

func (r *Runner) phaseCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := r.PhaseTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *Runner) newEphemeral() (*signer.Identity, error) {
	if r.NewEphemeral != nil {
		return r.NewEphemeral()
	}
	return signer.NewEphemeral()
}

// splitByCount partitions the batch at the acknowledged-transfer boundary.
func splitByCount(out *models.SettlementOutcome, batch *models.Batch, completed int) {
	ids := batch.IntentIDs()
	out.SettledIntentIDs = ids[:completed]
	out.FailedIntentIDs = ids[completed:]
}
