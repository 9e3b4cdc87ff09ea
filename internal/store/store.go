package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"TextChainSettler/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store journals intents, credits, and outcomes. The in-memory queue owns
// scheduling; this is what lets the engine resume after a restart and what
// makes the on-chain credit idempotent across crashes.
type Store struct {
	Pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

func (s *Store) InsertIntent(ctx context.Context, intent *models.PaymentIntent) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO intents (
			intent_id, recipient_address, recipient_phone, amount,
			asset, originator_phone, status, submitted_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		intent.ID,
		intent.RecipientAddress,
		nullable(intent.RecipientPhone),
		intent.Amount,
		intent.Asset,
		intent.OriginatorPhone,
		models.IntentPending,
		intent.SubmittedAt,
	)
	return err
}

// ListPendingIntents returns undrained intents in submission order for queue
// restoration at startup.
func (s *Store) ListPendingIntents(ctx context.Context) ([]*models.PaymentIntent, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT intent_id, recipient_address, recipient_phone, amount,
			asset, originator_phone, submitted_at
		FROM intents
		WHERE status='pending'
		ORDER BY submitted_at, intent_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var intents []*models.PaymentIntent
	for rows.Next() {
		var intent models.PaymentIntent
		var recipientPhone sql.NullString
		if err := rows.Scan(
			&intent.ID,
			&intent.RecipientAddress,
			&recipientPhone,
			&intent.Amount,
			&intent.Asset,
			&intent.OriginatorPhone,
			&intent.SubmittedAt,
		); err != nil {
			return nil, err
		}
		if recipientPhone.Valid {
			intent.RecipientPhone = recipientPhone.String
		}
		intents = append(intents, &intent)
	}
	return intents, rows.Err()
}

func (s *Store) MarkIntents(ctx context.Context, batchID string, ids []string, status models.IntentStatus) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.Pool.Exec(ctx, `
		UPDATE intents
		SET status=$2, batch_id=$3, updated_at=now()
		WHERE intent_id = ANY($1)
	`, ids, status, batchID)
	return err
}

// GetCredit reports a previously recorded on-chain credit for the intent.
func (s *Store) GetCredit(ctx context.Context, intentID string) (string, bool, error) {
	row := s.Pool.QueryRow(ctx, `SELECT tx_hash FROM credits WHERE intent_id=$1`, intentID)
	var hash string
	if err := row.Scan(&hash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return hash, true, nil
}

// RecordCredit is duplicate-safe: a second record for the same intent id is a
// no-op, which is what keeps a crash between credit and journal from
// double-crediting on replay.
func (s *Store) RecordCredit(ctx context.Context, intentID, txHash string) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO credits (intent_id, tx_hash)
		VALUES ($1,$2)
		ON CONFLICT (intent_id) DO NOTHING
	`, intentID, txHash)
	return err
}

func (s *Store) InsertOutcome(ctx context.Context, outcome *models.SettlementOutcome) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO outcomes (
			batch_id, session_id, channel_id, settled_count, failed_count,
			failed_phase, failure_reason, withdrawal_alert, withdrawal_reason,
			concluded_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (batch_id) DO NOTHING
	`,
		outcome.BatchID,
		outcome.SessionID,
		nullable(outcome.ChannelID),
		len(outcome.SettledIntentIDs),
		len(outcome.FailedIntentIDs),
		nullable(string(outcome.FailedPhase)),
		nullable(outcome.FailureReason),
		outcome.WithdrawalAlert,
		nullable(outcome.WithdrawalReason),
		outcome.ConcludedAt,
	)
	return err
}

type OutcomeRecord struct {
	BatchID          string
	SessionID        string
	ChannelID        string
	SettledCount     int
	FailedCount      int
	FailedPhase      string
	FailureReason    string
	WithdrawalAlert  bool
	WithdrawalReason string
	ConcludedAt      time.Time
}

func (s *Store) GetOutcome(ctx context.Context, batchID string) (*OutcomeRecord, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT batch_id, session_id, channel_id, settled_count, failed_count,
			failed_phase, failure_reason, withdrawal_alert, withdrawal_reason,
			concluded_at
		FROM outcomes WHERE batch_id=$1
	`, batchID)

	var rec OutcomeRecord
	var channelID, failedPhase, failureReason, withdrawalReason sql.NullString
	err := row.Scan(
		&rec.BatchID,
		&rec.SessionID,
		&channelID,
		&rec.SettledCount,
		&rec.FailedCount,
		&failedPhase,
		&failureReason,
		&rec.WithdrawalAlert,
		&withdrawalReason,
		&rec.ConcludedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.ChannelID = channelID.String
	rec.FailedPhase = failedPhase.String
	rec.FailureReason = failureReason.String
	rec.WithdrawalReason = withdrawalReason.String
	return &rec, nil
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
