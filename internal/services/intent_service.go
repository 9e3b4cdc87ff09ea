package services

import (
	"context"
	"errors"
	"math/big"
	"regexp"
	"time"

	"TextChainSettler/internal/models"

	"github.com/google/uuid"
)

var (
	ErrInvalidAddress   = errors.New("malformed recipient address")
	ErrInvalidAmount    = errors.New("amount must be a positive integer")
	ErrUnsupportedAsset = errors.New("unsupported asset")
	ErrMissingOriginator = errors.New("missing originator phone")
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

type Enqueuer interface {
	Enqueue(intent *models.PaymentIntent) string
}

type IntentJournal interface {
	InsertIntent(ctx context.Context, intent *models.PaymentIntent) error
}

// IntentService is the inbound boundary: it rejects malformed intents
// synchronously, journals accepted ones, and hands them to the queue.
type IntentService struct {
	Queue   Enqueuer
	Journal IntentJournal
	Assets  []string
}

func (s *IntentService) SubmitIntent(ctx context.Context, recipientAddress, amount, asset, originatorPhone, recipientPhone string) (*models.PaymentIntent, error) {
	if originatorPhone == "" {
		return nil, ErrMissingOriginator
	}
	if !addressPattern.MatchString(recipientAddress) {
		return nil, ErrInvalidAddress
	}
	value, ok := new(big.Int).SetString(amount, 10)
	if !ok || value.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if !s.assetAllowed(asset) {
		return nil, ErrUnsupportedAsset
	}

	intent := &models.PaymentIntent{
		ID:               uuid.NewString(),
		RecipientAddress: recipientAddress,
		RecipientPhone:   recipientPhone,
		Amount:           value.String(),
		Asset:            asset,
		OriginatorPhone:  originatorPhone,
		SubmittedAt:      time.Now().UTC(),
	}

	// Journal before enqueue: an intent that survives a crash here is
	// restored into the queue at the next start.
	if err := s.Journal.InsertIntent(ctx, intent); err != nil {
		return nil, err
	}
	s.Queue.Enqueue(intent)
	return intent, nil
}

func (s *IntentService) assetAllowed(asset string) bool {
	for _, a := range s.Assets {
		if a == asset {
			return true
		}
	}
	return false
}
