package session

import (
	"errors"
	"fmt"
	"math/big"

	"TextChainSettler/internal/models"
)

// requiredFunding is the sum of the batch's channel-asset intent amounts plus
// the reserve margin, rounded up.
func requiredFunding(batch *models.Batch, asset string, reserveBps int64) (string, error) {
	total := new(big.Int)
	for _, intent := range batch.Intents {
		if intent.Asset != asset {
			continue
		}
		amount, ok := new(big.Int).SetString(intent.Amount, 10)
		if !ok || amount.Sign() <= 0 {
			return "", fmt.Errorf("intent %s has invalid amount %q", intent.ID, intent.Amount)
		}
		total.Add(total, amount)
	}
	if total.Sign() <= 0 {
		return "", errors.New("batch has no funding requirement for channel asset")
	}
	if reserveBps <= 0 {
		return total.String(), nil
	}

	reserve := new(big.Int).Mul(total, big.NewInt(reserveBps))
	quot, rem := new(big.Int).QuoRem(reserve, big.NewInt(10000), new(big.Int))
	if rem.Sign() > 0 {
		quot.Add(quot, big.NewInt(1))
	}
	return new(big.Int).Add(total, quot).String(), nil
}

func compareAmounts(a, b string) int {
	ai, ok1 := new(big.Int).SetString(a, 10)
	bi, ok2 := new(big.Int).SetString(b, 10)
	if !ok1 || !ok2 {
		return 0
	}
	return ai.Cmp(bi)
}
