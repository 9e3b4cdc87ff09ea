package signer

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"golang.org/x/crypto/sha3"
)

// Identity is a secp256k1 keypair with its derived ledger address. The
// engine holds one long-lived identity from config and mints one ephemeral
// identity per settlement session.
type Identity struct {
	priv    *btcec.PrivateKey
	address string
}

func FromHex(keyHex string) (*Identity, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(keyHex, "0x"))
	if err != nil {
		return nil, err
	}
	if len(raw) != 32 {
		return nil, errors.New("private key must be 32 bytes")
	}
	priv, _ := btcec.PrivKeyFromBytes(raw)
	return &Identity{priv: priv, address: addressOf(priv.PubKey())}, nil
}

func NewEphemeral() (*Identity, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	return &Identity{priv: priv, address: addressOf(priv.PubKey())}, nil
}

func (id *Identity) Address() string {
	return id.address
}

// Sign produces a 65-byte recoverable signature over a keccak digest.
func (id *Identity) Sign(digest [32]byte) []byte {
	return ecdsa.SignCompact(id.priv, digest[:], false)
}

// Verify recovers the signer from a compact signature and compares it to the
// expected address.
func Verify(address string, digest [32]byte, sig []byte) bool {
	pub, _, err := ecdsa.RecoverCompact(sig, digest[:])
	if err != nil {
		return false
	}
	return strings.EqualFold(addressOf(pub), address)
}

func Keccak(data []byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write(data)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func addressOf(pub *btcec.PublicKey) string {
	uncompressed := pub.SerializeUncompressed()
	digest := Keccak(uncompressed[1:])
	return "0x" + hex.EncodeToString(digest[12:])
}
