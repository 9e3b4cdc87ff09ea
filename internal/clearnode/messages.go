package clearnode

import (
	"encoding/json"

	"TextChainSettler/internal/signer"
)

// Request is the signed envelope for every message to the counterpart. The
// signature covers the keccak digest of the envelope minus the sig field.
// Before authentication completes the long-lived identity signs; afterwards
// the session's ephemeral identity does.
type Request struct {
	ID     int64           `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	TS     int64           `json:"ts"`
	Sig    string          `json:"sig"`
}

type Response struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return e.Message
}

// Digest hashes the envelope payload for signing and verification.
func (r *Request) Digest() [32]byte {
	payload, _ := json.Marshal(struct {
		ID     int64           `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
		TS     int64           `json:"ts"`
	}{r.ID, r.Method, r.Params, r.TS})
	return signer.Keccak(payload)
}

// ChannelState is an allocation snapshot co-signed by both parties. The
// counterpart supplies it with its own signature; the client co-signs the
// state hash and submits both to the ledger.
type ChannelState struct {
	ChannelID string `json:"channel_id"`
	Intent    string `json:"intent"`
	Version   int64  `json:"version"`
	Asset     string `json:"asset"`
	Amount    string `json:"amount"`
	StateHash string `json:"state_hash"`
}

type SignedState struct {
	State     ChannelState `json:"state"`
	ServerSig string       `json:"server_sig"`
}

// Request/result bodies per method.

type authRequestParams struct {
	Address    string `json:"address"`
	SessionKey string `json:"session_key"`
	AppName    string `json:"app_name,omitempty"`
}

type authRequestResult struct {
	Challenge string `json:"challenge"`
}

type authVerifyParams struct {
	Challenge string `json:"challenge"`
	Signature string `json:"signature"`
}

type authVerifyResult struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

type createChannelParams struct {
	Asset string `json:"asset"`
}

type resizeChannelParams struct {
	ChannelID string `json:"channel_id"`
	Amount    string `json:"amount"`
}

type transferParams struct {
	ChannelID   string `json:"channel_id"`
	Destination string `json:"destination"`
	Asset       string `json:"asset"`
	Amount      string `json:"amount"`
}

type transferResult struct {
	Acknowledged bool   `json:"acknowledged"`
	Reason       string `json:"reason,omitempty"`
}

type closeChannelParams struct {
	ChannelID string `json:"channel_id"`
}

type ledgerBalancesParams struct {
	Asset string `json:"asset"`
}

type ledgerBalancesResult struct {
	Balances []struct {
		Asset  string `json:"asset"`
		Amount string `json:"amount"`
	} `json:"balances"`
}

type withdrawParams struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}
