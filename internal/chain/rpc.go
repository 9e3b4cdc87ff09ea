package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrTxReverted marks a transaction included on-chain with a non-zero code.
var ErrTxReverted = errors.New("transaction reverted")

// RPCClient talks to the ledger node. Every settlement-phase submission goes
// through SubmitTx followed by WaitConfirmed; the session treats a reverted
// or unconfirmed transaction the same as a protocol rejection.
type RPCClient struct {
	baseURL      string
	client       *http.Client
	ConfirmDepth int64
	PollInterval time.Duration
}

func NewRPCClient(baseURL string, confirmDepth int) *RPCClient {
	return &RPCClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		client:       &http.Client{Timeout: 10 * time.Second},
		ConfirmDepth: int64(confirmDepth),
		PollInterval: 2 * time.Second,
	}
}

func (c *RPCClient) LatestHeight(ctx context.Context) (int64, error) {
	var resp statusResponse
	if err := c.getJSON(ctx, c.baseURL+"/status", &resp); err != nil {
		return 0, err
	}
	return resp.Result.LatestHeight, nil
}

// SubmitTx broadcasts a signed transaction body and returns its hash.
func (c *RPCClient) SubmitTx(ctx context.Context, tx any) (string, error) {
	var resp broadcastResponse
	if err := c.postJSON(ctx, c.baseURL+"/tx", tx, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("broadcast rejected: %s", resp.Error)
	}
	if resp.Result.Hash == "" {
		return "", errors.New("broadcast returned no hash")
	}
	return resp.Result.Hash, nil
}

type TxStatus struct {
	Hash   string
	Height int64
	Code   int
	Found  bool
}

func (c *RPCClient) GetTxStatus(ctx context.Context, hash string) (*TxStatus, error) {
	u, err := url.Parse(c.baseURL + "/tx_status")
	if err != nil {
		return nil, err
	}
	values := url.Values{}
	values.Set("hash", hash)
	u.RawQuery = values.Encode()

	var resp txStatusResponse
	if err := c.getJSON(ctx, u.String(), &resp); err != nil {
		return nil, err
	}
	return &TxStatus{
		Hash:   hash,
		Height: resp.Result.Height,
		Code:   resp.Result.Code,
		Found:  resp.Result.Height > 0,
	}, nil
}

// WaitConfirmed polls until the transaction has ConfirmDepth confirmations or
// the context deadline elapses. The caller's context carries the per-phase
// timeout.
func (c *RPCClient) WaitConfirmed(ctx context.Context, hash string) error {
	interval := c.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := c.GetTxStatus(ctx, hash)
		if err == nil && status.Found {
			if status.Code != 0 {
				return fmt.Errorf("%w: tx=%s code=%d", ErrTxReverted, hash, status.Code)
			}
			latest, herr := c.LatestHeight(ctx)
			if herr == nil && latest-status.Height+1 >= c.ConfirmDepth {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("confirmation wait for tx=%s: %w", hash, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *RPCClient) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, out)
}

func (c *RPCClient) postJSON(ctx context.Context, endpoint string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, out)
}

func (c *RPCClient) doJSON(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		msg := strings.TrimSpace(string(body))
		if msg != "" {
			return fmt.Errorf("rpc http status %d: %s", resp.StatusCode, msg)
		}
		return fmt.Errorf("rpc http status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// RPC response types

type statusResponse struct {
	Result struct {
		LatestHeight int64 `json:"latest_height"`
	} `json:"result"`
}

type broadcastResponse struct {
	Result struct {
		Hash string `json:"hash"`
	} `json:"result"`
	Error string `json:"error"`
}

type txStatusResponse struct {
	Result struct {
		Height int64 `json:"height"`
		Code   int   `json:"code"`
	} `json:"result"`
}
