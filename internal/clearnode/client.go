package clearnode

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"TextChainSettler/internal/signer"

	"github.com/gorilla/websocket"
)

var ErrAuthRejected = errors.New("authentication rejected")

// Dialer opens one fresh counterpart connection per settlement session.
type Dialer struct {
	Endpoint string
	AppName  string
}

func (d *Dialer) Dial(ctx context.Context) (*Client, error) {
	wsDialer := websocket.Dialer{}
	conn, _, err := wsDialer.DialContext(ctx, d.Endpoint, nil)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, appName: d.AppName}, nil
}

// Client is one authenticated counterpart connection. Not safe for
// concurrent calls; the session state machine issues requests one at a time.
type Client struct {
	conn    *websocket.Conn
	appName string
	session *signer.Identity
	nextID  int64
}

func (c *Client) Close() {
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// Authenticate runs the challenge-response handshake: announce the ephemeral
// session key, sign the returned challenge with the long-lived identity, and
// switch envelope signing to the ephemeral key once the counterpart confirms.
func (c *Client) Authenticate(ctx context.Context, account, ephemeral *signer.Identity) error {
	var challenge authRequestResult
	err := c.call(ctx, "auth_request", authRequestParams{
		Address:    account.Address(),
		SessionKey: ephemeral.Address(),
		AppName:    c.appName,
	}, account, &challenge)
	if err != nil {
		return err
	}
	if challenge.Challenge == "" {
		return errors.New("counterpart returned empty challenge")
	}

	digest := signer.Keccak([]byte(challenge.Challenge))
	sig := account.Sign(digest)

	var verified authVerifyResult
	err = c.call(ctx, "auth_verify", authVerifyParams{
		Challenge: challenge.Challenge,
		Signature: hex.EncodeToString(sig),
	}, ephemeral, &verified)
	if err != nil {
		return err
	}
	if !verified.Success {
		if verified.Reason != "" {
			return fmt.Errorf("%w: %s", ErrAuthRejected, verified.Reason)
		}
		return ErrAuthRejected
	}

	c.session = ephemeral
	return nil
}

func (c *Client) CreateChannel(ctx context.Context, asset string) (*SignedState, error) {
	var out SignedState
	if err := c.call(ctx, "create_channel", createChannelParams{Asset: asset}, c.session, &out); err != nil {
		return nil, err
	}
	if out.State.ChannelID == "" {
		return nil, errors.New("counterpart returned no channel id")
	}
	return &out, nil
}

func (c *Client) ResizeChannel(ctx context.Context, channelID, amount string) (*SignedState, error) {
	var out SignedState
	if err := c.call(ctx, "resize_channel", resizeChannelParams{ChannelID: channelID, Amount: amount}, c.session, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Transfer(ctx context.Context, channelID, destination, asset, amount string) error {
	var out transferResult
	err := c.call(ctx, "transfer", transferParams{
		ChannelID:   channelID,
		Destination: destination,
		Asset:       asset,
		Amount:      amount,
	}, c.session, &out)
	if err != nil {
		return err
	}
	if !out.Acknowledged {
		if out.Reason != "" {
			return fmt.Errorf("transfer rejected: %s", out.Reason)
		}
		return errors.New("transfer rejected")
	}
	return nil
}

func (c *Client) CloseChannel(ctx context.Context, channelID string) (*SignedState, error) {
	var out SignedState
	if err := c.call(ctx, "close_channel", closeChannelParams{ChannelID: channelID}, c.session, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LedgerBalance reports the residual custodial balance for the asset after
// close; the withdrawing phase drains it.
func (c *Client) LedgerBalance(ctx context.Context, asset string) (string, error) {
	var out ledgerBalancesResult
	if err := c.call(ctx, "get_ledger_balances", ledgerBalancesParams{Asset: asset}, c.session, &out); err != nil {
		return "", err
	}
	for _, b := range out.Balances {
		if b.Asset == asset {
			return b.Amount, nil
		}
	}
	return "0", nil
}

func (c *Client) Withdraw(ctx context.Context, asset, amount string) (*SignedState, error) {
	var out SignedState
	if err := c.call(ctx, "withdraw", withdrawParams{Asset: asset, Amount: amount}, c.session, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// call sends one signed request and reads frames until the matching response
// id arrives or the context deadline expires.
func (c *Client) call(ctx context.Context, method string, params any, key *signer.Identity, out any) error {
	if key == nil {
		return errors.New("no signing identity for request")
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}

	c.nextID++
	req := Request{
		ID:     c.nextID,
		Method: method,
		Params: raw,
		TS:     time.Now().UTC().UnixMilli(),
	}
	req.Sig = hex.EncodeToString(key.Sign(req.Digest()))

	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline {
		_ = c.conn.SetWriteDeadline(deadline)
		_ = c.conn.SetReadDeadline(deadline)
	}

	if err := c.conn.WriteJSON(req); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var resp Response
		if err := c.conn.ReadJSON(&resp); err != nil {
			return err
		}
		if resp.ID != req.ID {
			continue
		}
		if resp.Error != nil {
			return fmt.Errorf("%s: %w", method, resp.Error)
		}
		if out == nil || len(resp.Result) == 0 {
			return nil
		}
		return json.Unmarshal(resp.Result, out)
	}
}
