package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/rpcclient"
)

// maxReplyBytes bounds a daemon reply. Wallet replies here are a txid,
// an address or a small validateaddress object.
const maxReplyBytes = 1 << 20

// postOnce sends each JSON-RPC command in exactly one HTTP POST.
// rpcclient's POST loop resends a request whenever the transport fails,
// which repeats sendtoaddress if the daemon already paid. Here a transport
// failure is returned to the caller, which owns every retry decision.
type postOnce struct {
	url    string
	user   string
	pass   string
	client *http.Client
	nextID atomic.Uint64
}

func newPostOnce(cfg *rpcclient.ConnConfig) *postOnce {
	scheme := "https"
	if cfg.DisableTLS {
		scheme = "http"
	}
	return &postOnce{
		url:  scheme + "://" + cfg.Host,
		user: cfg.User,
		pass: cfg.Pass,
		client: &http.Client{
			// A fresh connection per call: net/http never replays a
			// non-idempotent POST, and no reused connection can fail mid call.
			Transport: &http.Transport{
				Proxy:             http.ProxyFromEnvironment,
				DisableKeepAlives: true,
			},
		},
	}
}

// Call marshals cmd with btcjson and posts it once. Deadlines come from ctx.
// A JSON-RPC error object is returned as *btcjson.RPCError.
func (p *postOnce) Call(ctx context.Context, cmd any) (json.RawMessage, error) {
	body, err := btcjson.MarshalCmd(btcjson.RpcVersion1, p.nextID.Add(1), cmd)
	if err != nil {
		return nil, fmt.Errorf("marshal command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(p.user, p.pass)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}

	// bitcoind answers RPC errors with a JSON body and a non-200 status
	var reply btcjson.Response
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, fmt.Errorf("status %d: undecodable reply %q", resp.StatusCode, truncate(data, 128))
	}
	if reply.Error != nil {
		return nil, reply.Error
	}
	return reply.Result, nil
}

func (p *postOnce) closeIdle() {
	p.client.CloseIdleConnections()
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}

// rpcClient joins rpcclient's typed calls, used for idempotent reads and
// wallet lock toggles, with the single-shot transport for everything
// sent through Call.
type rpcClient struct {
	*rpcclient.Client
	once *postOnce
}

func (c *rpcClient) Call(ctx context.Context, cmd any) (json.RawMessage, error) {
	return c.once.Call(ctx, cmd)
}

func (c *rpcClient) Shutdown() {
	c.once.closeIdle()
	c.Client.Shutdown()
}
