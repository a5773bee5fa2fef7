package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"coin-tip-ledger/config"
	"coin-tip-ledger/internal/adapter/daemon"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The daemon must see one request per policy attempt, not a multiple of it.
func TestRetry_GatewayTimeoutsReachDaemonOncePerAttempt(t *testing.T) {
	var addrCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req btcjson.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var result any = true
		if req.Method == "getnewaddress" {
			if addrCalls.Add(1) <= 2 {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
				return
			}
			result = "1NewAddr"
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"result": result, "error": nil, "id": req.ID})
	}))
	defer srv.Close()

	cfg := config.CoinConfig{
		Name:  "Bitcoin",
		Unit:  "BTC",
		TxFee: 0.0001,
		RPC: config.RPCConfig{
			Host: srv.Listener.Addr().String(), User: "u", Pass: "p",
			DisableTLS: true, Timeout: 100 * time.Millisecond,
		},
	}
	g := daemon.NewGateway(cfg, daemon.DialRPC, nil, time.Second, nil, zerolog.Nop())
	require.NoError(t, g.Connect(context.Background()))
	defer g.Close()

	ctx := context.Background()
	p := RetryPolicy{Attempts: 3, Delay: time.Millisecond}
	addr, err := retry(ctx, p, "getnewaddress", func() (string, error) {
		return g.GetNewAddress(ctx, "alice")
	})

	require.NoError(t, err)
	assert.Equal(t, "1NewAddr", addr)
	assert.Equal(t, int32(3), addrCalls.Load())
}
