package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"syscall"
	"testing"

	"coin-tip-ledger/pkg/apperror"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/stretchr/testify/assert"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"rpc error", btcjson.NewRPCError(btcjson.ErrRPCInvalidParameter, "Invalid address"), apperror.CodeDaemon},
		{"wrapped rpc error", fmt.Errorf("call: %w", btcjson.NewRPCError(btcjson.ErrRPCWallet, "x")), apperror.CodeDaemon},
		{"url timeout", &url.Error{Op: "Post", URL: "http://localhost:8332", Err: timeoutError{}}, apperror.CodeTransientNetwork},
		{"deadline", context.DeadlineExceeded, apperror.CodeTransientNetwork},
		{"connection reset", fmt.Errorf("read: %w", syscall.ECONNRESET), apperror.CodeTransientNetwork},
		{"broken pipe", fmt.Errorf("write: %w", syscall.EPIPE), apperror.CodeTransientNetwork},
		{"eof", io.EOF, apperror.CodeTransientNetwork},
		{"other", errors.New("status code: 401"), apperror.CodeDaemon},
		{"already classified", apperror.ErrBroadcastUnknown(io.EOF), apperror.CodeBroadcastUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, apperror.CodeOf(classify("getnewaddress", tt.err)))
		})
	}

	assert.NoError(t, classify("x", nil))
}
