package daemon

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"

	"coin-tip-ledger/pkg/apperror"

	"github.com/btcsuite/btcd/btcjson"
)

// classify maps a raw rpcclient error onto the daemon error codes.
// A JSON-RPC error object means the daemon answered, so it is never transient.
func classify(method string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if rejected(err) {
		return apperror.ErrDaemon(method, err)
	}
	if isTransient(err) {
		return apperror.ErrTransientNetwork(method, err)
	}
	return apperror.ErrDaemon(method, err)
}

// rejected reports whether the daemon answered with a JSON-RPC error object.
func rejected(err error) bool {
	var rpcErr *btcjson.RPCError
	return errors.As(err, &rpcErr)
}

// isTransient reports a timeout or a connection that dropped mid request.
func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return true
	}
	return false
}
