// Package validate normalizes and rejects caller input before it reaches the
// ledger or a coin daemon. Every failure is an INPUT_001 AppError.
package validate

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"coin-tip-ledger/pkg/apperror"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/shopspring/decimal"
)

// baseUnitExp is the number of decimal places in one coin.
const baseUnitExp = 8

var maxUnits = decimal.NewFromInt(math.MaxInt64)

// User returns the lower-cased username.
func User(user string) (string, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return "", apperror.InvalidInput("user must not be empty")
	}
	return strings.ToLower(user), nil
}

// Addr returns the address escaped for use in a pattern.
func Addr(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", apperror.InvalidInput("address must not be empty")
	}
	return regexp.QuoteMeta(addr), nil
}

// TxID returns the lower-cased transaction id. It must be 64 hex digits.
func TxID(txid string) (string, error) {
	txid = strings.ToLower(strings.TrimSpace(txid))
	if len(txid) != 2*chainhash.HashSize {
		return "", apperror.InvalidInput("txid must be 64 hex digits")
	}
	if _, err := chainhash.NewHashFromStr(txid); err != nil {
		return "", apperror.InvalidInput("txid must be 64 hex digits")
	}
	return txid, nil
}

// Amount rejects zero and negative amounts.
func Amount(amount btcutil.Amount) (btcutil.Amount, error) {
	if amount <= 0 {
		return 0, apperror.InvalidInput("amount must be positive")
	}
	return amount, nil
}

// ParseAmount parses a decimal coin amount such as "0.25" into base units.
// More than eight decimal places is rejected rather than rounded.
func ParseAmount(s string) (btcutil.Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, apperror.InvalidInput("amount must be numeric")
	}
	units := d.Shift(baseUnitExp)
	if !units.Equal(units.Truncate(0)) {
		return 0, apperror.InvalidInput("amount has more than 8 decimal places")
	}
	if units.GreaterThan(maxUnits) {
		return 0, apperror.InvalidInput("amount is too large")
	}
	return Amount(btcutil.Amount(units.IntPart()))
}

// FormatAmount renders base units as a decimal coin string.
func FormatAmount(amount btcutil.Amount) string {
	return decimal.New(int64(amount), -baseUnitExp).String()
}

// Minconf accepts any non-negative confirmation count, zero included.
func Minconf(minconf int) (int, error) {
	if minconf < 0 {
		return 0, apperror.InvalidInput("minconf must not be negative")
	}
	return minconf, nil
}

// ParseMinconf parses an optional query value, falling back to def when empty.
func ParseMinconf(s string, def int) (int, error) {
	if s == "" {
		return Minconf(def)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, apperror.InvalidInput("minconf must be an integer")
	}
	return Minconf(n)
}
