package validate

import (
	"testing"

	"coin-tip-ledger/pkg/apperror"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertInvalid(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput), "got %v", err)
}

func TestUser(t *testing.T) {
	got, err := User("  Alice ")
	require.NoError(t, err)
	assert.Equal(t, "alice", got)

	_, err = User("")
	assertInvalid(t, err)
	_, err = User("   ")
	assertInvalid(t, err)
}

func TestAddr(t *testing.T) {
	got, err := Addr("1BoatSLRHtKNngkdXEeobR76b53LETtpyT")
	require.NoError(t, err)
	assert.Equal(t, "1BoatSLRHtKNngkdXEeobR76b53LETtpyT", got)

	got, err = Addr("a.b*c")
	require.NoError(t, err)
	assert.Equal(t, `a\.b\*c`, got)

	_, err = Addr("")
	assertInvalid(t, err)
}

func TestTxID(t *testing.T) {
	const txid = "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"
	got, err := TxID("  4A5E1E4BAAB89F3A32518A88C31BC87F618F76673E2CC77AB2127B7AFDEDA33B ")
	require.NoError(t, err)
	assert.Equal(t, txid, got)

	_, err = TxID("")
	assertInvalid(t, err)
	_, err = TxID(txid[:63])
	assertInvalid(t, err)
	_, err = TxID("zz" + txid[2:])
	assertInvalid(t, err)
}

func TestAmount(t *testing.T) {
	got, err := Amount(1)
	require.NoError(t, err)
	assert.Equal(t, btcutil.Amount(1), got)

	for _, a := range []btcutil.Amount{0, -5} {
		_, err := Amount(a)
		assertInvalid(t, err)
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    btcutil.Amount
		wantErr bool
	}{
		{"1", 100000000, false},
		{"0.00000001", 1, false},
		{" 2.5 ", 250000000, false},
		{"0", 0, true},
		{"-5", 0, true},
		{"abc", 0, true},
		{"", 0, true},
		{"0.000000001", 0, true},
		{"999999999999999999999", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				assertInvalid(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1.5", FormatAmount(150000000))
	assert.Equal(t, "0.00000001", FormatAmount(1))
	assert.Equal(t, "0", FormatAmount(0))
	assert.Equal(t, "-0.1", FormatAmount(-10000000))
}

func TestMinconf(t *testing.T) {
	got, err := Minconf(0)
	require.NoError(t, err, "zero confirmations is accepted")
	assert.Equal(t, 0, got)

	got, err = Minconf(6)
	require.NoError(t, err)
	assert.Equal(t, 6, got)

	_, err = Minconf(-1)
	assertInvalid(t, err)
}

func TestParseMinconf(t *testing.T) {
	got, err := ParseMinconf("", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	got, err = ParseMinconf("0", 1)
	require.NoError(t, err)
	assert.Equal(t, 0, got)

	_, err = ParseMinconf("x", 1)
	assertInvalid(t, err)
	_, err = ParseMinconf("-2", 1)
	assertInvalid(t, err)
}
