// Package dto holds the JSON request and response bodies of the HTTP API.
// Amounts travel as decimal coin strings, never as floats.
package dto

import (
	"time"

	"coin-tip-ledger/internal/core/domain"
	"coin-tip-ledger/internal/core/ports"
	"coin-tip-ledger/internal/core/validate"
)

// --- Requests ---

// TipRequest is the body of POST /coins/:coin/tips.
type TipRequest struct {
	From    string `json:"from" binding:"required,max=64"`
	To      string `json:"to" binding:"required,max=64"`
	Amount  string `json:"amount" binding:"required,coin_amount"`
	Minconf *int   `json:"minconf" binding:"omitempty,min=0"`
}

// WithdrawRequest is the body of POST /coins/:coin/withdrawals.
type WithdrawRequest struct {
	From    string `json:"from" binding:"required,max=64"`
	Address string `json:"address" binding:"required,max=128"`
	Amount  string `json:"amount" binding:"required,coin_amount"`
}

// IdempotencyHeader binds the optional Idempotency-Key of a withdrawal.
type IdempotencyHeader struct {
	Key string `header:"Idempotency-Key" binding:"omitempty,max=128,safe_id"`
}

// ReplayRequest is the optional body of POST /withdrawals/:id/replay.
// TxID is required to replay a PENDING withdrawal.
type ReplayRequest struct {
	TxID string `json:"txid" binding:"omitempty,len=64,hexadecimal"`
}

// MarkFailedRequest is the optional body of POST /withdrawals/:id/fail.
type MarkFailedRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// --- Responses ---

type CoinsResponse struct {
	Coins []string `json:"coins"`
}

type BalanceResponse struct {
	Coin        string `json:"coin"`
	User        string `json:"user"`
	Balance     string `json:"balance"`
	Minconf     int    `json:"minconf"`
	Provisioned bool   `json:"provisioned"`
}

func NewBalanceResponse(r *ports.BalanceResult, minconf int) BalanceResponse {
	return BalanceResponse{
		Coin:        r.Coin,
		User:        r.Username,
		Balance:     validate.FormatAmount(r.Balance),
		Minconf:     minconf,
		Provisioned: r.Provisioned,
	}
}

type ReceivedResponse struct {
	Coin     string `json:"coin"`
	User     string `json:"user"`
	Received string `json:"received"`
	Minconf  int    `json:"minconf"`
}

type TipResponse struct {
	Coin        string `json:"coin"`
	From        string `json:"from"`
	To          string `json:"to"`
	Amount      string `json:"amount"`
	FromBalance string `json:"from_balance"`
	ToBalance   string `json:"to_balance"`
}

func NewTipResponse(r *ports.TransferResult) TipResponse {
	return TipResponse{
		Coin:        r.Coin,
		From:        r.From,
		To:          r.To,
		Amount:      validate.FormatAmount(r.Amount),
		FromBalance: validate.FormatAmount(r.FromBalance),
		ToBalance:   validate.FormatAmount(r.ToBalance),
	}
}

type WithdrawalResponse struct {
	WithdrawalID string `json:"withdrawal_id"`
	TxID         string `json:"txid"`
	Amount       string `json:"amount"`
	Fee          string `json:"fee"`
	Balance      string `json:"balance"`
}

func NewWithdrawalResponse(r *ports.WithdrawalResult) WithdrawalResponse {
	return WithdrawalResponse{
		WithdrawalID: r.WithdrawalID.String(),
		TxID:         r.TxID,
		Amount:       validate.FormatAmount(r.Amount),
		Fee:          validate.FormatAmount(r.Fee),
		Balance:      validate.FormatAmount(r.Balance),
	}
}

type AddressResponse struct {
	Coin    string `json:"coin"`
	User    string `json:"user"`
	Address string `json:"address"`
}

type ValidateAddressResponse struct {
	Coin    string `json:"coin"`
	Address string `json:"address"`
	Valid   bool   `json:"valid"`
}

// WithdrawalView is a journal entry as shown to operators.
type WithdrawalView struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	Coin      string    `json:"coin"`
	Address   string    `json:"address"`
	Amount    string    `json:"amount"`
	Fee       string    `json:"fee"`
	TxID      *string   `json:"txid,omitempty"`
	Status    string    `json:"status"`
	LastError *string   `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewWithdrawalView(w *domain.Withdrawal) WithdrawalView {
	return WithdrawalView{
		ID:        w.ID.String(),
		User:      w.Username,
		Coin:      w.Coin,
		Address:   w.Address,
		Amount:    validate.FormatAmount(w.Amount),
		Fee:       validate.FormatAmount(w.Fee),
		TxID:      w.TxID,
		Status:    string(w.Status),
		LastError: w.LastError,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}

type UnreconciledResponse struct {
	Coin        string           `json:"coin"`
	Withdrawals []WithdrawalView `json:"withdrawals"`
}

func NewUnreconciledResponse(coin string, list []domain.Withdrawal) UnreconciledResponse {
	views := make([]WithdrawalView, 0, len(list))
	for i := range list {
		views = append(views, NewWithdrawalView(&list[i]))
	}
	return UnreconciledResponse{Coin: coin, Withdrawals: views}
}
