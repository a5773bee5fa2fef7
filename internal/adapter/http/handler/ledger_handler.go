package handler

import (
	"coin-tip-ledger/internal/adapter/http/dto"
	"coin-tip-ledger/internal/core/ports"
	"coin-tip-ledger/internal/core/validate"
	"coin-tip-ledger/pkg/apperror"
	"coin-tip-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// LedgerHandler serves the per-coin ledger endpoints.
type LedgerHandler struct {
	registry ports.CoinRegistry
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(registry ports.CoinRegistry) *LedgerHandler {
	return &LedgerHandler{registry: registry}
}

// ListCoins handles GET /api/v1/coins.
func (h *LedgerHandler) ListCoins(c *gin.Context) {
	response.OK(c, dto.CoinsResponse{Coins: h.registry.Coins()})
}

// GetBalance handles GET /api/v1/coins/:coin/users/:user/balance.
func (h *LedgerHandler) GetBalance(c *gin.Context) {
	ledger, err := h.registry.Ledger(c.Param("coin"))
	if err != nil {
		response.Error(c, err)
		return
	}
	minconf, err := validate.ParseMinconf(c.Query("minconf"), ledger.BalanceMinconf())
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := ledger.GetBalance(c.Request.Context(), c.Param("user"), minconf)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewBalanceResponse(result, minconf))
}

// GetReceived handles GET /api/v1/coins/:coin/users/:user/received.
func (h *LedgerHandler) GetReceived(c *gin.Context) {
	ledger, err := h.registry.Ledger(c.Param("coin"))
	if err != nil {
		response.Error(c, err)
		return
	}
	user, err := validate.User(c.Param("user"))
	if err != nil {
		response.Error(c, err)
		return
	}
	minconf, err := validate.ParseMinconf(c.Query("minconf"), ledger.BalanceMinconf())
	if err != nil {
		response.Error(c, err)
		return
	}

	received, err := ledger.GetReceived(c.Request.Context(), user, minconf)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ReceivedResponse{
		Coin:     ledger.Coin(),
		User:     user,
		Received: validate.FormatAmount(received),
		Minconf:  minconf,
	})
}

// SendTip handles POST /api/v1/coins/:coin/tips.
func (h *LedgerHandler) SendTip(c *gin.Context) {
	ledger, err := h.registry.Ledger(c.Param("coin"))
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.TipRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	amount, err := validate.ParseAmount(req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}
	minconf := ledger.BalanceMinconf()
	if req.Minconf != nil {
		minconf = *req.Minconf
	}

	result, err := ledger.SendToUser(c.Request.Context(), ports.TransferRequest{
		From:    req.From,
		To:      req.To,
		Amount:  amount,
		Minconf: minconf,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewTipResponse(result))
}

// Withdraw handles POST /api/v1/coins/:coin/withdrawals.
// A repeated Idempotency-Key returns the original result.
func (h *LedgerHandler) Withdraw(c *gin.Context) {
	ledger, err := h.registry.Ledger(c.Param("coin"))
	if err != nil {
		response.Error(c, err)
		return
	}

	var hdr dto.IdempotencyHeader
	if err := c.ShouldBindHeader(&hdr); err != nil {
		response.Error(c, apperror.InvalidInput("invalid Idempotency-Key header"))
		return
	}
	var req dto.WithdrawRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	amount, err := validate.ParseAmount(req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := ledger.SendToAddr(c.Request.Context(), ports.WithdrawalRequest{
		From:           req.From,
		Address:        req.Address,
		Amount:         amount,
		IdempotencyKey: hdr.Key,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewWithdrawalResponse(result))
}

// ValidateAddress handles GET /api/v1/coins/:coin/addresses/:address/validate.
func (h *LedgerHandler) ValidateAddress(c *gin.Context) {
	ledger, err := h.registry.Ledger(c.Param("coin"))
	if err != nil {
		response.Error(c, err)
		return
	}

	addr := c.Param("address")
	valid, err := ledger.ValidateAddr(c.Request.Context(), addr)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ValidateAddressResponse{Coin: ledger.Coin(), Address: addr, Valid: valid})
}

// NewAddress handles POST /api/v1/coins/:coin/users/:user/addresses.
func (h *LedgerHandler) NewAddress(c *gin.Context) {
	ledger, err := h.registry.Ledger(c.Param("coin"))
	if err != nil {
		response.Error(c, err)
		return
	}
	user, err := validate.User(c.Param("user"))
	if err != nil {
		response.Error(c, err)
		return
	}

	addr, err := ledger.GetNewAddr(c.Request.Context(), user)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.AddressResponse{Coin: ledger.Coin(), User: user, Address: addr})
}
