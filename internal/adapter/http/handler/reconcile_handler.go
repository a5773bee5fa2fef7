package handler

import (
	"coin-tip-ledger/internal/adapter/http/dto"
	"coin-tip-ledger/internal/core/ports"
	"coin-tip-ledger/pkg/apperror"
	"coin-tip-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ReconcileHandler serves the operator endpoints for stuck withdrawals.
type ReconcileHandler struct {
	registry  ports.CoinRegistry
	reconcile ports.ReconcileService
}

// NewReconcileHandler creates a new ReconcileHandler.
func NewReconcileHandler(registry ports.CoinRegistry, reconcile ports.ReconcileService) *ReconcileHandler {
	return &ReconcileHandler{registry: registry, reconcile: reconcile}
}

// ListUnreconciled handles GET /api/v1/coins/:coin/withdrawals/unreconciled.
func (h *ReconcileHandler) ListUnreconciled(c *gin.Context) {
	ledger, err := h.registry.Ledger(c.Param("coin"))
	if err != nil {
		response.Error(c, err)
		return
	}

	list, err := h.reconcile.ListUnreconciled(c.Request.Context(), ledger.Coin())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewUnreconciledResponse(ledger.Coin(), list))
}

// Replay handles POST /api/v1/withdrawals/:id/replay. The body is optional
// unless the withdrawal is still PENDING.
func (h *ReconcileHandler) Replay(c *gin.Context) {
	id, err := withdrawalID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.ReplayRequest
	if c.Request.ContentLength > 0 {
		if err := bindJSON(c, &req); err != nil {
			response.Error(c, err)
			return
		}
	}

	w, err := h.reconcile.Replay(c.Request.Context(), id, req.TxID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewWithdrawalView(w))
}

// MarkFailed handles POST /api/v1/withdrawals/:id/fail. The body is optional.
func (h *ReconcileHandler) MarkFailed(c *gin.Context) {
	id, err := withdrawalID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.MarkFailedRequest
	if c.Request.ContentLength > 0 {
		if err := bindJSON(c, &req); err != nil {
			response.Error(c, err)
			return
		}
		dto.SanitizeStruct(&req)
	}

	w, err := h.reconcile.MarkFailed(c.Request.Context(), id, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewWithdrawalView(w))
}

func withdrawalID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperror.InvalidInput("withdrawal id must be a UUID")
	}
	return id, nil
}
