package handler

import (
	"net/http"

	"coin-tip-ledger/internal/adapter/http/middleware"
	"coin-tip-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
)

// bindJSON decodes and validates the request body into req.
func bindJSON(c *gin.Context, req interface{}) error {
	if err := c.ShouldBindJSON(req); err != nil {
		if middleware.BodyTooLarge(err) {
			return apperror.New(apperror.CodeInvalidInput, "request body too large", http.StatusRequestEntityTooLarge)
		}
		return apperror.InvalidInput(err.Error())
	}
	return nil
}
