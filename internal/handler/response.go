package handler

import (
	"errors"
	"net/http"

	"github.com/blues/cfc/internal/campaign"
	"github.com/blues/cfc/internal/chain"
	"github.com/blues/cfc/internal/creation"
	"github.com/blues/cfc/internal/donation"
	"github.com/blues/cfc/internal/pinning"
	"github.com/blues/cfc/internal/wallet"
	"github.com/gin-gonic/gin"
)

// SuccessResponse 成功响应
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse 错误响应
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Response{
		Success: false,
		Message: message,
		Data:    nil,
	})
}

// FailResponse 按错误类型选择状态码
func FailResponse(c *gin.Context, err error) {
	ErrorResponse(c, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, donation.ErrInvalidAmount), errors.Is(err, creation.ErrInvalidForm):
		return http.StatusBadRequest
	case errors.Is(err, wallet.ErrAuthorizationFailed):
		return http.StatusForbidden
	case errors.Is(err, donation.ErrCampaignClosed),
		errors.Is(err, donation.ErrDonationInFlight),
		errors.Is(err, wallet.ErrNotConnected),
		errors.Is(err, chain.ErrNotBound),
		errors.Is(err, chain.ErrBindingFailed):
		return http.StatusConflict
	case errors.Is(err, donation.ErrDonationRejected), errors.Is(err, chain.ErrRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, wallet.ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, donation.ErrNetworkError),
		errors.Is(err, campaign.ErrFetchFailed),
		errors.Is(err, chain.ErrNetwork),
		errors.Is(err, pinning.ErrUploadFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
