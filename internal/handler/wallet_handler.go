package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// WalletSession 钱包会话
type WalletSession interface {
	Connect(ctx context.Context) (string, error)
	Account() string
}

// BindingState 合约绑定状态
type BindingState interface {
	Bound() bool
}

type WalletHandler struct {
	session WalletSession
	binding BindingState
}

func NewWalletHandler(session WalletSession, binding BindingState) *WalletHandler {
	return &WalletHandler{session: session, binding: binding}
}

// Connect 请求钱包授权
func (h *WalletHandler) Connect(c *gin.Context) {
	if _, err := h.session.Connect(c.Request.Context()); err != nil {
		FailResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "wallet connected", h.state())
}

// GetWallet 钱包状态
func (h *WalletHandler) GetWallet(c *gin.Context) {
	SuccessResponse(c, http.StatusOK, "ok", h.state())
}

func (h *WalletHandler) state() WalletResponse {
	account := h.session.Account()
	return WalletResponse{
		Account:   account,
		Connected: account != "",
		Bound:     h.binding != nil && h.binding.Bound(),
	}
}
