package handler

import (
	"net/http"

	"github.com/blues/cfc/internal/notify"
	"github.com/gin-gonic/gin"
)

// NotificationFeed 最近的通知
type NotificationFeed interface {
	Recent() []notify.Notification
}

// MonitorStatus 事件监控状态
type MonitorStatus interface {
	GetStatus() map[string]interface{}
}

type StatusHandler struct {
	feed    NotificationFeed
	monitor MonitorStatus
}

func NewStatusHandler(feed NotificationFeed, monitor MonitorStatus) *StatusHandler {
	return &StatusHandler{feed: feed, monitor: monitor}
}

// GetNotifications 最近的通知，旧的在前
func (h *StatusHandler) GetNotifications(c *gin.Context) {
	items := h.feed.Recent()
	if items == nil {
		items = []notify.Notification{}
	}
	SuccessResponse(c, http.StatusOK, "ok", items)
}

// GetMonitorStatus 事件监控状态
func (h *StatusHandler) GetMonitorStatus(c *gin.Context) {
	if h.monitor == nil {
		ErrorResponse(c, http.StatusNotFound, "event monitor is disabled")
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", h.monitor.GetStatus())
}
