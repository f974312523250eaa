// Package notify 面向用户的短暂反馈：(message, severity)，不持久化、不需要确认。
package notify

import (
	"sync"
	"time"

	"github.com/blues/cfc/internal/logger"
)

// Severity 通知级别
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notifier 通知接收方
type Notifier interface {
	Notify(message string, severity Severity)
}

// Notification 一条通知
type Notification struct {
	Message  string    `json:"message"`
	Severity Severity  `json:"severity"`
	At       time.Time `json:"at"`
}

// LogNotifier 写入日志的通知
type LogNotifier struct{}

// Notify 实现 Notifier
func (LogNotifier) Notify(message string, severity Severity) {
	switch severity {
	case SeverityError:
		logger.Error("[notify] %s", message)
	case SeverityWarning:
		logger.Warn("[notify] %s", message)
	default:
		logger.Info("[notify] %s", message)
	}
}

// Feed 保留最近若干条通知的内存队列，供 HTTP 接口读取
type Feed struct {
	mu    sync.Mutex
	items []Notification
	limit int
	now   func() time.Time
}

// NewFeed 创建通知队列
func NewFeed(limit int) *Feed {
	if limit <= 0 {
		limit = 50
	}
	return &Feed{limit: limit, now: time.Now}
}

// Notify 实现 Notifier
func (f *Feed) Notify(message string, severity Severity) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.items = append(f.items, Notification{Message: message, Severity: severity, At: f.now()})
	if over := len(f.items) - f.limit; over > 0 {
		f.items = append([]Notification(nil), f.items[over:]...)
	}
}

// Recent 最近的通知，旧的在前
func (f *Feed) Recent() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Notification(nil), f.items...)
}

// Multi 广播到多个 Notifier
type Multi []Notifier

// Notify 实现 Notifier
func (m Multi) Notify(message string, severity Severity) {
	for _, n := range m {
		if n != nil {
			n.Notify(message, severity)
		}
	}
}

// Discard 丢弃所有通知
var Discard Notifier = discard{}

type discard struct{}

func (discard) Notify(string, Severity) {}
