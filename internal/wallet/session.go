package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	evbus "github.com/asaskevich/EventBus"
	"github.com/blues/cfc/internal/logger"
	"github.com/blues/cfc/internal/notify"
)

const (
	// TopicAccountChanged 账户变更事件，参数为 (previous, current string)
	TopicAccountChanged = "wallet:account_changed"
	// TopicConnected 每次连接成功都会发布，参数为 (account string)
	TopicConnected = "wallet:connected"
)

var (
	// ErrProviderUnavailable 没有可用的钱包 provider
	ErrProviderUnavailable = errors.New("wallet provider unavailable")
	// ErrAuthorizationFailed provider 拒绝授权或未返回账户
	ErrAuthorizationFailed = errors.New("wallet authorization failed")
	// ErrNotConnected 尚未连接钱包
	ErrNotConnected = errors.New("wallet not connected")
)

// Provider 钱包 provider，由调用方注入
type Provider interface {
	RequestAccounts(ctx context.Context) ([]string, error)
}

// AccountListener 账户变更回调
type AccountListener func(previous, current string)

// ConnectListener 连接成功回调
type ConnectListener func(account string)

// Session 钱包连接状态
//
// 没有断开操作：切换账户的唯一方式是再次 Connect。provider 撤销授权不会被感知。
type Session struct {
	provider Provider
	bus      evbus.Bus
	notifier notify.Notifier

	mu      sync.RWMutex
	account string
}

// NewSession 创建钱包会话，bus 为 nil 时创建私有总线
func NewSession(provider Provider, bus evbus.Bus, notifier notify.Notifier) *Session {
	if bus == nil {
		bus = evbus.New()
	}
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Session{
		provider: provider,
		bus:      bus,
		notifier: notifier,
	}
}

// Connect 向 provider 请求授权
func (s *Session) Connect(ctx context.Context) (string, error) {
	if s.provider == nil {
		s.notifier.Notify("No wallet provider detected. Please install or configure a wallet.", notify.SeverityWarning)
		return "", ErrProviderUnavailable
	}

	accounts, err := s.provider.RequestAccounts(ctx)
	if err != nil {
		logger.Warn("Wallet authorization failed: %v", err)
		s.notifier.Notify("Wallet authorization failed.", notify.SeverityError)
		return "", fmt.Errorf("%w: %w", ErrAuthorizationFailed, err)
	}

	account := firstAccount(accounts)
	if account == "" {
		logger.Warn("Wallet returned no accounts")
		s.notifier.Notify("Wallet authorization failed: no account returned.", notify.SeverityError)
		return "", ErrAuthorizationFailed
	}

	s.mu.Lock()
	previous := s.account
	s.account = account
	s.mu.Unlock()

	logger.Info("Wallet connected: %s", account)
	s.notifier.Notify("Wallet connected.", notify.SeveritySuccess)

	if previous != account {
		s.bus.Publish(TopicAccountChanged, previous, account)
	}
	s.bus.Publish(TopicConnected, account)
	return account, nil
}

// Account 当前账户
func (s *Session) Account() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account
}

// Connected 是否已连接
func (s *Session) Connected() bool {
	return s.Account() != ""
}

// Subscribe 订阅账户变更，同步回调
func (s *Session) Subscribe(fn AccountListener) error {
	return s.bus.Subscribe(TopicAccountChanged, fn)
}

// Unsubscribe 取消订阅
func (s *Session) Unsubscribe(fn AccountListener) error {
	return s.bus.Unsubscribe(TopicAccountChanged, fn)
}

// SubscribeConnected 订阅连接成功事件，账户未变化时也会触发
func (s *Session) SubscribeConnected(fn ConnectListener) error {
	return s.bus.Subscribe(TopicConnected, fn)
}

// UnsubscribeConnected 取消订阅连接成功事件
func (s *Session) UnsubscribeConnected(fn ConnectListener) error {
	return s.bus.Unsubscribe(TopicConnected, fn)
}

func firstAccount(accounts []string) string {
	for _, a := range accounts {
		if a = strings.TrimSpace(a); a != "" {
			return a
		}
	}
	return ""
}
