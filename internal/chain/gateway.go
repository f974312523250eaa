// Package chain 合约网关：通过钱包 provider 为当前账户绑定合约句柄，提供只读调用和写交易。
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/blues/cfc/internal/logger"
	"github.com/blues/cfc/internal/notify"
	"github.com/blues/cfc/internal/wallet"
	"github.com/ethereum/go-ethereum/accounts/abi"
)

var (
	// ErrBindingFailed provider 无法构造合约句柄
	ErrBindingFailed = errors.New("contract binding failed")
	// ErrNotBound 还没有可用的合约句柄
	ErrNotBound = errors.New("contract not bound")
	// ErrRejected 交易被合约回滚或被签名方拒绝
	ErrRejected = errors.New("transaction rejected")
	// ErrNetwork 节点或传输层错误
	ErrNetwork = errors.New("network error")
)

// SendOpts 写交易参数
type SendOpts struct {
	Value *big.Int // 随交易转移的基础单位金额，可为 nil
}

// Receipt 交易回执
type Receipt struct {
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
	GasUsed     uint64 `json:"gasUsed"`
}

// Handle 绑定到某个账户的合约句柄
type Handle interface {
	Account() string
	Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error)
	Send(ctx context.Context, opts SendOpts, method string, args ...interface{}) (*Receipt, error)
}

// Binder 由钱包 provider 实现，用于构造合约句柄
type Binder interface {
	Contract(ctx context.Context, account string, contractABI abi.ABI, address string) (Handle, error)
}

// AccountSource 账户变更的发布方，由 wallet.Session 实现
type AccountSource interface {
	Subscribe(fn wallet.AccountListener) error
	Unsubscribe(fn wallet.AccountListener) error
	SubscribeConnected(fn wallet.ConnectListener) error
	UnsubscribeConnected(fn wallet.ConnectListener) error
}

// binding 一次绑定的结果，整体替换
type binding struct {
	handle Handle
	err    error
}

// Gateway 合约网关
type Gateway struct {
	binder      Binder
	abi         abi.ABI
	address     string
	notifier    notify.Notifier
	callTimeout time.Duration

	current atomic.Pointer[binding]

	onChanged   wallet.AccountListener
	onConnected wallet.ConnectListener
}

// Option 网关选项
type Option func(*Gateway)

// WithNotifier 设置通知接收方
func WithNotifier(n notify.Notifier) Option {
	return func(g *Gateway) {
		g.notifier = n
	}
}

// WithCallTimeout 只读调用的超时，写交易不受影响
func WithCallTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		g.callTimeout = d
	}
}

// NewGateway 创建合约网关
func NewGateway(binder Binder, contractABI abi.ABI, address string, opts ...Option) *Gateway {
	g := &Gateway{
		binder:   binder,
		abi:      contractABI,
		address:  address,
		notifier: notify.Discard,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.onChanged = g.accountChanged
	g.onConnected = g.connected
	return g
}

// Attach 订阅账户变更，账户变化时重新绑定；
// 同一账户重新连接时，只有当前没有可用句柄才重新绑定
func (g *Gateway) Attach(source AccountSource) error {
	if err := source.Subscribe(g.onChanged); err != nil {
		return err
	}
	if err := source.SubscribeConnected(g.onConnected); err != nil {
		_ = source.Unsubscribe(g.onChanged)
		return err
	}
	return nil
}

// Detach 取消订阅
func (g *Gateway) Detach(source AccountSource) error {
	return errors.Join(
		source.Unsubscribe(g.onChanged),
		source.UnsubscribeConnected(g.onConnected),
	)
}

func (g *Gateway) connected(account string) {
	if g.Account() == account {
		return
	}
	logger.Info("Account %q reconnected without a usable contract handle, rebinding", account)
	if _, err := g.Bind(context.Background(), account); err != nil {
		logger.Error("Failed to rebind contract: %v", err)
	}
}

func (g *Gateway) accountChanged(previous, current string) {
	logger.Info("Account changed from %q to %q, rebinding contract %s", previous, current, g.address)
	if _, err := g.Bind(context.Background(), current); err != nil {
		logger.Error("Failed to rebind contract: %v", err)
	}
}

// Bind 为账户绑定合约句柄，失败时清除旧句柄直到下一次成功绑定
func (g *Gateway) Bind(ctx context.Context, account string) (Handle, error) {
	if g.binder == nil {
		err := wallet.ErrProviderUnavailable
		g.current.Store(&binding{err: err})
		return nil, err
	}
	if account == "" {
		err := wallet.ErrNotConnected
		g.current.Store(&binding{err: err})
		return nil, err
	}

	handle, err := g.binder.Contract(ctx, account, g.abi, g.address)
	if err == nil && handle == nil {
		err = errors.New("provider returned no handle")
	}
	if err != nil {
		bindErr := fmt.Errorf("%w: %w", ErrBindingFailed, err)
		g.current.Store(&binding{err: bindErr})
		g.notifier.Notify("Failed to connect to the campaign contract.", notify.SeverityError)
		return nil, bindErr
	}

	g.current.Store(&binding{handle: handle})
	logger.Info("Contract %s bound for account %s", g.address, account)
	return handle, nil
}

// Handle 当前句柄
func (g *Gateway) Handle() (Handle, error) {
	b := g.current.Load()
	if b == nil {
		return nil, ErrNotBound
	}
	if b.err != nil {
		return nil, b.err
	}
	return b.handle, nil
}

// Bound 是否持有可用句柄
func (g *Gateway) Bound() bool {
	_, err := g.Handle()
	return err == nil
}

// Account 当前句柄绑定的账户
func (g *Gateway) Account() string {
	h, err := g.Handle()
	if err != nil {
		return ""
	}
	return h.Account()
}

// Call 只读调用
func (g *Gateway) Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	h, err := g.Handle()
	if err != nil {
		return nil, err
	}

	if g.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.callTimeout)
		defer cancel()
	}

	out, err := h.Call(ctx, method, args...)
	if err != nil {
		logger.Warn("Call %s failed: %v", method, err)
		return nil, err
	}
	return out, nil
}

// Send 写交易，不重试
func (g *Gateway) Send(ctx context.Context, opts SendOpts, method string, args ...interface{}) (*Receipt, error) {
	h, err := g.Handle()
	if err != nil {
		return nil, err
	}

	logger.Info("Sending %s from %s (value: %v)", method, h.Account(), opts.Value)
	receipt, err := h.Send(ctx, opts, method, args...)
	if err == nil && receipt == nil {
		err = fmt.Errorf("%w: %s returned no receipt", ErrNetwork, method)
	}
	if err != nil {
		logger.Error("Send %s failed: %v", method, err)
		return nil, err
	}

	logger.Info("Transaction %s mined in block %d", receipt.TxHash, receipt.BlockNumber)
	return receipt, nil
}
