package monitor

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/blues/cfc/internal/contract"
	"github.com/blues/cfc/internal/logger"
	"github.com/blues/cfc/internal/notify"
	"github.com/blues/cfc/internal/unit"
)

// Processor 事件处理器
type Processor interface {
	Process(ctx context.Context, event contract.Event) error
	EventName() string
}

// Registry 事件处理器注册表
type Registry struct {
	mu         sync.RWMutex
	processors map[string]Processor
}

// NewRegistry 创建注册表
func NewRegistry(processors ...Processor) *Registry {
	r := &Registry{processors: make(map[string]Processor)}
	for _, p := range processors {
		r.Register(p)
	}
	return r
}

// Register 注册事件处理器，同名覆盖
func (r *Registry) Register(p Processor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processors[p.EventName()] = p
	logger.Debug("Registered processor for event: %s", p.EventName())
}

// Get 获取事件处理器
func (r *Registry) Get(name string) (Processor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.processors[name]
	return p, ok
}

// Process 分发事件，没有处理器的事件返回 false
func (r *Registry) Process(ctx context.Context, event contract.Event) (bool, error) {
	p, ok := r.Get(event.Name)
	if !ok {
		logger.Debug("No processor for event: %s", event.Name)
		return false, nil
	}
	return true, p.Process(ctx, event)
}

// EventNames 已注册的事件名
func (r *Registry) EventNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.processors))
	for name := range r.processors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CampaignCreatedProcessor 新活动事件
type CampaignCreatedProcessor struct {
	notifier notify.Notifier
	units    unit.Converter
	symbol   string
}

// NewCampaignCreatedProcessor 创建处理器
func NewCampaignCreatedProcessor(notifier notify.Notifier, units unit.Converter, symbol string) *CampaignCreatedProcessor {
	return &CampaignCreatedProcessor{notifier: notifier, units: units, symbol: symbol}
}

func (p *CampaignCreatedProcessor) EventName() string {
	return contract.EventCampaignCreated
}

func (p *CampaignCreatedProcessor) Process(_ context.Context, event contract.Event) error {
	id, ok := event.CampaignID()
	if !ok {
		return fmt.Errorf("%s at block %d has no campaign id", event.Name, event.BlockNumber)
	}
	target := p.units.ToDisplay(event.Amount("target"))
	logger.Info("Campaign %d created by %s (target %s %s, tx %s)", id, event.Address("owner").Hex(), target, p.symbol, event.TxHash)
	p.notifier.Notify(fmt.Sprintf("New campaign #%d with a target of %s %s.", id, target, p.symbol), notify.SeverityInfo)
	return nil
}

// DonationReceivedProcessor 捐赠事件
type DonationReceivedProcessor struct {
	notifier notify.Notifier
	units    unit.Converter
	symbol   string
}

// NewDonationReceivedProcessor 创建处理器
func NewDonationReceivedProcessor(notifier notify.Notifier, units unit.Converter, symbol string) *DonationReceivedProcessor {
	return &DonationReceivedProcessor{notifier: notifier, units: units, symbol: symbol}
}

func (p *DonationReceivedProcessor) EventName() string {
	return contract.EventDonationReceived
}

func (p *DonationReceivedProcessor) Process(_ context.Context, event contract.Event) error {
	id, ok := event.CampaignID()
	if !ok {
		return fmt.Errorf("%s at block %d has no campaign id", event.Name, event.BlockNumber)
	}
	amount := p.units.ToDisplay(event.Amount("amount"))
	logger.Info("Campaign %d received %s %s from %s (tx %s)", id, amount, p.symbol, event.Address("donator").Hex(), event.TxHash)
	p.notifier.Notify(fmt.Sprintf("Campaign #%d received %s %s.", id, amount, p.symbol), notify.SeverityInfo)
	return nil
}
