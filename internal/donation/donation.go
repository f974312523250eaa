// Package donation 捐赠流程：每个活动一份待提交金额，校验、换算、提交一次，成功后刷新目录。
package donation

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/blues/cfc/internal/campaign"
	"github.com/blues/cfc/internal/chain"
	"github.com/blues/cfc/internal/logger"
	"github.com/blues/cfc/internal/notify"
	"github.com/blues/cfc/internal/unit"
)

var (
	// ErrInvalidAmount 金额无法解析或不大于 0
	ErrInvalidAmount = unit.ErrInvalidAmount
	// ErrDonationRejected 合约回滚或签名方拒绝
	ErrDonationRejected = errors.New("donation rejected")
	// ErrNetworkError 提交过程中的网络错误
	ErrNetworkError = errors.New("donation failed: network error")
	// ErrCampaignClosed 当前快照显示活动已关闭
	ErrCampaignClosed = errors.New("campaign is closed")
	// ErrDonationInFlight 同一活动已有捐赠正在提交
	ErrDonationInFlight = errors.New("a donation to this campaign is already in flight")
)

// Donor 发送捐赠交易，由 contract.Crowdfunding 实现
type Donor interface {
	DonateToCampaign(ctx context.Context, id int, value *big.Int) (*chain.Receipt, error)
}

// Catalog 捐赠流程只读取活动并在成功后刷新
type Catalog interface {
	Snapshot() *campaign.Snapshot
	Refresh(ctx context.Context) (*campaign.Snapshot, error)
}

// Result 一次成功的捐赠
type Result struct {
	CampaignID int            `json:"campaignId"`
	Amount     *big.Int       `json:"amount"` // 基础单位
	Display    string         `json:"display"`
	Receipt    *chain.Receipt `json:"receipt"`
	// RefreshErr 捐赠成功后刷新目录失败，不影响捐赠结果
	RefreshErr error `json:"-"`
}

// Workflow 捐赠流程
type Workflow struct {
	donor    Donor
	catalog  Catalog
	units    unit.Converter
	notifier notify.Notifier

	mu      sync.Mutex
	intents map[int]string
	pending map[int]bool // 正在提交的活动
}

// NewWorkflow 创建捐赠流程
func NewWorkflow(donor Donor, catalog Catalog, units unit.Converter, notifier notify.Notifier) *Workflow {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Workflow{
		donor:    donor,
		catalog:  catalog,
		units:    units,
		notifier: notifier,
		intents:  make(map[int]string),
		pending:  make(map[int]bool),
	}
}

// SetIntent 记录用户输入的金额，提交时才校验
func (w *Workflow) SetIntent(id int, amount string) {
	w.mu.Lock()
	w.intents[id] = amount
	w.mu.Unlock()
}

// Intent 当前输入的金额
func (w *Workflow) Intent(id int) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	amount, ok := w.intents[id]
	return amount, ok
}

// ClearIntent 清除输入
func (w *Workflow) ClearIntent(id int) {
	w.mu.Lock()
	delete(w.intents, id)
	w.mu.Unlock()
}

// Pending 活动是否有捐赠正在提交
func (w *Workflow) Pending(id int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending[id]
}

// Donate 提交活动 id 当前输入的金额
//
// 只发送一次交易，失败不重试，输入保留以便用户再次提交。
// 同一活动同时只允许一笔提交。
func (w *Workflow) Donate(ctx context.Context, id int) (*Result, error) {
	human, err := w.begin(id)
	if err != nil {
		logger.Warn("Refused donation to campaign %d: %v", id, err)
		w.notifier.Notify("A donation to this campaign is already being submitted.", notify.SeverityWarning)
		return nil, err
	}
	defer w.finish(id)

	value, err := w.units.ParsePositive(human)
	if err != nil {
		logger.Warn("Rejected donation to campaign %d: %v", id, err)
		w.notifier.Notify("Please enter a valid amount.", notify.SeverityError)
		return nil, err
	}

	if w.closed(id) {
		w.notifier.Notify("This campaign is closed.", notify.SeverityWarning)
		return nil, fmt.Errorf("%w: campaign %d", ErrCampaignClosed, id)
	}

	display := w.units.ToDisplay(value)
	logger.Info("Donating %s to campaign %d (%s base units)", display, id, value)

	receipt, err := w.donor.DonateToCampaign(ctx, id, value)
	if err != nil {
		classified := classify(err)
		logger.Error("Donation to campaign %d failed: %v", id, err)
		w.notifier.Notify("Error donating to campaign. Please try again.", notify.SeverityError)
		return nil, classified
	}

	// 提交期间用户改过的输入保留
	w.clearIntentIf(id, human)
	w.notifier.Notify(fmt.Sprintf("Successfully donated %s!", display), notify.SeveritySuccess)

	result := &Result{CampaignID: id, Amount: value, Display: display, Receipt: receipt}
	if _, err := w.catalog.Refresh(ctx); err != nil {
		logger.Warn("Campaign refresh after donation failed: %v", err)
		result.RefreshErr = err
	}
	return result, nil
}

// begin 读取输入并占用该活动的提交位
func (w *Workflow) begin(id int) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending[id] {
		return "", fmt.Errorf("%w: campaign %d", ErrDonationInFlight, id)
	}
	w.pending[id] = true
	return w.intents[id], nil
}

func (w *Workflow) finish(id int) {
	w.mu.Lock()
	delete(w.pending, id)
	w.mu.Unlock()
}

func (w *Workflow) clearIntentIf(id int, submitted string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if current, ok := w.intents[id]; ok && current == submitted {
		delete(w.intents, id)
	}
}

// closed 快照中存在且已关闭；快照里没有的编号交给合约判断
func (w *Workflow) closed(id int) bool {
	snap := w.catalog.Snapshot()
	c, ok := snap.Get(id)
	return ok && c.IsClosed(snap.Now)
}

func classify(err error) error {
	if errors.Is(err, chain.ErrRejected) {
		return fmt.Errorf("%w: %w", ErrDonationRejected, err)
	}
	return fmt.Errorf("%w: %w", ErrNetworkError, err)
}
