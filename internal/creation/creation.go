// Package creation 创建活动流程：校验表单并提交一次 createCampaign 交易。
package creation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/blues/cfc/internal/campaign"
	"github.com/blues/cfc/internal/chain"
	"github.com/blues/cfc/internal/contract"
	"github.com/blues/cfc/internal/logger"
	"github.com/blues/cfc/internal/notify"
	"github.com/blues/cfc/internal/unit"
	"github.com/blues/cfc/internal/wallet"
)

// ErrInvalidForm 表单校验失败
var ErrInvalidForm = errors.New("invalid campaign form")

// Form 创建活动表单
type Form struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Target      string `json:"target"`   // 展示单位
	Deadline    int64  `json:"deadline"` // unix 秒
	Image       string `json:"image"`    // 已上传资源的引用
}

// Creator 发送创建交易，由 contract.Crowdfunding 实现
type Creator interface {
	CreateCampaign(ctx context.Context, req contract.NewCampaign) (*chain.Receipt, error)
}

// AccountSource 活动所有者来源，由 wallet.Session 实现
type AccountSource interface {
	Account() string
}

// Refresher 成功后刷新目录
type Refresher interface {
	Refresh(ctx context.Context) (*campaign.Snapshot, error)
}

// Workflow 创建活动流程
type Workflow struct {
	creator  Creator
	accounts AccountSource
	catalog  Refresher
	units    unit.Converter
	notifier notify.Notifier
	clock    func() time.Time

	mu   sync.Mutex
	form Form
}

// Option 流程选项
type Option func(*Workflow)

// WithClock 替换时钟
func WithClock(clock func() time.Time) Option {
	return func(w *Workflow) {
		w.clock = clock
	}
}

// WithNotifier 设置通知接收方
func WithNotifier(n notify.Notifier) Option {
	return func(w *Workflow) {
		w.notifier = n
	}
}

// NewWorkflow 创建流程
func NewWorkflow(creator Creator, accounts AccountSource, catalog Refresher, units unit.Converter, opts ...Option) *Workflow {
	w := &Workflow{
		creator:  creator,
		accounts: accounts,
		catalog:  catalog,
		units:    units,
		notifier: notify.Discard,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// SetForm 替换表单
func (w *Workflow) SetForm(form Form) {
	w.mu.Lock()
	w.form = form
	w.mu.Unlock()
}

// Form 当前表单
func (w *Workflow) Form() Form {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.form
}

// Submit 校验并提交当前表单，成功后清空表单并刷新目录
func (w *Workflow) Submit(ctx context.Context) (*chain.Receipt, error) {
	form := w.Form()

	owner := w.accounts.Account()
	if owner == "" {
		w.notifier.Notify("Please connect your wallet first.", notify.SeverityWarning)
		return nil, wallet.ErrNotConnected
	}

	req, err := w.validate(form)
	if err != nil {
		logger.Warn("Rejected campaign form: %v", err)
		w.notifier.Notify("Please check the campaign details.", notify.SeverityError)
		return nil, err
	}
	req.Owner = owner

	logger.Info("Creating campaign %q for %s (target %s, deadline %d)", req.Title, owner, req.Target, req.Deadline)
	receipt, err := w.creator.CreateCampaign(ctx, req)
	if err != nil {
		logger.Error("Create campaign failed: %v", err)
		w.notifier.Notify("Error creating campaign. Please try again.", notify.SeverityError)
		return nil, err
	}

	w.SetForm(Form{})
	w.notifier.Notify("Campaign created successfully!", notify.SeveritySuccess)

	if _, err := w.catalog.Refresh(ctx); err != nil {
		logger.Warn("Campaign refresh after creation failed: %v", err)
	}
	return receipt, nil
}

func (w *Workflow) validate(form Form) (contract.NewCampaign, error) {
	title := strings.TrimSpace(form.Title)
	if title == "" {
		return contract.NewCampaign{}, fmt.Errorf("%w: title is required", ErrInvalidForm)
	}

	target, err := w.units.ParsePositive(form.Target)
	if err != nil {
		return contract.NewCampaign{}, fmt.Errorf("%w: target: %w", ErrInvalidForm, err)
	}

	if now := w.clock().Unix(); form.Deadline <= now {
		return contract.NewCampaign{}, fmt.Errorf("%w: deadline %d is not in the future", ErrInvalidForm, form.Deadline)
	}

	image := strings.TrimSpace(form.Image)
	if image == "" {
		return contract.NewCampaign{}, fmt.Errorf("%w: image is required", ErrInvalidForm)
	}

	return contract.NewCampaign{
		Title:       title,
		Description: form.Description,
		Target:      target,
		Deadline:    form.Deadline,
		Image:       image,
	}, nil
}
