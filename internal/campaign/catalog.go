// Package campaign 活动目录：拉取全部活动、分配位置编号、按截止时间和金额划分开放/关闭。
package campaign

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blues/cfc/internal/contract"
	"github.com/blues/cfc/internal/logger"
	"github.com/blues/cfc/internal/notify"
	"github.com/blues/cfc/internal/unit"
)

// ErrFetchFailed 读取活动列表失败
var ErrFetchFailed = errors.New("failed to load campaigns")

// Source 活动数据来源，由 contract.Crowdfunding 实现
type Source interface {
	GetCampaigns(ctx context.Context) ([]contract.CampaignRecord, error)
}

// Catalog 活动目录
type Catalog struct {
	source   Source
	units    unit.Converter
	notifier notify.Notifier
	clock    func() time.Time

	snapshot atomic.Pointer[Snapshot]
	inflight atomic.Int32  // 正在进行的拉取数
	seq      atomic.Uint64 // 拉取序号，按开始顺序递增

	mu      sync.RWMutex
	applied uint64 // 已生效的最新序号
	lastErr error
}

// Option 目录选项
type Option func(*Catalog)

// WithClock 替换时钟
func WithClock(clock func() time.Time) Option {
	return func(c *Catalog) {
		c.clock = clock
	}
}

// WithNotifier 设置通知接收方
func WithNotifier(n notify.Notifier) Option {
	return func(c *Catalog) {
		c.notifier = n
	}
}

// NewCatalog 创建活动目录
func NewCatalog(source Source, units unit.Converter, opts ...Option) *Catalog {
	c := &Catalog{
		source:   source,
		units:    units,
		notifier: notify.Discard,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.snapshot.Store(&Snapshot{})
	return c
}

// Refresh 重新拉取全部活动
//
// 失败时保留上一次的快照，只记录错误。并发的拉取按开始顺序生效：
// 比已生效结果更早开始的拉取被丢弃，不会覆盖更新的快照。
func (c *Catalog) Refresh(ctx context.Context) (*Snapshot, error) {
	c.inflight.Add(1)
	defer c.inflight.Add(-1)

	seq := c.seq.Add(1)
	now := c.clock()

	records, err := c.source.GetCampaigns(ctx)
	if err != nil {
		fetchErr := fmt.Errorf("%w: %w", ErrFetchFailed, err)
		logger.Error("Error loading campaigns: %v", err)
		c.notifier.Notify("Failed to load campaigns. Please try again later.", notify.SeverityError)

		c.mu.Lock()
		if seq > c.applied {
			c.lastErr = fetchErr
		}
		c.mu.Unlock()
		return c.Snapshot(), fetchErr
	}

	snap := c.build(records, now)

	c.mu.Lock()
	if seq < c.applied {
		c.mu.Unlock()
		logger.Debug("Discarding stale campaign fetch #%d (applied #%d)", seq, c.applied)
		return c.Snapshot(), nil
	}
	c.applied = seq
	c.snapshot.Store(snap)
	c.lastErr = nil
	c.mu.Unlock()

	logger.Info("Loaded %d campaigns (%d open, %d closed)", len(snap.Campaigns), len(snap.Open), len(snap.Closed))
	return snap, nil
}

// build 转换并分类，now 对整批活动只取一次
func (c *Catalog) build(records []contract.CampaignRecord, now time.Time) *Snapshot {
	unix := now.Unix()
	snap := &Snapshot{
		Campaigns: make([]Campaign, 0, len(records)),
		Open:      []Campaign{},
		Closed:    []Campaign{},
		Now:       unix,
		FetchedAt: now,
	}

	for i, r := range records {
		cp := c.fromRecord(i, r)
		snap.Campaigns = append(snap.Campaigns, cp)
		if cp.IsClosed(unix) {
			snap.Closed = append(snap.Closed, cp)
		} else {
			snap.Open = append(snap.Open, cp)
		}
	}
	return snap
}

func (c *Catalog) fromRecord(id int, r contract.CampaignRecord) Campaign {
	target := orZero(r.Target)
	collected := orZero(r.AmountCollected)

	deadline := int64(0)
	if r.Deadline != nil && r.Deadline.IsInt64() {
		deadline = r.Deadline.Int64()
	}

	donators := make([]string, 0, len(r.Donators))
	for _, d := range r.Donators {
		donators = append(donators, d.Hex())
	}
	donations := make([]*big.Int, 0, len(r.Donations))
	for _, d := range r.Donations {
		donations = append(donations, orZero(d))
	}

	return Campaign{
		ID:               id,
		Owner:            r.Owner.Hex(),
		Title:            r.Title,
		Description:      r.Description,
		Image:            r.Image,
		Target:           target,
		Collected:        collected,
		Deadline:         deadline,
		TargetDisplay:    c.units.ToDisplay(target),
		CollectedDisplay: c.units.ToDisplay(collected),
		Donators:         donators,
		Donations:        donations,
	}
}

// Snapshot 当前快照，从不为 nil
func (c *Catalog) Snapshot() *Snapshot {
	return c.snapshot.Load()
}

// Campaigns 全部活动
func (c *Catalog) Campaigns() []Campaign {
	return c.Snapshot().Campaigns
}

// Open 开放中的活动
func (c *Catalog) Open() []Campaign {
	return c.Snapshot().Open
}

// Closed 已关闭的活动
func (c *Catalog) Closed() []Campaign {
	return c.Snapshot().Closed
}

// Get 按编号查找当前快照中的活动
func (c *Catalog) Get(id int) (Campaign, bool) {
	return c.Snapshot().Get(id)
}

// Loading 是否有拉取正在进行
func (c *Catalog) Loading() bool {
	return c.inflight.Load() > 0
}

// Err 最近一次拉取的错误，成功后清空
func (c *Catalog) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
