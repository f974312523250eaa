package campaign

import (
	"math/big"
	"time"
)

// Status 由链上数值推导出的活动状态
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Campaign 一次拉取得到的活动快照，拉取后不再修改
//
// ID 是本次拉取结果中的下标，不是合约里的主键：只在同一份未过滤的结果内有效，
// 合约中插入一条活动就可能使其后的编号全部变化。
type Campaign struct {
	ID               int        `json:"id"`
	Owner            string     `json:"owner"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Image            string     `json:"image"`
	Target           *big.Int   `json:"target"`    // 基础单位
	Collected        *big.Int   `json:"collected"` // 基础单位
	Deadline         int64      `json:"deadline"`  // unix 秒
	TargetDisplay    string     `json:"targetDisplay"`
	CollectedDisplay string     `json:"collectedDisplay"`
	Donators         []string   `json:"donators,omitempty"`
	Donations        []*big.Int `json:"donations,omitempty"`
}

// IsClosed collected >= target 或 deadline <= now
func (c Campaign) IsClosed(now int64) bool {
	return c.Collected.Cmp(c.Target) >= 0 || c.Deadline <= now
}

// StatusAt 在 now 时刻的状态
func (c Campaign) StatusAt(now int64) Status {
	if c.IsClosed(now) {
		return StatusClosed
	}
	return StatusOpen
}

// DeadlineTime 截止时间
func (c Campaign) DeadlineTime() time.Time {
	return time.Unix(c.Deadline, 0)
}

// Progress 已筹比例（百分比），仅用于展示
func (c Campaign) Progress() float64 {
	if c.Target == nil || c.Target.Sign() <= 0 {
		return 100
	}
	ratio := new(big.Rat).SetFrac(new(big.Int).Mul(c.Collected, big.NewInt(100)), c.Target)
	f, _ := ratio.Float64()
	return f
}

// Snapshot 一次 Refresh 的完整结果，整体替换
type Snapshot struct {
	Campaigns []Campaign `json:"campaigns"`
	Open      []Campaign `json:"open"`
	Closed    []Campaign `json:"closed"`
	Now       int64      `json:"now"` // 本次分类使用的时间
	FetchedAt time.Time  `json:"fetchedAt"`
}

// Get 按编号查找
func (s *Snapshot) Get(id int) (Campaign, bool) {
	if s == nil || id < 0 || id >= len(s.Campaigns) {
		return Campaign{}, false
	}
	return s.Campaigns[id], true
}

// Filter 按状态过滤，status 为空时返回全部
func (s *Snapshot) Filter(status Status) []Campaign {
	if s == nil {
		return nil
	}
	switch status {
	case StatusOpen:
		return s.Open
	case StatusClosed:
		return s.Closed
	default:
		return s.Campaigns
	}
}
