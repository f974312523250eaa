package scheduler

import (
	"context"
	"time"

	"github.com/blues/cfc/internal/campaign"
	"github.com/blues/cfc/internal/logger"
	"github.com/go-co-op/gocron/v2"
)

// Refresher 活动目录
type Refresher interface {
	Refresh(ctx context.Context) (*campaign.Snapshot, error)
}

// Binding 合约句柄状态，由 chain.Gateway 实现
type Binding interface {
	Bound() bool
}

// CatalogRefreshJob 活动目录刷新任务
type CatalogRefreshJob struct {
	catalog  Refresher
	binding  Binding
	interval time.Duration
}

// NewCatalogRefreshJob 创建活动目录刷新任务，binding 为 nil 时每次都刷新
func NewCatalogRefreshJob(catalog Refresher, binding Binding, interval time.Duration) *CatalogRefreshJob {
	return &CatalogRefreshJob{catalog: catalog, binding: binding, interval: interval}
}

// GetName 获取任务名称
func (j *CatalogRefreshJob) GetName() string {
	return "catalog_refresher"
}

// GetSchedule 获取调度配置
func (j *CatalogRefreshJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 执行任务，单次刷新不超过一个周期；钱包未连接时跳过
func (j *CatalogRefreshJob) Execute() {
	if j.binding != nil && !j.binding.Bound() {
		logger.Debug("Skipping scheduled catalog refresh: contract not bound")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.interval)
	defer cancel()

	start := time.Now()
	snap, err := j.catalog.Refresh(ctx)
	if err != nil {
		logger.Warn("Scheduled catalog refresh failed: %v", err)
		return
	}
	logger.Debug("Scheduled catalog refresh: %d campaigns in %s", len(snap.Campaigns), time.Since(start))
}
