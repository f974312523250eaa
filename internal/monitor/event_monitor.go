// Package monitor 轮询众筹合约日志，解码事件并分发给处理器，有新事件时刷新活动目录。
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blues/cfc/internal/campaign"
	"github.com/blues/cfc/internal/config"
	"github.com/blues/cfc/internal/contract"
	"github.com/blues/cfc/internal/logger"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/panjf2000/ants/v2"
)

// LogSource 区块和日志查询，由 ethereum.Client 实现
type LogSource interface {
	CurrentBlock(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, address common.Address, fromBlock, toBlock uint64) ([]types.Log, error)
}

// Refresher 有新事件时刷新目录
type Refresher interface {
	Refresh(ctx context.Context) (*campaign.Snapshot, error)
}

// EventMonitor 链上事件监控器
type EventMonitor struct {
	source    LogSource
	abi       abi.ABI
	address   common.Address
	registry  *Registry
	catalog   Refresher
	pool      *ants.Pool
	batchSize uint64
	interval  time.Duration

	pollMu    sync.Mutex // 同一时间只有一次轮询
	next      atomic.Uint64
	started   atomic.Bool
	processed atomic.Int64
	failures  atomic.Int64

	cancel context.CancelFunc
	done   chan struct{}
}

// NewEventMonitor 创建事件监控器
func NewEventMonitor(source LogSource, contractABI abi.ABI, address string, registry *Registry, catalog Refresher, cfg config.MonitorConfig) (*EventMonitor, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid contract address %q", address)
	}

	pool, err := ants.NewPool(poolSize(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create monitor pool: %w", err)
	}

	batchSize := uint64(500)
	if cfg.BatchSize > 0 {
		batchSize = uint64(cfg.BatchSize)
	}
	interval := 15 * time.Second
	if cfg.Interval > 0 {
		interval = time.Duration(cfg.Interval) * time.Second
	}

	m := &EventMonitor{
		source:    source,
		abi:       contractABI,
		address:   common.HexToAddress(address),
		registry:  registry,
		catalog:   catalog,
		pool:      pool,
		batchSize: batchSize,
		interval:  interval,
	}
	if cfg.StartBlock > 0 {
		m.next.Store(uint64(cfg.StartBlock))
	}
	return m, nil
}

func poolSize(cfg config.MonitorConfig) int {
	if cfg.Workers > 0 {
		return cfg.Workers
	}
	return 8
}

// Start 检查连接并启动轮询
//
// 未配置起始区块时只监控启动之后的新区块。
func (m *EventMonitor) Start(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return fmt.Errorf("monitor already started")
	}

	currentBlock, err := m.source.CurrentBlock(ctx)
	if err != nil {
		m.started.Store(false)
		return fmt.Errorf("failed to connect to chain: %w", err)
	}

	m.next.CompareAndSwap(0, currentBlock+1)
	next := m.next.Load()

	logger.Info("Starting event monitor for %s from block %d (current %d)", m.address.Hex(), next, currentBlock)

	loopCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.loop(loopCtx)
	return nil
}

// Stop 停止轮询并释放协程池
func (m *EventMonitor) Stop() {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
	m.pool.Release()
	logger.Info("Event monitor stopped")
}

func (m *EventMonitor) loop(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Poll(ctx); err != nil {
				m.failures.Add(1)
				logger.Error("Monitor poll failed: %v", err)
			}
		}
	}
}

// Poll 处理 next 到最新区块之间的日志，返回处理的事件数
func (m *EventMonitor) Poll(ctx context.Context) (int, error) {
	m.pollMu.Lock()
	defer m.pollMu.Unlock()

	currentBlock, err := m.source.CurrentBlock(ctx)
	if err != nil {
		return 0, err
	}
	m.next.CompareAndSwap(0, currentBlock+1)

	handled := 0
	for from := m.next.Load(); from <= currentBlock; from += m.batchSize {
		to := from + m.batchSize - 1
		if to > currentBlock {
			to = currentBlock
		}

		n, err := m.processBatch(ctx, from, to)
		if err != nil {
			if isRateLimitError(err) {
				logger.Warn("Rate limited while processing blocks %d-%d", from, to)
			}
			return handled, fmt.Errorf("blocks %d-%d: %w", from, to, err)
		}
		handled += n
		m.next.Store(to + 1)
	}

	if handled > 0 && m.catalog != nil {
		if _, err := m.catalog.Refresh(ctx); err != nil {
			logger.Warn("Catalog refresh after %d events failed: %v", handled, err)
		}
	}
	return handled, nil
}

// processBatch 拉取一批区块的日志，交给协程池并发处理
func (m *EventMonitor) processBatch(ctx context.Context, from, to uint64) (int, error) {
	logs, err := m.source.FilterLogs(ctx, m.address, from, to)
	if err != nil {
		return 0, err
	}
	if len(logs) == 0 {
		logger.Debug("No logs found for blocks %d-%d", from, to)
		return 0, nil
	}

	logger.Debug("Found %d logs for blocks %d-%d", len(logs), from, to)

	var (
		wg      sync.WaitGroup
		handled atomic.Int64
	)
	for _, log := range logs {
		wg.Add(1)
		err := m.pool.Submit(func() {
			defer wg.Done()
			if m.processLog(ctx, log) {
				handled.Add(1)
			}
		})
		if err != nil {
			wg.Done()
			logger.Error("Failed to submit log %s:%d to pool: %v", log.TxHash.Hex(), log.Index, err)
		}
	}
	wg.Wait()

	return int(handled.Load()), nil
}

func (m *EventMonitor) processLog(ctx context.Context, log types.Log) bool {
	if log.Removed {
		return false
	}

	event, err := contract.DecodeEvent(m.abi, log)
	if err != nil {
		logger.Warn("Skipping undecodable log %s:%d: %v", log.TxHash.Hex(), log.Index, err)
		return false
	}

	ok, err := m.registry.Process(ctx, event)
	if err != nil {
		logger.Error("Error processing %s at block %d: %v", event.Name, event.BlockNumber, err)
		return false
	}
	if ok {
		m.processed.Add(1)
	}
	return ok
}

// GetStatus 获取监控状态
func (m *EventMonitor) GetStatus() map[string]interface{} {
	return map[string]interface{}{
		"contract":   m.address.Hex(),
		"next_block": m.next.Load(),
		"events":     m.registry.EventNames(),
		"processed":  m.processed.Load(),
		"failures":   m.failures.Load(),
		"pool": map[string]interface{}{
			"running": m.pool.Running(),
			"free":    m.pool.Free(),
			"cap":     m.pool.Cap(),
		},
	}
}

// GetStatusJSON 获取监控状态的JSON格式
func (m *EventMonitor) GetStatusJSON() (string, error) {
	jsonData, err := json.MarshalIndent(m.GetStatus(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal monitor status: %w", err)
	}
	return string(jsonData), nil
}

// isRateLimitError 检查是否为API限制错误
func isRateLimitError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Too Many Requests") || strings.Contains(msg, "429")
}
