package monitor

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/blues/cfc/internal/campaign"
	"github.com/blues/cfc/internal/config"
	"github.com/blues/cfc/internal/contract"
	"github.com/blues/cfc/internal/notify"
	"github.com/blues/cfc/internal/unit"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const address = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

type span struct{ from, to uint64 }

type fakeChain struct {
	mu      sync.Mutex
	head    uint64
	logs    []types.Log
	err     error
	queries []span
}

func (f *fakeChain) CurrentBlock(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, nil
}

func (f *fakeChain) FilterLogs(_ context.Context, _ common.Address, from, to uint64) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, span{from, to})
	if f.err != nil {
		return nil, f.err
	}
	var out []types.Log
	for _, l := range f.logs {
		if l.BlockNumber >= from && l.BlockNumber <= to {
			out = append(out, l)
		}
	}
	return out, nil
}

type countingRefresher struct {
	mu sync.Mutex
	n  int
}

func (c *countingRefresher) Refresh(context.Context) (*campaign.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return &campaign.Snapshot{}, nil
}

func donationLog(t *testing.T, block uint64, id int64, amount int64) types.Log {
	t.Helper()
	ev := contract.DefaultABI().Events[contract.EventDonationReceived]
	data, err := ev.Inputs.NonIndexed().Pack(big.NewInt(amount))
	require.NoError(t, err)
	donator := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	return types.Log{
		Address:     common.HexToAddress(address),
		Topics:      []common.Hash{ev.ID, common.BigToHash(big.NewInt(id)), common.BytesToHash(donator.Bytes())},
		Data:        data,
		BlockNumber: block,
	}
}

func createdLog(t *testing.T, block uint64, id int64) types.Log {
	t.Helper()
	ev := contract.DefaultABI().Events[contract.EventCampaignCreated]
	data, err := ev.Inputs.NonIndexed().Pack(big.NewInt(5_000_000), big.NewInt(1_800_000_000))
	require.NoError(t, err)
	owner := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	return types.Log{
		Address:     common.HexToAddress(address),
		Topics:      []common.Hash{ev.ID, common.BigToHash(big.NewInt(id)), common.BytesToHash(owner.Bytes())},
		Data:        data,
		BlockNumber: block,
	}
}

func newMonitor(t *testing.T, source LogSource, refresher Refresher, feed *notify.Feed, cfg config.MonitorConfig) *EventMonitor {
	t.Helper()
	registry := NewRegistry(
		NewCampaignCreatedProcessor(feed, unit.Sun, "TRX"),
		NewDonationReceivedProcessor(feed, unit.Sun, "TRX"),
	)
	m, err := NewEventMonitor(source, contract.DefaultABI(), address, registry, refresher, cfg)
	require.NoError(t, err)
	t.Cleanup(m.Stop)
	return m
}

func TestPollProcessesBatchesAndRefreshesOnce(t *testing.T) {
	source := &fakeChain{head: 25, logs: []types.Log{
		createdLog(t, 11, 0),
		donationLog(t, 14, 0, 1_500_000),
		donationLog(t, 23, 0, 2_000_000),
		{Address: common.HexToAddress(address), BlockNumber: 24, Topics: []common.Hash{common.HexToHash("0x99")}},
	}}
	refresher := &countingRefresher{}
	feed := notify.NewFeed(10)
	m := newMonitor(t, source, refresher, feed, config.MonitorConfig{StartBlock: 10, BatchSize: 10})

	n, err := m.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []span{{10, 19}, {20, 25}}, source.queries)
	assert.Equal(t, 1, refresher.n)
	assert.Equal(t, uint64(26), m.GetStatus()["next_block"])

	var messages []string
	for _, item := range feed.Recent() {
		messages = append(messages, item.Message)
	}
	assert.Contains(t, messages, "Campaign #0 received 1.5 TRX.")
	assert.Contains(t, messages, "New campaign #0 with a target of 5 TRX.")

	// nothing new: no query past the head, no refresh
	n, err = m.Poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, refresher.n)
}

func TestPollStopsAtFailedBatch(t *testing.T) {
	source := &fakeChain{head: 30, err: errors.New("429 Too Many Requests")}
	refresher := &countingRefresher{}
	m := newMonitor(t, source, refresher, notify.NewFeed(5), config.MonitorConfig{StartBlock: 1, BatchSize: 10})

	_, err := m.Poll(context.Background())
	assert.Error(t, err)
	assert.True(t, isRateLimitError(err))
	assert.Len(t, source.queries, 1)
	assert.Equal(t, uint64(1), m.GetStatus()["next_block"])
	assert.Zero(t, refresher.n)

	source.err = nil
	_, err = m.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(31), m.GetStatus()["next_block"])
}

func TestStartWithoutStartBlockFollowsHead(t *testing.T) {
	source := &fakeChain{head: 100}
	m := newMonitor(t, source, &countingRefresher{}, notify.NewFeed(5), config.MonitorConfig{Interval: 3600})

	require.NoError(t, m.Start(context.Background()))
	assert.Error(t, m.Start(context.Background()))
	assert.Equal(t, uint64(101), m.GetStatus()["next_block"])

	status, err := m.GetStatusJSON()
	require.NoError(t, err)
	assert.Contains(t, status, contract.EventDonationReceived)
}

func TestRegistry(t *testing.T) {
	feed := notify.NewFeed(5)
	r := NewRegistry(NewDonationReceivedProcessor(feed, unit.Sun, "TRX"))
	assert.Equal(t, []string{contract.EventDonationReceived}, r.EventNames())

	ok, err := r.Process(context.Background(), contract.Event{Name: "Other"})
	assert.False(t, ok)
	assert.NoError(t, err)

	ok, err = r.Process(context.Background(), contract.Event{Name: contract.EventDonationReceived, Fields: map[string]interface{}{}})
	assert.True(t, ok)
	assert.Error(t, err)
}

func TestNewEventMonitorRejectsBadAddress(t *testing.T) {
	_, err := NewEventMonitor(&fakeChain{}, contract.DefaultABI(), "nope", NewRegistry(), nil, config.MonitorConfig{})
	assert.Error(t, err)
}
