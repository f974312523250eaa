package contract

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const (
	EventCampaignCreated  = "CampaignCreated"
	EventDonationReceived = "DonationReceived"
)

// Event 解码后的合约事件
type Event struct {
	Name        string
	Fields      map[string]interface{}
	TxHash      string
	BlockNumber uint64
	LogIndex    uint
}

// CampaignID 事件中的活动编号
func (e Event) CampaignID() (int64, bool) {
	v, ok := e.Fields["id"].(*big.Int)
	if !ok {
		return 0, false
	}
	return v.Int64(), true
}

// Amount 事件中的金额字段
func (e Event) Amount(name string) *big.Int {
	v, _ := e.Fields[name].(*big.Int)
	return v
}

// Address 事件中的地址字段
func (e Event) Address(name string) common.Address {
	v, _ := e.Fields[name].(common.Address)
	return v
}

// DecodeEvent 按ABI解码日志
func DecodeEvent(contractABI abi.ABI, log types.Log) (Event, error) {
	if len(log.Topics) == 0 {
		return Event{}, fmt.Errorf("log %s:%d has no topics", log.TxHash.Hex(), log.Index)
	}

	event, err := contractABI.EventByID(log.Topics[0])
	if err != nil {
		return Event{}, fmt.Errorf("unknown event signature %s: %w", log.Topics[0].Hex(), err)
	}

	result := Event{
		Name:        event.Name,
		Fields:      make(map[string]interface{}),
		TxHash:      log.TxHash.Hex(),
		BlockNumber: log.BlockNumber,
		LogIndex:    log.Index,
	}

	// 索引参数
	topic := 1
	for _, input := range event.Inputs {
		if !input.Indexed {
			continue
		}
		if topic >= len(log.Topics) {
			return Event{}, fmt.Errorf("%s: missing topic for %s", event.Name, input.Name)
		}
		result.Fields[input.Name] = topicValue(log.Topics[topic], input.Type)
		topic++
	}

	// 非索引参数
	if len(log.Data) > 0 {
		if err := contractABI.UnpackIntoMap(result.Fields, event.Name, log.Data); err != nil {
			return Event{}, fmt.Errorf("failed to unpack %s data: %w", event.Name, err)
		}
	}

	return result, nil
}

// topicValue 解析主题值
func topicValue(topic common.Hash, t abi.Type) interface{} {
	switch t.T {
	case abi.UintTy, abi.IntTy:
		return new(big.Int).SetBytes(topic.Bytes())
	case abi.AddressTy:
		return common.BytesToAddress(topic.Bytes())
	case abi.BoolTy:
		return new(big.Int).SetBytes(topic.Bytes()).Sign() > 0
	default:
		return topic.Hex()
	}
}
