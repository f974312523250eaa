package contract

import (
	"context"
	"fmt"
	"math/big"

	"github.com/blues/cfc/internal/chain"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const (
	MethodGetCampaigns      = "getCampaigns"
	MethodDonateToCampaign  = "donateToCampaign"
	MethodCreateCampaign    = "createCampaign"
	MethodGetDonators       = "getDonators"
	MethodNumberOfCampaigns = "numberOfCampaigns"
)

// CampaignRecord 合约 getCampaigns 返回的单条记录
type CampaignRecord struct {
	Owner           common.Address
	Title           string
	Description     string
	Target          *big.Int
	Deadline        *big.Int
	AmountCollected *big.Int
	Image           string
	Donators        []common.Address
	Donations       []*big.Int
}

// NewCampaign createCampaign 的参数
type NewCampaign struct {
	Owner       string
	Title       string
	Description string
	Target      *big.Int
	Deadline    int64
	Image       string
}

// Caller 合约调用方，由 chain.Gateway 实现
type Caller interface {
	Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error)
	Send(ctx context.Context, opts chain.SendOpts, method string, args ...interface{}) (*chain.Receipt, error)
}

// Crowdfunding 众筹合约的类型化封装
type Crowdfunding struct {
	caller Caller
}

// NewCrowdfunding 创建众筹合约封装
func NewCrowdfunding(caller Caller) *Crowdfunding {
	return &Crowdfunding{caller: caller}
}

// GetCampaigns 读取全部众筹活动，顺序即合约中的存储顺序
func (c *Crowdfunding) GetCampaigns(ctx context.Context) ([]CampaignRecord, error) {
	out, err := c.caller.Call(ctx, MethodGetCampaigns)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s returned no values", MethodGetCampaigns)
	}

	var records []CampaignRecord
	if err := convert(out[0], &records); err != nil {
		return nil, fmt.Errorf("failed to decode %s result: %w", MethodGetCampaigns, err)
	}
	return records, nil
}

// NumberOfCampaigns 活动数量
func (c *Crowdfunding) NumberOfCampaigns(ctx context.Context) (uint64, error) {
	out, err := c.caller.Call(ctx, MethodNumberOfCampaigns)
	if err != nil {
		return 0, err
	}
	if len(out) == 0 {
		return 0, fmt.Errorf("%s returned no values", MethodNumberOfCampaigns)
	}

	var n *big.Int
	if err := convert(out[0], &n); err != nil {
		return 0, fmt.Errorf("failed to decode %s result: %w", MethodNumberOfCampaigns, err)
	}
	return n.Uint64(), nil
}

// GetDonators 某个活动的捐赠人和捐赠金额
func (c *Crowdfunding) GetDonators(ctx context.Context, id int) ([]common.Address, []*big.Int, error) {
	out, err := c.caller.Call(ctx, MethodGetDonators, big.NewInt(int64(id)))
	if err != nil {
		return nil, nil, err
	}
	if len(out) < 2 {
		return nil, nil, fmt.Errorf("%s returned %d values, want 2", MethodGetDonators, len(out))
	}

	var (
		donators  []common.Address
		donations []*big.Int
	)
	if err := convert(out[0], &donators); err != nil {
		return nil, nil, err
	}
	if err := convert(out[1], &donations); err != nil {
		return nil, nil, err
	}
	return donators, donations, nil
}

// DonateToCampaign 向活动捐赠，value 为基础单位
func (c *Crowdfunding) DonateToCampaign(ctx context.Context, id int, value *big.Int) (*chain.Receipt, error) {
	return c.caller.Send(ctx, chain.SendOpts{Value: value}, MethodDonateToCampaign, big.NewInt(int64(id)))
}

// CreateCampaign 创建活动
func (c *Crowdfunding) CreateCampaign(ctx context.Context, req NewCampaign) (*chain.Receipt, error) {
	if !common.IsHexAddress(req.Owner) {
		return nil, fmt.Errorf("invalid owner address %q", req.Owner)
	}
	return c.caller.Send(ctx, chain.SendOpts{}, MethodCreateCampaign,
		common.HexToAddress(req.Owner),
		req.Title,
		req.Description,
		req.Target,
		big.NewInt(req.Deadline),
		req.Image,
	)
}

// convert 将 ABI 解码出的匿名类型转换为目标类型
func convert(in interface{}, out interface{}) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected ABI value %T: %v", in, r)
		}
	}()
	if in == nil {
		return fmt.Errorf("nil ABI value")
	}
	abi.ConvertType(in, out)
	return nil
}
