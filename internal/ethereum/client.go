// Package ethereum 基于 go-ethereum 的钱包 provider：用配置中的私钥授权账户，
// 为该账户构造合约句柄，并向监控提供区块和日志查询。
package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/blues/cfc/internal/chain"
	"github.com/blues/cfc/internal/config"
	"github.com/blues/cfc/internal/logger"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ErrNoKey 未配置私钥，无法授权账户
var ErrNoKey = errors.New("no private key configured")

// Client 链客户端
type Client struct {
	client     *ethclient.Client
	privateKey *ecdsa.PrivateKey
	chainID    *big.Int
}

// Init 连接节点并解析私钥
func Init(cfg config.ChainConfig) (*Client, error) {
	if cfg.RpcUrl == "" {
		return nil, fmt.Errorf("no RPC URL configured")
	}

	// 连接以太坊客户端
	client, err := ethclient.Dial(cfg.RpcUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to chain client: %w", err)
	}

	c := &Client{
		client:  client,
		chainID: big.NewInt(cfg.ChainId),
	}

	// 私钥可以为空，此时只能只读
	if cfg.PrivateKey != "" {
		privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		c.privateKey = privateKey
	}

	logger.Info("Chain client initialized (type: %s, id: %d)", cfg.ChainType, cfg.ChainId)
	return c, nil
}

// Close 关闭连接
func (c *Client) Close() {
	c.client.Close()
}

// Address 私钥对应的账户地址
func (c *Client) Address() (common.Address, bool) {
	if c.privateKey == nil {
		return common.Address{}, false
	}
	return crypto.PubkeyToAddress(c.privateKey.PublicKey), true
}

// RequestAccounts 实现 wallet.Provider，返回私钥对应的账户
func (c *Client) RequestAccounts(context.Context) ([]string, error) {
	addr, ok := c.Address()
	if !ok {
		return nil, ErrNoKey
	}
	return []string{addr.Hex()}, nil
}

// Contract 实现 chain.Binder，为 account 构造合约句柄
func (c *Client) Contract(_ context.Context, account string, contractABI abi.ABI, address string) (chain.Handle, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid contract address %q", address)
	}
	from, ok := c.Address()
	if !ok {
		return nil, ErrNoKey
	}
	// 只能为自己持有私钥的账户签名
	if !strings.EqualFold(from.Hex(), account) {
		return nil, fmt.Errorf("account %s is not managed by this provider", account)
	}

	contractAddr := common.HexToAddress(address)
	return &handle{
		client:   c.client,
		contract: bind.NewBoundContract(contractAddr, contractABI, c.client, c.client, c.client),
		from:     from,
		key:      c.privateKey,
		chainID:  c.chainID,
	}, nil
}

// CurrentBlock 获取最新区块号
func (c *Client) CurrentBlock(ctx context.Context) (uint64, error) {
	n, err := c.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", chain.ErrNetwork, err)
	}
	return n, nil
}

// FilterLogs 获取合约在指定区块范围内的日志
func (c *Client) FilterLogs(ctx context.Context, address common.Address, fromBlock, toBlock uint64) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{address},
	}

	logs, err := c.client.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", chain.ErrNetwork, err)
	}
	return logs, nil
}
