package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/blues/cfc/internal/chain"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// handle 绑定到单个账户的合约句柄
type handle struct {
	client   *ethclient.Client
	contract *bind.BoundContract
	from     common.Address
	key      *ecdsa.PrivateKey
	chainID  *big.Int
}

func (h *handle) Account() string {
	return h.from.Hex()
}

func (h *handle) Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx, From: h.from}
	if err := h.contract.Call(opts, &out, method, args...); err != nil {
		return nil, classify(method, err)
	}
	return out, nil
}

// Send 签名并发送交易，等待上链；回执状态失败视为被拒绝
func (h *handle) Send(ctx context.Context, opts chain.SendOpts, method string, args ...interface{}) (*chain.Receipt, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(h.key, h.chainID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", chain.ErrRejected, method, err)
	}
	auth.Context = ctx
	if opts.Value != nil {
		auth.Value = new(big.Int).Set(opts.Value)
	}

	tx, err := h.contract.Transact(auth, method, args...)
	if err != nil {
		return nil, classify(method, err)
	}

	receipt, err := bind.WaitMined(ctx, h.client, tx)
	if err != nil {
		return nil, fmt.Errorf("%w: waiting for %s: %w", chain.ErrNetwork, tx.Hash().Hex(), err)
	}

	result := &chain.Receipt{
		TxHash:      receipt.TxHash.Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return result, fmt.Errorf("%w: %s reverted in tx %s", chain.ErrRejected, method, result.TxHash)
	}
	return result, nil
}

// classify 区分合约拒绝和传输错误
func classify(method string, err error) error {
	if isRejection(err) {
		return fmt.Errorf("%w: %s: %w", chain.ErrRejected, method, err)
	}
	return fmt.Errorf("%w: %s: %w", chain.ErrNetwork, method, err)
}

func isRejection(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "revert") || strings.Contains(msg, "insufficient funds")
}
