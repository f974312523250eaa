package contract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// 众筹合约ABI定义
const crowdfundingABI = `[
	{
		"inputs": [
			{"name": "_owner", "type": "address"},
			{"name": "_title", "type": "string"},
			{"name": "_description", "type": "string"},
			{"name": "_target", "type": "uint256"},
			{"name": "_deadline", "type": "uint256"},
			{"name": "_image", "type": "string"}
		],
		"name": "createCampaign",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"name": "_id", "type": "uint256"}],
		"name": "donateToCampaign",
		"outputs": [],
		"stateMutability": "payable",
		"type": "function"
	},
	{
		"inputs": [{"name": "_id", "type": "uint256"}],
		"name": "getDonators",
		"outputs": [
			{"name": "", "type": "address[]"},
			{"name": "", "type": "uint256[]"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "getCampaigns",
		"outputs": [
			{
				"components": [
					{"name": "owner", "type": "address"},
					{"name": "title", "type": "string"},
					{"name": "description", "type": "string"},
					{"name": "target", "type": "uint256"},
					{"name": "deadline", "type": "uint256"},
					{"name": "amountCollected", "type": "uint256"},
					{"name": "image", "type": "string"},
					{"name": "donators", "type": "address[]"},
					{"name": "donations", "type": "uint256[]"}
				],
				"name": "",
				"type": "tuple[]"
			}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "numberOfCampaigns",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "id", "type": "uint256"},
			{"indexed": true, "name": "owner", "type": "address"},
			{"indexed": false, "name": "target", "type": "uint256"},
			{"indexed": false, "name": "deadline", "type": "uint256"}
		],
		"name": "CampaignCreated",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "id", "type": "uint256"},
			{"indexed": true, "name": "donator", "type": "address"},
			{"indexed": false, "name": "amount", "type": "uint256"}
		],
		"name": "DonationReceived",
		"type": "event"
	}
]`

// DefaultABI 内置的众筹合约ABI
func DefaultABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(crowdfundingABI))
	if err != nil {
		panic(fmt.Sprintf("invalid built-in crowdfunding ABI: %v", err))
	}
	return parsed
}

// LoadABI 加载ABI，path 为空时使用内置ABI
//
// 文件可以是纯 ABI 数组，也可以是带 "abi" 字段的完整编译输出（hardhat/tronbox）。
func LoadABI(path string) (abi.ABI, error) {
	if path == "" {
		return DefaultABI(), nil
	}

	abiData, err := os.ReadFile(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to load ABI from %s: %w", path, err)
	}
	return ParseABI(abiData)
}

// ParseABI 解析ABI内容
func ParseABI(abiData []byte) (abi.ABI, error) {
	var compiledOutput struct {
		ABI json.RawMessage `json:"abi"`
	}

	// 首先尝试解析为完整编译输出
	if err := json.Unmarshal(abiData, &compiledOutput); err == nil && compiledOutput.ABI != nil {
		parsed, err := abi.JSON(bytes.NewReader(compiledOutput.ABI))
		if err != nil {
			return abi.ABI{}, fmt.Errorf("failed to parse ABI from compiled output: %w", err)
		}
		return parsed, nil
	}

	parsed, err := abi.JSON(bytes.NewReader(abiData))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse ABI: %w", err)
	}
	return parsed, nil
}

// CheckABI 确认ABI包含客户端需要的方法
func CheckABI(parsed abi.ABI) error {
	for _, name := range []string{MethodGetCampaigns, MethodDonateToCampaign, MethodCreateCampaign} {
		if _, ok := parsed.Methods[name]; !ok {
			return fmt.Errorf("ABI is missing method %s", name)
		}
	}
	return nil
}
