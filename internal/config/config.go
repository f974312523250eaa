package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/blues/cfc/internal/logger"
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Chain   ChainConfig   `mapstructure:"chain"`
	Task    TaskConfig    `mapstructure:"task"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	Pinning PinningConfig `mapstructure:"pinning"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Host           string   `mapstructure:"host"` // 默认只监听本机
	Port           string   `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	AllowedOrigins []string `mapstructure:"allowed_origins"` // 允许跨域访问的来源
	APIToken       string   `mapstructure:"api_token"`       // 写接口的 Bearer token，非本机监听时必填
}

// Addr 监听地址
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

func (s ServerConfig) loopback() bool {
	if s.Host == "localhost" {
		return true
	}
	ip := net.ParseIP(s.Host)
	return ip != nil && ip.IsLoopback()
}

// ChainConfig 链与钱包配置
type ChainConfig struct {
	ChainType   string         `mapstructure:"chain_type"`   // 链类型 (tron, ethereum, ...)
	ChainId     int64          `mapstructure:"chain_id"`     // 链ID
	RpcUrl      string         `mapstructure:"rpc_url"`      // RPC节点URL
	PrivateKey  string         `mapstructure:"private_key"`  // 钱包私钥，为空时钱包不可用
	Decimals    int            `mapstructure:"decimals"`     // 基础单位精度，TRX(sun)=6
	Symbol      string         `mapstructure:"symbol"`       // 展示单位符号
	CallTimeout int            `mapstructure:"call_timeout"` // 只读调用超时（秒），0为不限
	Contract    ContractConfig `mapstructure:"contract"`     // 众筹合约
}

// ContractConfig 单个合约配置
type ContractConfig struct {
	Address string `mapstructure:"address"`  // 合约地址
	ABIPath string `mapstructure:"abi_path"` // ABI文件路径，为空时使用内置ABI
}

type TaskConfig struct {
	Interval int `mapstructure:"interval"` // 秒，0为关闭定时刷新
}

// MonitorConfig 链上事件监控配置
type MonitorConfig struct {
	Enabled    bool  `mapstructure:"enabled"`
	StartBlock int64 `mapstructure:"start_block"`
	BatchSize  int64 `mapstructure:"batch_size"`
	Interval   int   `mapstructure:"interval"` // 秒
	Workers    int   `mapstructure:"workers"`  // 协程池大小
}

// PinningConfig Pinata 配置
type PinningConfig struct {
	APIURL     string `mapstructure:"api_url"`
	GatewayURL string `mapstructure:"gateway_url"`
	APIKey     string `mapstructure:"api_key"`
	APISecret  string `mapstructure:"api_secret"`
	MaxRetries int    `mapstructure:"max_retries"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error, fatal
	Output string `mapstructure:"output"` // 输出目标: stdout, stderr, file
	File   string `mapstructure:"file"`   // 日志文件路径（当output为file时使用）
}

// GetLevel 实现 logger.LogConfig 接口
func (l LogConfig) GetLevel() string {
	return l.Level
}

// GetOutput 实现 logger.LogConfig 接口
func (l LogConfig) GetOutput() string {
	return l.Output
}

// GetFile 实现 logger.LogConfig 接口
func (l LogConfig) GetFile() string {
	return l.File
}

// CallTimeoutDuration 只读调用超时
func (c ChainConfig) CallTimeoutDuration() time.Duration {
	return time.Duration(c.CallTimeout) * time.Second
}

// Validate 检查启动所需的最小配置
func (c *Config) Validate() error {
	if c.Chain.RpcUrl == "" {
		return fmt.Errorf("chain.rpc_url is required")
	}
	if c.Chain.Contract.Address == "" {
		return fmt.Errorf("chain.contract.address is required")
	}
	if c.Chain.Decimals < 0 || c.Chain.Decimals > 36 {
		return fmt.Errorf("chain.decimals out of range: %d", c.Chain.Decimals)
	}
	// 服务持有签名私钥，对外监听必须带鉴权
	if !c.Server.loopback() && c.Server.APIToken == "" {
		return fmt.Errorf("server.api_token is required when server.host %q is not a loopback address", c.Server.Host)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.api_token", "")
	v.SetDefault("chain.chain_type", "tron")
	v.SetDefault("chain.chain_id", 728126428)
	v.SetDefault("chain.rpc_url", "")
	v.SetDefault("chain.private_key", "")
	v.SetDefault("chain.decimals", 6)
	v.SetDefault("chain.symbol", "TRX")
	v.SetDefault("chain.call_timeout", 30)
	v.SetDefault("chain.contract.address", "")
	v.SetDefault("chain.contract.abi_path", "")
	v.SetDefault("task.interval", 60)
	v.SetDefault("monitor.enabled", false)
	v.SetDefault("monitor.start_block", 0)
	v.SetDefault("monitor.batch_size", 500)
	v.SetDefault("monitor.workers", 8)
	v.SetDefault("monitor.interval", 30)
	v.SetDefault("pinning.api_url", "https://api.pinata.cloud")
	v.SetDefault("pinning.gateway_url", "https://gateway.pinata.cloud/ipfs")
	v.SetDefault("pinning.api_key", "")
	v.SetDefault("pinning.api_secret", "")
	v.SetDefault("pinning.max_retries", 3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "logs/cfc.log")
}

// Load 从默认路径加载配置
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile 加载配置，path 为空时按默认路径查找 config.yaml
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/cfc")
	}

	// 环境变量覆盖，如 CFC_CHAIN_PRIVATE_KEY
	v.SetEnvPrefix("cfc")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		logger.Warn("Could not read config file, using defaults: %v", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &config, nil
}
