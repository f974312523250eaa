package main

import (
	"fmt"
	"os"

	"github.com/blues/cfc/internal/config"
	"github.com/blues/cfc/internal/logger"
	"github.com/spf13/cobra"
)

var (
	configPath string
	cfg        *config.Config
)

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "cfc",
	Short: "众筹合约客户端",
	Long: `cfc - 链上众筹合约客户端

浏览活动、捐赠、创建活动，或以 HTTP 服务的方式提供同样的操作。`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadFile(configPath)
		if err != nil {
			return err
		}
		if err := logger.Setup(cfg.Log); err != nil {
			return fmt.Errorf("failed to set up logger: %w", err)
		}
		return cfg.Validate()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: ./config.yaml, ./config/config.yaml, /etc/cfc/config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(campaignsCmd)
	rootCmd.AddCommand(donateCmd)
	rootCmd.AddCommand(createCmd)
}
