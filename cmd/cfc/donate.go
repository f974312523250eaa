package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/blues/cfc/internal/logger"
	"github.com/blues/cfc/internal/notify"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// donateCmd 向活动捐赠
var donateCmd = &cobra.Command{
	Use:   "donate <id> <amount>",
	Short: "向活动捐赠，金额为展示单位（如 TRX）",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil || id < 0 {
			return fmt.Errorf("invalid campaign id %q", args[0])
		}

		a, err := newApp(cfg, notify.Console{})
		if err != nil {
			return err
		}
		defer a.close()

		ctx := context.Background()
		if err := a.connect(ctx); err != nil {
			return err
		}
		// 用于本地判断活动是否已关闭，失败时交给合约判断
		if _, err := a.catalog.Refresh(ctx); err != nil {
			logger.Warn("Could not load campaigns before donating: %v", err)
		}

		a.donations.SetIntent(id, args[1])
		result, err := a.donations.Donate(ctx, id)
		if err != nil {
			return err
		}

		pterm.DefaultTable.WithHasHeader(false).WithData(pterm.TableData{
			{"Campaign", strconv.Itoa(result.CampaignID)},
			{"Amount", result.Display + " " + cfg.Chain.Symbol},
			{"Tx", result.Receipt.TxHash},
			{"Block", strconv.FormatUint(result.Receipt.BlockNumber, 10)},
		}).Render()
		return nil
	},
}
