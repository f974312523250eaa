package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/blues/cfc/internal/campaign"
	"github.com/blues/cfc/internal/notify"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var campaignsStatus string

// campaignsCmd 列出活动
var campaignsCmd = &cobra.Command{
	Use:   "campaigns",
	Short: "列出众筹活动",
	RunE: func(cmd *cobra.Command, args []string) error {
		var status campaign.Status
		switch campaignsStatus {
		case "open":
			status = campaign.StatusOpen
		case "closed":
			status = campaign.StatusClosed
		case "all":
		default:
			return fmt.Errorf("--status must be one of open, closed, all")
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

		spinner, _ := pterm.DefaultSpinner.WithText("Loading campaigns...").Start()
		snap, err := a.catalog.Refresh(ctx)
		if spinner != nil {
			_ = spinner.Stop()
		}
		if err != nil {
			return err
		}

		list := snap.Filter(status)
		if len(list) == 0 {
			pterm.Info.Println("No campaigns found.")
			return nil
		}
		return renderCampaigns(list, snap.Now, cfg.Chain.Symbol)
	},
}

func renderCampaigns(list []campaign.Campaign, now int64, symbol string) error {
	data := pterm.TableData{{"ID", "Title", "Target (" + symbol + ")", "Collected (" + symbol + ")", "Progress", "Deadline", "Status", "Owner"}}
	for _, c := range list {
		data = append(data, []string{
			strconv.Itoa(c.ID),
			c.Title,
			c.TargetDisplay,
			c.CollectedDisplay,
			fmt.Sprintf("%.1f%%", c.Progress()),
			c.DeadlineTime().Format("2006-01-02 15:04"),
			string(c.StatusAt(now)),
			c.Owner,
		})
	}
	return pterm.DefaultTable.WithHasHeader(true).WithData(data).Render()
}

func init() {
	campaignsCmd.Flags().StringVar(&campaignsStatus, "status", "all", "filter: open|closed|all")
}
