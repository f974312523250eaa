package handler

import (
	"time"

	"github.com/blues/cfc/internal/campaign"
)

// 通用响应结构
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// CampaignResponse 活动响应模型，金额为基础单位的十进制字符串
type CampaignResponse struct {
	ID               int       `json:"id"`
	Owner            string    `json:"owner"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Image            string    `json:"image"`
	Target           string    `json:"target"`
	Collected        string    `json:"collected"`
	TargetDisplay    string    `json:"targetDisplay"`
	CollectedDisplay string    `json:"collectedDisplay"`
	Progress         float64   `json:"progress"`
	Deadline         time.Time `json:"deadline"`
	Status           string    `json:"status"`
	Donators         []string  `json:"donators"`
	Donations        []string  `json:"donations"`
}

// GetCampaignsResponse 活动列表响应
type GetCampaignsResponse struct {
	Campaigns []CampaignResponse `json:"campaigns"`
	Total     int                `json:"total"`
	FetchedAt time.Time          `json:"fetchedAt"`
	Loading   bool               `json:"loading"`
	Error     string             `json:"error,omitempty"`
}

// WalletResponse 钱包状态
type WalletResponse struct {
	Account   string `json:"account"`
	Connected bool   `json:"connected"`
	Bound     bool   `json:"bound"`
}

// IntentRequest 捐赠金额输入
type IntentRequest struct {
	Amount string `json:"amount"`
}

// IntentResponse 当前输入
type IntentResponse struct {
	CampaignID int    `json:"campaignId"`
	Amount     string `json:"amount"`
}

// DonateRequest 提交捐赠，amount 为空时使用已记录的输入
type DonateRequest struct {
	Amount string `json:"amount"`
}

// DonateResponse 捐赠结果
type DonateResponse struct {
	CampaignID  int    `json:"campaignId"`
	Amount      string `json:"amount"`
	Display     string `json:"display"`
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
	Refreshed   bool   `json:"refreshed"`
}

// CreateCampaignRequest 创建活动请求
type CreateCampaignRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Target      string `json:"target"`
	Deadline    int64  `json:"deadline"`
	Image       string `json:"image"`
}

// CreateCampaignResponse 创建活动响应
type CreateCampaignResponse struct {
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
}

// AssetResponse 上传结果
type AssetResponse struct {
	CID         string `json:"cid"`
	URL         string `json:"url"`
	MetadataURL string `json:"metadataUrl,omitempty"` // 带标题上传时额外固定的元数据
}

// DonatorsResponse 链上捐赠记录
type DonatorsResponse struct {
	CampaignID int             `json:"campaignId"`
	Donations  []DonationEntry `json:"donations"`
}

type DonationEntry struct {
	Donator string `json:"donator"`
	Amount  string `json:"amount"` // 基础单位
	Display string `json:"display"`
}

func toCampaignResponse(c campaign.Campaign, now int64) CampaignResponse {
	donations := make([]string, 0, len(c.Donations))
	for _, d := range c.Donations {
		donations = append(donations, d.String())
	}
	donators := c.Donators
	if donators == nil {
		donators = []string{}
	}
	return CampaignResponse{
		ID:               c.ID,
		Owner:            c.Owner,
		Title:            c.Title,
		Description:      c.Description,
		Image:            c.Image,
		Target:           c.Target.String(),
		Collected:        c.Collected.String(),
		TargetDisplay:    c.TargetDisplay,
		CollectedDisplay: c.CollectedDisplay,
		Progress:         c.Progress(),
		Deadline:         c.DeadlineTime().UTC(),
		Status:           string(c.StatusAt(now)),
		Donators:         donators,
		Donations:        donations,
	}
}
