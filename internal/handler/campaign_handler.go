package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/blues/cfc/internal/campaign"
	"github.com/blues/cfc/internal/chain"
	"github.com/blues/cfc/internal/creation"
	"github.com/blues/cfc/internal/donation"
	"github.com/gin-gonic/gin"
)

// CampaignCatalog 活动目录
type CampaignCatalog interface {
	Snapshot() *campaign.Snapshot
	Refresh(ctx context.Context) (*campaign.Snapshot, error)
	Loading() bool
	Err() error
}

// DonationWorkflow 捐赠流程
type DonationWorkflow interface {
	SetIntent(id int, amount string)
	Intent(id int) (string, bool)
	Donate(ctx context.Context, id int) (*donation.Result, error)
}

// CreationWorkflow 创建活动流程
type CreationWorkflow interface {
	SetForm(form creation.Form)
	Submit(ctx context.Context) (*chain.Receipt, error)
}

type CampaignHandler struct {
	catalog   CampaignCatalog
	donations DonationWorkflow
	creation  CreationWorkflow
}

func NewCampaignHandler(catalog CampaignCatalog, donations DonationWorkflow, creation CreationWorkflow) *CampaignHandler {
	return &CampaignHandler{catalog: catalog, donations: donations, creation: creation}
}

// GetCampaigns 获取活动列表，status=open|closed|all
func (h *CampaignHandler) GetCampaigns(c *gin.Context) {
	var status campaign.Status
	switch c.DefaultQuery("status", "all") {
	case "open":
		status = campaign.StatusOpen
	case "closed":
		status = campaign.StatusClosed
	case "all":
	default:
		ErrorResponse(c, http.StatusBadRequest, "status must be one of open, closed, all")
		return
	}

	snap := h.catalog.Snapshot()
	list := snap.Filter(status)
	resp := GetCampaignsResponse{
		Campaigns: make([]CampaignResponse, 0, len(list)),
		Total:     len(list),
		FetchedAt: snap.FetchedAt,
		Loading:   h.catalog.Loading(),
	}
	for _, cp := range list {
		resp.Campaigns = append(resp.Campaigns, toCampaignResponse(cp, snap.Now))
	}
	if err := h.catalog.Err(); err != nil {
		resp.Error = err.Error()
	}
	SuccessResponse(c, http.StatusOK, "ok", resp)
}

// GetCampaign 获取单个活动
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}
	snap := h.catalog.Snapshot()
	cp, found := snap.Get(id)
	if !found {
		ErrorResponse(c, http.StatusNotFound, fmt.Sprintf("campaign %d not found", id))
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", toCampaignResponse(cp, snap.Now))
}

// RefreshCampaigns 重新拉取活动
func (h *CampaignHandler) RefreshCampaigns(c *gin.Context) {
	snap, err := h.catalog.Refresh(c.Request.Context())
	if err != nil {
		FailResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "campaigns refreshed", gin.H{
		"total":  len(snap.Campaigns),
		"open":   len(snap.Open),
		"closed": len(snap.Closed),
	})
}

// SetIntent 记录捐赠金额输入
func (h *CampaignHandler) SetIntent(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}
	var req IntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	h.donations.SetIntent(id, req.Amount)
	SuccessResponse(c, http.StatusOK, "ok", IntentResponse{CampaignID: id, Amount: req.Amount})
}

// Donate 提交捐赠
func (h *CampaignHandler) Donate(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}
	var req DonateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			ErrorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.Amount != "" {
		h.donations.SetIntent(id, req.Amount)
	}

	result, err := h.donations.Donate(c.Request.Context(), id)
	if err != nil {
		FailResponse(c, err)
		return
	}

	resp := DonateResponse{
		CampaignID: result.CampaignID,
		Amount:     result.Amount.String(),
		Display:    result.Display,
		Refreshed:  result.RefreshErr == nil,
	}
	if result.Receipt != nil {
		resp.TxHash = result.Receipt.TxHash
		resp.BlockNumber = result.Receipt.BlockNumber
	}
	SuccessResponse(c, http.StatusOK, "donation sent", resp)
}

// CreateCampaign 创建活动
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	var req CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	h.creation.SetForm(creation.Form{
		Title:       req.Title,
		Description: req.Description,
		Target:      req.Target,
		Deadline:    req.Deadline,
		Image:       req.Image,
	})
	receipt, err := h.creation.Submit(c.Request.Context())
	if err != nil {
		FailResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "campaign created", CreateCampaignResponse{
		TxHash:      receipt.TxHash,
		BlockNumber: receipt.BlockNumber,
	})
}

func campaignID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 0 {
		ErrorResponse(c, http.StatusBadRequest, "invalid campaign id")
		return 0, false
	}
	return id, true
}
