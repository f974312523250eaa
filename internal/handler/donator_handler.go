package handler

import (
	"context"
	"fmt"
	"math/big"
	"net/http"

	"github.com/blues/cfc/internal/unit"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

// DonatorSource 链上捐赠记录，由 contract.Crowdfunding 实现
type DonatorSource interface {
	NumberOfCampaigns(ctx context.Context) (uint64, error)
	GetDonators(ctx context.Context, id int) ([]common.Address, []*big.Int, error)
}

type DonatorHandler struct {
	source DonatorSource
	units  unit.Converter
}

func NewDonatorHandler(source DonatorSource, units unit.Converter) *DonatorHandler {
	return &DonatorHandler{source: source, units: units}
}

// GetDonators 直接从合约读取活动的捐赠记录，不经过目录快照
func (h *DonatorHandler) GetDonators(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	// 越界编号在合约里会回滚，先按数量判断
	count, err := h.source.NumberOfCampaigns(ctx)
	if err != nil {
		FailResponse(c, err)
		return
	}
	if uint64(id) >= count {
		ErrorResponse(c, http.StatusNotFound, fmt.Sprintf("campaign %d not found", id))
		return
	}

	donators, donations, err := h.source.GetDonators(ctx, id)
	if err != nil {
		FailResponse(c, err)
		return
	}

	resp := DonatorsResponse{CampaignID: id, Donations: make([]DonationEntry, 0, len(donators))}
	for i, d := range donators {
		amount := new(big.Int)
		if i < len(donations) && donations[i] != nil {
			amount = donations[i]
		}
		resp.Donations = append(resp.Donations, DonationEntry{
			Donator: d.Hex(),
			Amount:  amount.String(),
			Display: h.units.ToDisplay(amount),
		})
	}
	SuccessResponse(c, http.StatusOK, "ok", resp)
}
