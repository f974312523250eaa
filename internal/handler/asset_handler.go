package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/blues/cfc/internal/logger"
	"github.com/blues/cfc/internal/pinning"
	"github.com/gin-gonic/gin"
)

// maxAssetSize 上传文件大小上限
const maxAssetSize = 10 << 20

// Pinner 资源上传
type Pinner interface {
	PinFile(ctx context.Context, name string, r io.Reader, meta pinning.Metadata) (*pinning.Result, error)
	PinJSON(ctx context.Context, content interface{}, meta pinning.Metadata) (*pinning.Result, error)
}

// assetMetadata 与图片一起固定的描述文件
type assetMetadata struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image"`
}

type AssetHandler struct {
	pinner Pinner
}

func NewAssetHandler(pinner Pinner) *AssetHandler {
	return &AssetHandler{pinner: pinner}
}

// Upload 上传活动图片，返回可作为 image 字段的 URL
func (h *AssetHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "file is required")
		return
	}
	if header.Size > maxAssetSize {
		ErrorResponse(c, http.StatusRequestEntityTooLarge, "file is too large")
		return
	}

	file, err := header.Open()
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	defer file.Close()

	meta := pinning.Metadata{
		Name:        c.PostForm("title"),
		Description: c.PostForm("description"),
	}
	res, err := h.pinner.PinFile(c.Request.Context(), header.Filename, file, meta)
	if err != nil {
		FailResponse(c, err)
		return
	}
	resp := AssetResponse{CID: res.CID, URL: res.URL}

	// 图片已经上传成功，元数据失败只记录日志
	if meta.Name != "" {
		doc := assetMetadata{Name: meta.Name, Description: meta.Description, Image: res.URL}
		pinned, err := h.pinner.PinJSON(c.Request.Context(), doc, pinning.Metadata{Name: meta.Name + ".json"})
		if err != nil {
			logger.Warn("Failed to pin metadata for %s: %v", res.CID, err)
		} else {
			resp.MetadataURL = pinned.URL
		}
	}
	SuccessResponse(c, http.StatusCreated, "asset uploaded", resp)
}
