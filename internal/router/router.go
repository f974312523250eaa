package router

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/blues/cfc/internal/handler"
	"github.com/blues/cfc/internal/logger"
	"github.com/blues/cfc/internal/unit"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// Deps 路由依赖
type Deps struct {
	Session   handler.WalletSession
	Binding   handler.BindingState
	Catalog   handler.CampaignCatalog
	Donations handler.DonationWorkflow
	Creation  handler.CreationWorkflow
	Pinner    handler.Pinner
	Donators  handler.DonatorSource
	Units     unit.Converter
	Feed      handler.NotificationFeed
	Monitor   handler.MonitorStatus // 可为 nil

	AllowedOrigins []string // 允许跨域的来源，为空时拒绝所有跨域写请求
	APIToken       string   // 写接口的 Bearer token，为空时不校验
}

func Setup(deps Deps) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(requestLogger())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(deps.AllowedOrigins))

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "crowdfunding-client",
		})
	})

	// API版本组
	v1 := r.Group("/api/v1")
	v1.Use(writeGuard(deps.AllowedOrigins, deps.APIToken))
	jsonOnly := requireContentType(binding.MIMEJSON)
	{
		walletHandler := handler.NewWalletHandler(deps.Session, deps.Binding)
		wallet := v1.Group("/wallet")
		{
			wallet.POST("/connect", jsonOnly, walletHandler.Connect)
			wallet.GET("", walletHandler.GetWallet)
		}

		campaignHandler := handler.NewCampaignHandler(deps.Catalog, deps.Donations, deps.Creation)
		campaigns := v1.Group("/campaigns")
		{
			campaigns.GET("", campaignHandler.GetCampaigns)
			campaigns.POST("", jsonOnly, campaignHandler.CreateCampaign)
			campaigns.POST("/refresh", jsonOnly, campaignHandler.RefreshCampaigns)
			campaigns.GET("/:id", campaignHandler.GetCampaign)
			campaigns.PUT("/:id/intent", jsonOnly, campaignHandler.SetIntent)
			campaigns.POST("/:id/donate", jsonOnly, campaignHandler.Donate)

			donatorHandler := handler.NewDonatorHandler(deps.Donators, deps.Units)
			campaigns.GET("/:id/donators", donatorHandler.GetDonators)
		}

		assetHandler := handler.NewAssetHandler(deps.Pinner)
		v1.POST("/assets", requireContentType(binding.MIMEMultipartPOSTForm), assetHandler.Upload)

		statusHandler := handler.NewStatusHandler(deps.Feed, deps.Monitor)
		v1.GET("/notifications", statusHandler.GetNotifications)
		v1.GET("/monitor", statusHandler.GetMonitorStatus)
	}

	return r
}

// requestLogger 请求日志
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// CORS中间件，只回显白名单内的来源
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowed := originSet(allowedOrigins)
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			c.Header("Vary", "Origin")
		}
		if origin != "" && allowed[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Authorization")
		}

		if c.Request.Method == http.MethodOptions {
			if origin != "" && !allowed[origin] {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// writeGuard 写请求必须来自白名单来源，并携带配置的 token
//
// 写接口会用服务持有的私钥签名转账，浏览器里的任意页面都不能触发。
func writeGuard(allowedOrigins []string, token string) gin.HandlerFunc {
	allowed := originSet(allowedOrigins)
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		if origin := c.GetHeader("Origin"); origin != "" && !allowed[origin] {
			logger.Warn("Refused %s %s from origin %q", c.Request.Method, c.Request.URL.Path, origin)
			c.AbortWithStatusJSON(http.StatusForbidden, handler.Response{Success: false, Message: "origin not allowed"})
			return
		}

		if token != "" {
			got, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				c.AbortWithStatusJSON(http.StatusUnauthorized, handler.Response{Success: false, Message: "invalid or missing API token"})
				return
			}
		}

		c.Next()
	}
}

// requireContentType 限定请求体类型，text/plain 等简单请求直接拒绝
func requireContentType(mime string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.ContentType() != mime {
			c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, handler.Response{Success: false, Message: "content type must be " + mime})
			return
		}
		c.Next()
	}
}

func originSet(origins []string) map[string]bool {
	set := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			set[o] = true
		}
	}
	return set
}
