package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/blues/cfc/internal/handler"
	"github.com/blues/cfc/internal/logger"
	"github.com/blues/cfc/internal/monitor"
	"github.com/blues/cfc/internal/notify"
	"github.com/blues/cfc/internal/router"
	"github.com/blues/cfc/internal/scheduler"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

// serveCmd 启动 HTTP 服务
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 HTTP API 服务",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		feed := notify.NewFeed(100)
		a, err := newApp(cfg, notify.Multi{notify.LogNotifier{}, feed})
		if err != nil {
			return err
		}
		defer a.close()

		// 钱包不可用时仍然提供服务，可以稍后通过接口重新连接
		if err := a.connect(ctx); err != nil {
			logger.Warn("Wallet not connected at startup: %v", err)
		} else if _, err := a.catalog.Refresh(ctx); err != nil {
			logger.Warn("Initial campaign load failed: %v", err)
		}

		// 启动定时任务
		if cfg.Task.Interval > 0 {
			tasks, err := scheduler.NewManager()
			if err != nil {
				return err
			}
			job := scheduler.NewCatalogRefreshJob(a.catalog, a.gateway, time.Duration(cfg.Task.Interval)*time.Second)
			if err := tasks.Register(job); err != nil {
				return err
			}
			tasks.Start()
			defer tasks.Stop()
		}

		deps := router.Deps{
			Session:   a.session,
			Binding:   a.gateway,
			Catalog:   a.catalog,
			Donations: a.donations,
			Creation:  a.creation,
			Pinner:    a.pinner,
			Donators:  a.contract,
			Units:     a.units,
			Feed:      feed,

			AllowedOrigins: cfg.Server.AllowedOrigins,
			APIToken:       cfg.Server.APIToken,
		}
		if cfg.Server.APIToken == "" {
			logger.Warn("server.api_token is empty, write endpoints are protected by the loopback bind and origin check only")
		}

		// 启动事件监控
		if cfg.Monitor.Enabled {
			registry := monitor.NewRegistry(
				monitor.NewCampaignCreatedProcessor(feed, a.units, cfg.Chain.Symbol),
				monitor.NewDonationReceivedProcessor(feed, a.units, cfg.Chain.Symbol),
			)
			m, err := monitor.NewEventMonitor(a.client, a.abi, cfg.Chain.Contract.Address, registry, a.catalog, cfg.Monitor)
			if err != nil {
				return err
			}
			if err := m.Start(ctx); err != nil {
				m.Stop()
				return err
			}
			defer func() {
				if status, err := m.GetStatusJSON(); err == nil {
					logger.Info("Event monitor final status: %s", status)
				}
				m.Stop()
			}()
			deps.Monitor = handler.MonitorStatus(m)
		}

		// 设置Gin模式
		if cfg.Server.Mode == "release" {
			gin.SetMode(gin.ReleaseMode)
		}

		srv := &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           router.Setup(deps),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("Server starting on %s", srv.Addr)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}
