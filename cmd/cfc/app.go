package main

import (
	"context"
	"fmt"

	evbus "github.com/asaskevich/EventBus"
	"github.com/blues/cfc/internal/campaign"
	"github.com/blues/cfc/internal/chain"
	"github.com/blues/cfc/internal/config"
	"github.com/blues/cfc/internal/contract"
	"github.com/blues/cfc/internal/creation"
	"github.com/blues/cfc/internal/donation"
	"github.com/blues/cfc/internal/ethereum"
	"github.com/blues/cfc/internal/logger"
	"github.com/blues/cfc/internal/notify"
	"github.com/blues/cfc/internal/pinning"
	"github.com/blues/cfc/internal/unit"
	"github.com/blues/cfc/internal/wallet"
	"github.com/ethereum/go-ethereum/accounts/abi"
)

// app 组装好的客户端组件
type app struct {
	cfg       *config.Config
	client    *ethereum.Client
	abi       abi.ABI
	units     unit.Converter
	notifier  notify.Notifier
	session   *wallet.Session
	gateway   *chain.Gateway
	contract  *contract.Crowdfunding
	catalog   *campaign.Catalog
	donations *donation.Workflow
	creation  *creation.Workflow
	pinner    *pinning.Client
}

func newApp(cfg *config.Config, notifier notify.Notifier) (*app, error) {
	units, err := unit.NewConverter(cfg.Chain.Decimals)
	if err != nil {
		return nil, err
	}

	contractABI, err := contract.LoadABI(cfg.Chain.Contract.ABIPath)
	if err != nil {
		return nil, err
	}
	if err := contract.CheckABI(contractABI); err != nil {
		return nil, err
	}

	// 初始化链客户端
	client, err := ethereum.Init(cfg.Chain)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chain client: %w", err)
	}

	session := wallet.NewSession(client, evbus.New(), notifier)
	gateway := chain.NewGateway(client, contractABI, cfg.Chain.Contract.Address,
		chain.WithNotifier(notifier),
		chain.WithCallTimeout(cfg.Chain.CallTimeoutDuration()),
	)
	// 账户变化时重新绑定合约
	if err := gateway.Attach(session); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to subscribe to account changes: %w", err)
	}

	crowdfunding := contract.NewCrowdfunding(gateway)
	catalog := campaign.NewCatalog(crowdfunding, units, campaign.WithNotifier(notifier))

	return &app{
		cfg:       cfg,
		client:    client,
		abi:       contractABI,
		units:     units,
		notifier:  notifier,
		session:   session,
		gateway:   gateway,
		contract:  crowdfunding,
		catalog:   catalog,
		donations: donation.NewWorkflow(crowdfunding, catalog, units, notifier),
		creation:  creation.NewWorkflow(crowdfunding, session, catalog, units, creation.WithNotifier(notifier)),
		pinner:    pinning.NewClient(cfg.Pinning),
	}, nil
}

// connect 连接钱包，绑定在账户变更或重连回调中同步完成
func (a *app) connect(ctx context.Context) error {
	if _, err := a.session.Connect(ctx); err != nil {
		return err
	}
	if _, err := a.gateway.Handle(); err != nil {
		return err
	}
	return nil
}

func (a *app) close() {
	if err := a.gateway.Detach(a.session); err != nil {
		logger.Warn("Failed to detach contract gateway: %v", err)
	}
	a.client.Close()
	logger.Debug("Chain client closed")
}
