package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/crossfin/crossfin-route-engine/config"
	"github.com/crossfin/crossfin-route-engine/internal/cache"
	"github.com/crossfin/crossfin-route-engine/internal/cleaner"
	"github.com/crossfin/crossfin-route-engine/internal/dal"
	"github.com/crossfin/crossfin-route-engine/internal/dao"
	"github.com/crossfin/crossfin-route-engine/internal/feeds"
	"github.com/crossfin/crossfin-route-engine/internal/fees"
	"github.com/crossfin/crossfin-route-engine/internal/manager"
	"github.com/crossfin/crossfin-route-engine/internal/monitor"
	"github.com/crossfin/crossfin-route-engine/internal/nats"
	"github.com/crossfin/crossfin-route-engine/internal/pricing"
	"github.com/crossfin/crossfin-route-engine/internal/routing"
	"github.com/crossfin/crossfin-route-engine/internal/ws"
	"github.com/crossfin/crossfin-route-engine/pkg/goplus"
	"github.com/crossfin/crossfin-route-engine/pkg/logger"
	"github.com/crossfin/crossfin-route-engine/pkg/sigproc"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config", "cfg.toml", "config file path")
	flag.Parse()

	// 加载配置
	if err := config.Init(configFile); err != nil {
		panic(err)
	}
	cfg := config.Get()

	// 初始化日志
	if err := initLogger(cfg); err != nil {
		panic("init logger failed: " + err.Error())
	}
	defer logger.Close()

	logger.Info().Msg("route_engine service starting...")

	// 初始化指标
	monitor.InitMetrics()

	// 初始化数据库
	dal.InitDB(cfg.Database)
	dal.AutoMigrate()
	dao.InitDAO(dal.DB())

	// 费率仓库：首次启动播种内置费率表
	feeStore := fees.NewStore(dao.TradingFee(), dao.WithdrawalFee(), cfg.Feeds.FeeCacheTTL)
	if err := feeStore.Bootstrap(); err != nil {
		logger.Error().Err(err).Msg("fee store bootstrap failed, serving built-in defaults")
	}

	// 上游适配器
	client := feeds.NewClient(cfg.Feeds.UpstreamTimeout)
	binance := feeds.NewBinanceFeed(client, cfg.Feeds.BinanceBaseURL, cfg.Feeds.BinanceMirrors)
	okx := feeds.NewOKXFeed(client, cfg.Feeds.OKXBaseURL)
	bybit := feeds.NewBybitFeed(client, cfg.Feeds.BybitBaseURL)
	cryptoCompare := feeds.NewCryptoCompareFeed(client, cfg.Feeds.CryptoCompare)
	coinGecko := feeds.NewCoinGeckoFeed(client, cfg.Feeds.CoinGecko)
	upbit := feeds.NewUpbitFeed(client, cfg.Feeds.UpbitBaseURL)
	bithumb := feeds.NewBithumbFeed(client, cfg.Feeds.BithumbBaseURL)
	fxFeed := feeds.NewFxFeed(client, cfg.Feeds.FxBaseURL)

	coins := cfg.Engine.TrackedCoins
	symbols := make([]string, 0, len(coins))
	for _, coin := range coins {
		symbols = append(symbols, pricing.Symbol(coin))
	}

	// 四级价格回退链：实时聚合 -> CryptoCompare -> CoinGecko -> 本地快照；缺口补齐在聚合服务内做
	chain := pricing.NewFallbackChain(
		pricing.NewRealtimeProvider(symbols, binance, okx, bybit),
		coinListProvider("cryptocompare", cryptoCompare.FetchPrices, coins),
		coinListProvider("coingecko", coinGecko.FetchPrices, coins),
		pricing.NewSnapshotProvider(dao.PriceSnapshot(), 7*24*time.Hour),
	)

	priceService, err := pricing.NewService(chain, binance, dao.PriceSnapshot(), coins, pricing.ServiceOptions{
		SuccessTTL:     cfg.Feeds.PriceSuccessTTL,
		FailureTTL:     cfg.Feeds.PriceFailureTTL,
		GapFillWorkers: cfg.Feeds.GapFillWorkers,
		GapFillMarkTTL: cfg.Feeds.GapFillMarkTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("init price service failed")
	}
	defer priceService.Close()

	fxService := pricing.NewFxService(fxFeed, cfg.Engine.FxCurrencies, cfg.Feeds.FxSuccessTTL, cfg.Feeds.FxFailureTTL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Upbit 实时行情推送
	localPrices := cache.NewLocalPriceCache(cfg.Feeds.PriceSuccessTTL)
	tickerWorker := ws.NewTickerWorker(cfg.Feeds.UpbitWSURL, coins, localPrices)
	tickerWorker.Start(ctx)

	// 市场快照装配
	market := manager.NewMarketManager(priceService, fxService, coins, manager.Options{
		SuccessTTL: cfg.Feeds.PriceSuccessTTL,
		FailureTTL: cfg.Feeds.PriceFailureTTL,
	})
	market.AttachTickerStream("upbit", localPrices)
	market.AddLocalFeed(upbit)
	market.AddLocalFeed(bithumb)

	// 订单簿读取器
	books := manager.NewBookSource(cfg.Feeds.BookSuccessTTL, cfg.Feeds.BookFailureTTL)
	books.Register("binance", binance, true)
	books.Register("upbit", upbit, false)

	// 路径成本引擎
	tunables := routingTunables(cfg.Routing)
	engine := routing.NewEngine(feeStore, books, cfg.Engine.BridgeCoins, tunables)

	// 提现暂停状态对账
	reconciler := fees.NewReconciler(feeStore, dao.WithdrawalFee(), upbit, "upbit", cfg.Feeds.SuspensionSyncInterval)
	goplus.Go(func() { reconciler.Run(ctx) })

	// 快照清理
	dataCleaner := cleaner.NewCleaner(dao.PriceSnapshot(), cfg.Snapshot.RetentionDays, cfg.Snapshot.MaxRows, cfg.Snapshot.CleanInterval)
	dataCleaner.Start()

	// NATS 溢价信号，连不上时降级为仅日志
	var publisher *nats.Publisher
	publisher, err = nats.NewPublisher(cfg.NATS.Endpoint)
	if err != nil {
		logger.Warn().Err(err).Msg("nats unavailable, premium signals will be log-only")
		publisher = nil
	}
	notifier := nats.NewNotifier(publisher, cfg.NATS.PremiumSubject, cfg.NATS.PremiumThresholdPct, cfg.NATS.PublishInterval, tunables, market.Premiums)
	goplus.Go(func() { notifier.Run(ctx) })

	// 常驻路径哨兵
	if cfg.Watch.Enabled {
		watcher := manager.NewRouteWatcher(engine, market, routing.Request{
			From:     routing.Endpoint{Exchange: cfg.Watch.FromExchange, Currency: cfg.Watch.FromCurrency},
			To:       routing.Endpoint{Exchange: cfg.Watch.ToExchange, Currency: cfg.Watch.ToCurrency},
			Amount:   cfg.Watch.Amount,
			Strategy: routing.Strategy(cfg.Watch.Strategy),
		}, cfg.Watch.Interval)
		goplus.Go(func() { watcher.Run(ctx) })
	}

	// 健康检查与指标
	healthServer := monitor.NewHealthServer(cfg.Engine.HealthServerAddr, tickerWorker, publisher, priceService)
	if err = healthServer.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("start health server failed")
	}

	logger.Info().
		Str("health_addr", cfg.Engine.HealthServerAddr).
		Strs("bridge_coins", cfg.Engine.BridgeCoins).
		Msg("route_engine service started successfully")

	// 优雅关闭
	sigproc.GracefulShutdown(func(sig os.Signal) {
		logger.Info().Str("signal", sig.String()).Msg("shutting down...")

		cancel()

		tickerWorker.Stop()
		dataCleaner.Stop()

		if publisher != nil {
			publisher.Close()
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		healthServer.Stop(shutdownCtx)

		config.Stop()
		dal.CloseDB()

		logger.Info().Msg("route_engine service stopped")
	})

	<-ctx.Done()
}

// coinListProvider 把按币种清单取价的上游包装成回退链层级
func coinListProvider(name string, fetch func(context.Context, []string) (map[string]float64, error), coins []string) pricing.Provider {
	return pricing.NewProvider(name, func(ctx context.Context) (pricing.PriceSet, error) {
		byCoin, err := fetch(ctx, coins)
		if err != nil {
			return nil, err
		}
		set := make(pricing.PriceSet, len(byCoin))
		for coin, price := range byCoin {
			set[pricing.Symbol(coin)] = price
		}
		return set, nil
	})
}

func routingTunables(r config.Routing) routing.Tunables {
	return routing.Tunables{
		SpreadUpperThreshold:   r.SpreadUpperThreshold,
		SpreadLowerThreshold:   r.SpreadLowerThreshold,
		SlippagePenalty:        r.SlippagePenalty,
		TimeVolPenalty:         r.TimeVolPenalty,
		RouteExecuteMaxCostPct: r.RouteExecuteMaxCostPct,
		RouteSkipMinCostPct:    r.RouteSkipMinCostPct,
		BalancedCostWeight:     r.BalancedCostWeight,
		BalancedTimeWeight:     r.BalancedTimeWeight,
		FxSpreadPct:            r.FxSpreadPct,
	}
}

func initLogger(cfg *config.Config) error {
	return logger.NewBuilder().
		SetMaxSize(cfg.Logger.MaxSize).
		SetMaxBackups(cfg.Logger.MaxBackups).
		SetMaxAge(cfg.Logger.MaxAge).
		SetLevel(cfg.Logger.Level).
		EnableCompression(cfg.Logger.Compress).
		EnableConsoleOutput(cfg.Logger.Console).
		Build()
}
