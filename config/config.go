package config

import (
	"os"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/crossfin/crossfin-route-engine/pkg/logger"
)

type Engine struct {
	HealthServerAddr string   `toml:"health_server_addr"`
	TrackedCoins     []string `toml:"tracked_coins"`
	BridgeCoins      []string `toml:"bridge_coins"`
	FxCurrencies     []string `toml:"fx_currencies"`
}

type Database struct {
	Driver             string   `toml:"driver"` // mysql | sqlite
	DSN                string   `toml:"dsn"`
	SQLitePath         string   `toml:"sqlite_path"`
	SlaveAddr          []string `toml:"slave_addr"`
	MaxIdleConnections int      `toml:"max_idle_connections"`
	MaxOpenConnections int      `toml:"max_open_connections"`
	SetConnMaxLifetime int      `toml:"set_conn_max_lifetime"`
	SetConnMaxIdleTime int      `toml:"set_conn_max_idle_time"`
	ProxyEnabled       bool     `toml:"proxy_enabled"`
	ProxyAddr          string   `toml:"proxy_addr"`
}

type Feeds struct {
	UpstreamTimeout time.Duration `toml:"upstream_timeout"`

	PriceSuccessTTL time.Duration `toml:"price_success_ttl"`
	PriceFailureTTL time.Duration `toml:"price_failure_ttl"`
	FxSuccessTTL    time.Duration `toml:"fx_success_ttl"`
	FxFailureTTL    time.Duration `toml:"fx_failure_ttl"`
	FeeCacheTTL     time.Duration `toml:"fee_cache_ttl"`
	BookSuccessTTL  time.Duration `toml:"book_success_ttl"`
	BookFailureTTL  time.Duration `toml:"book_failure_ttl"`

	BinanceBaseURL string   `toml:"binance_base_url"`
	BinanceMirrors []string `toml:"binance_mirrors"`
	OKXBaseURL     string   `toml:"okx_base_url"`
	BybitBaseURL   string   `toml:"bybit_base_url"`
	CryptoCompare  string   `toml:"cryptocompare_base_url"`
	CoinGecko      string   `toml:"coingecko_base_url"`
	UpbitBaseURL   string   `toml:"upbit_base_url"`
	UpbitWSURL     string   `toml:"upbit_ws_url"`
	BithumbBaseURL string   `toml:"bithumb_base_url"`
	FxBaseURL      string   `toml:"fx_base_url"`

	GapFillWorkers int           `toml:"gap_fill_workers"`
	GapFillMarkTTL time.Duration `toml:"gap_fill_mark_ttl"`

	SuspensionSyncInterval time.Duration `toml:"suspension_sync_interval"`
}

// Routing 路由评分参数
// 阈值为经验值，保留文档化的边界与单调性约束，具体系数可运维调整
type Routing struct {
	SpreadUpperThreshold float64 `toml:"spread_upper_threshold"` // 调整后分数高于该值 => POSITIVE_SPREAD
	SpreadLowerThreshold float64 `toml:"spread_lower_threshold"` // 低于该值 => NEGATIVE_SPREAD
	SlippagePenalty      float64 `toml:"slippage_penalty"`       // 每 1% 滑点的扣分
	TimeVolPenalty       float64 `toml:"time_vol_penalty"`       // 每 (分钟×波动率) 的扣分

	RouteExecuteMaxCostPct float64 `toml:"route_execute_max_cost_pct"` // 总成本低于该值 => EXECUTE
	RouteSkipMinCostPct    float64 `toml:"route_skip_min_cost_pct"`    // 总成本高于该值 => SKIP

	BalancedCostWeight float64 `toml:"balanced_cost_weight"`
	BalancedTimeWeight float64 `toml:"balanced_time_weight"`

	FxSpreadPct float64 `toml:"fx_spread_pct"` // 跨币种换汇的固定点差成本
}

// RouteWatch 常驻路径哨兵，周期性评估一条固定转移路径
type RouteWatch struct {
	Enabled      bool          `toml:"enabled"`
	Interval     time.Duration `toml:"interval"`
	FromExchange string        `toml:"from_exchange"`
	FromCurrency string        `toml:"from_currency"`
	ToExchange   string        `toml:"to_exchange"`
	ToCurrency   string        `toml:"to_currency"`
	Amount       float64       `toml:"amount"`
	Strategy     string        `toml:"strategy"`
}

type NATS struct {
	Endpoint            string        `toml:"endpoint"`
	PremiumSubject      string        `toml:"premium_subject"`
	PremiumThresholdPct float64       `toml:"premium_threshold_pct"`
	PublishInterval     time.Duration `toml:"publish_interval"`
}

type Snapshot struct {
	RetentionDays int           `toml:"retention_days"`
	MaxRows       int64         `toml:"max_rows"`
	CleanInterval time.Duration `toml:"clean_interval"`
}

type Logger struct {
	Level      string `toml:"level"`
	MaxSize    int    `toml:"max_size"`
	MaxBackups int    `toml:"max_backups"`
	MaxAge     int    `toml:"max_age"`
	Compress   bool   `toml:"compress"`
	Console    bool   `toml:"console"`
}

type Config struct {
	Engine   Engine     `toml:"engine"`
	Database Database   `toml:"database"`
	Feeds    Feeds      `toml:"feeds"`
	Routing  Routing    `toml:"routing"`
	Watch    RouteWatch `toml:"route_watch"`
	NATS     NATS       `toml:"nats"`
	Snapshot Snapshot   `toml:"snapshot"`
	Logger   Logger     `toml:"log"`
}

var (
	cfg         *Config
	cfgPath     string
	cfgLock     sync.RWMutex
	lastModTime time.Time
	stopChan    chan struct{}
)

func Default() *Config {
	return &Config{
		Engine: Engine{
			HealthServerAddr: "0.0.0.0:16900",
			TrackedCoins:     []string{"BTC", "ETH", "XRP", "SOL", "TRX", "ADA", "DOGE", "DOT", "AVAX", "LINK"},
			BridgeCoins:      []string{"XRP", "TRX", "SOL", "DOGE", "ETH", "BTC"},
			FxCurrencies:     []string{"USD", "KRW"},
		},
		Database: Database{
			Driver:             "sqlite",
			DSN:                "root:password@tcp(localhost:3306)/crossfin?charset=utf8mb4&parseTime=True&loc=Local",
			SQLitePath:         "data/route_engine.db",
			SlaveAddr:          []string{},
			MaxIdleConnections: 16,
			MaxOpenConnections: 64,
			SetConnMaxLifetime: 7200,
			SetConnMaxIdleTime: 3600,
			ProxyEnabled:       false,
			ProxyAddr:          "127.0.0.1:7890",
		},
		Feeds: Feeds{
			UpstreamTimeout: 5 * time.Second,

			PriceSuccessTTL: 30 * time.Second,
			PriceFailureTTL: 10 * time.Second,
			FxSuccessTTL:    10 * time.Minute,
			FxFailureTTL:    1 * time.Minute,
			FeeCacheTTL:     5 * time.Minute,
			BookSuccessTTL:  10 * time.Second,
			BookFailureTTL:  3 * time.Second,

			BinanceBaseURL: "https://api.binance.com",
			BinanceMirrors: []string{
				"https://api1.binance.com",
				"https://api2.binance.com",
				"https://api3.binance.com",
			},
			OKXBaseURL:     "https://www.okx.com",
			BybitBaseURL:   "https://api.bybit.com",
			CryptoCompare:  "https://min-api.cryptocompare.com",
			CoinGecko:      "https://api.coingecko.com",
			UpbitBaseURL:   "https://api.upbit.com",
			UpbitWSURL:     "wss://api.upbit.com/websocket/v1",
			BithumbBaseURL: "https://api.bithumb.com",
			FxBaseURL:      "https://open.er-api.com",

			GapFillWorkers: 4,
			GapFillMarkTTL: 5 * time.Minute,

			SuspensionSyncInterval: 10 * time.Minute,
		},
		Routing: Routing{
			SpreadUpperThreshold:   1.2,
			SpreadLowerThreshold:   -0.5,
			SlippagePenalty:        0.35,
			TimeVolPenalty:         0.02,
			RouteExecuteMaxCostPct: 1.0,
			RouteSkipMinCostPct:    2.5,
			BalancedCostWeight:     0.7,
			BalancedTimeWeight:     0.3,
			FxSpreadPct:            0.1,
		},
		Watch: RouteWatch{
			Enabled:      true,
			Interval:     time.Minute,
			FromExchange: "binance",
			FromCurrency: "USD",
			ToExchange:   "upbit",
			ToCurrency:   "KRW",
			Amount:       10000,
			Strategy:     "cheapest",
		},
		NATS: NATS{
			Endpoint:            "nats://localhost:4222",
			PremiumSubject:      "crossfin.premium.signal",
			PremiumThresholdPct: 1.5,
			PublishInterval:     time.Minute,
		},
		Snapshot: Snapshot{
			RetentionDays: 7,
			MaxRows:       500000,
			CleanInterval: time.Hour,
		},
		Logger: Logger{
			Level:      "info",
			MaxSize:    10,
			MaxBackups: 60,
			MaxAge:     7,
			Compress:   false,
			Console:    false,
		},
	}
}

func Load(path string) error {
	c := Default()
	if _, err := toml.DecodeFile(path, c); err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	cfgLock.Lock()
	defer cfgLock.Unlock()
	cfg = c
	cfgPath = path
	lastModTime = info.ModTime()

	return nil
}

func Get() *Config {
	cfgLock.RLock()
	defer cfgLock.RUnlock()
	if cfg == nil {
		return Default()
	}
	return cfg
}

// Init 初始化配置并启动定期重载（默认10秒）
func Init(path string) error {
	return InitWithInterval(path, 10*time.Second)
}

// InitWithInterval 初始化配置并指定重载间隔
func InitWithInterval(path string, interval time.Duration) error {
	if err := Load(path); err != nil {
		return err
	}

	stopChan = make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				reloadIfNeeded()
			case <-stopChan:
				return
			}
		}
	}()

	return nil
}

// Stop 停止配置重载
func Stop() {
	if stopChan != nil {
		close(stopChan)
	}
}

// reloadIfNeeded 仅在文件修改时重载
func reloadIfNeeded() {
	cfgLock.RLock()
	path := cfgPath
	lastMod := lastModTime
	cfgLock.RUnlock()

	if path == "" {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		logger.Error().Err(err).Msg("config stat failed")
		return
	}

	if info.ModTime().After(lastMod) {
		if err = Load(path); err != nil {
			logger.Error().Err(err).Msg("config reload failed")
		} else {
			logger.Info().Msg("config reloaded")
		}
	}
}
