package dal

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	proxymysql "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/proxy"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"

	"github.com/crossfin/crossfin-route-engine/config"
	"github.com/crossfin/crossfin-route-engine/internal/models"
	"github.com/crossfin/crossfin-route-engine/pkg/logger"
)

type GormLogger struct{}

func (l GormLogger) Printf(f string, args ...any) {
	log.Printf(f, args...)
}

func (l GormLogger) Print(args ...any) {
	log.Print(args...)
}

var (
	db     *gorm.DB
	dbOnce sync.Once
)

// InitDB 按配置初始化数据库连接，sqlite 用于单机部署，mysql 用于生产
func InitDB(cfg config.Database) {
	dbOnce.Do(func() {
		switch cfg.Driver {
		case "sqlite":
			db = connectSQLite(cfg)
		default:
			db = connectMySQL(cfg)
		}
	})
}

// registerProxyDialer 注册 SOCKS5 代理拨号器
func registerProxyDialer(proxyAddr string) error {
	dialer, err := proxy.SOCKS5("tcp", proxyAddr, nil, &net.Dialer{})
	if err != nil {
		return fmt.Errorf("create proxy dialer failed: %w", err)
	}

	proxymysql.RegisterDialContext("dial", func(ctx context.Context, addr string) (net.Conn, error) {
		return dialer.Dial("tcp", addr)
	})

	return nil
}

func newGormConfig() *gorm.Config {
	newLogger := gormlogger.New(
		GormLogger{}, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			Colorful:                  true,
			IgnoreRecordNotFoundError: true,
		},
	)
	return &gorm.Config{
		Logger:      newLogger,
		PrepareStmt: true,
	}
}

func connectSQLite(cfg config.Database) *gorm.DB {
	if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			panic(fmt.Sprintf("create sqlite dir failed: %v", err))
		}
	}

	conn, err := gorm.Open(sqlite.Open(cfg.SQLitePath), newGormConfig())
	if err != nil {
		panic(fmt.Sprintf("connect sqlite failed: %v", err))
	}

	// sqlite 写入串行化，限制单连接避免 database is locked
	sqlDB, err := conn.DB()
	if err != nil {
		panic(fmt.Sprintf("get sql.DB failed: %v", err))
	}
	sqlDB.SetMaxOpenConns(1)

	logger.Infof("sqlite connected: %s", cfg.SQLitePath)
	return conn
}

func connectMySQL(cfg config.Database) *gorm.DB {
	// 注册代理（如果启用）
	if cfg.ProxyEnabled {
		if err := registerProxyDialer(cfg.ProxyAddr); err != nil {
			panic(fmt.Sprintf("register proxy failed: %v", err))
		}
		logger.Infof("mysql proxy enabled: %s", cfg.ProxyAddr)
	}

	conn, err := gorm.Open(mysql.Open(cfg.DSN), newGormConfig())
	if err != nil {
		panic(fmt.Sprintf("connect mysql master failed: %v", err))
	}

	// 配置读写分离
	dbCfg := dbresolver.Config{}

	if len(cfg.SlaveAddr) > 0 {
		var replicas []gorm.Dialector
		for _, addr := range cfg.SlaveAddr {
			replicas = append(replicas, mysql.Open(addr))
		}
		dbCfg.Replicas = replicas
		dbCfg.TraceResolverMode = true
		logger.Infof("mysql %d slave(s) configured", len(cfg.SlaveAddr))
	}

	maxIdleTime := time.Hour
	if cfg.SetConnMaxIdleTime > 0 {
		maxIdleTime = time.Duration(cfg.SetConnMaxIdleTime) * time.Second
	}

	maxLifetime := 2 * time.Hour
	if cfg.SetConnMaxLifetime > 0 {
		maxLifetime = time.Duration(cfg.SetConnMaxLifetime) * time.Second
	}

	if len(cfg.SlaveAddr) > 0 {
		plugin := dbresolver.Register(dbCfg).
			SetConnMaxIdleTime(maxIdleTime).
			SetConnMaxLifetime(maxLifetime).
			SetMaxIdleConns(cfg.MaxIdleConnections).
			SetMaxOpenConns(cfg.MaxOpenConnections)
		if err = conn.Use(plugin); err != nil {
			panic(fmt.Sprintf("register dbresolver failed: %v", err))
		}
	}

	sqlDB, err := conn.DB()
	if err != nil {
		panic(fmt.Sprintf("get sql.DB failed: %v", err))
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConnections)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConnections)
	sqlDB.SetConnMaxIdleTime(maxIdleTime)
	sqlDB.SetConnMaxLifetime(maxLifetime)

	logger.Info().Msgf("mysql connected: max_idle=%d, max_open=%d, max_idle_time=%v, max_lifetime=%v",
		cfg.MaxIdleConnections, cfg.MaxOpenConnections, maxIdleTime, maxLifetime)

	return conn
}

func DB() *gorm.DB {
	return db
}

func CloseDB() {
	if db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Error().Err(err)
		return
	}
	if err = sqlDB.Close(); err != nil {
		logger.Error().Err(err)
	}

	logger.Infof("db closed.")
}

// AutoMigrate 自动迁移数据库表结构
// 失败时记录警告日志，不中断服务启动
func AutoMigrate() {
	conn := DB()
	if conn == nil {
		log.Error().Msg("database not initialized, skip auto migration")
		return
	}

	modelList := []interface{}{
		&models.ExchangeTradingFee{},
		&models.ExchangeWithdrawalFee{},
		&models.PriceSnapshot{},
	}

	for _, model := range modelList {
		if err := conn.AutoMigrate(model); err != nil {
			log.Warn().Err(err).
				Str("table", getTableName(model)).
				Msg("auto migrate failed, continuing anyway")
		} else {
			log.Info().Str("table", getTableName(model)).Msg("auto migrate success")
		}
	}
}

// getTableName 获取模型的表名
func getTableName(model interface{}) string {
	if t, ok := model.(interface{ TableName() string }); ok {
		return t.TableName()
	}
	return "unknown"
}
