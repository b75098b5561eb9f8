package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logMu             sync.Mutex
	lumberjackWriters map[string]*lumberjack.Logger

	TimeFormat = "2006-01-02 15:04:05"
)

// initLogger 初始化日志系统
func initLogger(config Config) error {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	setLogLevel(config.Level)

	// LevelFiles 为空时使用默认 info 文件
	if config.LevelFiles.IsEmpty() {
		config.LevelFiles = LevelFiles{
			{Level: INFO, Path: "logs/info.log"},
		}
	}

	for _, filePath := range config.LevelFiles.GetPaths() {
		if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
			return err
		}
	}

	setWriter(config)

	return nil
}

func setWriter(config Config) {
	// 已配置的等级位掩码，决定日志降级去向
	var configuredLevels uint8
	for _, entry := range config.LevelFiles {
		configuredLevels |= 1 << parseLevel(entry.Level)
	}

	newWriters := make([]io.Writer, 0, len(config.LevelFiles)+1)
	newLumberjackWriters := make(map[string]*lumberjack.Logger, len(config.LevelFiles))

	for _, entry := range config.LevelFiles {
		lj := &lumberjack.Logger{
			Filename:   entry.Path,
			MaxSize:    config.MaxSize,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge,
			Compress:   config.Compress,
		}
		newLumberjackWriters[entry.Level] = lj

		newWriters = append(newWriters, &levelFilterWriter{
			level:            parseLevel(entry.Level),
			configuredLevels: configuredLevels,
			Writer:           lj,
		})
	}

	if config.Console {
		newWriters = append(newWriters, &zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: TimeFormat,
		})
	}

	logMu.Lock()
	defer logMu.Unlock()

	closeAllWriters()
	lumberjackWriters = newLumberjackWriters
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(newWriters...)).With().Timestamp().Caller().Logger()
}

// levelFilterWriter 只写入指定等级的日志，未配置文件的等级降级写入
type levelFilterWriter struct {
	level            zerolog.Level
	configuredLevels uint8
	io.Writer
}

func (w *levelFilterWriter) WriteLevel(level zerolog.Level, p []byte) (n int, err error) {
	if level == w.level {
		return w.Writer.Write(p)
	}

	switch w.level {
	case zerolog.InfoLevel:
		// 没有单独配置的等级写入 INFO 文件
		if w.configuredLevels&(1<<level) == 0 {
			return w.Writer.Write(p)
		}
	case zerolog.ErrorLevel:
		// FATAL 没配置时同时写入 ERROR
		if level == zerolog.FatalLevel && w.configuredLevels&(1<<level) == 0 {
			return w.Writer.Write(p)
		}
	}
	return len(p), nil
}

// parseLevel 解析等级名称
func parseLevel(levelName string) zerolog.Level {
	switch levelName {
	case "debug", "DEBUG":
		return zerolog.DebugLevel
	case "info", "INFO":
		return zerolog.InfoLevel
	case "warn", "WARN":
		return zerolog.WarnLevel
	case "error", "ERROR":
		return zerolog.ErrorLevel
	case "fatal", "FATAL":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

func closeAllWriters() {
	for levelName, lj := range lumberjackWriters {
		if err := lj.Close(); err != nil {
			log.Logger.Err(err).Str("level", levelName).Msg("failed to close lumberjack writer")
		}
	}
	lumberjackWriters = nil
}

// Close 关闭日志系统，释放所有文件句柄
func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	closeAllWriters()
}

// Debug 返回 debug 级别事件
func Debug() *zerolog.Event {
	return log.Logger.Debug()
}

// Info 返回 info 级别事件
func Info() *zerolog.Event {
	return log.Logger.Info()
}

// Warn 返回 warn 级别事件
func Warn() *zerolog.Event {
	return log.Logger.Warn()
}

// Error 返回 error 级别事件
func Error() *zerolog.Event {
	return log.Logger.Error()
}

// Fatal 返回 fatal 级别事件
func Fatal() *zerolog.Event {
	return log.Logger.Fatal()
}
