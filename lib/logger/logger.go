// Package logger 提供全局的分级日志，底层使用 hclog 输出结构化日志。
//
// 日志级别可以通过环境变量 ATOM_LOG_LEVEL 覆盖（trace/debug/info/warn/error/off）。
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

type LogLevel int

type ILogger interface {
	OUTPUT(level LogLevel, callerDepth int, msg string)
}

const (
	defaultCallerDepth = 2
	loggerName         = "atom"
	EnvLogLevel        = "ATOM_LOG_LEVEL"
)

const (
	DEBUG LogLevel = iota
	INFO
	WARNING
	ERROR
	FATAL
)

var levelFlags = []string{"DEBUG", "INFO", "WARNING", "ERROR", "FATAL"}

// atom 日志级别到 hclog 级别的映射，FATAL 按 ERROR 输出并附带 fatal 标记
var hclogLevels = []hclog.Level{hclog.Debug, hclog.Info, hclog.Warn, hclog.Error, hclog.Error}

func (l LogLevel) String() string {
	if int(l) < 0 || int(l) >= len(levelFlags) {
		return "UNKNOWN"
	}
	return levelFlags[l]
}

type Logger struct {
	logger  hclog.Logger
	logFile *os.File
}

var DefaultLogger ILogger = NewStdoutLogger()

// 定向到标准控制台输出
func NewStdoutLogger() *Logger {
	return &Logger{
		logger: hclog.New(&hclog.LoggerOptions{
			Name:   loggerName,
			Level:  levelFromEnv(hclog.Info),
			Output: os.Stdout,
			Color:  hclog.AutoColor,
		}),
	}
}

// NewWriterLogger 输出到 w，level 无法识别时使用 info
func NewWriterLogger(w io.Writer, level string) *Logger {
	l := hclog.LevelFromString(level)
	if l == hclog.NoLevel {
		l = hclog.Info
	}
	return &Logger{
		logger: hclog.New(&hclog.LoggerOptions{
			Name:   loggerName,
			Level:  levelFromEnv(l),
			Output: w,
			Color:  hclog.ColorOff,
		}),
	}
}

// 用于文件形式存储的日志，包含路径/名称/时间/扩展名
type Settings struct {
	Path       string
	Name       string
	Ext        string
	TimeFormat string
	Level      string
}

// 文件存储日志，同时输出到控制台
func NewFileLogger(settings *Settings) (*Logger, error) {
	fileName := fmt.Sprintf("%s-%s.%s",
		settings.Name,
		time.Now().Format(settings.TimeFormat),
		settings.Ext,
	)

	// 打开本地文件
	logFile, err := mustOpen(fileName, settings.Path)
	if err != nil {
		return nil, fmt.Errorf("logging.Join err:%s", err)
	}

	level := hclog.LevelFromString(settings.Level)
	if level == hclog.NoLevel {
		level = hclog.Debug
	}
	return &Logger{
		logger: hclog.New(&hclog.LoggerOptions{
			Name:   loggerName,
			Level:  levelFromEnv(level),
			Output: io.MultiWriter(os.Stdout, logFile),
			Color:  hclog.ColorOff,
		}),
		logFile: logFile,
	}, nil
}

func mustOpen(fileName, dir string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dir, fileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

func levelFromEnv(fallback hclog.Level) hclog.Level {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(EnvLogLevel)))
	switch raw {
	case "":
		return fallback
	case "disabled", "off", "none":
		return hclog.Off
	}
	if level := hclog.LevelFromString(raw); level != hclog.NoLevel {
		return level
	}
	return fallback
}

func Setup(setting *Settings) {
	logger, err := NewFileLogger(setting)
	if err != nil {
		panic(err)
	}
	DefaultLogger = logger
}

// SetLevel 动态调整日志级别，无法识别的级别会被忽略
func (logger *Logger) SetLevel(level string) {
	if l := hclog.LevelFromString(level); l != hclog.NoLevel {
		logger.logger.SetLevel(l)
	}
}

func (logger *Logger) Close() error {
	if logger.logFile == nil {
		return nil
	}
	return logger.logFile.Close()
}

func (logger *Logger) OUTPUT(level LogLevel, callerDepth int, msg string) {
	if int(level) < 0 || int(level) >= len(hclogLevels) {
		level = ERROR
	}
	msg = strings.TrimSuffix(msg, "\n")
	args := make([]interface{}, 0, 4)

	// 获取调用栈信息，用于在日志中显示 哪一行代码打印了这条日志
	if _, file, line, ok := runtime.Caller(callerDepth); ok {
		args = append(args, "caller", fmt.Sprintf("%s:%d", filepath.Base(file), line))
	}
	if level == FATAL {
		args = append(args, "fatal", true)
	}
	logger.logger.Log(hclogLevels[level], msg, args...)
}

func Debug(v ...interface{}) {
	msg := fmt.Sprintln(v...)
	DefaultLogger.OUTPUT(DEBUG, defaultCallerDepth, msg)
}

func Debugf(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	DefaultLogger.OUTPUT(DEBUG, defaultCallerDepth, msg)
}

func Info(v ...interface{}) {
	msg := fmt.Sprintln(v...)
	DefaultLogger.OUTPUT(INFO, defaultCallerDepth, msg)
}

func Infof(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	DefaultLogger.OUTPUT(INFO, defaultCallerDepth, msg)
}

func Warn(v ...interface{}) {
	msg := fmt.Sprintln(v...)
	DefaultLogger.OUTPUT(WARNING, defaultCallerDepth, msg)
}

func Warnf(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	DefaultLogger.OUTPUT(WARNING, defaultCallerDepth, msg)
}

func Error(v ...interface{}) {
	msg := fmt.Sprintln(v...)
	DefaultLogger.OUTPUT(ERROR, defaultCallerDepth, msg)
}

func Errorf(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	DefaultLogger.OUTPUT(ERROR, defaultCallerDepth, msg)
}

// 只记录日志，不会退出进程
func Fatal(v ...interface{}) {
	msg := fmt.Sprintln(v...)
	DefaultLogger.OUTPUT(FATAL, defaultCallerDepth, msg)
}
