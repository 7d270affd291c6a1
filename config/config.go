// Package config 保存进程级的只读配置：保留字段、版本信息、存储地址和日志设置。
// 配置文件按扩展名选择格式，.toml 使用 TOML，.yaml / .yml 使用 YAML，
// 文件中没有出现的项保持默认值。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	Version  = "v0.1.0"
	Language = "Go"
)

type RedisProperties struct {
	Host      string `toml:"host" yaml:"host"`
	Port      int    `toml:"port" yaml:"port"`
	Socket    string `toml:"socket" yaml:"socket"`
	TimeoutMs int    `toml:"timeout_ms" yaml:"timeout_ms"`
	// 为 true 时优先使用 unix socket
	UseSocket bool `toml:"use_socket" yaml:"use_socket"`
}

type LogProperties struct {
	Level      string `toml:"level" yaml:"level"`
	Dir        string `toml:"dir" yaml:"dir"`
	Name       string `toml:"name" yaml:"name"`
	Ext        string `toml:"ext" yaml:"ext"`
	TimeFormat string `toml:"time_format" yaml:"time_format"`
}

type ServerProperties struct {
	Element  string          `toml:"element" yaml:"element"`
	Version  string          `toml:"version" yaml:"version"`
	Language string          `toml:"language" yaml:"language"`
	Redis    RedisProperties `toml:"redis" yaml:"redis"`
	Log      LogProperties   `toml:"log" yaml:"log"`
	// 各类保留字段，entry_keys 是条目中不允许出现的 key
	ReservedKeys map[string][]string `toml:"reserved_keys" yaml:"reserved_keys"`
}

// Properties 全局配置，启动时由 Setup 载入
var Properties = Default()

// Default 返回默认配置
func Default() *ServerProperties {
	return &ServerProperties{
		Version:  Version,
		Language: Language,
		Redis: RedisProperties{
			Host:      "localhost",
			Port:      6379,
			Socket:    "/shared/redis.sock",
			TimeoutMs: 5000,
		},
		Log: LogProperties{
			Level:      "info",
			Name:       "atom",
			Ext:        "log",
			TimeFormat: "2006-01-02",
		},
		ReservedKeys: map[string][]string{
			"entry_keys": {"id", "timestamp"},
		},
	}
}

// Load 读取配置文件，未出现的配置项保持默认值
func Load(path string) (*ServerProperties, error) {
	props := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, props); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, props); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("load config %s: unsupported format", path)
	}
	if err := props.validate(); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return props, nil
}

// Setup 载入配置文件并替换全局配置
func Setup(path string) error {
	props, err := Load(path)
	if err != nil {
		return err
	}
	Properties = props
	return nil
}

func (p *ServerProperties) validate() error {
	if p.Redis.Port <= 0 || p.Redis.Port > 65535 {
		return fmt.Errorf("invalid redis port %d", p.Redis.Port)
	}
	if p.Redis.TimeoutMs < 0 {
		return fmt.Errorf("invalid redis timeout %d", p.Redis.TimeoutMs)
	}
	return nil
}

// EntryKeys 返回条目的保留字段
func (p *ServerProperties) EntryKeys() []string {
	return append([]string(nil), p.ReservedKeys["entry_keys"]...)
}

func (p *ServerProperties) Timeout() time.Duration {
	return time.Duration(p.Redis.TimeoutMs) * time.Millisecond
}
