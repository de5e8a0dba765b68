package core

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config 应用程序配置
type Config struct {
	Browser BrowserConfig `mapstructure:"browser"`
	Search  SearchConfig  `mapstructure:"search"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// BrowserConfig 浏览器会话配置
type BrowserConfig struct {
	Headless        bool   `mapstructure:"headless"`          // 无头模式
	IdleTimeout     int    `mapstructure:"idle_timeout"`      // 空闲回收时间(秒)
	NavigateTimeout int    `mapstructure:"navigate_timeout"`  // 页面导航超时(秒)
	MaxPages        int    `mapstructure:"max_pages"`         // 并发标签页绝对上限
	ReserveMemoryMB int    `mapstructure:"reserve_memory_mb"` // 安全保留内存(MB)
	PageMemoryMB    int    `mapstructure:"page_memory_mb"`    // 单个标签页平均内存消耗(MB)
	CPULoadLimit    int    `mapstructure:"cpu_load_limit"`    // CPU负载阈值(%)
	BinPath         string `mapstructure:"bin_path"`          // 浏览器可执行文件路径(空则自动下载)
}

// SearchConfig 检索行为配置
type SearchConfig struct {
	BaseURL        string `mapstructure:"base_url"`         // CNKI首页地址
	AdvSearchURL   string `mapstructure:"adv_search_url"`   // 高级检索页地址
	ResultTimeout  int    `mapstructure:"result_timeout"`   // 等待结果容器渲染的超时(秒)
	DefaultLimit   int    `mapstructure:"default_limit"`    // 默认结果数量上限
	MaxLimit       int    `mapstructure:"max_limit"`        // 结果数量绝对上限
	HumanDelayMin  int    `mapstructure:"human_delay_min"`  // 模拟人工操作的最小延迟(毫秒)
	HumanDelayMax  int    `mapstructure:"human_delay_max"`  // 模拟人工操作的最大延迟(毫秒)
	TypingDelayMin int    `mapstructure:"typing_delay_min"` // 逐字输入的最小间隔(毫秒)
	TypingDelayMax int    `mapstructure:"typing_delay_max"` // 逐字输入的最大间隔(毫秒)
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// ResultTimeoutDuration 结果渲染等待超时
func (c *SearchConfig) ResultTimeoutDuration() time.Duration {
	return time.Duration(c.ResultTimeout) * time.Second
}

// NavigateTimeoutDuration 页面导航超时
func (c *BrowserConfig) NavigateTimeoutDuration() time.Duration {
	return time.Duration(c.NavigateTimeout) * time.Second
}

// IdleTimeoutDuration 浏览器空闲回收时间
func (c *BrowserConfig) IdleTimeoutDuration() time.Duration {
	return time.Duration(c.IdleTimeout) * time.Second
}

// Validate 验证配置取值范围
func (c *Config) Validate() error {
	if c.Search.ResultTimeout < 1 || c.Search.ResultTimeout > 120 {
		return fmt.Errorf("结果等待超时必须在1-120秒之间: %d", c.Search.ResultTimeout)
	}
	if c.Browser.NavigateTimeout < 1 || c.Browser.NavigateTimeout > 120 {
		return fmt.Errorf("导航超时必须在1-120秒之间: %d", c.Browser.NavigateTimeout)
	}
	if c.Search.DefaultLimit < 1 || c.Search.DefaultLimit > c.Search.MaxLimit {
		return fmt.Errorf("默认结果上限必须在1-%d之间: %d", c.Search.MaxLimit, c.Search.DefaultLimit)
	}
	if c.Browser.MaxPages < 1 || c.Browser.MaxPages > 32 {
		return fmt.Errorf("标签页上限必须在1-32之间: %d", c.Browser.MaxPages)
	}
	return nil
}

// LoadConfig 加载配置文件
// 未指定路径时按 ./configs, ., ~/.cnki-mcp 顺序搜索,找不到则使用默认值
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".cnki-mcp"))
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在,使用默认值
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("配置取值非法: %w", err)
	}

	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 浏览器配置默认值
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.idle_timeout", 600)
	v.SetDefault("browser.navigate_timeout", 30)
	v.SetDefault("browser.max_pages", 8)
	v.SetDefault("browser.reserve_memory_mb", 1024)
	v.SetDefault("browser.page_memory_mb", 100)
	v.SetDefault("browser.cpu_load_limit", 80)
	v.SetDefault("browser.bin_path", "")

	// 检索配置默认值
	v.SetDefault("search.base_url", "https://www.cnki.net/")
	v.SetDefault("search.adv_search_url", "https://kns.cnki.net/kns8s/AdvSearch")
	v.SetDefault("search.result_timeout", 15)
	v.SetDefault("search.default_limit", 20)
	v.SetDefault("search.max_limit", 200)
	v.SetDefault("search.human_delay_min", 1000)
	v.SetDefault("search.human_delay_max", 2500)
	v.SetDefault("search.typing_delay_min", 30)
	v.SetDefault("search.typing_delay_max", 80)

	// 日志配置默认值
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)
}
