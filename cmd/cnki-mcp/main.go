package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/NoFixedPoint/cnki-mcp/internal/browser"
	"github.com/NoFixedPoint/cnki-mcp/internal/core"
	"github.com/NoFixedPoint/cnki-mcp/internal/engine"
	"github.com/NoFixedPoint/cnki-mcp/internal/models"
	"github.com/NoFixedPoint/cnki-mcp/internal/utils"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	logLevel   string

	// 检索参数
	searchKeyword string
	searchJournal string
	searchType    string
	sortType      string
	resultLimit   int

	// 详情参数
	paperURL string

	// 匹配参数
	targetTitle  string
	matchKeyword string

	// 运行超时
	opTimeout int
)

// 由PersistentPreRunE填充,子命令共享
var appConfig *core.Config

var rootCmd = &cobra.Command{
	Use:   "cnki-mcp",
	Short: "中国知网文献检索与元数据抽取工具",
	Long: `cnki-mcp - 基于无头浏览器的中国知网(CNKI)检索引擎

通过真实浏览器会话驱动知网页面,支持:
  • 主题/篇名/作者/关键词等多种检索类型
  • 期刊名限定的专业检索
  • 论文详情页完整元数据抽取
  • 按标题相似度定位最佳匹配文献

使用示例:
  # 关键词检索
  cnki-mcp search -k "深度学习" --limit 10

  # 在指定期刊内检索并按被引排序
  cnki-mcp search -k "宏观经济" -j "经济研究" --sort 被引

  # 抓取论文详情
  cnki-mcp detail -u "https://kns.cnki.net/kcms2/article/abstract?..."

  # 按标题查找最佳匹配
  cnki-mcp match -t "基于注意力机制的文本分类研究"

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 加载配置
		config, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		appConfig = config

		// 初始化日志系统
		logConfig := utils.LogConfig{
			Level:      config.Logging.Level,
			LogDir:     config.Logging.LogDir,
			MaxSize:    config.Logging.Rotation.MaxSize,
			MaxBackups: config.Logging.Rotation.MaxBackups,
			MaxAge:     config.Logging.Rotation.MaxAge,
			Compress:   config.Logging.Rotation.Compress,
		}

		// 命令行参数覆盖配置文件
		if logLevel != "" {
			logConfig.Level = logLevel
		}

		if err := utils.InitLogger(logConfig); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}

		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "检索CNKI文献",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ValidateSearchFlags(searchKeyword, searchType, sortType, resultLimit); err != nil {
			return err
		}

		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			papers, err := eng.Search(ctx, models.SearchQuery{
				Keyword:    searchKeyword,
				Journal:    searchJournal,
				SearchType: searchType,
				Sort:       sortType,
				Limit:      resultLimit,
			})
			if err != nil {
				return fmt.Errorf("检索失败: %w", err)
			}
			return printJSON(map[string]any{
				"count":  len(papers),
				"papers": papers,
			})
		})
	},
}

var detailCmd = &cobra.Command{
	Use:   "detail",
	Short: "抓取论文详情页元数据",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := models.ValidateCNKIURL(paperURL); err != nil {
			return fmt.Errorf("无效的论文URL: %w", err)
		}

		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			detail, err := eng.FetchDetail(ctx, paperURL)
			if err != nil {
				return fmt.Errorf("抓取详情失败: %w", err)
			}
			return printJSON(detail)
		})
	},
}

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "检索并定位与目标标题最匹配的论文",
	RunE: func(cmd *cobra.Command, args []string) error {
		if targetTitle == "" {
			return fmt.Errorf("必须通过 -t 指定目标标题")
		}

		return withEngine(func(ctx context.Context, eng *engine.Engine) error {
			result, err := eng.FindBestMatch(ctx, targetTitle, matchKeyword)
			if err != nil {
				return fmt.Errorf("匹配失败: %w", err)
			}
			return printJSON(result)
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cnki-mcp %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

// withEngine 创建浏览器会话和引擎,执行操作后确保资源回收
func withEngine(fn func(ctx context.Context, eng *engine.Engine) error) error {
	sessions := browser.NewSessionManager(appConfig.Browser)
	defer sessions.Shutdown()

	// Ctrl+C时先关闭浏览器再退出,避免残留进程
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(opTimeout)*time.Second)
	defer cancel()

	go func() {
		select {
		case sig := <-sigCh:
			utils.Warnf("收到信号%v,正在关闭浏览器会话", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	eng := engine.New(sessions, appConfig.Search, appConfig.Browser)
	return fn(ctx, eng)
}

// printJSON 把结果以缩进JSON写到标准输出
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化结果失败: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().IntVar(&opTimeout, "timeout", 180, "单次操作整体超时(秒)")

	// 检索参数
	searchCmd.Flags().StringVarP(&searchKeyword, "keyword", "k", "", "检索关键词 (必需)")
	searchCmd.Flags().StringVarP(&searchJournal, "journal", "j", "", "期刊名,指定后走专业检索")
	searchCmd.Flags().StringVar(&searchType, "type", "", "检索类型 (主题|篇名|作者|关键词|摘要|全文|被引文献|中图分类号)")
	searchCmd.Flags().StringVar(&sortType, "sort", "", "排序方式 (相关度|发表时间|被引|下载)")
	searchCmd.Flags().IntVar(&resultLimit, "limit", 0, "返回结果数量上限 (默认取配置值)")
	_ = searchCmd.MarkFlagRequired("keyword")

	// 详情参数
	detailCmd.Flags().StringVarP(&paperURL, "url", "u", "", "CNKI论文详情页URL (必需)")
	_ = detailCmd.MarkFlagRequired("url")

	// 匹配参数
	matchCmd.Flags().StringVarP(&targetTitle, "title", "t", "", "目标论文标题 (必需)")
	matchCmd.Flags().StringVarP(&matchKeyword, "keyword", "k", "", "检索关键词,留空时用标题检索")
	_ = matchCmd.MarkFlagRequired("title")

	// 添加子命令
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(detailCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
