package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/NoFixedPoint/cnki-mcp/internal/browser"
	"github.com/NoFixedPoint/cnki-mcp/internal/engine"
	"github.com/NoFixedPoint/cnki-mcp/internal/models"
	"github.com/NoFixedPoint/cnki-mcp/internal/utils"
)

// 工具层对外的错误码,调用方依赖这组固定值做分支处理
const (
	CodeBrowserUnavailable = "browser_unavailable"
	CodeSessionClosed      = "session_closed"
	CodeSearchTimeout      = "search_timeout"
	CodePageNotFound       = "page_not_found"
	CodeInvalidURL         = "invalid_url"
	CodeInvalidInput       = "invalid_input"
	CodeNoCandidates       = "no_candidates"
	CodeInternal           = "internal"
)

// SearchEngine 工具依赖的检索引擎能力
type SearchEngine interface {
	Search(ctx context.Context, query models.SearchQuery) ([]models.PaperSummary, error)
	FetchDetail(ctx context.Context, pageURL string) (*models.PaperDetail, error)
	FindBestMatch(ctx context.Context, targetTitle, keyword string) (*models.MatchResult, error)
}

// RegisterCNKITools 把全部CNKI工具注册到注册表
func RegisterCNKITools(r *Registry, eng SearchEngine) {
	r.Register(&SearchTool{engine: eng})
	r.Register(&DetailTool{engine: eng})
	r.Register(&MatchTool{engine: eng})
}

// classifyError 把引擎错误映射到固定错误码
func classifyError(err error) string {
	switch {
	case errors.Is(err, browser.ErrBrowserUnavailable):
		return CodeBrowserUnavailable
	case errors.Is(err, browser.ErrSessionClosed):
		return CodeSessionClosed
	case errors.Is(err, engine.ErrSearchTimeout):
		return CodeSearchTimeout
	case errors.Is(err, engine.ErrPageNotFound):
		return CodePageNotFound
	case errors.Is(err, engine.ErrInvalidURL):
		return CodeInvalidURL
	case errors.Is(err, engine.ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, engine.ErrNoCandidates):
		return CodeNoCandidates
	default:
		return CodeInternal
	}
}

// runWithRetry 执行操作,会话失效时自动重试一次
// 空闲回收或浏览器崩溃后第一次调用可能撞上已关闭的会话,
// 重建会话后重放即可,其他错误原样返回
func runWithRetry(ctx context.Context, op func(ctx context.Context) error) error {
	err := op(ctx)
	if err == nil || !errors.Is(err, browser.ErrSessionClosed) {
		return err
	}
	utils.Warnf("会话已失效,重建后重试: %v", err)
	return op(ctx)
}

func marshalResult(v any) *ToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ErrorResult(CodeInternal, fmt.Sprintf("序列化结果失败: %v", err))
	}
	return TextResult(string(data))
}

func engineError(err error) *ToolResult {
	return ErrorResult(classifyError(err), err.Error())
}

// SearchTool 检索CNKI文献
type SearchTool struct {
	engine SearchEngine
}

func (t *SearchTool) Name() string {
	return "search_cnki"
}

func (t *SearchTool) Description() string {
	return "在中国知网(CNKI)检索学术文献。支持主题/篇名/作者/关键词等检索类型," +
		"可选期刊名限定(走专业检索)和排序方式,返回标题、作者、来源、日期、" +
		"被引量、下载量和详情页URL的结构化列表。"
}

func (t *SearchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"keyword": map[string]any{
				"type":        "string",
				"description": "检索关键词",
			},
			"journal": map[string]any{
				"type":        "string",
				"description": "期刊名,指定后仅检索该期刊内的文献",
			},
			"search_type": map[string]any{
				"type":        "string",
				"description": "检索类型: 主题/篇名/作者/关键词/摘要/全文/被引文献/中图分类号,或对应英文别名(subject/title/author等),默认主题",
			},
			"sort": map[string]any{
				"type":        "string",
				"description": "排序方式: 相关度/发表时间/被引/下载,或英文别名(relevance/date/cited/download),默认相关度",
			},
			"limit": map[string]any{
				"type":        "integer",
				"description": "返回结果数量上限(默认20,最大200)",
				"minimum":     1.0,
				"maximum":     200.0,
			},
		},
		"required": []string{"keyword"},
	}
}

func (t *SearchTool) Execute(ctx context.Context, args map[string]any) *ToolResult {
	keyword, ok := args["keyword"].(string)
	if !ok || keyword == "" {
		return ErrorResult(CodeInvalidInput, "keyword是必填参数")
	}

	query := models.SearchQuery{Keyword: keyword}
	query.Journal, _ = args["journal"].(string)
	query.SearchType, _ = args["search_type"].(string)
	query.Sort, _ = args["sort"].(string)
	if limit, ok := args["limit"].(float64); ok {
		query.Limit = int(limit)
	}

	var papers []models.PaperSummary
	err := runWithRetry(ctx, func(ctx context.Context) error {
		var searchErr error
		papers, searchErr = t.engine.Search(ctx, query)
		return searchErr
	})
	if err != nil {
		return engineError(err)
	}

	return marshalResult(map[string]any{
		"count":  len(papers),
		"papers": papers,
	})
}

// DetailTool 抓取论文详情页
type DetailTool struct {
	engine SearchEngine
}

func (t *DetailTool) Name() string {
	return "get_paper_detail"
}

func (t *DetailTool) Description() string {
	return "根据CNKI论文详情页URL抓取完整元数据,包括中英文标题、作者、机构、" +
		"中英文摘要、关键词、期刊、年/卷/期/页码、DOI、基金和分类号。"
}

func (t *DetailTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "CNKI论文详情页URL(通常来自search_cnki的返回结果)",
			},
		},
		"required": []string{"url"},
	}
}

func (t *DetailTool) Execute(ctx context.Context, args map[string]any) *ToolResult {
	pageURL, ok := args["url"].(string)
	if !ok || pageURL == "" {
		return ErrorResult(CodeInvalidInput, "url是必填参数")
	}

	var detail *models.PaperDetail
	err := runWithRetry(ctx, func(ctx context.Context) error {
		var fetchErr error
		detail, fetchErr = t.engine.FetchDetail(ctx, pageURL)
		return fetchErr
	})
	if err != nil {
		return engineError(err)
	}

	return marshalResult(detail)
}

// MatchTool 检索并定位与目标标题最匹配的论文
type MatchTool struct {
	engine SearchEngine
}

func (t *MatchTool) Name() string {
	return "find_best_match"
}

func (t *MatchTool) Description() string {
	return "检索CNKI并从结果中找出与目标标题最相似的论文。对标题做归一化相似度" +
		"打分,返回最佳匹配及按相似度降序排列的全部候选。"
}

func (t *MatchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{
				"type":        "string",
				"description": "目标论文标题",
			},
			"keyword": map[string]any{
				"type":        "string",
				"description": "检索关键词,留空时直接用目标标题检索",
			},
		},
		"required": []string{"title"},
	}
}

func (t *MatchTool) Execute(ctx context.Context, args map[string]any) *ToolResult {
	title, ok := args["title"].(string)
	if !ok || title == "" {
		return ErrorResult(CodeInvalidInput, "title是必填参数")
	}
	keyword, _ := args["keyword"].(string)

	var result *models.MatchResult
	err := runWithRetry(ctx, func(ctx context.Context) error {
		var matchErr error
		result, matchErr = t.engine.FindBestMatch(ctx, title, keyword)
		return matchErr
	})
	if err != nil {
		return engineError(err)
	}

	return marshalResult(result)
}
