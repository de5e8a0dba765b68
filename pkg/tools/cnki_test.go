package tools

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/NoFixedPoint/cnki-mcp/internal/browser"
	"github.com/NoFixedPoint/cnki-mcp/internal/engine"
	"github.com/NoFixedPoint/cnki-mcp/internal/models"
)

// fakeEngine 可注入行为的假引擎
type fakeEngine struct {
	searchFn    func(ctx context.Context, query models.SearchQuery) ([]models.PaperSummary, error)
	detailFn    func(ctx context.Context, pageURL string) (*models.PaperDetail, error)
	matchFn     func(ctx context.Context, targetTitle, keyword string) (*models.MatchResult, error)
	searchCalls int
	detailCalls int
	matchCalls  int
}

func (f *fakeEngine) Search(ctx context.Context, query models.SearchQuery) ([]models.PaperSummary, error) {
	f.searchCalls++
	return f.searchFn(ctx, query)
}

func (f *fakeEngine) FetchDetail(ctx context.Context, pageURL string) (*models.PaperDetail, error) {
	f.detailCalls++
	return f.detailFn(ctx, pageURL)
}

func (f *fakeEngine) FindBestMatch(ctx context.Context, targetTitle, keyword string) (*models.MatchResult, error) {
	f.matchCalls++
	return f.matchFn(ctx, targetTitle, keyword)
}

func TestSearchTool_缺少关键词(t *testing.T) {
	tool := &SearchTool{engine: &fakeEngine{}}

	result := tool.Execute(context.Background(), map[string]any{})
	if !result.IsError {
		t.Fatal("缺少keyword应返回错误")
	}
	if result.Code != CodeInvalidInput {
		t.Errorf("Code = %q, want %q", result.Code, CodeInvalidInput)
	}
}

func TestSearchTool_参数透传(t *testing.T) {
	var got models.SearchQuery
	fake := &fakeEngine{
		searchFn: func(ctx context.Context, query models.SearchQuery) ([]models.PaperSummary, error) {
			got = query
			return []models.PaperSummary{{Title: "论文", URL: "https://kns.cnki.net/a"}}, nil
		},
	}
	tool := &SearchTool{engine: fake}

	result := tool.Execute(context.Background(), map[string]any{
		"keyword":     "数字经济",
		"journal":     "经济研究",
		"search_type": "keyword",
		"sort":        "cited",
		"limit":       float64(10),
	})

	if result.IsError {
		t.Fatalf("执行失败: %s", result.ForLLM)
	}
	if got.Keyword != "数字经济" || got.Journal != "经济研究" ||
		got.SearchType != "keyword" || got.Sort != "cited" || got.Limit != 10 {
		t.Errorf("参数透传错误: %+v", got)
	}
	if !strings.Contains(result.ForLLM, "论文") {
		t.Errorf("结果应包含论文标题: %s", result.ForLLM)
	}
	if !strings.Contains(result.ForLLM, `"count": 1`) {
		t.Errorf("结果应包含数量字段: %s", result.ForLLM)
	}
}

func TestSearchTool_错误码映射(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"浏览器不可用", fmt.Errorf("%w: 启动失败", browser.ErrBrowserUnavailable), CodeBrowserUnavailable},
		{"检索超时", fmt.Errorf("%w: 容器未渲染", engine.ErrSearchTimeout), CodeSearchTimeout},
		{"参数无效", fmt.Errorf("%w: 关键词为空", engine.ErrInvalidInput), CodeInvalidInput},
		{"未知错误", fmt.Errorf("莫名其妙的故障"), CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeEngine{
				searchFn: func(ctx context.Context, query models.SearchQuery) ([]models.PaperSummary, error) {
					return nil, tt.err
				},
			}
			tool := &SearchTool{engine: fake}

			result := tool.Execute(context.Background(), map[string]any{"keyword": "测试"})
			if !result.IsError {
				t.Fatal("应返回错误结果")
			}
			if result.Code != tt.code {
				t.Errorf("Code = %q, want %q", result.Code, tt.code)
			}
		})
	}
}

func TestSearchTool_会话失效重试一次(t *testing.T) {
	fake := &fakeEngine{}
	fake.searchFn = func(ctx context.Context, query models.SearchQuery) ([]models.PaperSummary, error) {
		if fake.searchCalls == 1 {
			return nil, fmt.Errorf("%w: 标签页创建失败", browser.ErrSessionClosed)
		}
		return []models.PaperSummary{{Title: "重试成功", URL: "https://kns.cnki.net/r"}}, nil
	}
	tool := &SearchTool{engine: fake}

	result := tool.Execute(context.Background(), map[string]any{"keyword": "测试"})
	if result.IsError {
		t.Fatalf("重试后应成功: %s", result.ForLLM)
	}
	if fake.searchCalls != 2 {
		t.Errorf("调用次数 = %d, want 2", fake.searchCalls)
	}
}

func TestSearchTool_会话失效只重试一次(t *testing.T) {
	fake := &fakeEngine{
		searchFn: func(ctx context.Context, query models.SearchQuery) ([]models.PaperSummary, error) {
			return nil, fmt.Errorf("%w: 持续失败", browser.ErrSessionClosed)
		},
	}
	tool := &SearchTool{engine: fake}

	result := tool.Execute(context.Background(), map[string]any{"keyword": "测试"})
	if !result.IsError {
		t.Fatal("持续失败应返回错误")
	}
	if result.Code != CodeSessionClosed {
		t.Errorf("Code = %q, want %q", result.Code, CodeSessionClosed)
	}
	if fake.searchCalls != 2 {
		t.Errorf("调用次数 = %d, want 2 (重试最多一次)", fake.searchCalls)
	}
}

func TestDetailTool_执行(t *testing.T) {
	fake := &fakeEngine{
		detailFn: func(ctx context.Context, pageURL string) (*models.PaperDetail, error) {
			return &models.PaperDetail{URL: pageURL, Title: "详情论文"}, nil
		},
	}
	tool := &DetailTool{engine: fake}

	result := tool.Execute(context.Background(), map[string]any{
		"url": "https://kns.cnki.net/kcms2/article/abstract?v=1",
	})
	if result.IsError {
		t.Fatalf("执行失败: %s", result.ForLLM)
	}
	if !strings.Contains(result.ForLLM, "详情论文") {
		t.Errorf("结果应包含标题: %s", result.ForLLM)
	}
}

func TestDetailTool_缺少URL(t *testing.T) {
	tool := &DetailTool{engine: &fakeEngine{}}

	result := tool.Execute(context.Background(), map[string]any{})
	if !result.IsError || result.Code != CodeInvalidInput {
		t.Errorf("缺少url应返回invalid_input, got code=%q", result.Code)
	}
}

func TestDetailTool_无效URL错误码(t *testing.T) {
	fake := &fakeEngine{
		detailFn: func(ctx context.Context, pageURL string) (*models.PaperDetail, error) {
			return nil, fmt.Errorf("%w: 非CNKI链接", engine.ErrInvalidURL)
		},
	}
	tool := &DetailTool{engine: fake}

	result := tool.Execute(context.Background(), map[string]any{"url": "https://example.com/x"})
	if !result.IsError || result.Code != CodeInvalidURL {
		t.Errorf("Code = %q, want %q", result.Code, CodeInvalidURL)
	}
}

func TestMatchTool_执行(t *testing.T) {
	fake := &fakeEngine{
		matchFn: func(ctx context.Context, targetTitle, keyword string) (*models.MatchResult, error) {
			return &models.MatchResult{
				Best:  models.PaperSummary{Title: targetTitle},
				Score: 1.0,
			}, nil
		},
	}
	tool := &MatchTool{engine: fake}

	result := tool.Execute(context.Background(), map[string]any{"title": "目标论文标题"})
	if result.IsError {
		t.Fatalf("执行失败: %s", result.ForLLM)
	}
	if !strings.Contains(result.ForLLM, "目标论文标题") {
		t.Errorf("结果应包含最佳匹配: %s", result.ForLLM)
	}
}

func TestMatchTool_无候选错误码(t *testing.T) {
	fake := &fakeEngine{
		matchFn: func(ctx context.Context, targetTitle, keyword string) (*models.MatchResult, error) {
			return nil, fmt.Errorf("%w: 检索无结果", engine.ErrNoCandidates)
		},
	}
	tool := &MatchTool{engine: fake}

	result := tool.Execute(context.Background(), map[string]any{"title": "找不到的论文"})
	if !result.IsError || result.Code != CodeNoCandidates {
		t.Errorf("Code = %q, want %q", result.Code, CodeNoCandidates)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	RegisterCNKITools(r, &fakeEngine{})

	names := []string{"search_cnki", "get_paper_detail", "find_best_match"}
	for _, name := range names {
		tool, ok := r.Get(name)
		if !ok {
			t.Errorf("工具未注册: %s", name)
			continue
		}
		if tool.Name() != name {
			t.Errorf("Name() = %q, want %q", tool.Name(), name)
		}
		if tool.Description() == "" {
			t.Errorf("%s的说明不应为空", name)
		}
		params := tool.Parameters()
		if params["type"] != "object" {
			t.Errorf("%s的参数schema类型应为object", name)
		}
	}

	list := r.List()
	if len(list) != 3 {
		t.Fatalf("List()长度 = %d, want 3", len(list))
	}
	for i, name := range names {
		if list[i].Name() != name {
			t.Errorf("注册顺序错误: list[%d] = %q, want %q", i, list[i].Name(), name)
		}
	}
}
