package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/NoFixedPoint/cnki-mcp/internal/core"
	"github.com/NoFixedPoint/cnki-mcp/internal/models"
)

func testSearchConfig() core.SearchConfig {
	return core.SearchConfig{
		BaseURL:        "https://www.cnki.net/",
		AdvSearchURL:   "https://kns.cnki.net/kns8s/AdvSearch",
		ResultTimeout:  15,
		DefaultLimit:   20,
		MaxLimit:       200,
		HumanDelayMin:  1,
		HumanDelayMax:  2,
		TypingDelayMin: 1,
		TypingDelayMax: 2,
	}
}

func testEngineBrowserConfig() core.BrowserConfig {
	return core.BrowserConfig{
		Headless:        true,
		IdleTimeout:     600,
		NavigateTimeout: 30,
		MaxPages:        8,
	}
}

func newTestEngine() *Engine {
	return New(nil, testSearchConfig(), testEngineBrowserConfig())
}

// 入参校验在触达浏览器之前完成,这些用例不需要会话管理器

func TestEngine_Search_无效请求(t *testing.T) {
	eng := newTestEngine()

	tests := []struct {
		name  string
		query models.SearchQuery
	}{
		{"空关键词", models.SearchQuery{Keyword: ""}},
		{"纯空白关键词", models.SearchQuery{Keyword: "  "}},
		{"负数上限", models.SearchQuery{Keyword: "测试", Limit: -5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eng.Search(context.Background(), tt.query)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestEngine_FetchDetail_无效URL(t *testing.T) {
	eng := newTestEngine()

	tests := []struct {
		name string
		url  string
	}{
		{"空URL", ""},
		{"非CNKI域名", "https://example.com/paper"},
		{"无效协议", "ftp://kns.cnki.net/x"},
		{"无协议", "kns.cnki.net/kcms2/article"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eng.FetchDetail(context.Background(), tt.url)
			if !errors.Is(err, ErrInvalidURL) {
				t.Errorf("error = %v, want ErrInvalidURL", err)
			}
		})
	}
}

func TestEngine_FindBestMatch_空标题(t *testing.T) {
	eng := newTestEngine()

	_, err := eng.FindBestMatch(context.Background(), "", "")
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestEngine_SetSimilarity(t *testing.T) {
	eng := newTestEngine()

	called := false
	eng.SetSimilarity(func(a, b string) float64 {
		called = true
		return 1.0
	})

	// 注入的策略通过BestMatch生效
	if _, err := BestMatch("标题", []models.PaperSummary{{Title: "标题"}}, eng.sim); err != nil {
		t.Fatalf("BestMatch() error = %v", err)
	}
	if !called {
		t.Error("自定义相似度策略未被调用")
	}

	// nil不应覆盖现有策略
	eng.SetSimilarity(nil)
	if eng.sim == nil {
		t.Error("SetSimilarity(nil)不应清空策略")
	}
}

func TestEngine_导航超时配置(t *testing.T) {
	eng := newTestEngine()
	if got := eng.navigateTimeout(); got != 30*time.Second {
		t.Errorf("navigateTimeout() = %v, want 30s", got)
	}

	// 自定义配置生效
	browserCfg := testEngineBrowserConfig()
	browserCfg.NavigateTimeout = 10
	eng = New(nil, testSearchConfig(), browserCfg)
	if got := eng.navigateTimeout(); got != 10*time.Second {
		t.Errorf("navigateTimeout() = %v, want 10s", got)
	}

	// 配置缺省时退回30秒,导航永远有界
	browserCfg.NavigateTimeout = 0
	eng = New(nil, testSearchConfig(), browserCfg)
	if got := eng.navigateTimeout(); got != 30*time.Second {
		t.Errorf("navigateTimeout() = %v, want 30s (缺省兜底)", got)
	}
}

func TestEngine_EffectiveLimit(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		want      int
	}{
		{"未指定取默认值", 0, 20},
		{"正常范围原样返回", 50, 50},
		{"超出绝对上限截断", 500, 200},
		{"恰好等于上限", 200, 200},
	}

	eng := newTestEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eng.effectiveLimit(tt.requested); got != tt.want {
				t.Errorf("effectiveLimit(%d) = %d, want %d", tt.requested, got, tt.want)
			}
		})
	}
}

// manyCandidates 生成按显示顺序编号的摘要记录
func manyCandidates(start, count int) []models.PaperSummary {
	papers := make([]models.PaperSummary, 0, count)
	for i := 0; i < count; i++ {
		papers = append(papers, models.PaperSummary{
			Title: fmt.Sprintf("论文%d", start+i),
			URL:   fmt.Sprintf("https://kns.cnki.net/kcms2/article/abstract?v=%d", start+i),
		})
	}
	return papers
}

func TestResultAccumulator_超量截取前十条(t *testing.T) {
	// 两页共23行,上限10: 第一页就已满量,截取显示顺序的前10条
	acc := newResultAccumulator(10)

	if more := acc.add(manyCandidates(1, 20)); more {
		t.Error("已达上限后不应继续翻页")
	}
	acc.add(manyCandidates(21, 3))

	got := acc.results()
	if len(got) != 10 {
		t.Fatalf("结果数量 = %d, want 10", len(got))
	}
	for i, p := range got {
		want := fmt.Sprintf("论文%d", i+1)
		if p.Title != want {
			t.Errorf("第%d条 = %q, want %q (应保持显示顺序)", i+1, p.Title, want)
		}
	}
}

func TestResultAccumulator_跨页累加(t *testing.T) {
	// 每页8行,上限10: 第一页后继续,第二页满量后截断
	acc := newResultAccumulator(10)

	if more := acc.add(manyCandidates(1, 8)); !more {
		t.Error("未达上限且本页有结果时应继续翻页")
	}
	if more := acc.add(manyCandidates(9, 8)); more {
		t.Error("累计超过上限后不应继续翻页")
	}

	got := acc.results()
	if len(got) != 10 {
		t.Fatalf("结果数量 = %d, want 10", len(got))
	}
	if got[9].Title != "论文10" {
		t.Errorf("末条 = %q, want 论文10", got[9].Title)
	}
}

func TestResultAccumulator_空页停采(t *testing.T) {
	acc := newResultAccumulator(10)

	acc.add(manyCandidates(1, 5))
	if more := acc.add(nil); more {
		t.Error("本页无结果行时应停止翻页")
	}

	got := acc.results()
	if len(got) != 5 {
		t.Errorf("结果数量 = %d, want 5 (不足上限时全部返回)", len(got))
	}
}

func TestResultAccumulator_解析结果直通(t *testing.T) {
	// 23行固定页面经解析器产出后按上限截取,覆盖解析到累加的完整链路
	rows := make([]string, 0, 23)
	for i := 1; i <= 23; i++ {
		rows = append(rows, buildResultRow(
			fmt.Sprintf("论文%d", i),
			fmt.Sprintf("/kcms2/article/abstract?v=%d", i),
			"经济研究", "作者",
		))
	}
	parsed := ParseResults(ResultsPage{
		HTML:    buildResultsHTML(rows...),
		PageNum: 1,
		BaseURL: "https://kns.cnki.net/",
	})
	if len(parsed) != 23 {
		t.Fatalf("解析行数 = %d, want 23", len(parsed))
	}

	acc := newResultAccumulator(10)
	acc.add(parsed)

	got := acc.results()
	if len(got) != 10 {
		t.Fatalf("结果数量 = %d, want 10", len(got))
	}
	for i, p := range got {
		want := fmt.Sprintf("论文%d", i+1)
		if p.Title != want {
			t.Errorf("第%d条 = %q, want %q", i+1, p.Title, want)
		}
	}
}
