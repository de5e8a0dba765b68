package models

import (
	"testing"
)

func TestValidateCNKIURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"有效的HTTPS详情页URL", "https://kns.cnki.net/kcms2/article/abstract?v=abc123", false},
		{"有效的HTTP URL", "http://www.cnki.net/some/path", false},
		{"导航站URL", "https://navi.cnki.net/knavi/journals/JJYJ/detail", false},
		{"无效的协议", "ftp://kns.cnki.net/file", true},
		{"非CNKI域名", "https://example.com/paper/123", true},
		{"缺少主机名", "https:///path/only", true},
		{"无协议", "kns.cnki.net/kcms2/article", true},
		{"空URL", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCNKIURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCNKIURL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSearchQuery_Validate(t *testing.T) {
	tests := []struct {
		name    string
		query   SearchQuery
		wantErr bool
	}{
		{"有效请求", SearchQuery{Keyword: "深度学习"}, false},
		{"带期刊和排序", SearchQuery{Keyword: "宏观经济", Journal: "经济研究", Sort: "被引", Limit: 50}, false},
		{"空关键词", SearchQuery{Keyword: ""}, true},
		{"纯空白关键词", SearchQuery{Keyword: "   "}, true},
		{"负数上限", SearchQuery{Keyword: "机器学习", Limit: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResolveSearchType(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"空值回退主题", "", "主题"},
		{"中文类型原样返回", "篇名", "篇名"},
		{"英文别名subject", "subject", "主题"},
		{"英文别名author", "author", "作者"},
		{"英文别名大小写不敏感", "KEYWORD", "关键词"},
		{"带空白的别名", "  title  ", "篇名"},
		{"未知类型回退主题", "不存在的类型", "主题"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveSearchType(tt.input); got != tt.want {
				t.Errorf("ResolveSearchType(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestResolveSortType(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"空值回退相关度", "", "相关度"},
		{"中文排序原样返回", "发表时间", "发表时间"},
		{"英文别名date", "date", "发表时间"},
		{"英文别名cited", "cited", "被引"},
		{"英文别名download", "download", "下载"},
		{"未知排序回退相关度", "随机排序", "相关度"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveSortType(tt.input); got != tt.want {
				t.Errorf("ResolveSortType(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsKnownSearchType(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"中文类型", "主题", true},
		{"英文别名", "fulltext", true},
		{"未知类型", "胡乱输入", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsKnownSearchType(tt.input); got != tt.want {
				t.Errorf("IsKnownSearchType(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsKnownSortType(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"中文排序", "被引", true},
		{"英文别名", "relevance", true},
		{"未知排序", "something", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsKnownSortType(tt.input); got != tt.want {
				t.Errorf("IsKnownSortType(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestMatchResult_ToJSON(t *testing.T) {
	result := &MatchResult{
		Best: PaperSummary{
			Title: "测试论文",
			URL:   "https://kns.cnki.net/kcms2/article/abstract?v=1",
		},
		Score: 0.95,
		Alternatives: []ScoredCandidate{
			{Paper: PaperSummary{Title: "测试论文"}, Score: 0.95},
		},
	}

	data, err := result.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	if len(data) == 0 {
		t.Error("JSON数据不应为空")
	}
}
