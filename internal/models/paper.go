package models

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// SearchQuery 检索请求
type SearchQuery struct {
	Keyword    string `json:"keyword"`               // 检索关键词(必填)
	Journal    string `json:"journal,omitempty"`     // 限定期刊名称,设置后使用专业检索
	SearchType string `json:"search_type,omitempty"` // 检索类型(主题/关键词/篇名/作者/DOI等,支持英文别名)
	Sort       string `json:"sort,omitempty"`        // 排序方式(相关度/发表时间/被引/下载/综合)
	Limit      int    `json:"limit,omitempty"`       // 结果数量上限(0表示默认值)
}

// Validate 验证检索请求
func (q *SearchQuery) Validate() error {
	if strings.TrimSpace(q.Keyword) == "" {
		return fmt.Errorf("检索关键词不能为空")
	}
	if q.Limit < 0 {
		return fmt.Errorf("结果数量上限不能为负数: %d", q.Limit)
	}
	return nil
}

// PaperSummary 检索结果中的论文摘要记录
// 由结果解析器产生,url为唯一标识
type PaperSummary struct {
	Title         string   `json:"title"`                    // 论文标题
	Authors       []string `json:"authors"`                  // 作者(按显示顺序)
	Source        string   `json:"source"`                   // 来源期刊/会议名称
	URL           string   `json:"url"`                      // 论文详情页URL(绝对地址)
	PublishDate   string   `json:"publish_date,omitempty"`   // 发表日期
	CitedCount    string   `json:"cited_count,omitempty"`    // 被引次数
	DownloadCount string   `json:"download_count,omitempty"` // 下载次数
}

// PaperDetail 论文详情页的完整元数据
// 由详情解析器产生,缺失字段保持零值
type PaperDetail struct {
	URL            string   `json:"url"`                      // 详情页URL
	Title          string   `json:"title"`                    // 中文标题
	TitleEN        string   `json:"title_en,omitempty"`       // 英文标题
	Authors        []string `json:"authors"`                  // 作者
	Institutions   []string `json:"institutions,omitempty"`   // 作者单位
	Abstract       string   `json:"abstract,omitempty"`       // 中文摘要
	AbstractEN     string   `json:"abstract_en,omitempty"`    // 英文摘要
	Keywords       []string `json:"keywords"`                 // 关键词
	Source         string   `json:"source,omitempty"`         // 来源期刊
	Year           string   `json:"year,omitempty"`           // 年份
	Volume         string   `json:"volume,omitempty"`         // 卷
	Issue          string   `json:"issue,omitempty"`          // 期
	Pages          string   `json:"pages,omitempty"`          // 页码
	DOI            string   `json:"doi,omitempty"`            // DOI
	CitationCount  int      `json:"citation_count"`           // 被引次数
	DownloadCount  int      `json:"download_count"`           // 下载次数
	Fund           string   `json:"fund,omitempty"`           // 基金
	Classification string   `json:"classification,omitempty"` // 分类号
}

// ScoredCandidate 带相似度评分的候选记录
type ScoredCandidate struct {
	Paper PaperSummary `json:"paper"` // 候选论文
	Score float64      `json:"score"` // 相似度评分 [0,1]
}

// MatchResult 标题匹配结果
type MatchResult struct {
	Best         PaperSummary      `json:"best"`         // 最佳匹配
	Score        float64           `json:"score"`        // 最佳匹配的评分
	Alternatives []ScoredCandidate `json:"alternatives"` // 全部候选,按评分降序(同分保持原始顺序)
}

// ToJSON 序列化为JSON
func (m *MatchResult) ToJSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// ValidateCNKIURL 验证是否为格式正确的CNKI论文URL
// 要求http/https协议且主机名属于cnki域
func ValidateCNKIURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("URL格式无效: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL协议必须是http或https")
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL缺少主机名")
	}
	if !strings.Contains(strings.ToLower(parsed.Host), "cnki") {
		return fmt.Errorf("URL必须是CNKI链接: %s", parsed.Host)
	}
	return nil
}
