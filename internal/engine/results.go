package engine

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/NoFixedPoint/cnki-mcp/internal/models"
	"github.com/NoFixedPoint/cnki-mcp/internal/utils"
)

// ResultsPage 一页已渲染的检索结果快照
// 导航器在结果容器出现后截取页面HTML,解析与浏览器驱动由此解耦
type ResultsPage struct {
	HTML    string // 渲染后的页面HTML
	PageNum int    // 页码(从1开始)
	BaseURL string // 解析相对链接的基准URL
}

// resultRowSelector 结果列表行选择器
const resultRowSelector = "table.result-table-list tbody tr"

// fieldRule 逻辑字段 -> 选择器提取规则
// 每条规则的候选选择器按顺序尝试,全部落空时字段留空,不中断整行解析
type fieldRule struct {
	Name      string   // 逻辑字段名
	Selectors []string // 候选选择器,按优先级排列
}

// summaryFieldRules 结果行的字段提取规则
// CNKI不同文献类型(期刊/会议/学位论文)的行结构略有差异,靠候选选择器兜底
var summaryFieldRules = map[string]fieldRule{
	"source":   {Name: "source", Selectors: []string{"td.source a", "td.source"}},
	"date":     {Name: "date", Selectors: []string{"td.date"}},
	"cited":    {Name: "cited", Selectors: []string{"td.quote a", "td.quote"}},
	"download": {Name: "download", Selectors: []string{"td.download a", "td.download"}},
}

// ParseResults 将一页结果快照解析为论文摘要记录列表
// 每行独立提取,缺少标题或URL的行直接跳过,不影响其余行;
// 页面合法但无结果时返回空列表而非错误
func ParseResults(page ResultsPage) []models.PaperSummary {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		utils.Warnf("解析结果页HTML失败(第%d页): %v", page.PageNum, err)
		return nil
	}

	base, _ := url.Parse(page.BaseURL)

	papers := make([]models.PaperSummary, 0)
	doc.Find(resultRowSelector).Each(func(i int, row *goquery.Selection) {
		paper, ok := parseResultRow(row, base)
		if !ok {
			utils.Debugf("跳过缺少标题或URL的结果行(第%d页第%d行)", page.PageNum, i+1)
			return
		}
		papers = append(papers, paper)
	})

	return papers
}

// parseResultRow 解析单个结果行
// ok为false表示该行缺少必需字段(标题或URL),应被跳过
func parseResultRow(row *goquery.Selection, base *url.URL) (models.PaperSummary, bool) {
	titleLink := row.Find("a.fz14").First()
	title := strings.TrimSpace(titleLink.Text())
	href, _ := titleLink.Attr("href")
	href = strings.TrimSpace(href)
	if title == "" || href == "" {
		return models.PaperSummary{}, false
	}

	return models.PaperSummary{
		Title:         title,
		Authors:       extractTexts(row, "td.author a"),
		Source:        extractField(row, summaryFieldRules["source"]),
		URL:           resolveURL(base, href),
		PublishDate:   extractField(row, summaryFieldRules["date"]),
		CitedCount:    extractField(row, summaryFieldRules["cited"]),
		DownloadCount: extractField(row, summaryFieldRules["download"]),
	}, true
}

// extractField 按规则提取单值字段,候选选择器依次尝试
func extractField(s *goquery.Selection, rule fieldRule) string {
	for _, sel := range rule.Selectors {
		if text := strings.TrimSpace(s.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// extractTexts 提取选择器匹配的全部非空文本,保持显示顺序
func extractTexts(s *goquery.Selection, selector string) []string {
	texts := make([]string, 0)
	s.Find(selector).Each(func(_ int, el *goquery.Selection) {
		if text := strings.TrimSpace(el.Text()); text != "" {
			texts = append(texts, text)
		}
	})
	return texts
}

// resolveURL 将相对链接解析为绝对地址
func resolveURL(base *url.URL, href string) string {
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
