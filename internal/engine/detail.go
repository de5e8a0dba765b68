package engine

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/NoFixedPoint/cnki-mcp/internal/models"
	"github.com/NoFixedPoint/cnki-mcp/internal/utils"
)

// detailContainerSelector 详情页主容器,导航器以它判断页面是否渲染完成
const detailContainerSelector = "div.wx-tit"

// detailFieldRules 详情页的字段提取规则
// 每个字段独立提取,单个字段落空只导致该字段为空,不影响其他字段
var detailFieldRules = map[string]fieldRule{
	"title":       {Name: "title", Selectors: []string{"div.wx-tit h1", "h1"}},
	"title_en":    {Name: "title_en", Selectors: []string{"div.wx-tit h2"}},
	"abstract":    {Name: "abstract", Selectors: []string{"#ChDivSummary"}},
	"abstract_en": {Name: "abstract_en", Selectors: []string{"#EnChDivSummary"}},
	"source":      {Name: "source", Selectors: []string{`div.top-tip a[href*="navi.cnki.net"]`, "div.top-tip a"}},
	"cited":       {Name: "cited", Selectors: []string{"#refs a", "div.total-inform em"}},
	"download":    {Name: "download", Selectors: []string{"#DownLoadParts a"}},
}

// ParseDetail 将详情页HTML快照解析为论文详情记录
// 缺失的字段保持零值,不视为错误
func ParseDetail(html string, pageURL string) (*models.PaperDetail, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	root := doc.Selection
	detail := &models.PaperDetail{
		URL:          pageURL,
		Title:        extractField(root, detailFieldRules["title"]),
		TitleEN:      extractField(root, detailFieldRules["title_en"]),
		Authors:      extractTexts(root, "h3.author span a"),
		Institutions: extractTexts(root, "h3.orgn span a"),
		Abstract:     extractField(root, detailFieldRules["abstract"]),
		AbstractEN:   extractField(root, detailFieldRules["abstract_en"]),
		Keywords:     extractKeywords(root),
	}

	// 作者行偶见无链接的纯文本结构
	if len(detail.Authors) == 0 {
		detail.Authors = extractTexts(root, "h3.author a")
	}

	detail.Source = strings.TrimRight(extractField(root, detailFieldRules["source"]), " .")

	// top-tip里有一个形如 "2023,44(05):12-30" 的span,拆出年/卷/期/页码
	parsePublicationInfo(findPublicationInfo(root), detail)

	detail.DOI = extractLabeledValue(root, "DOI")
	detail.Fund = firstNonEmpty(
		extractLabeledValue(root, "基金"),
		strings.TrimSpace(root.Find("p.funds span").First().Text()),
	)
	detail.Classification = extractLabeledValue(root, "分类号")

	detail.CitationCount = parseCount(extractField(root, detailFieldRules["cited"]))
	detail.DownloadCount = parseCount(extractField(root, detailFieldRules["download"]))

	if detail.Title == "" {
		utils.Debugf("详情页标题为空: %s", pageURL)
	}

	return detail, nil
}

// extractKeywords 提取关键词列表,去掉CNKI附带的分号尾缀
func extractKeywords(s *goquery.Selection) []string {
	keywords := make([]string, 0)
	s.Find("p.keywords a").Each(func(_ int, el *goquery.Selection) {
		kw := strings.TrimSpace(el.Text())
		kw = strings.TrimRight(kw, ";；")
		kw = strings.TrimSpace(kw)
		if kw != "" {
			keywords = append(keywords, kw)
		}
	})
	return keywords
}

// extractLabeledValue 提取"标签: 值"式列表项的值
// CNKI详情页的DOI/基金/分类号等字段以<li>内先标签后值的结构呈现
func extractLabeledValue(s *goquery.Selection, label string) string {
	var value string
	s.Find("li").EachWithBreak(func(_ int, li *goquery.Selection) bool {
		text := li.Text()
		if !strings.Contains(text, label) {
			return true
		}
		// 值通常在最后一个<p>里;没有<p>时退回去掉标签前缀的整行文本
		if p := li.Find("p").Last(); p.Length() > 0 && !strings.Contains(strings.TrimSpace(p.Text()), label) {
			value = strings.TrimSpace(p.Text())
		} else {
			line := strings.TrimSpace(text)
			if idx := strings.IndexAny(line, ":："); idx >= 0 {
				_, size := utf8.DecodeRuneInString(line[idx:])
				value = strings.TrimSpace(line[idx+size:])
			}
		}
		return value == ""
	})
	return value
}

// findPublicationInfo 在top-tip的span中定位出版信息串
// 期刊名链接也可能被span包裹,按"数字开头且含逗号"筛选目标span
func findPublicationInfo(s *goquery.Selection) string {
	var info string
	s.Find("div.top-tip span").EachWithBreak(func(_ int, span *goquery.Selection) bool {
		text := strings.TrimSpace(span.Text())
		if text == "" || !strings.Contains(text, ",") {
			return true
		}
		r, _ := utf8.DecodeRuneInString(text)
		if r < '0' || r > '9' {
			return true
		}
		info = text
		return false
	})
	return info
}

// parsePublicationInfo 解析出版信息串,如 "2023,44(05):12-30"
func parsePublicationInfo(info string, detail *models.PaperDetail) {
	if info == "" || !strings.Contains(info, ",") {
		return
	}
	parts := strings.SplitN(info, ",", 2)
	detail.Year = strings.TrimSpace(parts[0])
	if len(parts) < 2 {
		return
	}
	rest := parts[1]
	if open := strings.Index(rest, "("); open >= 0 {
		detail.Volume = strings.TrimSpace(rest[:open])
		if close := strings.Index(rest, ")"); close > open {
			detail.Issue = strings.TrimSpace(rest[open+1 : close])
		}
	}
	if colon := strings.LastIndexAny(rest, ":："); colon >= 0 {
		_, size := utf8.DecodeRuneInString(rest[colon:])
		detail.Pages = strings.TrimSpace(rest[colon+size:])
	}
}

// parseCount 将计数文本转为非负整数,混有非数字字符时只保留数字
func parseCount(text string) int {
	var digits strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// firstNonEmpty 返回第一个非空字符串
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
