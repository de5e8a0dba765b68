package models

import "strings"

// CNKI检索字段与排序的代码映射
// 字段代码来自检索页下拉框的value属性,排序代码来自结果页排序控件的元素ID

// SearchTypes 检索类型 -> 字段代码
var SearchTypes = map[string]string{
	"主题": "SU", "篇关摘": "TKA", "关键词": "KY", "篇名": "TI",
	"全文": "FT", "作者": "AU", "第一作者": "FI", "通讯作者": "RP",
	"作者单位": "AF", "基金": "FU", "摘要": "AB", "参考文献": "RF",
	"分类号": "CLC", "文献来源": "LY", "DOI": "DOI",
}

// SearchTypeValues 检索类型 -> 首页下拉框option的value
var SearchTypeValues = map[string]string{
	"主题": "SU$%=|", "篇关摘": "TKA$%=|", "关键词": "KY$=|",
	"篇名": "TI$%=|", "全文": "FT$%=|", "作者": "AU$=|",
	"第一作者": "FI$=|", "通讯作者": "RP$%=|", "作者单位": "AF$%",
	"基金": "FU$%|", "摘要": "AB$%=|", "参考文献": "RF$%=|",
	"分类号": "CLC$=|??", "文献来源": "LY$%=|", "DOI": "DOI$=|?",
}

// SearchTypeAliases 英文别名 -> 检索类型
var SearchTypeAliases = map[string]string{
	"subject": "主题", "theme": "主题", "keyword": "关键词",
	"keywords": "关键词", "title": "篇名", "author": "作者",
	"first_author": "第一作者", "corresponding_author": "通讯作者",
	"affiliation": "作者单位", "institution": "作者单位",
	"fund": "基金", "abstract": "摘要", "fulltext": "全文",
	"reference": "参考文献", "source": "文献来源", "doi": "DOI",
}

// SortTypes 排序方式 -> 结果页排序控件元素ID
var SortTypes = map[string]string{
	"相关度": "FFD", "发表时间": "PT", "被引": "CF",
	"下载": "DFR", "综合": "ZH",
}

// SortTypeAliases 英文别名 -> 排序方式
var SortTypeAliases = map[string]string{
	"relevance": "相关度", "date": "发表时间", "publish_time": "发表时间",
	"time": "发表时间", "cited": "被引", "citation": "被引",
	"citations": "被引", "download": "下载", "downloads": "下载",
	"composite": "综合", "general": "综合",
}

// ProfessionalSearchFields 专业检索表达式支持的字段 -> 字段代码
var ProfessionalSearchFields = map[string]string{
	"主题": "SU", "关键词": "KY", "篇名": "TI", "全文": "FT",
	"作者": "AU", "第一作者": "FI", "通讯作者": "RP",
	"作者单位": "AF", "摘要": "AB", "DOI": "DOI",
}

// ResolveSearchType 解析检索类型,支持英文别名,未知值回退到主题检索
func ResolveSearchType(searchType string) string {
	if searchType == "" {
		return "主题"
	}
	s := strings.ToLower(strings.TrimSpace(searchType))
	if zh, ok := SearchTypeAliases[s]; ok {
		return zh
	}
	if _, ok := SearchTypes[searchType]; ok {
		return searchType
	}
	return "主题"
}

// IsKnownSearchType 判断是否为可识别的检索类型(含英文别名)
func IsKnownSearchType(searchType string) bool {
	if _, ok := SearchTypes[searchType]; ok {
		return true
	}
	_, ok := SearchTypeAliases[strings.ToLower(strings.TrimSpace(searchType))]
	return ok
}

// KnownSearchTypes 返回全部中文检索类型,用于帮助信息
func KnownSearchTypes() []string {
	return []string{"主题", "篇关摘", "关键词", "篇名", "全文", "作者",
		"第一作者", "通讯作者", "作者单位", "基金", "摘要", "参考文献",
		"分类号", "文献来源", "DOI"}
}

// IsKnownSortType 判断是否为可识别的排序方式(含英文别名)
func IsKnownSortType(sortType string) bool {
	if _, ok := SortTypes[sortType]; ok {
		return true
	}
	_, ok := SortTypeAliases[strings.ToLower(strings.TrimSpace(sortType))]
	return ok
}

// KnownSortTypes 返回全部中文排序方式,用于帮助信息
func KnownSortTypes() []string {
	return []string{"相关度", "发表时间", "被引", "下载", "综合"}
}

// ResolveSortType 解析排序方式,支持英文别名,未知值回退到相关度
func ResolveSortType(sortType string) string {
	if sortType == "" {
		return "相关度"
	}
	s := strings.ToLower(strings.TrimSpace(sortType))
	if zh, ok := SortTypeAliases[s]; ok {
		return zh
	}
	if _, ok := SortTypes[sortType]; ok {
		return sortType
	}
	return "相关度"
}
