package engine

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/NoFixedPoint/cnki-mcp/internal/browser"
	"github.com/NoFixedPoint/cnki-mcp/internal/core"
	"github.com/NoFixedPoint/cnki-mcp/internal/models"
	"github.com/NoFixedPoint/cnki-mcp/internal/utils"
)

// 结果页关键元素选择器
const (
	resultContainerSelector = "#gridTable"
	searchInputSelector     = "#txt_SearchText"
	searchButtonSelector    = ".search-btn"
	nextPageSelector        = "#PageNext"
	fieldBoxSelector        = "#DBFieldBox"
	professionalTabSelector = "li.professional-search"
	professionalInput       = "textarea.professional-input, textarea#ExpertValue, textarea.search-input"
	professionalSearchBtn   = "div.professional-search input.btn-search, input.btn-search"
)

// Engine 检索与抽取引擎
// 持有共享的浏览器会话管理器,每次操作独占一个作用域标签页,
// 并发的检索和详情抓取互不阻塞
type Engine struct {
	sessions   *browser.SessionManager
	config     core.SearchConfig
	browserCfg core.BrowserConfig
	sim        SimilarityFunc
}

// New 创建引擎实例
func New(sessions *browser.SessionManager, searchCfg core.SearchConfig, browserCfg core.BrowserConfig) *Engine {
	return &Engine{
		sessions:   sessions,
		config:     searchCfg,
		browserCfg: browserCfg,
		sim:        NormalizedLevenshtein,
	}
}

// SetSimilarity 替换标题相似度策略
func (e *Engine) SetSimilarity(sim SimilarityFunc) {
	if sim != nil {
		e.sim = sim
	}
}

// Search 执行检索并返回论文摘要记录列表
// journal非空时走专业检索(表达式限定期刊),否则走首页简单检索;
// 结果按显示顺序返回,数量受limit约束
func (e *Engine) Search(ctx context.Context, query models.SearchQuery) ([]models.PaperSummary, error) {
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	limit := e.effectiveLimit(query.Limit)

	searchType := models.ResolveSearchType(query.SearchType)
	sortType := models.ResolveSortType(query.Sort)

	utils.Infof("执行检索: keyword=%q journal=%q type=%s sort=%s limit=%d",
		query.Keyword, query.Journal, searchType, sortType, limit)

	var papers []models.PaperSummary
	err := e.sessions.WithPage(ctx, func(page *rod.Page) error {
		var navErr error
		if query.Journal != "" {
			navErr = e.professionalSearch(ctx, page, query.Keyword, searchType, query.Journal)
		} else {
			navErr = e.simpleSearch(ctx, page, query.Keyword, searchType)
		}
		if navErr != nil {
			return navErr
		}

		if sortType != "相关度" {
			e.applySort(ctx, page, sortType)
		}

		collected, collectErr := e.collectResults(ctx, page, limit)
		if collectErr != nil {
			return collectErr
		}
		papers = collected
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.Infof("检索完成: 共%d条记录", len(papers))
	return papers, nil
}

// FetchDetail 抓取论文详情页并解析完整元数据
func (e *Engine) FetchDetail(ctx context.Context, pageURL string) (*models.PaperDetail, error) {
	if err := models.ValidateCNKIURL(pageURL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	utils.Infof("抓取论文详情: %s", truncate(pageURL, 80))

	var detail *models.PaperDetail
	err := e.sessions.WithPage(ctx, func(page *rod.Page) error {
		if err := e.navigate(ctx, page, pageURL); err != nil {
			return fmt.Errorf("%w: 导航失败: %v", ErrPageNotFound, err)
		}
		e.humanDelay()

		// 详情容器未出现视为页面不可访问(404页和反爬拦截页都没有它)
		if _, err := waitElement(ctx, page, detailContainerSelector, e.config.ResultTimeoutDuration()); err != nil {
			return fmt.Errorf("%w: 详情容器未渲染: %v", ErrPageNotFound, err)
		}

		html, err := page.HTML()
		if err != nil {
			return fmt.Errorf("%w: 读取页面HTML失败: %v", ErrPageNotFound, err)
		}

		parsed, err := ParseDetail(html, pageURL)
		if err != nil {
			return fmt.Errorf("%w: 解析详情页失败: %v", ErrPageNotFound, err)
		}
		detail = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}

	return detail, nil
}

// FindBestMatch 检索并返回与目标标题最相似的论文
// keyword为空时直接用目标标题作为检索关键词
func (e *Engine) FindBestMatch(ctx context.Context, targetTitle, keyword string) (*models.MatchResult, error) {
	if targetTitle == "" {
		return nil, fmt.Errorf("%w: 目标标题不能为空", ErrInvalidInput)
	}
	if keyword == "" {
		keyword = targetTitle
	}

	candidates, err := e.Search(ctx, models.SearchQuery{Keyword: keyword})
	if err != nil {
		return nil, err
	}

	return BestMatch(targetTitle, candidates, e.sim)
}

// simpleSearch 通过CNKI首页执行简单检索
func (e *Engine) simpleSearch(ctx context.Context, page *rod.Page, keyword, searchType string) error {
	if err := e.navigate(ctx, page, e.config.BaseURL); err != nil {
		return fmt.Errorf("%w: 打开检索页失败: %v", ErrSearchTimeout, err)
	}
	e.humanDelay()

	// 非默认检索类型需要先切换首页下拉框
	if searchType != "主题" {
		if value, ok := models.SearchTypeValues[searchType]; ok {
			if err := e.selectSearchField(ctx, page, value); err != nil {
				utils.Warnf("切换检索类型失败,回退到主题检索: %v", err)
			}
		}
	}

	input, err := waitElement(ctx, page, searchInputSelector, e.config.ResultTimeoutDuration())
	if err != nil {
		return fmt.Errorf("%w: 检索输入框未出现: %v", ErrSearchTimeout, err)
	}
	if err := e.typeSlowly(input, keyword); err != nil {
		return fmt.Errorf("%w: 输入关键词失败: %v", ErrSearchTimeout, err)
	}

	if err := clickSelector(ctx, page, searchButtonSelector, e.config.ResultTimeoutDuration()); err != nil {
		return fmt.Errorf("%w: 提交检索失败: %v", ErrSearchTimeout, err)
	}
	e.humanDelay()

	return nil
}

// professionalSearch 通过专业检索页执行期刊限定检索
// 表达式形如 (SU='关键词') AND (JN='期刊名')
func (e *Engine) professionalSearch(ctx context.Context, page *rod.Page, keyword, searchType, journal string) error {
	fieldCode, ok := models.ProfessionalSearchFields[searchType]
	if !ok {
		fieldCode = "SU"
	}
	expr := fmt.Sprintf("(%s='%s') AND (JN='%s')", fieldCode, keyword, journal)

	if err := e.navigate(ctx, page, e.config.AdvSearchURL); err != nil {
		return fmt.Errorf("%w: 打开高级检索页失败: %v", ErrSearchTimeout, err)
	}
	e.humanDelay()

	// 切换到专业检索标签,选择器失效时按文案兜底
	if err := clickSelector(ctx, page, professionalTabSelector, 5*time.Second); err != nil {
		tab, tabErr := page.Context(ctx).ElementR("li", "专业检索")
		if tabErr != nil {
			return fmt.Errorf("%w: 找不到专业检索入口: %v", ErrSearchTimeout, tabErr)
		}
		if clickErr := tab.Click(proto.InputMouseButtonLeft, 1); clickErr != nil {
			return fmt.Errorf("%w: 切换专业检索失败: %v", ErrSearchTimeout, clickErr)
		}
	}
	e.shortDelay()

	textarea, err := waitElement(ctx, page, professionalInput, e.config.ResultTimeoutDuration())
	if err != nil {
		return fmt.Errorf("%w: 专业检索输入框未出现: %v", ErrSearchTimeout, err)
	}
	if err := textarea.SelectAllText(); err == nil {
		_ = textarea.Input("")
	}
	if err := textarea.Input(expr); err != nil {
		return fmt.Errorf("%w: 输入检索表达式失败: %v", ErrSearchTimeout, err)
	}
	e.shortDelay()

	if err := clickSelector(ctx, page, professionalSearchBtn, e.config.ResultTimeoutDuration()); err != nil {
		return fmt.Errorf("%w: 提交专业检索失败: %v", ErrSearchTimeout, err)
	}
	e.humanDelay()

	utils.Debugf("专业检索表达式: %s", expr)
	return nil
}

// navigate 在限定时间内完成页面导航与加载
// 导航和load事件等待都受navigate_timeout约束,连接僵死时不会无限阻塞
func (e *Engine) navigate(ctx context.Context, page *rod.Page, url string) error {
	tctx, cancel := context.WithTimeout(ctx, e.navigateTimeout())
	defer cancel()

	p := page.Context(tctx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("导航到%s失败: %w", truncate(url, 80), err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("等待%s加载失败: %w", truncate(url, 80), err)
	}
	return nil
}

// navigateTimeout 导航超时,配置缺省时退回30秒
func (e *Engine) navigateTimeout() time.Duration {
	if d := e.browserCfg.NavigateTimeoutDuration(); d > 0 {
		return d
	}
	return 30 * time.Second
}

// effectiveLimit 解析结果数量上限: 0或未指定取默认值,超出绝对上限时截断
func (e *Engine) effectiveLimit(requested int) int {
	limit := requested
	if limit <= 0 {
		limit = e.config.DefaultLimit
	}
	if limit > e.config.MaxLimit {
		limit = e.config.MaxLimit
	}
	return limit
}

// selectSearchField 在首页下拉框中选择检索字段
func (e *Engine) selectSearchField(ctx context.Context, page *rod.Page, value string) error {
	if err := clickSelector(ctx, page, fieldBoxSelector, 5*time.Second); err != nil {
		return err
	}
	e.shortDelay()
	optionSelector := fmt.Sprintf(`#DBFieldList a[value=%q]`, value)
	if err := clickSelector(ctx, page, optionSelector, 5*time.Second); err != nil {
		return err
	}
	e.shortDelay()
	return nil
}

// applySort 点击结果页排序控件并等待列表刷新
// 排序失败不影响检索主流程,仅记录告警
func (e *Engine) applySort(ctx context.Context, page *rod.Page, sortType string) {
	sortID, ok := models.SortTypes[sortType]
	if !ok {
		return
	}
	if err := clickSelector(ctx, page, "#"+sortID, 10*time.Second); err != nil {
		utils.Warnf("应用排序(%s)失败: %v", sortType, err)
		return
	}
	e.humanDelay()
	if _, err := waitElement(ctx, page, resultContainerSelector, e.config.ResultTimeoutDuration()); err != nil {
		utils.Warnf("等待排序后的结果列表失败: %v", err)
	}
}

// resultAccumulator 跨页累加检索结果并执行数量上限
// 浏览器驱动之外单独成型,翻页停采和截断逻辑不依赖活动页面
type resultAccumulator struct {
	limit  int
	papers []models.PaperSummary
}

func newResultAccumulator(limit int) *resultAccumulator {
	return &resultAccumulator{
		limit:  limit,
		papers: make([]models.PaperSummary, 0, limit),
	}
}

// add 累加一页的解析结果,返回是否还需要继续翻页
// 已达上限或本页无结果行时停止
func (a *resultAccumulator) add(rows []models.PaperSummary) bool {
	a.papers = append(a.papers, rows...)
	return len(a.papers) < a.limit && len(rows) > 0
}

// results 按显示顺序返回累加结果,超出上限的部分被截掉
func (a *resultAccumulator) results() []models.PaperSummary {
	if len(a.papers) > a.limit {
		return a.papers[:a.limit]
	}
	return a.papers
}

// collectResults 收集检索结果,不足limit时翻页续采
// 首页的结果容器在超时内未出现视为检索失败(ErrSearchTimeout);
// 容器出现但没有结果行是合法的"零结果",返回空列表
func (e *Engine) collectResults(ctx context.Context, page *rod.Page, limit int) ([]models.PaperSummary, error) {
	acc := newResultAccumulator(limit)

	for pageNum := 1; ; pageNum++ {
		if _, err := waitElement(ctx, page, resultContainerSelector, e.config.ResultTimeoutDuration()); err != nil {
			if pageNum == 1 {
				return nil, fmt.Errorf("%w: 结果容器未渲染(可能是验证码拦截或网络异常): %v", ErrSearchTimeout, err)
			}
			// 翻页后的刷新失败不作废已采集的结果
			utils.Warnf("第%d页结果等待失败,返回已采集的%d条: %v", pageNum, len(acc.papers), err)
			break
		}

		html, err := page.HTML()
		if err != nil {
			return nil, fmt.Errorf("%w: 读取结果页HTML失败: %v", ErrSearchTimeout, err)
		}

		pageInfo, _ := page.Info()
		baseURL := e.config.BaseURL
		if pageInfo != nil && pageInfo.URL != "" {
			baseURL = pageInfo.URL
		}

		rows := ParseResults(ResultsPage{HTML: html, PageNum: pageNum, BaseURL: baseURL})
		more := acc.add(rows)
		utils.Debugf("第%d页解析出%d条记录,累计%d条", pageNum, len(rows), len(acc.papers))

		if !more {
			break
		}
		if !e.gotoNextPage(page) {
			break
		}
	}

	return acc.results(), nil
}

// gotoNextPage 触发下一页,返回是否成功翻页
func (e *Engine) gotoNextPage(page *rod.Page) bool {
	has, next, err := page.Has(nextPageSelector)
	if err != nil || !has {
		return false
	}
	// 末页的下一页按钮带disabled标记
	if disabled, _ := next.Attribute("disabled"); disabled != nil {
		return false
	}
	if err := next.Click(proto.InputMouseButtonLeft, 1); err != nil {
		utils.Warnf("点击下一页失败: %v", err)
		return false
	}
	e.humanDelay()
	return true
}

// typeSlowly 逐字输入文本,模拟人工输入节奏
func (e *Engine) typeSlowly(el *rod.Element, text string) error {
	if err := el.SelectAllText(); err == nil {
		_ = el.Input("")
	}
	for _, r := range text {
		if err := el.Input(string(r)); err != nil {
			return err
		}
		time.Sleep(e.randDelay(e.config.TypingDelayMin, e.config.TypingDelayMax))
	}
	return nil
}

// humanDelay 页面操作之间的随机停顿
func (e *Engine) humanDelay() {
	time.Sleep(e.randDelay(e.config.HumanDelayMin, e.config.HumanDelayMax))
}

// shortDelay 控件交互之间的短停顿
func (e *Engine) shortDelay() {
	time.Sleep(e.randDelay(e.config.TypingDelayMin*10, e.config.TypingDelayMax*10))
}

// randDelay 生成[min,max]毫秒区间的随机时长
func (e *Engine) randDelay(minMs, maxMs int) time.Duration {
	if maxMs <= minMs {
		return time.Duration(minMs) * time.Millisecond
	}
	return time.Duration(minMs+rand.Intn(maxMs-minMs)) * time.Millisecond
}

// waitElement 带超时地等待元素出现
func waitElement(ctx context.Context, page *rod.Page, selector string, timeout time.Duration) (*rod.Element, error) {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	el, err := page.Context(tctx).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("等待元素%s失败: %w", selector, err)
	}
	return el, nil
}

// clickSelector 等待元素出现并点击
func clickSelector(ctx context.Context, page *rod.Page, selector string, timeout time.Duration) error {
	el, err := waitElement(ctx, page, selector, timeout)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("点击元素%s失败: %w", selector, err)
	}
	return nil
}

// truncate 截断过长的日志字符串
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
