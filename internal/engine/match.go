package engine

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/NoFixedPoint/cnki-mcp/internal/models"
)

// SimilarityFunc 标题相似度策略
// 输入为已归一化的标题,返回[0,1]区间的评分,1表示完全一致
// 作为可替换的函数值注入,便于更换度量方式
type SimilarityFunc func(a, b string) float64

// NormalizedLevenshtein 归一化编辑距离相似度
// score = 1 - 编辑距离/较长串的字符数,按Unicode字符而非字节计算
func NormalizedLevenshtein(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	score := 1.0 - float64(dist)/float64(maxLen)
	if score < 0 {
		return 0
	}
	return score
}

// NormalizeTitle 标题归一化: 小写化并剔除空白、标点和符号字符
// 中英文标题混排时标点差异(全角/半角)不应影响匹配
func NormalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// BestMatch 在候选记录中找出与目标标题最相似的一条
// 同分时保持候选的原始顺序(CNKI自身的相关度排序作为决胜信号);
// 候选为空返回ErrNoCandidates,目标标题为空返回ErrInvalidInput
func BestMatch(targetTitle string, candidates []models.PaperSummary, sim SimilarityFunc) (*models.MatchResult, error) {
	if strings.TrimSpace(targetTitle) == "" {
		return nil, fmt.Errorf("%w: 目标标题不能为空", ErrInvalidInput)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: 请先执行检索获取候选", ErrNoCandidates)
	}
	if sim == nil {
		sim = NormalizedLevenshtein
	}

	target := NormalizeTitle(targetTitle)

	scored := make([]models.ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, models.ScoredCandidate{
			Paper: c,
			Score: sim(target, NormalizeTitle(c.Title)),
		})
	}

	// 稳定排序: 同分候选保持原始相对顺序
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	return &models.MatchResult{
		Best:         scored[0].Paper,
		Score:        scored[0].Score,
		Alternatives: scored,
	}, nil
}
