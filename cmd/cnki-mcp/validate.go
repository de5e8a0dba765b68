package main

import (
	"fmt"
	"strings"

	"github.com/NoFixedPoint/cnki-mcp/internal/models"
)

// ValidateSearchFlags 验证检索子命令的标志
func ValidateSearchFlags(keyword, searchType, sortType string, limit int) error {
	if strings.TrimSpace(keyword) == "" {
		return fmt.Errorf("检索关键词不能为空")
	}

	if searchType != "" && !models.IsKnownSearchType(searchType) {
		return fmt.Errorf("无效的检索类型: %s (有效值: %s)",
			searchType, strings.Join(models.KnownSearchTypes(), "|"))
	}

	if sortType != "" && !models.IsKnownSortType(sortType) {
		return fmt.Errorf("无效的排序方式: %s (有效值: %s)",
			sortType, strings.Join(models.KnownSortTypes(), "|"))
	}

	if limit < 0 || limit > 200 {
		return fmt.Errorf("结果数量上限必须在0-200之间,当前值: %d", limit)
	}

	return nil
}
