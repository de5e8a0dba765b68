package engine

import "errors"

// 错误类型定义
// 引擎对外只暴露这组错误,底层浏览器驱动的错误在组件边界被包装,不会泄漏
var (
	ErrSearchTimeout = errors.New("检索结果等待超时")
	ErrPageNotFound  = errors.New("论文详情页无法访问")
	ErrInvalidURL    = errors.New("无效的CNKI论文URL")
	ErrInvalidInput  = errors.New("输入参数无效")
	ErrNoCandidates  = errors.New("候选列表为空")
)
