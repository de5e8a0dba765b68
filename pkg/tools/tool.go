package tools

import "context"

// Tool 对外暴露的工具接口
// 每个工具声明自己的名称、说明和JSON Schema参数,由宿主按名称分发调用
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any) *ToolResult
}

// ToolResult 工具执行结果
type ToolResult struct {
	ForLLM  string // 给模型消费的内容
	ForUser string // 给终端用户展示的内容
	IsError bool   // 是否为错误结果
	Code    string // 错误码,成功时为空
}

// ErrorResult 构造带错误码的失败结果
func ErrorResult(code, message string) *ToolResult {
	return &ToolResult{
		ForLLM:  message,
		ForUser: message,
		IsError: true,
		Code:    code,
	}
}

// TextResult 构造成功结果
func TextResult(text string) *ToolResult {
	return &ToolResult{
		ForLLM:  text,
		ForUser: text,
	}
}

// Registry 工具注册表
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register 注册工具,重名时覆盖旧实现
func (r *Registry) Register(t Tool) {
	if _, ok := r.tools[t.Name()]; !ok {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Get 按名称查找工具
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// List 按注册顺序返回全部工具
func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}
