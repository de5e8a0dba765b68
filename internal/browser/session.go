package browser

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"

	"github.com/NoFixedPoint/cnki-mcp/internal/core"
	"github.com/NoFixedPoint/cnki-mcp/internal/utils"
)

// 错误类型定义
var (
	ErrBrowserUnavailable = errors.New("浏览器启动失败")
	ErrSessionClosed      = errors.New("浏览器会话已关闭")
)

// userAgents 随机轮换的User-Agent池
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/535.19 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/535.11 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36",
}

// stealthScript 在每个新文档注入,隐藏navigator.webdriver标记
const stealthScript = `Object.defineProperty(navigator, 'webdriver', { get: () => undefined });`

// SessionManager 浏览器会话管理器
// 职责: 惰性启动并持有进程级唯一的浏览器实例,按需发放独立标签页,
// 空闲超时后回收浏览器,会话失效时在下次获取时重建
type SessionManager struct {
	config  core.BrowserConfig
	monitor *Monitor

	// 并发标签页配额
	slots chan struct{}

	mu        sync.Mutex
	browser   *rod.Browser
	launcher  *launcher.Launcher
	sessionID string
	lastUsed  time.Time
}

// NewSessionManager 创建会话管理器(不启动浏览器)
func NewSessionManager(config core.BrowserConfig) *SessionManager {
	monitor := NewMonitor(config)
	return &SessionManager{
		config:  config,
		monitor: monitor,
		slots:   make(chan struct{}, config.MaxPages),
	}
}

// ScopedPage 作用域标签页
// 一次操作独占一个标签页,Close保证在所有退出路径上释放
type ScopedPage struct {
	page *rod.Page
	mgr  *SessionManager
	once sync.Once
}

// Page 返回底层rod页面
func (sp *ScopedPage) Page() *rod.Page {
	return sp.page
}

// Close 关闭标签页并归还配额,可安全重复调用
func (sp *ScopedPage) Close() {
	sp.once.Do(func() {
		if err := sp.page.Close(); err != nil {
			utils.Warnf("关闭标签页失败: %v", err)
		}
		<-sp.mgr.slots
	})
}

// AcquirePage 获取一个独立的作用域标签页
// 浏览器未启动或已空闲回收时惰性启动;会话失效时返回ErrSessionClosed,
// 下次调用会重建会话(不在本次调用内自动重试)
func (m *SessionManager) AcquirePage(ctx context.Context) (*ScopedPage, error) {
	// 先占用标签页配额,避免无限制开页
	select {
	case m.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	page, err := m.newPage(ctx)
	if err != nil {
		<-m.slots
		return nil, err
	}

	return &ScopedPage{page: page, mgr: m}, nil
}

// WithPage 在独立标签页中执行fn,无论成功、出错还是panic都释放标签页
func (m *SessionManager) WithPage(ctx context.Context, fn func(page *rod.Page) error) error {
	sp, err := m.AcquirePage(ctx)
	if err != nil {
		return err
	}
	defer sp.Close()
	return fn(sp.Page())
}

// newPage 从浏览器创建新标签页,必要时启动/重建浏览器
func (m *SessionManager) newPage(ctx context.Context) (*rod.Page, error) {
	browser, err := m.ensureBrowser()
	if err != nil {
		return nil, err
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		// 创建失败说明浏览器进程已死,标记会话失效
		m.invalidate(browser)
		return nil, fmt.Errorf("%w: 创建标签页失败: %v", ErrSessionClosed, err)
	}
	page = page.Context(ctx)

	// 随机User-Agent + 隐藏自动化特征
	ua := userAgents[rand.Intn(len(userAgents))]
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
		utils.Warnf("设置User-Agent失败: %v", err)
	}
	if _, err := page.EvalOnNewDocument(stealthScript); err != nil {
		utils.Warnf("注入stealth脚本失败: %v", err)
	}

	return page, nil
}

// ensureBrowser 返回可用的浏览器实例,按需启动
func (m *SessionManager) ensureBrowser() (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if m.browser != nil {
		if idle := m.config.IdleTimeoutDuration(); idle > 0 && now.Sub(m.lastUsed) > idle {
			utils.Infof("浏览器空闲超过%v,回收实例", idle)
			m.closeLocked()
		} else if !m.isAlive() {
			utils.Warn("浏览器连接已断开,下次获取时重建")
			m.browser = nil
			m.launcher = nil
		}
	}

	if m.browser == nil {
		if canOpen, reason := m.monitor.CheckAvailability(); !canOpen {
			utils.Warnf("资源紧张,仍尝试启动浏览器: %s", reason)
		}
		if err := m.launchLocked(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBrowserUnavailable, err)
		}
	}

	m.lastUsed = now
	return m.browser, nil
}

// launchLocked 启动浏览器,调用方必须持有m.mu
func (m *SessionManager) launchLocked() error {
	l := launcher.New().
		Headless(m.config.Headless).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-infobars").
		Set("disable-extensions").
		Set("disable-gpu")

	if m.config.BinPath != "" {
		l = l.Bin(m.config.BinPath)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("启动浏览器失败: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return fmt.Errorf("连接浏览器失败: %w", err)
	}

	m.browser = b
	m.launcher = l
	m.sessionID = uuid.New().String()
	utils.Infof("浏览器已启动: session=%s headless=%v", m.sessionID, m.config.Headless)
	return nil
}

// isAlive 检查浏览器连接是否存活,调用方必须持有m.mu
func (m *SessionManager) isAlive() bool {
	if m.browser == nil {
		return false
	}
	_, err := m.browser.Version()
	return err == nil
}

// invalidate 标记指定浏览器实例失效,下次获取时重建
// 仅当当前实例仍是失效实例时清空,避免并发下误杀新会话
func (m *SessionManager) invalidate(dead *rod.Browser) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.browser == dead {
		m.closeLocked()
	}
}

// Shutdown 终止浏览器进程,幂等,可安全重复调用
// 关闭后管理器仍可用: 下次AcquirePage会启动新会话
func (m *SessionManager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()
}

// closeLocked 关闭浏览器并清理launcher,调用方必须持有m.mu
func (m *SessionManager) closeLocked() {
	if m.browser == nil {
		return
	}
	if err := m.browser.Close(); err != nil {
		utils.Warnf("关闭浏览器失败: %v", err)
	}
	if m.launcher != nil {
		m.launcher.Kill()
		m.launcher = nil
	}
	utils.Debugf("浏览器已关闭: session=%s", m.sessionID)
	m.browser = nil
}

// MaxPages 当前允许的并发标签页上限(受资源监控约束)
func (m *SessionManager) MaxPages() int {
	return m.monitor.MaxPages()
}
