package browser

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/NoFixedPoint/cnki-mcp/internal/core"
)

// Monitor 系统资源监控器
// 职责: 根据可用内存和CPU负载计算允许同时打开的标签页上限
type Monitor struct {
	config core.BrowserConfig

	// 系统总内存(字节)
	totalMemory uint64

	// 缓存的计算结果(每秒更新一次)
	cachedMaxPages int
	lastCacheTime  time.Time
	cacheMu        sync.RWMutex
}

// NewMonitor 创建资源监控器实例
func NewMonitor(config core.BrowserConfig) *Monitor {
	vmStat, err := mem.VirtualMemory()
	var totalMem uint64
	if err != nil {
		log.Warn().Err(err).Msg("获取系统内存失败,使用默认值")
		totalMem = 4 * 1024 * 1024 * 1024 // 默认4GB
	} else {
		totalMem = vmStat.Total
		log.Debug().Msgf("系统总内存: %.2f GB", float64(totalMem)/(1024*1024*1024))
	}

	return &Monitor{
		config:      config,
		totalMemory: totalMem,
	}
}

// MaxPages 动态计算当前允许的最大标签页数
// 基于可用内存与CPU核心数取最小值,并受配置的绝对上限约束,至少为1
func (m *Monitor) MaxPages() int {
	m.cacheMu.RLock()
	if time.Since(m.lastCacheTime) < time.Second && m.cachedMaxPages > 0 {
		cached := m.cachedMaxPages
		m.cacheMu.RUnlock()
		return cached
	}
	m.cacheMu.RUnlock()

	reserve := int64(m.config.ReserveMemoryMB) * 1024 * 1024
	perPage := int64(m.config.PageMemoryMB) * 1024 * 1024
	if perPage <= 0 {
		perPage = 100 * 1024 * 1024
	}

	available := m.availableMemory() - reserve

	maxByMemory := 1
	if available > perPage {
		maxByMemory = int(available / perPage)
	}

	result := maxByMemory
	if cpus := runtime.NumCPU(); cpus < result {
		result = cpus
	}
	if m.config.MaxPages > 0 && m.config.MaxPages < result {
		result = m.config.MaxPages
	}
	if result < 1 {
		result = 1
	}

	m.cacheMu.Lock()
	m.cachedMaxPages = result
	m.lastCacheTime = time.Now()
	m.cacheMu.Unlock()

	return result
}

// CheckAvailability 检查当前资源是否允许打开新标签页
// 返回canOpen(是否允许)和reason(不允许时的原因)
func (m *Monitor) CheckAvailability() (canOpen bool, reason string) {
	reserve := int64(m.config.ReserveMemoryMB) * 1024 * 1024
	available := m.availableMemory() - reserve

	perPage := int64(m.config.PageMemoryMB) * 1024 * 1024
	if available < perPage {
		availableMB := available / (1024 * 1024)
		return false, fmt.Sprintf("内存不足(当前%dMB)", availableMB)
	}

	// 阈值 >= 200 视为禁用CPU检查
	if m.config.CPULoadLimit > 0 && m.config.CPULoadLimit < 200 {
		percentages, err := cpu.Percent(100*time.Millisecond, false)
		if err == nil && len(percentages) > 0 && percentages[0] > float64(m.config.CPULoadLimit) {
			return false, fmt.Sprintf("CPU负载过高(当前%.1f%%)", percentages[0])
		}
	}

	return true, ""
}

// availableMemory 当前可用内存(字节)
func (m *Monitor) availableMemory() int64 {
	vmStat, err := mem.VirtualMemory()
	if err != nil {
		// 取不到系统数据时退回runtime统计
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)
		return int64(m.totalMemory) - int64(memStats.Alloc)
	}
	return int64(vmStat.Available)
}
