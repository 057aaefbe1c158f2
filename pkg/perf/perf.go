// Package perf 提供轻量的阶段耗时监控，保留最近 N 次样本用于汇总。
package perf

import (
	"sync"
	"time"
)

const defaultHistory = 100

// Monitor 按指标名记录耗时样本，每个指标只保留最近 maxHistory 条。
type Monitor struct {
	mu         sync.Mutex
	maxHistory int
	samples    map[string][]time.Duration
}

// NewMonitor 创建监控器，maxHistory <= 0 时使用默认值 100。
func NewMonitor(maxHistory int) *Monitor {
	if maxHistory <= 0 {
		maxHistory = defaultHistory
	}
	return &Monitor{
		maxHistory: maxHistory,
		samples:    make(map[string][]time.Duration),
	}
}

// Record 记录一次耗时样本，超出容量后淘汰最老样本。
func (m *Monitor) Record(metric string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := append(m.samples[metric], d)
	if len(s) > m.maxHistory {
		s = s[len(s)-m.maxHistory:]
	}
	m.samples[metric] = s
}

// Track 返回一个结束函数，调用时记录从 Track 到结束的耗时。
// 用法: defer mon.Track("retrieval.search")()
func (m *Monitor) Track(metric string) func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		d := time.Since(start)
		m.Record(metric, d)
		return d
	}
}

// Stats 是单个指标的汇总。
type Stats struct {
	Count int           `json:"count"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Avg   time.Duration `json:"avg"`
	Last  time.Duration `json:"last"`
}

// Summary 返回所有指标的汇总快照。
func (m *Monitor) Summary() map[string]Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Stats, len(m.samples))
	for metric, s := range m.samples {
		if len(s) == 0 {
			continue
		}
		st := Stats{Count: len(s), Min: s[0], Max: s[0], Last: s[len(s)-1]}
		var total time.Duration
		for _, d := range s {
			total += d
			if d < st.Min {
				st.Min = d
			}
			if d > st.Max {
				st.Max = d
			}
		}
		st.Avg = total / time.Duration(len(s))
		out[metric] = st
	}
	return out
}
