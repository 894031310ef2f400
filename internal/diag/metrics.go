package diag

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Count 单个计数项。
type Count struct {
	Key string
	N   int64
}

// Counters 按键累加的并发安全计数器（例如按跳过原因）。nil *Counters 为 no-op。
type Counters struct {
	mu sync.Mutex
	m  map[string]int64
}

// NewCounters 创建空计数器。
func NewCounters() *Counters { return &Counters{m: make(map[string]int64)} }

// Inc 计数 +1。
func (c *Counters) Inc(key string) { c.Add(key, 1) }

// Add 计数 +n。
func (c *Counters) Add(key string, n int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.m[key] += n
	c.mu.Unlock()
}

// Get 返回 key 的当前值。
func (c *Counters) Get(key string) int64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m[key]
}

// Total 返回全部计数之和。
func (c *Counters) Total() int64 {
	var t int64
	for _, e := range c.Snapshot() {
		t += e.N
	}
	return t
}

// Snapshot 按键排序返回全部计数。
func (c *Counters) Snapshot() []Count {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	out := make([]Count, 0, len(c.m))
	for k, v := range c.m {
		out = append(out, Count{Key: k, N: v})
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// CountsField 将计数快照输出为单个 zap 对象字段（key → n）。
func CountsField(name string, counts []Count) zap.Field {
	m := make(map[string]int64, len(counts))
	for _, e := range counts {
		m[e.Key] = e.N
	}
	return zap.Any(name, m)
}
