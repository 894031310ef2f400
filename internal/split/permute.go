package split

import "math/rand"

// Source: 置换所需的最小随机源。*rand.Rand 满足该接口。
type Source interface {
	Intn(n int) int
}

// NewSource 以 seed 构造确定性随机源。不使用全局随机状态。
func NewSource(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// Permute 返回 [0, n) 的确定性置换（Fisher–Yates，自尾向头）：
// 从恒等序列开始，i 从 n-1 递减到 1，取 j = src.Intn(i+1) 并交换 p[i]、p[j]。
// 相同 (n, src 状态) 得到相同结果。
func Permute(src Source, n int) []int {
	if n <= 0 {
		return []int{}
	}
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := src.Intn(i + 1)
		p[i], p[j] = p[j], p[i]
	}
	return p
}
