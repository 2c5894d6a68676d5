package sector

import (
	"math/rand"
	"sync"
)

// ProbabilitySource：扇区占位概率来源（无预测结果时使用）
type ProbabilitySource interface {
	Probability(index int) float64
}

// 文档注释：可设定种子的随机占位来源
// 约束：返回 [0,100) 的整数值；内部加锁，可被多个请求并发共享。
type RandomSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandomSource(seed int64) *RandomSource {
	return &RandomSource{rnd: rand.New(rand.NewSource(seed))}
}

func (s *RandomSource) Probability(int) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return float64(s.rnd.Intn(100))
}

// Uniform：所有扇区同权
type Uniform float64

func (u Uniform) Probability(int) float64 { return float64(u) }
