// 包 pings：模拟 ping 的生成、定时过期与事件广播
package pings

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"sentinel-api/internal/borough"
	"sentinel-api/internal/logger"
	"sentinel-api/internal/metrics"

	"github.com/google/uuid"
)

// DefaultTTL：ping 存活时长
const DefaultTTL = 3 * time.Second

// Ping：单个模拟事件点
type Ping struct {
	ID        string    `json:"id"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Origin    string    `json:"origin"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Event：广播给订阅者的 ping 变更
type Event struct {
	Type string `json:"type"` // ping_added | ping_expired
	Ping Ping   `json:"ping"`
}

// Recorder：ping 持久化（可选）
type Recorder interface {
	RecordPing(ctx context.Context, p Ping) error
}

// Publisher：事件出口（websocket hub）
type Publisher interface {
	Publish(ev Event)
}

// 文档注释：ping 模拟器
// 约束：活跃 ping 保存在内存；每个 ping 在 TTL 后自动移除并广播过期事件；随机源加锁共享。
type Simulator struct {
	mu     sync.Mutex
	active map[string]Ping
	timers map[string]*time.Timer
	rnd    *rand.Rand
	bounds borough.Bounds
	ttl    time.Duration
	now    func() time.Time

	rec Recorder
	pub Publisher
}

func NewSimulator(bounds borough.Bounds, ttl time.Duration, seed int64) *Simulator {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Simulator{
		active: make(map[string]Ping),
		timers: make(map[string]*time.Timer),
		rnd:    rand.New(rand.NewSource(seed)),
		bounds: bounds,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *Simulator) SetRecorder(r Recorder)   { s.rec = r }
func (s *Simulator) SetPublisher(p Publisher) { s.pub = p }

// RandomLocation：在范围内均匀取点
func (s *Simulator) RandomLocation() (lat, lng float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lat = s.rnd.Float64()*(s.bounds.North-s.bounds.South) + s.bounds.South
	lng = s.rnd.Float64()*(s.bounds.East-s.bounds.West) + s.bounds.West
	return lat, lng
}

// AddRandom：在伦敦范围内生成随机 ping
func (s *Simulator) AddRandom(ctx context.Context) Ping {
	lat, lng := s.RandomLocation()
	return s.Add(ctx, lat, lng, "random")
}

// 文档注释：登记 ping 并安排过期
// 约束：持久化失败仅记录日志，不影响内存中的 ping。
func (s *Simulator) Add(ctx context.Context, lat, lng float64, origin string) Ping {
	now := s.now()
	p := Ping{
		ID:        uuid.NewString(),
		Lat:       lat,
		Lng:       lng,
		Origin:    origin,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.mu.Lock()
	s.active[p.ID] = p
	s.timers[p.ID] = time.AfterFunc(s.ttl, func() { s.expire(p.ID) })
	n := len(s.active)
	s.mu.Unlock()

	metrics.PingsActive.Set(float64(n))
	metrics.PingsCreatedTotal.WithLabelValues(origin).Inc()
	logger.L().Debug("ping_added", "id", p.ID, "lat", lat, "lng", lng, "origin", origin)
	if s.rec != nil {
		if err := s.rec.RecordPing(ctx, p); err != nil {
			logger.L().Error("ping_record_error", "id", p.ID, "err", err)
		}
	}
	if s.pub != nil {
		s.pub.Publish(Event{Type: "ping_added", Ping: p})
	}
	return p
}

func (s *Simulator) expire(id string) {
	s.mu.Lock()
	p, ok := s.active[id]
	delete(s.active, id)
	delete(s.timers, id)
	n := len(s.active)
	s.mu.Unlock()
	if !ok {
		return
	}
	metrics.PingsActive.Set(float64(n))
	logger.L().Debug("ping_expired", "id", id)
	if s.pub != nil {
		s.pub.Publish(Event{Type: "ping_expired", Ping: p})
	}
}

// Active：当前存活的 ping，按创建时间升序
func (s *Simulator) Active() []Ping {
	s.mu.Lock()
	out := make([]Ping, 0, len(s.active))
	for _, p := range s.active {
		out = append(out, p)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Get：按 ID 取存活 ping
func (s *Simulator) Get(id string) (Ping, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.active[id]
	return p, ok
}

// Stop：取消所有过期定时器（进程退出时调用）
func (s *Simulator) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
