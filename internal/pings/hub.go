package pings

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"sentinel-api/internal/logger"
	"sentinel-api/internal/metrics"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 1024
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// 文档注释：ping 事件广播中心
// 约束：客户端注册表只在 Run 协程内读写；发送缓冲满的慢客户端直接断开。
type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	clients    map[*client]struct{}
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, sendBuffer),
		clients:    make(map[*client]struct{}),
		done:       make(chan struct{}),
	}
}

// Run：事件循环，ctx 取消时关闭全部连接
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			metrics.StreamClients.Set(0)
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			metrics.StreamClients.Set(float64(len(h.clients)))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				metrics.StreamClients.Set(float64(len(h.clients)))
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					delete(h.clients, c)
					close(c.send)
					logger.L().Warn("stream_client_dropped", "reason", "slow")
				}
			}
			metrics.StreamClients.Set(float64(len(h.clients)))
		}
	}
}

// Publish：实现 Publisher；广播队列满时丢弃事件
func (h *Hub) Publish(ev Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		logger.L().Error("stream_encode_error", "err", err)
		return
	}
	select {
	case h.broadcast <- b:
	default:
		logger.L().Warn("stream_event_dropped", "type", ev.Type)
	}
}

// 文档注释：websocket 接入
// 约束：升级成功后先推送一次当前存活 ping 快照（type=snapshot），再接收增量事件。
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, snapshot []Ping) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.L().Warn("stream_upgrade_error", "err", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if b, err := json.Marshal(map[string]any{"type": "snapshot", "pings": snapshot}); err == nil {
		c.send <- b
	}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}
	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
