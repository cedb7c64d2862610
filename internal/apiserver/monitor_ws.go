// Package apiserver 容量监控 WebSocket
//
// 本文件提供主机容量的 WebSocket 实时推送功能。
package apiserver

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"buildpool/internal/pool"
)

var monitorUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许跨域（开发环境）
	},
}

// MonitorMessage WebSocket 消息
type MonitorMessage struct {
	Type      string      `json:"type"`      // capacity
	Data      interface{} `json:"data"`      // 消息数据
	Timestamp time.Time   `json:"timestamp"` // 时间戳
}

// capacitySnapshot 推送给客户端的容量快照
type capacitySnapshot struct {
	Pool         string              `json:"pool"`
	MaxExecutors int                 `json:"max_executors"`
	Hosts        []pool.HostCapacity `json:"hosts"`
}

// MonitorWSHandler WebSocket 监控连接处理器
type MonitorWSHandler struct {
	placer  *pool.Placer
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
}

// NewMonitorWSHandler 创建监控 WebSocket 处理器
func NewMonitorWSHandler(placer *pool.Placer) *MonitorWSHandler {
	mws := &MonitorWSHandler{
		placer:  placer,
		clients: make(map[*websocket.Conn]bool),
	}
	// 启动广播协程
	go mws.broadcastLoop()
	return mws
}

// HandleWebSocket 处理 WebSocket 连接
//
// 路由: GET /ws/monitor
func (m *MonitorWSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := monitorUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[MonitorWS] Upgrade error: %v", err)
		return
	}

	// 初始快照在注册前发送：注册后该连接只由广播协程写入，
	// 同一连接不允许出现并发写方
	m.sendToClient(conn, m.snapshotMessage(r.Context()))

	m.mu.Lock()
	m.clients[conn] = true
	total := len(m.clients)
	m.mu.Unlock()

	log.Printf("[MonitorWS] Client connected, total: %d", total)

	// 读取客户端消息（保持连接）
	go m.readPump(conn)
}

func (m *MonitorWSHandler) readPump(conn *websocket.Conn) {
	defer func() {
		m.mu.Lock()
		delete(m.clients, conn)
		remaining := len(m.clients)
		m.mu.Unlock()
		conn.Close()
		log.Printf("[MonitorWS] Client disconnected, remaining: %d", remaining)
	}()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[MonitorWS] Read error: %v", err)
			}
			break
		}
	}
}

// clientCount 当前已注册的连接数
func (m *MonitorWSHandler) clientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

func (m *MonitorWSHandler) snapshotMessage(ctx context.Context) MonitorMessage {
	settings := m.placer.Settings()
	return MonitorMessage{
		Type: "capacity",
		Data: capacitySnapshot{
			Pool:         settings.Name,
			MaxExecutors: settings.MaxExecutors,
			Hosts:        m.placer.HostCapacities(ctx),
		},
		Timestamp: time.Now(),
	}
}

func (m *MonitorWSHandler) sendToClient(conn *websocket.Conn, msg MonitorMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[MonitorWS] Marshal error: %v", err)
		return
	}

	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("[MonitorWS] Write error: %v", err)
	}
}

func (m *MonitorWSHandler) broadcast(msg MonitorMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[MonitorWS] Marshal error: %v", err)
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for conn := range m.clients {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("[MonitorWS] Broadcast error: %v", err)
		}
	}
}

func (m *MonitorWSHandler) broadcastLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.mu.RLock()
		clientCount := len(m.clients)
		m.mu.RUnlock()

		if clientCount == 0 {
			continue
		}

		// 广播容量快照；快照涉及主机探测，给单独的超时
		ctx, cancel := context.WithTimeout(context.Background(), 4*time.Second)
		msg := m.snapshotMessage(ctx)
		cancel()

		m.broadcast(msg)

		// 发送心跳
		m.mu.RLock()
		for conn := range m.clients {
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("[MonitorWS] Ping error: %v", err)
			}
		}
		m.mu.RUnlock()
	}
}
