// Package apiserver 容量监控 WebSocket 单元测试
//
// 构造 MonitorWSHandler 时不经过 NewMonitorWSHandler，
// 避免后台广播协程干扰，广播由测试手动触发。
package apiserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildpool/internal/label"
	"buildpool/internal/pool"
)

// newMonitorWS 创建不带广播协程的监控处理器
func newMonitorWS(hosts ...pool.Host) *MonitorWSHandler {
	settings := pool.Settings{
		Name:           "ci-pool",
		CapacityLabels: label.NewSet("linux"),
		MaxExecutors:   2,
	}
	return &MonitorWSHandler{
		placer:  pool.NewPlacer(settings, pool.StaticHosts(hosts)),
		clients: make(map[*websocket.Conn]bool),
	}
}

func dialMonitorWS(t *testing.T, mws *MonitorWSHandler) (*websocket.Conn, func()) {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(mws.HandleWebSocket))
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	return client, func() {
		client.Close()
		server.Close()
	}
}

// TestMonitorWS_InitialSnapshotBeforeRegistration 初始快照先于注册送达
//
// 连接建立后第一帧必须是 capacity 快照，且该帧由处理协程在连接
// 被登记进广播列表之前写出——之后这条连接只由广播协程写入，
// 不会出现两个并发写方。
func TestMonitorWS_InitialSnapshotBeforeRegistration(t *testing.T) {
	mws := newMonitorWS(&stubHost{addr: "192.168.1.10"})

	client, cleanup := dialMonitorWS(t, mws)
	defer cleanup()

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := client.ReadMessage()
	require.NoError(t, err)

	var m MonitorMessage
	require.NoError(t, json.Unmarshal(msg, &m))
	assert.Equal(t, "capacity", m.Type)

	var snap capacitySnapshot
	data, err := json.Marshal(m.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, "ci-pool", snap.Pool)
	assert.Equal(t, 2, snap.MaxExecutors)
	require.Len(t, snap.Hosts, 1)
	assert.Equal(t, "192.168.1.10", snap.Hosts[0].Addr)

	// 快照送达后连接才进入广播列表
	require.Eventually(t, func() bool {
		return mws.clientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

// TestMonitorWS_BroadcastAfterRegistration 注册后的连接收到广播帧
func TestMonitorWS_BroadcastAfterRegistration(t *testing.T) {
	mws := newMonitorWS(&stubHost{addr: "192.168.1.10"})

	client, cleanup := dialMonitorWS(t, mws)
	defer cleanup()

	// 吃掉初始快照
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := client.ReadMessage()
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return mws.clientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	mws.broadcast(MonitorMessage{Type: "capacity", Timestamp: time.Now()})

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := client.ReadMessage()
	require.NoError(t, err)

	var m MonitorMessage
	require.NoError(t, json.Unmarshal(msg, &m))
	assert.Equal(t, "capacity", m.Type)
}

// TestMonitorWS_ClientDisconnect 客户端断开后自动清理
func TestMonitorWS_ClientDisconnect(t *testing.T) {
	mws := newMonitorWS()

	client, cleanup := dialMonitorWS(t, mws)
	defer cleanup()

	require.Eventually(t, func() bool {
		return mws.clientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	client.Close()

	require.Eventually(t, func() bool {
		return mws.clientCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
