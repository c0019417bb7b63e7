package websocket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient 构造不带真实连接的客户端
func fakeClient(id, userID, permitID string, hub *Hub) *Client {
	return NewClient(id, userID, permitID, hub, nil)
}

// register 直接注册,不经过 Run 循环
func register(hub *Hub, c *Client) {
	hub.mu.Lock()
	hub.clients[c] = true
	hub.mu.Unlock()
}

// TestHub_BroadcastToPermit 按许可单定向广播
func TestHub_BroadcastToPermit(t *testing.T) {
	hub := NewHub()

	subscribed := fakeClient("c1", "user-001", "permit-001", hub)
	other := fakeClient("c2", "user-002", "permit-002", hub)
	all := fakeClient("c3", "user-003", "", hub)
	register(hub, subscribed)
	register(hub, other)
	register(hub, all)

	hub.BroadcastToPermit("permit-001", []byte("update"))

	require.Len(t, subscribed.Send, 1)
	assert.Equal(t, []byte("update"), <-subscribed.Send)

	// 订阅其他许可单的客户端收不到
	assert.Empty(t, other.Send)

	// 订阅全部的客户端收得到
	require.Len(t, all.Send, 1)
}

// TestHub_BroadcastToUser 按用户定向广播
func TestHub_BroadcastToUser(t *testing.T) {
	hub := NewHub()

	target := fakeClient("c1", "user-001", "", hub)
	other := fakeClient("c2", "user-002", "", hub)
	register(hub, target)
	register(hub, other)

	hub.BroadcastToUser("user-001", []byte("hello"))

	require.Len(t, target.Send, 1)
	assert.Empty(t, other.Send)
}

// TestHub_SlowClientEvicted 发送缓冲满的客户端被剔除
func TestHub_SlowClientEvicted(t *testing.T) {
	hub := NewHub()

	slow := fakeClient("c1", "user-001", "permit-001", hub)
	register(hub, slow)

	// 填满发送缓冲
	for i := 0; i < cap(slow.Send); i++ {
		slow.Send <- []byte("x")
	}

	hub.BroadcastToPermit("permit-001", []byte("overflow"))

	assert.False(t, hub.HasClient("c1"))
	assert.Equal(t, 0, hub.GetClientCount())
}

// TestHub_ClientBookkeeping 注册计数
func TestHub_ClientBookkeeping(t *testing.T) {
	hub := NewHub()
	assert.Equal(t, 0, hub.GetClientCount())

	register(hub, fakeClient("c1", "user-001", "", hub))
	assert.Equal(t, 1, hub.GetClientCount())
	assert.True(t, hub.HasClient("c1"))
	assert.False(t, hub.HasClient("c2"))
}
