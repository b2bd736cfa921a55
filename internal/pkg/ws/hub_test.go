package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	assert.NotNil(t, hub)
	assert.NotNil(t, hub.clients)
	assert.Equal(t, 0, hub.ConnectionCount())
}

func TestHub_IsOnline_NoConnections(t *testing.T) {
	hub := NewHub()
	assert.False(t, hub.IsOnline(123))
}

func TestHub_SendToUser_UserNotOnline(t *testing.T) {
	hub := NewHub()

	// 离线用户不算错误，消息直接丢弃
	err := hub.SendToUser(123, &Message{Type: "test", Data: map[string]string{"key": "value"}})
	assert.NoError(t, err)
}

// newHubServer 把每个升级成功的连接注册为指定用户
func newHubServer(t *testing.T, hub *Hub, userID int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		client := &Client{UserID: userID, Conn: conn}
		hub.Register(client)

		time.Sleep(300 * time.Millisecond)
		hub.Unregister(client)
	}))
}

func dialWS(t *testing.T, serverURL string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(serverURL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	return conn
}

func TestHub_RegisterAndUnregister(t *testing.T) {
	hub := NewHub()
	server := newHubServer(t, hub, 100)
	defer server.Close()

	conn := dialWS(t, server.URL)
	defer conn.Close()

	time.Sleep(50 * time.Millisecond)
	assert.True(t, hub.IsOnline(100))
	assert.Equal(t, 1, hub.ConnectionCount())

	// 服务端 300ms 后注销
	time.Sleep(350 * time.Millisecond)
	assert.False(t, hub.IsOnline(100))
	assert.Equal(t, 0, hub.ConnectionCount())
}

func TestHub_SendToUser_WithConnection(t *testing.T) {
	hub := NewHub()
	server := newHubServer(t, hub, 200)
	defer server.Close()

	conn := dialWS(t, server.URL)
	defer conn.Close()

	time.Sleep(50 * time.Millisecond)

	err := hub.SendToUser(200, &Message{
		Type: "notification",
		Data: map[string]string{"content": "Hello"},
	})
	assert.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, received, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(received), "notification")
	assert.Contains(t, string(received), "Hello")
}

func TestHub_SameUserMultipleConnections(t *testing.T) {
	hub := NewHub()
	server := newHubServer(t, hub, 300)
	defer server.Close()

	// 同一用户的两个连接都保留（多标签页场景）
	conn1 := dialWS(t, server.URL)
	defer conn1.Close()
	conn2 := dialWS(t, server.URL)
	defer conn2.Close()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, hub.ConnectionCount())
	assert.True(t, hub.IsOnline(300))

	// 消息广播到该用户的全部连接
	err := hub.SendToUser(300, &Message{Type: "progress", Data: map[string]int{"p": 30}})
	require.NoError(t, err)

	for _, conn := range []*websocket.Conn{conn1, conn2} {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		_, received, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Contains(t, string(received), "progress")
	}
}

func TestHub_MultipleUsers(t *testing.T) {
	hub := NewHub()

	var nextID int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		nextID++
		hub.Register(&Client{UserID: nextID, Conn: conn})
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	var conns []*websocket.Conn
	for i := 0; i < 3; i++ {
		conns = append(conns, dialWS(t, server.URL))
	}
	defer func() {
		for _, conn := range conns {
			conn.Close()
		}
	}()

	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, 3, hub.ConnectionCount())
	assert.True(t, hub.IsOnline(1))
	assert.True(t, hub.IsOnline(2))
	assert.True(t, hub.IsOnline(3))
	assert.False(t, hub.IsOnline(4))
}
