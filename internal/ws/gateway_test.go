package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fulljjb/server/internal/models"
	"github.com/fulljjb/server/internal/tokens"
)

// fakeChat records socket events and echoes them back through the hub,
// standing in for the chat service.
type fakeChat struct {
	hub *Hub

	mu       sync.Mutex
	messages []string
	deletes  []uint
}

func (f *fakeChat) HandleNewMessage(_ context.Context, senderID uint, text string) error {
	f.mu.Lock()
	f.messages = append(f.messages, text)
	f.mu.Unlock()
	f.hub.Broadcast("new_chat_message", map[string]interface{}{
		"sender_id": senderID,
		"message":   text,
	})
	return nil
}

func (f *fakeChat) HandleDeleteMessage(_ context.Context, id uint) error {
	f.mu.Lock()
	f.deletes = append(f.deletes, id)
	f.mu.Unlock()
	f.hub.Broadcast("message_deleted", id)
	return nil
}

type gatewayEnv struct {
	srv    *httptest.Server
	hub    *Hub
	chat   *fakeChat
	tokens *tokens.Service
	user   *models.User
}

func newGatewayEnv(t *testing.T) *gatewayEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))

	user := &models.User{Name: "alice", Email: "alice@example.com", Password: "x", Confirmed: true, Role: "user"}
	require.NoError(t, db.Create(user).Error)

	tok := tokens.NewService([]byte("test-jwt-secret"), []byte("test-refresh-secret"))

	hub := NewHub()
	go hub.Run()

	chat := &fakeChat{hub: hub}
	gate := &Gateway{Hub: hub, DB: db, Tokens: tok, Chat: chat}

	e := echo.New()
	e.GET("/ws", gate.Serve)

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	return &gatewayEnv{srv: srv, hub: hub, chat: chat, tokens: tok, user: user}
}

func (env *gatewayEnv) wsURL(query string) string {
	return strings.Replace(env.srv.URL, "http", "ws", 1) + "/ws?" + query
}

func (env *gatewayEnv) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(env.wsURL(query), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func sendEnvelope(t *testing.T, conn *websocket.Conn, event string, payload interface{}) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Envelope{Event: event, Data: raw}))
}

func TestBroadcastReachesAllClients(t *testing.T) {
	env := newGatewayEnv(t)

	access, err := env.tokens.IssueAccess(env.user)
	require.NoError(t, err)

	a := env.dial(t, "token="+access)
	b := env.dial(t, "token="+access)

	require.Eventually(t, func() bool { return env.hub.Online() == 2 }, 2*time.Second, 10*time.Millisecond)

	sendEnvelope(t, a, "new_message", map[string]interface{}{
		"userId":  env.user.ID,
		"message": "hello everyone",
	})

	for _, conn := range []*websocket.Conn{a, b} {
		frame := readEnvelope(t, conn)
		assert.Equal(t, "new_chat_message", frame.Event)

		var payload struct {
			SenderID uint   `json:"sender_id"`
			Message  string `json:"message"`
		}
		require.NoError(t, json.Unmarshal(frame.Data, &payload))
		assert.Equal(t, env.user.ID, payload.SenderID)
		assert.Equal(t, "hello everyone", payload.Message, "sender receives its own message too")
	}
}

func TestDeleteMessageBroadcast(t *testing.T) {
	env := newGatewayEnv(t)

	access, err := env.tokens.IssueAccess(env.user)
	require.NoError(t, err)

	a := env.dial(t, "token="+access)
	b := env.dial(t, "token="+access)

	require.Eventually(t, func() bool { return env.hub.Online() == 2 }, 2*time.Second, 10*time.Millisecond)

	sendEnvelope(t, a, "delete_message", map[string]interface{}{"messageId": 7})

	for _, conn := range []*websocket.Conn{a, b} {
		frame := readEnvelope(t, conn)
		assert.Equal(t, "message_deleted", frame.Event)

		var id uint
		require.NoError(t, json.Unmarshal(frame.Data, &id))
		assert.Equal(t, uint(7), id)
	}

	env.chat.mu.Lock()
	defer env.chat.mu.Unlock()
	assert.Equal(t, []uint{7}, env.chat.deletes)
}

func TestHandshakeRejections(t *testing.T) {
	env := newGatewayEnv(t)

	expiredSvc := tokens.NewService([]byte("test-jwt-secret"), []byte("test-refresh-secret"))
	expiredSvc.AccessTTL = -time.Minute

	t.Run("missing token", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(env.wsURL(""), nil)
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(env.wsURL("token=garbage"), nil)
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("expired without refresh", func(t *testing.T) {
		access, err := expiredSvc.IssueAccess(env.user)
		require.NoError(t, err)
		_, resp, dErr := websocket.DefaultDialer.Dial(env.wsURL("token="+access), nil)
		require.ErrorIs(t, dErr, websocket.ErrBadHandshake)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("expired with invalid refresh", func(t *testing.T) {
		access, err := expiredSvc.IssueAccess(env.user)
		require.NoError(t, err)
		_, resp, dErr := websocket.DefaultDialer.Dial(env.wsURL("token="+access+"&refreshToken=garbage"), nil)
		require.ErrorIs(t, dErr, websocket.ErrBadHandshake)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestExpiredTokenRefreshedOnConnect(t *testing.T) {
	env := newGatewayEnv(t)

	expiredSvc := tokens.NewService([]byte("test-jwt-secret"), []byte("test-refresh-secret"))
	expiredSvc.AccessTTL = -time.Minute

	access, err := expiredSvc.IssueAccess(env.user)
	require.NoError(t, err)
	refresh, err := env.tokens.IssueRefresh(env.user)
	require.NoError(t, err)

	conn := env.dial(t, "token="+access+"&refreshToken="+refresh)

	frame := readEnvelope(t, conn)
	require.Equal(t, "new_token", frame.Event, "replacement token is the first frame")

	var minted string
	require.NoError(t, json.Unmarshal(frame.Data, &minted))
	claims, err := env.tokens.VerifyAccess(minted)
	require.NoError(t, err)
	assert.Equal(t, env.user.ID, claims.UserID)
}
