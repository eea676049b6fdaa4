package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fulljjb/server/internal/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	readLimit  = 1 << 20
)

// ChatHandler is the single entry point for chat writes arriving over
// the socket; the HTTP handlers go through the same implementation so
// validation and broadcast behavior cannot diverge.
type ChatHandler interface {
	HandleNewMessage(ctx context.Context, senderID uint, text string) error
	HandleDeleteMessage(ctx context.Context, id uint) error
}

type Client struct {
	id     uint64
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID uint
	chat   ChatHandler
}

type newMessagePayload struct {
	UserID  uint   `json:"userId"`
	Message string `json:"message"`
}

type deleteMessagePayload struct {
	MessageID uint `json:"messageId"`
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx := context.Background()
	l := logging.FromContext(ctx).With("component", "ws", "conn_id", c.id, "user_id", c.userID)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		switch env.Event {
		case "new_message":
			var p newMessagePayload
			if err := json.Unmarshal(env.Data, &p); err != nil || p.Message == "" {
				continue
			}
			if err := c.chat.HandleNewMessage(ctx, p.UserID, p.Message); err != nil {
				l.Error("new_message failed", "error", err)
			}
		case "delete_message":
			var p deleteMessagePayload
			if err := json.Unmarshal(env.Data, &p); err != nil || p.MessageID == 0 {
				continue
			}
			if err := c.chat.HandleDeleteMessage(ctx, p.MessageID); err != nil {
				l.Error("delete_message failed", "error", err)
			}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
