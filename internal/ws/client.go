package ws

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/miroirapp/miroir/internal/db"
	"github.com/miroirapp/miroir/internal/presence"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameBytes  = 4096
	sendBufferSize = 64
)

// chatService is the slice of the chat pipeline the gateway drives.
type chatService interface {
	Send(ctx context.Context, senderID, matchID uint64, body string) (*db.ChatMessage, error)
	Typing(ctx context.Context, userID, matchID uint64, isTyping bool) error
	MarkRead(ctx context.Context, userID, matchID, uptoMessageID uint64) error
}

// Client is one websocket connection bound to a presence handle.
// done is closed by the hub when it drops the client; send stays open
// so concurrent replies never hit a closed channel.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	handle  presence.Handle
	chatSvc chatService
}

// inboundFrame is what connected clients send upstream.
type inboundFrame struct {
	Type     string `json:"type"` // chat.send | chat.typing | chat.read
	MatchID  string `json:"match_id"`
	Body     string `json:"body,omitempty"`
	IsTyping bool   `json:"is_typing,omitempty"`
	UpToID   string `json:"up_to_id,omitempty"`
}

func (c *Client) readPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxFrameBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.reply(Envelope{Type: "error", Payload: map[string]any{"reason": "malformed frame"}})
			continue
		}
		c.handleFrame(frame)
	}
}

func (c *Client) handleFrame(frame inboundFrame) {
	ctx := context.Background()
	userID := c.handle.UserID

	matchID, err := strconv.ParseUint(frame.MatchID, 10, 64)
	if err != nil {
		c.reply(Envelope{Type: "error", Payload: map[string]any{"reason": "match_id must be a valid uint64"}})
		return
	}

	switch frame.Type {
	case "chat.send":
		msg, err := c.chatSvc.Send(ctx, userID, matchID, frame.Body)
		if err != nil {
			c.replyErr(err)
			return
		}
		c.reply(Envelope{Type: "message.ack", Payload: map[string]any{
			"message_id": strconv.FormatUint(msg.ID, 10),
			"sent_at":    msg.SentAt.UnixMilli(),
		}})

	case "chat.typing":
		if err := c.chatSvc.Typing(ctx, userID, matchID, frame.IsTyping); err != nil {
			c.replyErr(err)
		}

	case "chat.read":
		upTo, err := strconv.ParseUint(frame.UpToID, 10, 64)
		if err != nil {
			c.reply(Envelope{Type: "error", Payload: map[string]any{"reason": "up_to_id must be a valid uint64"}})
			return
		}
		if err := c.chatSvc.MarkRead(ctx, userID, matchID, upTo); err != nil {
			c.replyErr(err)
		}

	default:
		c.reply(Envelope{Type: "error", Payload: map[string]any{"reason": "unknown frame type"}})
	}
}

// reply queues an envelope for this connection only.
func (c *Client) reply(env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) replyErr(err error) {
	c.reply(Envelope{Type: "error", Payload: map[string]any{"reason": err.Error()}})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
