package ws

import (
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/miroirapp/miroir/internal/chat"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// origin policy belongs to the fronting gateway
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request, registers a presence entry for the user
// and starts the read/write pumps. The user identity arrives already
// verified from the session layer; here it is carried in the X-User-ID
// header set by that layer.
func ServeWS(hub *Hub, chatSvc *chat.Service, w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseUint(r.Header.Get("X-User-ID"), 10, 64)
	if err != nil || userID == 0 {
		http.Error(w, "missing or invalid user identity", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("websocket upgrade failed", "err", err)
		return
	}

	handle := hub.registry.Connect(userID)
	client := &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
		handle:  handle,
		chatSvc: chatSvc,
	}
	hub.RegisterClient(client)

	go client.writePump()
	go client.readPump()
}
