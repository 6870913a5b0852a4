package ws

import (
	"net/http"

	"github.com/miroirapp/miroir/internal/chat"
)

// Registrar ties the realtime gateway into the HTTP mux.
type Registrar struct {
	hub     *Hub
	chatSvc *chat.Service
}

// NewRegistrar creates a Registrar for the websocket endpoint.
func NewRegistrar(hub *Hub, chatSvc *chat.Service) *Registrar {
	return &Registrar{hub: hub, chatSvc: chatSvc}
}

// Register mounts the websocket endpoint.
func (r *Registrar) Register(mux *http.ServeMux) {
	mux.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		ServeWS(r.hub, r.chatSvc, w, req)
	})
}
