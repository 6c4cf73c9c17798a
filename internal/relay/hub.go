// Package relay implements the chat relay: one implicit room, a
// websocket hub that broadcasts every inbound line to all connected
// clients (the sender included), a bounded transcript, and the HTTP
// surface the client's history loader and ad catalog talk to.
package relay

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/emilabos/scrappy-chat/internal/codec"
	"github.com/emilabos/scrappy-chat/internal/log"
)

type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	transcript Transcript
	mu         sync.RWMutex
	logger     zerolog.Logger
}

func NewHub(transcript Transcript) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		transcript: transcript,
		logger:     log.L().With().Str("component", "hub").Logger(),
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			h.logger.Debug().Str(log.FieldClientID, client.ID).
				Str(log.FieldUsername, client.Username).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.Send)
			}
			h.mu.Unlock()
			h.logger.Debug().Str(log.FieldClientID, client.ID).
				Str(log.FieldUsername, client.Username).Msg("client unregistered")

		case line := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients {
				select {
				case client.Send <- line:
				default:
					go h.Unregister(client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// HandleLine stamps an inbound payload with its sender, records it in
// the transcript, and broadcasts it to every connected client. The
// sender receives their own line back; clients tolerate the echo.
func (h *Hub) HandleLine(ctx context.Context, client *Client, payload []byte) {
	line := codec.Encode(client.Username, string(payload))

	if err := h.transcript.Append(ctx, line); err != nil {
		h.logger.Warn().Err(err).Msg("failed to append transcript line")
	}
	h.broadcast <- []byte(line)
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
