package relay

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/emilabos/scrappy-chat/internal/config"
	"github.com/emilabos/scrappy-chat/internal/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type Handler struct {
	hub        *Hub
	transcript Transcript
	adURIs     []string
	wsCfg      config.WebSocketConfig
}

func NewHandler(hub *Hub, transcript Transcript, adURIs []string, wsCfg config.WebSocketConfig) *Handler {
	return &Handler{
		hub:        hub,
		transcript: transcript,
		adURIs:     adURIs,
		wsCfg:      wsCfg,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.GET("/history", h.GetHistory)
	}

	r.GET("/ws/:username", h.HandleWebSocket)
	r.GET("/assets/ads.json", h.GetAds)
	r.GET("/health", h.HealthCheck)
}

// GetHistory returns the transcript up to the current moment as wire
// lines in original order.
func (h *Handler) GetHistory(c *gin.Context) {
	lines, err := h.transcript.Lines(c.Request.Context())
	if err != nil {
		logger := log.L()
		logger.Error().Err(err).Msg("failed to read transcript")
		c.JSON(http.StatusInternalServerError, apiResponse{
			Success: false,
			Error:   "failed to read history",
		})
		return
	}
	if lines == nil {
		lines = []string{}
	}

	c.JSON(http.StatusOK, apiResponse{
		Success: true,
		Data:    gin.H{"lines": lines},
	})
}

// GetAds serves the interstitial asset catalog.
func (h *Handler) GetAds(c *gin.Context) {
	uris := h.adURIs
	if uris == nil {
		uris = []string{}
	}
	c.JSON(http.StatusOK, uris)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleWebSocket upgrades the connection and joins the client to the
// room under the display name carried in the path.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	username := strings.TrimSpace(c.Param("username"))
	if username == "" {
		c.JSON(http.StatusBadRequest, apiResponse{
			Success: false,
			Error:   "username is required",
		})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger := log.L()
		logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := NewClient(uuid.New().String(), username, h.hub, conn, h.wsCfg)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(func(cl *Client, payload []byte) {
		// The request context dies with the upgrade; line handling
		// outlives it.
		h.hub.HandleLine(context.Background(), cl, payload)
	})
}
