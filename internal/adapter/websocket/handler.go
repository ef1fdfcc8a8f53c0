package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/simaogato/redpacket-backend/internal/domain"
	"github.com/simaogato/redpacket-backend/internal/logging"
)

const (
	// ClientIDParam is the query parameter carrying the client id
	ClientIDParam = "clientId"

	// TypeClaim is the inbound message type for claim requests
	TypeClaim = "claim"

	maxMessageSize = 4096
)

var clientIDPattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// ValidClientID reports whether id is an acceptable client id
func ValidClientID(id string) bool {
	return clientIDPattern.MatchString(id)
}

// ClaimSubmitter accepts claim requests for asynchronous processing
type ClaimSubmitter interface {
	Submit(ctx context.Context, req domain.ClaimRequest) error
}

// inboundMessage is a frame sent by a client
type inboundMessage struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Handler upgrades HTTP requests to WebSockets and keeps each client registered while it is connected
type Handler struct {
	registry domain.ConnectionRegistry
	claims   ClaimSubmitter
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a WebSocket Handler
func NewHandler(registry domain.ConnectionRegistry, claims ClaimSubmitter, logger *zap.Logger) *Handler {
	return &Handler{
		registry: registry,
		claims:   claims,
		logger:   logging.OrNop(logger),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get(ClientIDParam)
	if !ValidClientID(clientID) {
		http.Error(w, "clientId must be a non-empty alphanumeric string", http.StatusBadRequest)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		h.logger.Debug("websocket upgrade failed", zap.String("client_id", clientID), zap.Error(err))
		return
	}

	conn := newConn(clientID, ws)
	if !h.registry.Register(clientID, conn) {
		_ = conn.closeWith(websocket.ClosePolicyViolation, "already connected")
		return
	}
	defer func() {
		h.registry.Unregister(clientID)
		_ = conn.Close()
		h.logger.Info("client disconnected", zap.String("client_id", clientID))
	}()

	h.readLoop(r.Context(), conn)
}

// Shutdown sends a going-away close frame to every registered client
func (h *Handler) Shutdown() {
	for _, c := range h.registry.Connections() {
		if conn, ok := c.(*Conn); ok {
			_ = conn.closeWith(websocket.CloseGoingAway, "server shutting down")
			continue
		}
		_ = c.Close()
	}
}

func (h *Handler) readLoop(ctx context.Context, conn *Conn) {
	logger := h.logger.With(zap.String("client_id", conn.clientID))
	conn.ws.SetReadLimit(maxMessageSize)

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn("ignoring malformed message", zap.Error(err))
			continue
		}

		switch msg.Type {
		case TypeClaim:
			req := domain.ClaimRequest{PacketID: msg.ID, ClientID: conn.clientID}
			if err := h.claims.Submit(ctx, req); err != nil {
				logger.Warn("claim rejected", zap.String("packet_id", msg.ID), zap.Error(err))
			}
		default:
			logger.Debug("ignoring message", zap.String("type", msg.Type))
		}
	}
}
