package live

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/aura/backend/internal/model/chat"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 25 * time.Second
	writeWait  = 10 * time.Second
)

// Source publishes conversation snapshots after every change.
type Source interface {
	Conversation() chat.Conversation
	Subscribe(fn func(chat.Conversation)) func()
}

// Handler pushes the active conversation to websocket clients.
type Handler struct {
	source   Source
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// New 创建实时推送处理器
func New(source Source, logger zerolog.Logger) *Handler {
	return &Handler{
		source: source,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		log: logger.With().Str("component", "live_handler").Logger(),
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/aura/live", h.handleLive)
}

type snapshot struct {
	ID        string         `json:"id"`
	Messages  []chat.Message `json:"messages"`
	Streaming bool           `json:"streaming"`
}

type outgoingMessage struct {
	Type      string   `json:"type"`
	Data      snapshot `json:"data"`
	Timestamp int64    `json:"timestamp"`
}

func newSnapshot(conv chat.Conversation) snapshot {
	messages := conv.Messages
	if messages == nil {
		messages = []chat.Message{}
	}
	return snapshot{ID: conv.ID, Messages: messages, Streaming: conv.ActiveStreamTargetID != ""}
}

func (h *Handler) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Only the newest snapshot matters; the store callback must never block.
	updates := make(chan chat.Conversation, 1)
	unsubscribe := h.source.Subscribe(func(conv chat.Conversation) {
		select {
		case updates <- conv:
		default:
			select {
			case <-updates:
			default:
			}
			select {
			case updates <- conv:
			default:
			}
		}
	})
	defer unsubscribe()

	h.log.Debug().Str("remote", r.RemoteAddr).Msg("client connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writeLoop(ctx, conn, updates)
		cancel()
		// Unblocks readLoop when the writer gave up first.
		conn.Close()
	}()

	h.readLoop(conn)
	cancel()
	<-done
	h.log.Debug().Str("remote", r.RemoteAddr).Msg("client disconnected")
}

// readLoop discards client messages and returns once the connection closes.
func (h *Handler) readLoop(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Msg("read error")
			}
			return
		}
	}
}

func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, updates <-chan chat.Conversation) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	if err := h.send(conn, h.source.Conversation()); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case conv := <-updates:
			if err := h.send(conn, conv); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) send(conn *websocket.Conn, conv chat.Conversation) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	msg := outgoingMessage{Type: "conversation", Data: newSnapshot(conv), Timestamp: time.Now().UnixMilli()}
	if err := conn.WriteJSON(msg); err != nil {
		h.log.Debug().Err(err).Msg("write failed")
		return err
	}
	return nil
}
