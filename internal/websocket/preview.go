// Package websocket streams the landing page typing preview to browsers.
package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"lessonlab-backend/internal/logger"
	"lessonlab-backend/internal/ui"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The preview is public canned content.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// PreviewHub runs one TypingPreview per connected viewer.
type PreviewHub struct {
	mu      sync.Mutex
	conns   map[*websocket.Conn]context.CancelFunc
	scripts []ui.PreviewScript
	delays  ui.PreviewDelays
	log     *logger.Logger
}

func NewPreviewHub(scripts []ui.PreviewScript, delays ui.PreviewDelays, log *logger.Logger) *PreviewHub {
	return &PreviewHub{
		conns:   make(map[*websocket.Conn]context.CancelFunc),
		scripts: scripts,
		delays:  delays,
		log:     log,
	}
}

func (h *PreviewHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err.Error())
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.register(conn, cancel)
	defer h.unregister(conn)

	// Reads only detect the viewer going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	preview := ui.NewTypingPreview(h.scripts, h.delays)
	err = preview.Run(ctx, func(f ui.Frame) error {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(f)
	})
	if err != nil && ctx.Err() == nil {
		h.log.Debug("preview stream ended", "error", err.Error())
	}
}

func (h *PreviewHub) register(conn *websocket.Conn, cancel context.CancelFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = cancel
	h.log.Debug("preview viewer connected", "viewers", len(h.conns))
}

func (h *PreviewHub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cancel, ok := h.conns[conn]; ok {
		cancel()
		delete(h.conns, conn)
	}
	conn.Close()
	h.log.Debug("preview viewer disconnected", "viewers", len(h.conns))
}

// Viewers reports how many streams are open.
func (h *PreviewHub) Viewers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close stops every stream. Used on shutdown, since hijacked connections are
// not tracked by http.Server.Shutdown.
func (h *PreviewHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, cancel := range h.conns {
		cancel()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
	}
}
