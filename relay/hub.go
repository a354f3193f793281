package relay

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 256
	maxMessage = 512
)

// Hub forwards every message it receives to all other connected peers.
type Hub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	peers map[*peer]struct{}
}

type peer struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		peers: make(map[*peer]struct{}),
	}
}

func (h *Hub) Peers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	p := &peer{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	h.mu.Lock()
	h.peers[p] = struct{}{}
	h.mu.Unlock()
	h.log.Info("peer connected", zap.String("peer", p.id), zap.String("addr", r.RemoteAddr))

	go h.writeLoop(p)
	h.readLoop(p)
}

func (h *Hub) drop(p *peer) {
	p.once.Do(func() {
		h.mu.Lock()
		delete(h.peers, p)
		h.mu.Unlock()
		close(p.send)
		h.log.Info("peer disconnected", zap.String("peer", p.id))
	})
}

func (h *Hub) readLoop(p *peer) {
	defer func() {
		h.drop(p)
		p.conn.Close()
	}()
	p.conn.SetReadLimit(maxMessage)

	for {
		_, msg, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("peer read failed", zap.String("peer", p.id), zap.Error(err))
			}
			return
		}
		if _, err := ParseMessage(string(msg)); err != nil {
			h.log.Debug("dropping malformed message", zap.String("peer", p.id), zap.Error(err))
			continue
		}
		h.broadcast(p, msg)
	}
}

func (h *Hub) broadcast(from *peer, msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for p := range h.peers {
		if p == from {
			continue
		}
		select {
		case p.send <- msg:
		default:
			h.log.Warn("peer too slow, dropping message", zap.String("peer", p.id))
		}
	}
}

func (h *Hub) writeLoop(p *peer) {
	defer p.conn.Close()
	for msg := range p.send {
		p.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := p.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Debug("peer write failed", zap.String("peer", p.id), zap.Error(err))
			return
		}
	}
	p.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

// Close disconnects every peer.
func (h *Hub) Close() {
	h.mu.Lock()
	peers := make([]*peer, 0, len(h.peers))
	for p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.Unlock()
	for _, p := range peers {
		p.conn.Close()
	}
}
