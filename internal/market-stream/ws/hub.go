package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 5 * time.Second

// client serializa as escritas; o gorilla não aceita escritores concorrentes
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(msgType int, b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(msgType, b)
}

// Hub gerencia conexões WebSocket e assinaturas por mercado
type Hub struct {
	upgrader websocket.Upgrader
	log      *zap.Logger

	mu sync.RWMutex
	// marketID -> conjunto de clientes
	subs    map[string]map[*client]struct{}
	clients int

	OnClients       func(n int) // métricas
	OnSubscriptions func(n int)
}

// NewHub cria o hub com a política de origem informada
func NewHub(allowOrigin func(r *http.Request) bool, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		log:      log,
		subs:     make(map[string]map[*client]struct{}),
	}
}

// HandleWS atende uma conexão até o cliente desconectar.
// Cada cliente pode assinar vários mercados.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn}
	defer conn.Close()

	h.mu.Lock()
	h.clients++
	h.notify()
	h.mu.Unlock()

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			if msg.MarketID == "" {
				_ = h.reply(c, map[string]string{"type": "error", "error": "marketId required"})
				continue
			}
			h.mu.Lock()
			if _, ok := h.subs[msg.MarketID]; !ok {
				h.subs[msg.MarketID] = make(map[*client]struct{})
			}
			h.subs[msg.MarketID][c] = struct{}{}
			h.notify()
			h.mu.Unlock()
			_ = h.reply(c, map[string]string{"type": "subscribed", "marketId": msg.MarketID})
		case "unsubscribe":
			h.mu.Lock()
			h.drop(msg.MarketID, c)
			h.notify()
			h.mu.Unlock()
		case "ping":
			_ = h.reply(c, map[string]string{"type": "pong"})
		}
	}

	// remove a conexão de todas as assinaturas ao desconectar
	h.mu.Lock()
	for id := range h.subs {
		h.drop(id, c)
	}
	h.clients--
	h.notify()
	h.mu.Unlock()
}

// drop exige h.mu travado
func (h *Hub) drop(marketID string, c *client) {
	if set, ok := h.subs[marketID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, marketID)
		}
	}
}

// notify exige h.mu travado
func (h *Hub) notify() {
	if h.OnClients != nil {
		h.OnClients(h.clients)
	}
	if h.OnSubscriptions != nil {
		n := 0
		for _, set := range h.subs {
			n += len(set)
		}
		h.OnSubscriptions(n)
	}
}

func (h *Hub) reply(c *client, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, b)
}

// Broadcast envia a atualização para os inscritos no mercado e retorna quantos receberam
func (h *Hub) Broadcast(u Update) int {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.subs[u.MarketID]))
	for c := range h.subs[u.MarketID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return 0
	}

	b, err := json.Marshal(u)
	if err != nil {
		h.log.Warn("marshal update failed", zap.String("marketId", u.MarketID), zap.Error(err))
		return 0
	}
	sent := 0
	for _, c := range targets {
		if err := c.write(websocket.TextMessage, b); err != nil {
			h.log.Debug("websocket write failed", zap.String("marketId", u.MarketID), zap.Error(err))
			continue
		}
		sent++
	}
	return sent
}
