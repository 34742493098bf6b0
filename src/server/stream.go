package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	logger "github.com/sirupsen/logrus"

	"copytrader/src/model"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // gateway enforces origin policy upstream
	},
}

// Hub pushes accepted signals to connected websocket clients. Delivery is
// best effort: a slow client is dropped, never allowed to stall ingestion.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan *model.Signal
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]chan *model.Signal),
	}
}

// Broadcast queues a signal for every connected client. Clients whose
// buffer is full miss this signal.
func (h *Hub) Broadcast(signal *model.Signal) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn, queue := range h.clients {
		select {
		case queue <- signal:
		default:
			logger.WithField("remote", conn.RemoteAddr().String()).
				Warn("dropping signal for slow websocket client")
		}
	}
}

func (h *Hub) register(conn *websocket.Conn) chan *model.Signal {
	queue := make(chan *model.Signal, 16)

	h.mu.Lock()
	h.clients[conn] = queue
	h.mu.Unlock()

	return queue
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
}

// ServeWS upgrades the connection and streams signals until the client
// goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithError(err).Error("websocket upgrade failed")
		return
	}
	defer conn.Close()

	queue := h.register(conn)
	defer h.unregister(conn)

	logger.WithField("remote", conn.RemoteAddr().String()).Info("signal stream client connected")

	// reader goroutine only notices the close; inbound frames are ignored
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case signal := <-queue:
			if err := conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
				return
			}
			if err := conn.WriteJSON(signal); err != nil {
				logger.WithError(err).Debug("websocket write failed, dropping client")
				return
			}
		case <-done:
			return
		}
	}
}
