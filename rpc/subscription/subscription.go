// Package subscription serves newly persisted block headers to
// websocket clients as a NewHead push feed.
package subscription

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/starksyncd/starksyncd/internal/types"
	"github.com/starksyncd/starksyncd/internal/xevent"
	"github.com/starksyncd/starksyncd/internal/xlog"
)

// NewHead is the payload pushed to every subscriber when a header is
// persisted.
type NewHead struct {
	Number types.BlockNumber `json:"number"`
	Hash   types.BlockHash   `json:"hash"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server upgrades incoming HTTP connections to websockets and pushes
// every value sent to Feed to each connected client.
type Server struct {
	Feed *xevent.Feed[NewHead]
	log  *xlog.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewServer returns a Server broadcasting feed to websocket subscribers.
func NewServer(feed *xevent.Feed[NewHead]) *Server {
	return &Server{
		Feed:  feed,
		log:   xlog.New().Named("rpc/subscription"),
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP upgrades the request to a websocket and streams NewHead
// pushes to it until the client disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "err", err)
		return
	}

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	ch := make(chan NewHead, 16)
	sub := s.Feed.Subscribe(ch)

	defer func() {
		sub.Unsubscribe()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	// Drain client reads on their own goroutine so a closed connection is
	// detected even though this server never expects inbound messages.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case head := <-ch:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			payload, err := json.Marshal(head)
			if err != nil {
				s.log.Warn("marshal new head failed", "err", err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

// ActiveConnections returns the number of currently connected clients.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}
