package rrclient

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/starksyncd/starksyncd/internal/types"
	"github.com/starksyncd/starksyncd/internal/xlog"
)

// PeerResolver maps a peer id to a dialable websocket address. Production
// deployments back this with the same peer directory transport used by
// p2p/peerdir; tests can use a static map.
type PeerResolver func(peer types.PeerID) (string, error)

// WSClient is a reference Client implementation that frames each of the
// five protocols as a JSON request/response exchange over a pooled
// websocket connection per peer. It exists to give the request/response
// client a concrete, runnable transport; production deployments may swap
// in a libp2p-backed Client satisfying the same interface.
type WSClient struct {
	resolve PeerResolver
	log     *xlog.Logger

	mu    sync.Mutex
	conns map[types.PeerID]*websocket.Conn
}

// NewWSClient builds a WSClient that dials peer addresses resolved by resolve.
func NewWSClient(resolve PeerResolver) *WSClient {
	return &WSClient{
		resolve: resolve,
		log:     xlog.Root().Named("rrclient"),
		conns:   make(map[types.PeerID]*websocket.Conn),
	}
}

type wireRequest struct {
	Protocol  Protocol  `json:"protocol"`
	Iteration Iteration `json:"iteration"`
}

// wireFrame is the generic envelope every response frame arrives in: a
// raw JSON payload tagged Fin when the peer has finished replying.
type wireFrame struct {
	Fin     bool            `json:"fin"`
	Payload json.RawMessage `json:"payload"`
}

func (c *WSClient) connFor(peer types.PeerID) (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conn, ok := c.conns[peer]; ok {
		return conn, nil
	}
	addr, err := c.resolve(peer)
	if err != nil {
		return nil, &types.TransportFailedError{Peer: peer, Err: err}
	}
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, &types.TransportFailedError{Peer: peer, Err: err}
	}
	c.conns[peer] = conn
	return conn, nil
}

// dropConn evicts a connection after an I/O failure so the next request
// to this peer dials fresh rather than reusing a dead socket.
func (c *WSClient) dropConn(peer types.PeerID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conn, ok := c.conns[peer]; ok {
		conn.Close()
		delete(c.conns, peer)
	}
}

func send[T any](c *WSClient, peer types.PeerID, protocol Protocol, req Iteration, decode func(json.RawMessage) (T, error)) (ResponseChan[T], error) {
	conn, err := c.connFor(peer)
	if err != nil {
		return nil, err
	}
	if err := conn.WriteJSON(wireRequest{Protocol: protocol, Iteration: req}); err != nil {
		c.dropConn(peer)
		return nil, &types.TransportFailedError{Peer: peer, Err: err}
	}

	out := make(chan Message[T], ChannelCapacity)
	go func() {
		defer close(out)
		for {
			var frame wireFrame
			if err := conn.ReadJSON(&frame); err != nil {
				c.dropConn(peer)
				out <- Message[T]{Err: &types.TransportFailedError{Peer: peer, Err: err}}
				return
			}
			if frame.Fin {
				out <- Message[T]{Fin: true}
				return
			}
			item, err := decode(frame.Payload)
			if err != nil {
				out <- Message[T]{Err: fmt.Errorf("rrclient: decoding %s payload from %s: %w", protocol, peer, err)}
				return
			}
			out <- Message[T]{Item: item}
		}
	}()
	return out, nil
}

func (c *WSClient) SendHeaders(peer types.PeerID, req Iteration) (ResponseChan[HeaderResponse], error) {
	return send(c, peer, ProtocolHeaders, req, decodeJSON[HeaderResponse])
}

func (c *WSClient) SendTransactions(peer types.PeerID, req Iteration) (ResponseChan[TransactionResponse], error) {
	return send(c, peer, ProtocolTransactions, req, decodeJSON[TransactionResponse])
}

func (c *WSClient) SendStateDiffs(peer types.PeerID, req Iteration) (ResponseChan[StateDiffResponse], error) {
	return send(c, peer, ProtocolStateDiffs, req, decodeJSON[StateDiffResponse])
}

func (c *WSClient) SendClasses(peer types.PeerID, req Iteration) (ResponseChan[ClassResponse], error) {
	return send(c, peer, ProtocolClasses, req, decodeJSON[ClassResponse])
}

func (c *WSClient) SendEvents(peer types.PeerID, req Iteration) (ResponseChan[EventResponse], error) {
	return send(c, peer, ProtocolEvents, req, decodeJSON[EventResponse])
}

func decodeJSON[T any](raw json.RawMessage) (T, error) {
	var v T
	err := json.Unmarshal(raw, &v)
	return v, err
}

// Close releases every pooled connection.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for peer, conn := range c.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.conns, peer)
	}
	return firstErr
}
