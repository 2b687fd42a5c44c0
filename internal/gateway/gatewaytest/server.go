// Package gatewaytest runs an in-process gateway for tests. Handlers are
// registered per method; every connection answers "connect" by default.
package gatewaytest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/discordlite/pkg/protocol"
)

// Handler answers one request. Returning nil sends no response.
type Handler func(ctx context.Context, peer *Peer, req *protocol.RequestFrame) *protocol.ResponseFrame

// Server is a WebSocket gateway on a loopback httptest server.
type Server struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	handlers map[string]Handler
	peers    []*Peer
	requests []protocol.RequestFrame
}

// NewServer starts a server and registers its shutdown with t.Cleanup.
func NewServer(t testing.TB) *Server {
	s := &Server{handlers: make(map[string]Handler)}
	s.Handle(protocol.MethodConnect, func(_ context.Context, _ *Peer, req *protocol.RequestFrame) *protocol.ResponseFrame {
		return protocol.NewOKResponse(req.ID, map[string]any{"protocol": protocol.ProtocolVersion})
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	s.srv = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// Endpoint returns "host:port" for gateway.Config.Endpoint.
func (s *Server) Endpoint() string {
	return strings.TrimPrefix(s.srv.URL, "http://")
}

// Handle registers a handler for method, replacing any previous one.
func (s *Server) Handle(method string, h Handler) {
	s.mu.Lock()
	s.handlers[method] = h
	s.mu.Unlock()
}

// Reply registers a handler that always answers with payload.
func (s *Server) Reply(method string, payload any) {
	s.Handle(method, func(_ context.Context, _ *Peer, req *protocol.RequestFrame) *protocol.ResponseFrame {
		return protocol.NewOKResponse(req.ID, payload)
	})
}

// Fail registers a handler that always answers with an error.
func (s *Server) Fail(method, code, message string) {
	s.Handle(method, func(_ context.Context, _ *Peer, req *protocol.RequestFrame) *protocol.ResponseFrame {
		return protocol.NewErrorResponse(req.ID, code, message)
	})
}

// Subscribable registers method as a subscription that hands out fresh ids.
// Each accepted subscription is reported on the returned channel.
func (s *Server) Subscribable(method string) <-chan Subscribed {
	ch := make(chan Subscribed, 8)
	s.Handle(method, func(_ context.Context, peer *Peer, req *protocol.RequestFrame) *protocol.ResponseFrame {
		id := uuid.NewString()
		ch <- Subscribed{Peer: peer, ID: id, Params: req.Params}
		return protocol.NewOKResponse(req.ID, protocol.MessagesSubscribeResult{SubscriptionID: id})
	})
	return ch
}

// Subscribed describes one accepted subscription.
type Subscribed struct {
	Peer   *Peer
	ID     string
	Params json.RawMessage
}

// Requests returns every request received so far, including connects.
func (s *Server) Requests() []protocol.RequestFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.RequestFrame(nil), s.requests...)
}

// Methods returns the method names received so far, in order.
func (s *Server) Methods() []string {
	reqs := s.Requests()
	out := make([]string, len(reqs))
	for i, r := range reqs {
		out[i] = r.Method
	}
	return out
}

// Peers returns the connections accepted so far.
func (s *Server) Peers() []*Peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Peer(nil), s.peers...)
}

// DropAll closes every open connection.
func (s *Server) DropAll() {
	for _, p := range s.Peers() {
		p.Close()
	}
}

// Close shuts the server down.
func (s *Server) Close() {
	s.DropAll()
	s.srv.Close()
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("gatewaytest: upgrade failed", "error", err)
		return
	}
	peer := &Peer{conn: ws}
	s.mu.Lock()
	s.peers = append(s.peers, peer)
	s.mu.Unlock()

	defer peer.Close()
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var req protocol.RequestFrame
		if err := json.Unmarshal(data, &req); err != nil {
			peer.Send(protocol.NewErrorResponse("", protocol.ErrInvalidRequest, "malformed request: "+err.Error()))
			continue
		}

		s.mu.Lock()
		s.requests = append(s.requests, req)
		h := s.handlers[req.Method]
		s.mu.Unlock()

		if h == nil {
			peer.Send(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, "unknown method: "+req.Method))
			continue
		}
		if resp := h(r.Context(), peer, &req); resp != nil {
			peer.Send(resp)
		}
	}
}

// Peer is the server side of one client connection.
type Peer struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// Send writes any frame as JSON.
func (p *Peer) Send(frame any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return websocket.ErrCloseSent
	}
	return p.conn.WriteJSON(frame)
}

// Event sends an event frame for subscriptionID.
func (p *Peer) Event(subscriptionID, event string, payload any) error {
	return p.Send(protocol.NewEvent(subscriptionID, event, payload))
}

// Close drops the connection without a close handshake.
func (p *Peer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.conn.Close()
}
