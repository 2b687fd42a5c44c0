// Package gateway is the WebSocket RPC transport to the discordlite server.
// A Client multiplexes request/response calls and event subscriptions over a
// single connection and redials lazily after the connection drops.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/discordlite/internal/chat"
	"github.com/nextlevelbuilder/discordlite/pkg/protocol"
)

// maxWSMessageSize is the maximum allowed WebSocket message size (512KB).
const maxWSMessageSize = 512 * 1024

const (
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

// Config configures a Client.
type Config struct {
	Endpoint          string        // "host:port", "ws://host:port" or "wss://host:port"
	Path              string        // WebSocket path (default "/ws")
	ClientName        string        // sent in the connect handshake
	CallTimeout       time.Duration // per-call timeout (default 15s)
	HandshakeTimeout  time.Duration // dial + connect timeout (default 10s)
	RequestsPerMinute int           // outbound pacing, <= 0 disables
	Burst             int           // pacing burst (default 5)
}

// URL returns the WebSocket URL the client dials.
func (c Config) URL() (string, error) {
	endpoint := strings.TrimSpace(c.Endpoint)
	if endpoint == "" {
		return "", fmt.Errorf("gateway endpoint is required")
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "ws://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse gateway endpoint: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported gateway scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("gateway endpoint %q has no host", c.Endpoint)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = c.Path
		if u.Path == "" {
			u.Path = "/ws"
		}
	}
	return u.String(), nil
}

func (c Config) withDefaults() Config {
	if c.CallTimeout <= 0 {
		c.CallTimeout = 15 * time.Second
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.ClientName == "" {
		c.ClientName = "discordlite"
	}
	return c
}

// Client is safe for concurrent use.
type Client struct {
	cfg    Config
	url    string
	pacer  *pacer
	tracer trace.Tracer

	mu     sync.Mutex // guards conn and closed; held while dialing
	conn   *conn
	closed bool
}

// Dial connects to the gateway and performs the connect handshake.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if _, err := c.connection(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// New returns a Client that connects on its first call.
func New(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	u, err := cfg.URL()
	if err != nil {
		return nil, chat.Wrap(chat.InvalidArgument, "gateway.dial", err)
	}
	return &Client{
		cfg:    cfg,
		url:    u,
		pacer:  newPacer(cfg.RequestsPerMinute, cfg.Burst),
		tracer: otel.Tracer("github.com/nextlevelbuilder/discordlite/internal/gateway"),
	}, nil
}

// URL returns the WebSocket URL of the gateway.
func (c *Client) URL() string { return c.url }

// Call sends one request and decodes the response payload into out (which
// may be nil). Failures are *chat.Error values; context cancellation is
// returned unchanged.
func (c *Client) Call(ctx context.Context, method string, params, out any) error {
	_, err := c.invoke(ctx, method, params, out)
	return err
}

// invoke runs one traced call and returns the connection that served it.
func (c *Client) invoke(ctx context.Context, method string, params, out any) (*conn, error) {
	ctx, span := c.tracer.Start(ctx, "gateway "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("rpc.system", "discordlite"),
			attribute.String("rpc.method", method),
		),
	)
	defer span.End()

	cn, err := c.call(ctx, method, params, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("discordlite.error_kind", chat.KindOf(err).String()))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return cn, err
}

func (c *Client) call(ctx context.Context, method string, params, out any) (*conn, error) {
	if err := c.pacer.wait(ctx); err != nil {
		return nil, err
	}

	cn, err := c.connection(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := cn.roundTrip(ctx, method, params, c.cfg.CallTimeout)
	if err != nil {
		return cn, err
	}
	if !resp.OK {
		return cn, responseError(method, resp.Error)
	}
	if out == nil || len(resp.Payload) == 0 {
		return cn, nil
	}
	if err := json.Unmarshal(resp.Payload, out); err != nil {
		return cn, chat.Wrap(chat.Unknown, method, fmt.Errorf("decode response: %w", err))
	}
	return cn, nil
}

// Subscribe calls method and returns the subscription it opened. The
// response payload must carry a subscriptionId. Closing the subscription
// calls the matching ".unsubscribe" method.
func (c *Client) Subscribe(ctx context.Context, method string, params any) (*Subscription, error) {
	var res protocol.MessagesSubscribeResult
	cn, err := c.invoke(ctx, method, params, &res)
	if err != nil {
		return nil, err
	}
	if res.SubscriptionID == "" {
		return nil, chat.Errorf(chat.Unknown, method, "server returned no subscription id")
	}

	sub := newSubscription(c, cn, res.SubscriptionID, strings.TrimSuffix(method, ".subscribe")+".unsubscribe")
	if !cn.addSubscription(sub) {
		return nil, chat.Errorf(chat.StreamFailed, method, "connection lost before subscription started")
	}
	slog.Debug("gateway subscription opened", "method", method, "subscription", sub.id)
	return sub, nil
}

// Close drops the connection and terminates every pending call and
// subscription. Later calls fail.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	cn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if cn != nil {
		cn.fail(errConnClosed)
	}
	return nil
}

// connection returns the live connection, dialing a new one when needed.
func (c *Client) connection(ctx context.Context) (*conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, networkError("gateway.dial", errConnClosed)
	}
	if c.conn != nil && c.conn.alive() {
		return c.conn, nil
	}

	dctx, cancel := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	ws, _, err := dialer.DialContext(dctx, c.url, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, networkError("gateway.dial", fmt.Errorf("connect to gateway at %s: %w", c.url, err))
	}

	cn := newConn(ws)
	go cn.writePump()
	go cn.readPump()

	resp, err := cn.roundTrip(ctx, protocol.MethodConnect, protocol.ConnectParams{
		Protocol: protocol.ProtocolVersion,
		Client:   c.cfg.ClientName,
	}, c.cfg.HandshakeTimeout)
	if err == nil && !resp.OK {
		err = responseError(protocol.MethodConnect, resp.Error)
	}
	if err != nil {
		cn.fail(errConnClosed)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	slog.Info("gateway connected", "url", c.url)
	c.conn = cn
	return cn, nil
}

// conn is one WebSocket connection with its pumps.
type conn struct {
	ws   *websocket.Conn
	send chan []byte

	mu      sync.Mutex
	pending map[string]chan *protocol.ResponseFrame
	subs    map[string]*Subscription
	orphans map[string][]protocol.EventFrame // events that beat their subscribe response

	done     chan struct{}
	failOnce sync.Once
	err      error
}

const (
	maxOrphanSubs   = 16
	maxOrphanEvents = 32
)

func newConn(ws *websocket.Conn) *conn {
	return &conn{
		ws:      ws,
		send:    make(chan []byte, 64),
		pending: make(map[string]chan *protocol.ResponseFrame),
		subs:    make(map[string]*Subscription),
		orphans: make(map[string][]protocol.EventFrame),
		done:    make(chan struct{}),
	}
}

func (cn *conn) alive() bool {
	select {
	case <-cn.done:
		return false
	default:
		return true
	}
}

// cause returns the error that ended the connection.
func (cn *conn) cause() error {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	return cn.err
}

// fail closes the connection once, ending pending calls with a network error
// and subscriptions with StreamFailed.
func (cn *conn) fail(err error) {
	cn.failOnce.Do(func() {
		cn.mu.Lock()
		cn.err = err
		subs := cn.subs
		cn.subs = make(map[string]*Subscription)
		cn.orphans = nil
		cn.mu.Unlock()

		close(cn.done)
		cn.ws.Close()

		for _, s := range subs {
			s.terminate(&chat.Error{Kind: chat.StreamFailed, Op: "gateway.stream", Err: err})
		}
		if !errors.Is(err, errConnClosed) {
			slog.Warn("gateway connection lost", "error", err, "subscriptions", len(subs))
		}
	})
}

func (cn *conn) roundTrip(ctx context.Context, method string, params any, timeout time.Duration) (*protocol.ResponseFrame, error) {
	id := uuid.NewString()
	req, err := protocol.NewRequest(id, method, params)
	if err != nil {
		return nil, chat.Wrap(chat.InvalidArgument, method, err)
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, chat.Wrap(chat.InvalidArgument, method, err)
	}

	ch := make(chan *protocol.ResponseFrame, 1)
	cn.mu.Lock()
	cn.pending[id] = ch
	cn.mu.Unlock()
	defer func() {
		cn.mu.Lock()
		delete(cn.pending, id)
		cn.mu.Unlock()
	}()

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case cn.send <- data:
	case <-cn.done:
		return nil, networkError(method, cn.cause())
	case <-cctx.Done():
		return nil, cn.expired(ctx, method)
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-cn.done:
		return nil, networkError(method, cn.cause())
	case <-cctx.Done():
		return nil, cn.expired(ctx, method)
	}
}

// expired reports a caller cancellation as-is and a call timeout as a
// network error.
func (cn *conn) expired(ctx context.Context, method string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return chat.Errorf(chat.NetworkError, method, "request timed out")
}

func (cn *conn) addSubscription(s *Subscription) bool {
	cn.mu.Lock()
	if cn.orphans == nil {
		cn.mu.Unlock()
		return false
	}
	cn.subs[s.id] = s
	early := cn.orphans[s.id]
	delete(cn.orphans, s.id)
	cn.mu.Unlock()

	for _, ev := range early {
		s.deliver(ev)
	}
	return true
}

func (cn *conn) removeSubscription(id string) {
	cn.mu.Lock()
	delete(cn.subs, id)
	if cn.orphans != nil {
		delete(cn.orphans, id)
	}
	cn.mu.Unlock()
}

// readPump reads frames until the connection fails.
func (cn *conn) readPump() {
	cn.ws.SetReadLimit(maxWSMessageSize)
	cn.ws.SetReadDeadline(time.Now().Add(pongWait))
	cn.ws.SetPongHandler(func(string) error {
		cn.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := cn.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				cn.fail(fmt.Errorf("gateway closed the connection: %w", err))
			} else {
				cn.fail(fmt.Errorf("read: %w", err))
			}
			return
		}

		// Reset read deadline on activity
		cn.ws.SetReadDeadline(time.Now().Add(pongWait))

		cn.handleFrame(data)
	}
}

func (cn *conn) handleFrame(data []byte) {
	frameType, err := protocol.ParseFrameType(data)
	if err != nil {
		slog.Warn("gateway sent invalid frame", "error", err)
		return
	}

	switch frameType {
	case protocol.FrameTypeResponse:
		var resp protocol.ResponseFrame
		if err := json.Unmarshal(data, &resp); err != nil {
			slog.Warn("gateway sent malformed response", "error", err)
			return
		}
		cn.mu.Lock()
		ch := cn.pending[resp.ID]
		cn.mu.Unlock()
		if ch == nil {
			slog.Debug("response for unknown request", "id", resp.ID)
			return
		}
		select {
		case ch <- &resp:
		default:
			slog.Debug("duplicate response", "id", resp.ID)
		}

	case protocol.FrameTypeEvent:
		var ev protocol.EventFrame
		if err := json.Unmarshal(data, &ev); err != nil {
			slog.Warn("gateway sent malformed event", "error", err)
			return
		}
		cn.mu.Lock()
		sub := cn.subs[ev.SubscriptionID]
		if sub == nil && cn.orphans != nil && ev.SubscriptionID != "" {
			if q, known := cn.orphans[ev.SubscriptionID]; known || len(cn.orphans) < maxOrphanSubs {
				if len(q) < maxOrphanEvents {
					cn.orphans[ev.SubscriptionID] = append(q, ev)
				}
			}
		}
		cn.mu.Unlock()
		if sub != nil {
			sub.deliver(ev)
		}

	default:
		slog.Debug("ignoring gateway frame", "type", frameType)
	}
}

// writePump writes frames and pings to the WebSocket connection.
func (cn *conn) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-cn.send:
			cn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cn.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				cn.fail(fmt.Errorf("write: %w", err))
				return
			}

		case <-ticker.C:
			cn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cn.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				cn.fail(fmt.Errorf("ping: %w", err))
				return
			}

		case <-cn.done:
			cn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			cn.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
