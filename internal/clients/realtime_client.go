package clients

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/novafi/novafi/internal/entity"
	"github.com/novafi/novafi/pkg/retrier"
)

// HandleState tracks a subscription through its lifecycle.
type HandleState int32

const (
	HandleClosed HandleState = iota
	HandleOpening
	HandleOpen
)

// NotificationHandler consumes change notifications for one table.
type NotificationHandler func(entity.ChangeNotification)

// Handle is one open change-notification subscription. It is owned by the
// component that opened it and must be closed when that component's
// lifetime ends; otherwise the channel keeps delivering to a dead consumer.
type Handle struct {
	table   entity.Resource
	client  *RealtimeClient
	handler NotificationHandler

	mu    sync.Mutex
	state HandleState
}

// State returns the current lifecycle state.
func (h *Handle) State() HandleState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Close stops forwarding. After Close returns, the handler is never
// called again. Closing twice is a no-op.
func (h *Handle) Close() {
	h.mu.Lock()
	already := h.state == HandleClosed
	h.state = HandleClosed
	h.mu.Unlock()
	if already {
		return
	}
	h.client.release(h)
}

// deliver forwards a notification while the handle is open. The handle
// mutex is held across the handler call so Close cannot return while a
// delivery is still running.
func (h *Handle) deliver(n entity.ChangeNotification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != HandleOpen {
		return
	}
	h.handler(n)
}

func (h *Handle) markOpen() {
	h.mu.Lock()
	h.state = HandleOpen
	h.mu.Unlock()
}

// subscribeFrame is what the client writes to register interest in a table.
type subscribeFrame struct {
	Action string `json:"action"`
	Table  string `json:"table"`
}

// RealtimeClient owns one websocket connection to the backend's push feed
// and multiplexes per-table subscriptions over it. Notifications carry no
// row payload, only the table name and event kind.
type RealtimeClient struct {
	endpoint string
	apiKey   string
	logger   *zap.Logger
	retr     *retrier.Retrier

	mu      sync.Mutex
	conn    *websocket.Conn
	handles map[entity.Resource]*Handle

	// wmu serializes writes; gorilla connections allow one writer at a time.
	wmu sync.Mutex
}

func (c *RealtimeClient) writeFrame(conn *websocket.Conn, frame subscribeFrame) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return conn.WriteJSON(frame)
}

// NewRealtimeClient creates a client for the given websocket endpoint.
// No connection is made until the first Subscribe.
func NewRealtimeClient(endpoint, apiKey string, logger *zap.Logger) *RealtimeClient {
	return &RealtimeClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		logger:   logger,
		retr:     retrier.New(retrier.WithMaxRetries(3)),
		handles:  make(map[entity.Resource]*Handle),
	}
}

// Subscribe opens a change-notification channel for the table. If an open
// handle for the table already exists it is returned as-is, so remounting
// a view cannot double-trigger reconciliation from the same logical event.
func (c *RealtimeClient) Subscribe(ctx context.Context, table entity.Resource, handler NotificationHandler) (*Handle, error) {
	c.mu.Lock()
	if existing, ok := c.handles[table]; ok && existing.State() != HandleClosed {
		c.mu.Unlock()
		return existing, nil
	}

	h := &Handle{table: table, client: c, handler: handler, state: HandleOpening}
	c.handles[table] = h

	if err := c.ensureConnLocked(ctx); err != nil {
		delete(c.handles, table)
		c.mu.Unlock()
		return nil, errors.Wrapf(err, "open realtime channel for %s", table)
	}
	conn := c.conn
	c.mu.Unlock()

	frame := subscribeFrame{Action: "subscribe", Table: string(table)}
	if err := c.writeFrame(conn, frame); err != nil {
		c.mu.Lock()
		delete(c.handles, table)
		c.mu.Unlock()
		return nil, errors.Wrapf(err, "subscribe to %s", table)
	}

	h.markOpen()
	c.logger.Debug("realtime channel open", zap.String("table", string(table)))
	return h, nil
}

// Close tears down the connection and marks every handle closed.
func (c *RealtimeClient) Close() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	handles := c.handles
	c.handles = make(map[entity.Resource]*Handle)
	c.mu.Unlock()

	for _, h := range handles {
		h.mu.Lock()
		h.state = HandleClosed
		h.mu.Unlock()
	}
	if conn != nil {
		conn.Close()
	}
}

// ensureConnLocked dials the feed if needed and starts the read loop.
// Caller holds c.mu.
func (c *RealtimeClient) ensureConnLocked(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	header := http.Header{}
	if c.apiKey != "" {
		header.Set("apikey", c.apiKey)
	}

	conn, err := retrier.DoWithData(c.retr, ctx, func(ctx context.Context) (*websocket.Conn, error) {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.endpoint, header)
		return conn, err
	})
	if err != nil {
		return err
	}

	c.conn = conn
	go c.readLoop(conn)
	return nil
}

// readLoop pumps notifications to handles until the connection drops.
// A dropped feed means staleness, not corruption: handles are closed and
// the next view mount re-opens the channel.
func (c *RealtimeClient) readLoop(conn *websocket.Conn) {
	for {
		var n entity.ChangeNotification
		if err := conn.ReadJSON(&n); err != nil {
			c.logger.Warn("realtime feed dropped", zap.Error(err))
			c.dropConn(conn)
			return
		}

		c.mu.Lock()
		h := c.handles[n.Table]
		c.mu.Unlock()

		if h == nil {
			continue
		}
		h.deliver(n)
	}
}

func (c *RealtimeClient) dropConn(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = nil
	handles := c.handles
	c.handles = make(map[entity.Resource]*Handle)
	c.mu.Unlock()

	for _, h := range handles {
		h.mu.Lock()
		h.state = HandleClosed
		h.mu.Unlock()
	}
	conn.Close()
}

// release detaches a closed handle and tells the backend to stop delivery.
func (c *RealtimeClient) release(h *Handle) {
	c.mu.Lock()
	if current, ok := c.handles[h.table]; ok && current == h {
		delete(c.handles, h.table)
	}
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		frame := subscribeFrame{Action: "unsubscribe", Table: string(h.table)}
		if err := c.writeFrame(conn, frame); err != nil {
			c.logger.Debug("unsubscribe write failed", zap.String("table", string(h.table)), zap.Error(err))
		}
	}
}
