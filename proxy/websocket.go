package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/airchains-network/devchain/api"
	"github.com/airchains-network/devchain/types"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512 * 1024
)

// BlockSource publishes every block appended to the chain
type BlockSource interface {
	SubscribeBlocks() (<-chan *types.Block, func())
}

// WebSocketClient is one connected WebSocket client
type WebSocketClient struct {
	conn *websocket.Conn
	send chan []byte
	log  *logrus.Logger

	mu            sync.Mutex
	closed        bool
	subscriptions map[string]string
}

// queue hands msg to the write pump. It reports false when the client is
// gone or too slow to keep up.
func (c *WebSocketClient) queue(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *WebSocketClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *WebSocketClient) subscribe(id, kind string) {
	c.mu.Lock()
	c.subscriptions[id] = kind
	c.mu.Unlock()
}

func (c *WebSocketClient) unsubscribe(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subscriptions[id]
	delete(c.subscriptions, id)
	return ok
}

func (c *WebSocketClient) subscribed(kind string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ids []string
	for id, k := range c.subscriptions {
		if k == kind {
			ids = append(ids, id)
		}
	}
	return ids
}

// WebSocketManager tracks connected clients and fans block events out to
// their subscriptions
type WebSocketManager struct {
	clients    map[*WebSocketClient]bool
	register   chan *WebSocketClient
	unregister chan *WebSocketClient
	dispatcher *dispatcher
	blocks     BlockSource
	nextSubID  atomic.Uint64
	done       chan struct{}
	log        *logrus.Logger
}

// newWebSocketManager creates a manager serving calls through d
func newWebSocketManager(d *dispatcher, blocks BlockSource, log *logrus.Logger) *WebSocketManager {
	return &WebSocketManager{
		clients:    make(map[*WebSocketClient]bool),
		register:   make(chan *WebSocketClient),
		unregister: make(chan *WebSocketClient),
		dispatcher: d,
		blocks:     blocks,
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run serves registrations and block events until ctx is done
func (manager *WebSocketManager) Run(ctx context.Context) {
	defer close(manager.done)
	var heads <-chan *types.Block
	if manager.blocks != nil {
		ch, cancel := manager.blocks.SubscribeBlocks()
		defer cancel()
		heads = ch
	}

	for {
		select {
		case <-ctx.Done():
			for client := range manager.clients {
				client.close()
			}
			return
		case client := <-manager.register:
			manager.clients[client] = true
			manager.dispatcher.metrics.WSClients(len(manager.clients))
			manager.log.Infof("New WebSocket client connected. Total clients: %d", len(manager.clients))
		case client := <-manager.unregister:
			if _, ok := manager.clients[client]; ok {
				delete(manager.clients, client)
				client.close()
				manager.dispatcher.metrics.WSClients(len(manager.clients))
				manager.log.Infof("WebSocket client disconnected. Total clients: %d", len(manager.clients))
			}
		case block, ok := <-heads:
			if !ok {
				heads = nil
				continue
			}
			manager.broadcastHead(block)
		}
	}
}

// broadcastHead sends a newHeads notification to every subscription. Slow
// clients are disconnected.
func (manager *WebSocketManager) broadcastHead(block *types.Block) {
	head := api.NewRPCBlock(block, false)
	for client := range manager.clients {
		for _, id := range client.subscribed("newHeads") {
			msg, err := json.Marshal(notification(id, head))
			if err != nil {
				manager.log.Errorf("Failed to marshal notification: %v", err)
				continue
			}
			if !client.queue(msg) {
				delete(manager.clients, client)
				client.close()
				manager.dispatcher.metrics.WSClients(len(manager.clients))
				break
			}
		}
	}
}

func notification(id string, result interface{}) interface{} {
	return map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "eth_subscription",
		"params": map[string]interface{}{
			"subscription": id,
			"result":       result,
		},
	}
}

// handleWebSocket upgrades the connection and starts its pumps
func (manager *WebSocketManager) handleWebSocket(upgrader websocket.Upgrader, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		manager.log.Errorf("Failed to upgrade connection to WebSocket: %v", err)
		return
	}

	client := &WebSocketClient{
		conn:          conn,
		send:          make(chan []byte, 256),
		log:           manager.log,
		subscriptions: make(map[string]string),
	}
	select {
	case manager.register <- client:
	case <-manager.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(manager)
}

// readPump serves calls read from the connection
func (c *WebSocketClient) readPump(manager *WebSocketManager) {
	defer func() {
		select {
		case manager.unregister <- c:
		case <-manager.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Errorf("WebSocket read error: %v", err)
			}
			break
		}

		resp := manager.serve(c, message)
		out, err := json.Marshal(resp)
		if err != nil {
			c.log.Errorf("Failed to marshal WebSocket response: %v", err)
			continue
		}
		if !c.queue(out) {
			break
		}
	}
}

// serve answers one message. Subscriptions are connection state and are
// handled here; every other method goes to the dispatcher.
func (manager *WebSocketManager) serve(c *WebSocketClient, message []byte) interface{} {
	var req rpcRequest
	if err := json.Unmarshal(message, &req); err != nil {
		return manager.dispatcher.serve(context.Background(), message)
	}

	var params []json.RawMessage
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			params = nil
		}
	}
	switch req.Method {
	case "eth_subscribe":
		var kind string
		if len(params) < 1 || json.Unmarshal(params[0], &kind) != nil {
			return errorResponse(req.ID, api.CodeInvalidParams, "missing subscription type")
		}
		if kind != "newHeads" {
			return errorResponse(req.ID, api.CodeInvalidParams, fmt.Sprintf("unsupported subscription type: %s", kind))
		}
		id := fmt.Sprintf("0x%x", manager.nextSubID.Add(1))
		c.subscribe(id, kind)
		return &rpcResponse{ID: req.ID, Result: id}
	case "eth_unsubscribe":
		var id string
		if len(params) < 1 || json.Unmarshal(params[0], &id) != nil {
			return errorResponse(req.ID, api.CodeInvalidParams, "missing subscription id")
		}
		return &rpcResponse{ID: req.ID, Result: c.unsubscribe(id)}
	}
	return manager.dispatcher.serve(context.Background(), message)
}

// writePump writes queued messages and keeps the connection alive
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
