// ABOUTME: WebSocket client for the phonograph event monitor
// ABOUTME: Handles connection, hello handshake, and message routing
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Sendspin/phonograph-go/internal/monitor"
)

// Config holds client configuration
type Config struct {
	// Addr is host:port of the monitor
	Addr string
	// Path defaults to monitor.DefaultPath
	Path string
}

// Client watches one player's monitor
type Client struct {
	config Config
	conn   *websocket.Conn
	mu     sync.RWMutex
	hello  monitor.Hello

	// Message channels
	Events   chan monitor.Event
	Statuses chan monitor.Status

	// State
	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a new monitor client
func NewClient(config Config) *Client {
	if config.Path == "" {
		config.Path = monitor.DefaultPath
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config:   config,
		Events:   make(chan monitor.Event, 100),
		Statuses: make(chan monitor.Status, 10),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Connect establishes the WebSocket connection and waits for the hello
func (c *Client) Connect() error {
	u := url.URL{Scheme: "ws", Host: c.config.Addr, Path: c.config.Path}
	log.Printf("Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()

	return nil
}

// handshake reads the monitor/hello the server sends first
func (c *Client) handshake() error {
	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", monitor.TypeHello, err)
	}
	c.conn.SetReadDeadline(time.Time{})

	var msg monitor.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", monitor.TypeHello, err)
	}
	if msg.Type != monitor.TypeHello {
		return fmt.Errorf("expected %s, got %s", monitor.TypeHello, msg.Type)
	}

	var hello monitor.Hello
	if err := decodePayload(msg.Payload, &hello); err != nil {
		return fmt.Errorf("failed to parse %s: %w", monitor.TypeHello, err)
	}

	c.mu.Lock()
	c.hello = hello
	c.mu.Unlock()

	log.Printf("Connected to %s %s monitor %s (%d clips)", hello.Product, hello.Version, hello.MonitorID, len(hello.Clips))
	return nil
}

// Hello returns the handshake received from the monitor
func (c *Client) Hello() monitor.Hello {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hello
}

// RequestStatus asks for a snapshot of every watched clip
func (c *Client) RequestStatus() error {
	return c.sendJSON(monitor.Message{Type: monitor.TypeStatusReq})
}

func (c *Client) sendJSON(msg monitor.Message) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return fmt.Errorf("not connected")
	}

	return c.conn.WriteJSON(msg)
}

// readMessages reads and routes incoming messages
func (c *Client) readMessages() {
	defer c.Close()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Read error: %v", err)
			}
			return
		}

		if messageType == websocket.TextMessage {
			c.handleJSONMessage(data)
		}
	}
}

// handleJSONMessage routes JSON messages
func (c *Client) handleJSONMessage(data []byte) {
	var msg monitor.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Failed to parse JSON message: %v", err)
		return
	}

	switch msg.Type {
	case monitor.TypeEvent:
		var ev monitor.Event
		if err := decodePayload(msg.Payload, &ev); err != nil {
			log.Printf("Failed to parse %s: %v", msg.Type, err)
			return
		}
		select {
		case c.Events <- ev:
		case <-c.ctx.Done():
		}

	case monitor.TypeStatus:
		var st monitor.Status
		if err := decodePayload(msg.Payload, &st); err != nil {
			log.Printf("Failed to parse %s: %v", msg.Type, err)
			return
		}
		select {
		case c.Statuses <- st:
		case <-c.ctx.Done():
		}

	default:
		log.Printf("Unknown message type: %s", msg.Type)
	}
}

// decodePayload converts a generically decoded payload into v
func decodePayload(payload interface{}, v interface{}) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(payloadBytes, v)
}

// Done is closed when the connection ends
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()
		c.conn.Close()
		log.Printf("Connection closed")
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
