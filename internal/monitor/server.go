// ABOUTME: WebSocket monitor that mirrors clip events to remote observers
// ABOUTME: Manages monitor connections, per-client writers and status requests
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Sendspin/phonograph-go/internal/version"
	"github.com/Sendspin/phonograph-go/pkg/clip"
)

// DefaultPath is the WebSocket endpoint
const DefaultPath = "/phonograph"

const (
	sendBuffer    = 64
	writeDeadline = 10 * time.Second
	pingInterval  = 30 * time.Second
)

// Config holds monitor configuration
type Config struct {
	// Port to listen on when started with ListenAndServe
	Port int
	// Path of the WebSocket endpoint, defaults to DefaultPath
	Path  string
	Debug bool
}

// Server broadcasts clip events to connected monitors
type Server struct {
	config    Config
	monitorID string
	upgrader  websocket.Upgrader
	mux       *http.ServeMux

	clipsMu sync.RWMutex
	clips   map[string]*watched

	clientsMu sync.RWMutex
	clients   map[string]*client

	wg sync.WaitGroup
}

type watched struct {
	clip *clip.Clip
	subs []*clip.Subscription
}

type client struct {
	id       string
	conn     *websocket.Conn
	sendChan chan interface{}
	done     chan struct{}
}

// New creates a monitor server
func New(config Config) *Server {
	if config.Path == "" {
		config.Path = DefaultPath
	}

	s := &Server{
		config:    config,
		monitorID: uuid.New().String(),
		mux:       http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin != "" && origin != "http://localhost" && origin != "http://127.0.0.1" {
					log.Printf("Warning: accepting monitor WebSocket from origin: %s", origin)
				}
				return true
			},
		},
		clips:   make(map[string]*watched),
		clients: make(map[string]*client),
	}
	s.mux.HandleFunc(config.Path, s.handleWebSocket)
	return s
}

// Handler returns the HTTP handler serving the monitor endpoint
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ID returns the monitor instance ID
func (s *Server) ID() string {
	return s.monitorID
}

// Watch mirrors every event of c to connected monitors
func (s *Server) Watch(c *clip.Clip) {
	w := &watched{clip: c}
	for _, ev := range clip.Events() {
		w.subs = append(w.subs, c.On(ev, func(p clip.Payload) {
			s.Broadcast(TypeEvent, eventFor(c.ID(), p))
		}))
	}

	s.clipsMu.Lock()
	s.clips[c.ID()] = w
	s.clipsMu.Unlock()
}

// Unwatch stops mirroring c
func (s *Server) Unwatch(c *clip.Clip) {
	s.clipsMu.Lock()
	w, ok := s.clips[c.ID()]
	delete(s.clips, c.ID())
	s.clipsMu.Unlock()

	if !ok {
		return
	}
	for _, sub := range w.subs {
		sub.Cancel()
	}
}

// Broadcast queues a message for every connected monitor. Slow monitors
// drop messages rather than stall playback.
func (s *Server) Broadcast(msgType string, payload interface{}) {
	msg := Message{Type: msgType, Payload: payload}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, c := range s.clients {
		select {
		case c.sendChan <- msg:
		default:
			if s.config.Debug {
				log.Printf("[DEBUG] Monitor %s send buffer full, dropping %s", c.id, msgType)
			}
		}
	}
}

// ClientCount returns the number of connected monitors
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// ListenAndServe serves the monitor until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Printf("Monitor listening on %s%s", addr, s.config.Path)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("monitor server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Monitor shutdown error: %v", err)
	}
	s.Close()
	return nil
}

// Close disconnects every monitor and waits for their writers
func (s *Server) Close() {
	s.clientsMu.RLock()
	for _, c := range s.clients {
		c.conn.Close()
	}
	s.clientsMu.RUnlock()
	s.wg.Wait()
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Monitor upgrade error: %v", err)
		return
	}

	log.Printf("Monitor connected from %s", r.RemoteAddr)
	s.handleConnection(conn)
}

func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	c := &client{
		id:       uuid.New().String(),
		conn:     conn,
		sendChan: make(chan interface{}, sendBuffer),
		done:     make(chan struct{}),
	}

	// hello is queued before registration so it is always first
	c.sendChan <- Message{Type: TypeHello, Payload: Hello{
		MonitorID: s.monitorID,
		ClientID:  c.id,
		Product:   version.Product,
		Version:   version.Version,
		Clips:     s.clipIDs(),
	}}

	s.clientsMu.Lock()
	s.clients[c.id] = c
	s.clientsMu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.clientWriter(c)
	}()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, c.id)
		s.clientsMu.Unlock()
		close(c.done)
		log.Printf("Monitor disconnected: %s", c.id)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("Monitor WebSocket error: %v", err)
			}
			return
		}
		s.handleClientMessage(c, data)
	}
}

func (s *Server) handleClientMessage(c *client, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Error unmarshaling monitor message: %v", err)
		return
	}

	switch msg.Type {
	case TypeStatusReq:
		for _, st := range s.statuses() {
			select {
			case c.sendChan <- Message{Type: TypeStatus, Payload: st}:
			default:
				log.Printf("Warning: monitor %s send buffer full", c.id)
			}
		}
	default:
		log.Printf("Unknown monitor message type: %s", msg.Type)
	}
}

// clientWriter drains the client's queue onto the socket
func (s *Server) clientWriter(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return

		case msg := <-c.sendChan:
			data, err := json.Marshal(msg)
			if err != nil {
				log.Printf("Error marshaling monitor message: %v", err)
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("Error writing monitor message: %v", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				return
			}
		}
	}
}

func (s *Server) clipIDs() []string {
	s.clipsMu.RLock()
	defer s.clipsMu.RUnlock()
	ids := make([]string, 0, len(s.clips))
	for id := range s.clips {
		ids = append(ids, id)
	}
	return ids
}

func (s *Server) statuses() []Status {
	s.clipsMu.RLock()
	clips := make([]*clip.Clip, 0, len(s.clips))
	for _, w := range s.clips {
		clips = append(clips, w.clip)
	}
	s.clipsMu.RUnlock()

	out := make([]Status, 0, len(clips))
	for _, c := range clips {
		out = append(out, statusFor(c.Stats()))
	}
	return out
}

func statusFor(st clip.Stats) Status {
	state := "paused"
	switch {
	case st.Playing:
		state = "playing"
	case st.Ended:
		state = "ended"
	}

	return Status{
		ClipID:      st.ID,
		URL:         st.URL,
		State:       state,
		Loop:        st.Loop,
		CurrentTime: st.CurrentTime,
		Duration:    st.Duration,
		Volume:      st.Volume,
		Buffered:    st.Buffered,
		Length:      st.Length,
		Segments:    st.Segments,
		Ready:       st.Ready,
		SyncQuality: st.Clock.Quality.String(),
		DriftPPM:    st.Clock.Drift * 1e6,
	}
}

func eventFor(clipID string, p clip.Payload) Event {
	ev := Event{ClipID: clipID, Event: p.Event().String()}

	switch v := p.(type) {
	case clip.Progress:
		ev.CurrentTime = &v.CurrentTime
		ev.Drift = &v.Drift
	case clip.LoadProgress:
		ev.Fraction = &v.Fraction
		ev.Loaded = &v.Loaded
		ev.Total = &v.Total
	case clip.Failure:
		if v.Err != nil {
			ev.Code = string(v.Err.Code)
			ev.Error = v.Err.Error()
		}
	}
	return ev
}
