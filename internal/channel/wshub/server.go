// Package wshub relays broadcast channels over websockets, so client
// instances in separate processes sharing an origin can reach each other.
package wshub

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/mkrupp/eventhub/internal/infra/logging"
	http_ "github.com/mkrupp/eventhub/internal/infra/transport/http"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 60 * time.Second
	// bufferSize is the number of undelivered frames kept per connection.
	bufferSize = 32
	// maxMessageSize limits inbound frames.
	maxMessageSize = 4096
)

// Path is the route of the channel endpoint; {name} selects the channel.
const Path = "/channel/v1/{name}"

type conn struct {
	wc   *websocket.Conn
	send chan []byte
}

// Server relays every text frame to the other connections of the same channel.
type Server struct {
	upgrader websocket.Upgrader
	m        sync.Mutex
	rooms    map[string]map[*conn]struct{}
	log      logging.Logger
	router   *mux.Router
}

var _ http_.HTTPTransport = (*Server)(nil)

// NewServer creates a new Server.
func NewServer() *Server {
	s := &Server{ //nolint:exhaustruct
		rooms:  make(map[string]map[*conn]struct{}),
		log:    logging.GetLogger("channel.wshub.server"),
		router: mux.NewRouter(),
	}

	s.Register(s.router)

	return s
}

// Register adds the channel endpoint to router.
func (s *Server) Register(router *mux.Router) {
	router.HandleFunc(Path, s.HandleConnect).Methods(http.MethodGet)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Members returns the number of connections joined to the channel name.
func (s *Server) Members(name string) int {
	s.m.Lock()
	defer s.m.Unlock()

	return len(s.rooms[name])
}

// HandleConnect upgrades the request and relays frames until the peer leaves.
func (s *Server) HandleConnect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := mux.Vars(r)["name"]
	log := http_.RequestLogger(s.log, r).With("channel", name)

	wc, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WarnContext(ctx, "upgrade failed", "error", err)

		return
	}

	c := &conn{wc: wc, send: make(chan []byte, bufferSize)}

	s.join(name, c)
	log.DebugContext(ctx, "joined")

	go s.write(c)

	err = s.read(ctx, name, c)

	s.leave(name, c)

	if err != nil {
		log.WarnContext(ctx, "read failed", "error", err)
	} else {
		log.DebugContext(ctx, "left")
	}
}

func (s *Server) join(name string, c *conn) {
	s.m.Lock()
	defer s.m.Unlock()

	if s.rooms[name] == nil {
		s.rooms[name] = make(map[*conn]struct{})
	}

	s.rooms[name][c] = struct{}{}
}

func (s *Server) leave(name string, c *conn) {
	s.m.Lock()
	defer s.m.Unlock()

	delete(s.rooms[name], c)

	if len(s.rooms[name]) == 0 {
		delete(s.rooms, name)
	}

	close(c.send)
}

func (s *Server) broadcast(ctx context.Context, name string, from *conn, data []byte) {
	s.m.Lock()
	defer s.m.Unlock()

	for c := range s.rooms[name] {
		if c == from {
			continue
		}

		select {
		case c.send <- data:
		default:
			s.log.WarnContext(ctx, "frame dropped", "channel", name)
		}
	}
}

func (s *Server) read(ctx context.Context, name string, c *conn) error {
	c.wc.SetReadLimit(maxMessageSize)

	for {
		op, data, err := c.wc.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return fmt.Errorf("read message: %w", err)
			}

			return nil
		}

		if op != websocket.TextMessage {
			continue
		}

		s.broadcast(ctx, name, c, data)
	}
}

func (s *Server) write(c *conn) {
	ticker := time.NewTicker(pingInterval)

	defer func() {
		ticker.Stop()
		_ = c.wc.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.wc.SetWriteDeadline(time.Now().Add(writeTimeout))

			if !ok {
				_ = c.wc.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

				return
			}

			if err := c.wc.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.wc.SetWriteDeadline(time.Now().Add(writeTimeout))

			if err := c.wc.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
