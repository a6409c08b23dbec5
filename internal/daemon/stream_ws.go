package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"scott/internal/api"
	"scott/internal/logging"
	"scott/internal/logtail"
)

const (
	socketBufferSize = 4096
	socketSendBuffer = 16
	socketWriteWait  = 10 * time.Second
	socketPongWait   = 60 * time.Second
	socketPingPeriod = (socketPongWait * 9) / 10
	socketMaxMessage = 64 * 1024
	socketReplyWait  = 2 * time.Second
)

var errSocketClosed = errors.New("socket closed")

// socketClient is one /ws/logs connection. Its id doubles as the log
// subscriber id, so each connection owns at most one monitoring session.
type socketClient struct {
	id     string
	conn   *websocket.Conn
	logger *slog.Logger

	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	pumpDone  chan struct{}
}

func newSocketClient(conn *websocket.Conn, logger *slog.Logger) *socketClient {
	id := uuid.NewString()
	return &socketClient{
		id:       id,
		conn:     conn,
		logger:   logger.With(logging.String(logging.FieldSubscriber, id)),
		send:     make(chan []byte, socketSendBuffer),
		closed:   make(chan struct{}),
		pumpDone: make(chan struct{}),
	}
}

func (c *socketClient) Send(ctx context.Context, snap logtail.Snapshot) error {
	return c.emit(ctx, api.EventLogUpdate, "", snap)
}

func (c *socketClient) SendError(ctx context.Context, message string) error {
	return c.emit(ctx, api.EventLogError, "", api.LogError{Error: message})
}

// reply answers a client request. It gives up when the connection is gone
// or the write pump has stalled.
func (c *socketClient) reply(event, ref string, payload any) {
	ctx, cancel := context.WithTimeout(context.Background(), socketReplyWait)
	defer cancel()
	if err := c.emit(ctx, event, ref, payload); err != nil && !errors.Is(err, errSocketClosed) {
		c.logger.Debug("socket reply dropped", logging.String(logging.FieldEventType, event), logging.Error(err))
	}
}

func (c *socketClient) emit(ctx context.Context, event, ref string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(api.SocketMessage{Event: event, Ref: ref, Data: data})
	if err != nil {
		return err
	}
	select {
	case <-c.closed:
		return errSocketClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	case <-c.closed:
		return errSocketClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *socketClient) close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// writePump is the only writer on the connection.
func (c *socketClient) writePump() {
	ticker := time.NewTicker(socketPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		close(c.pumpDone)
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.closed:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(socketWriteWait))
			return
		}
	}
}

func (s *apiServer) handleLogSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log().Warn("websocket upgrade failed", logging.String("remote", r.RemoteAddr), logging.Error(err))
		return
	}

	client := newSocketClient(conn, s.log())
	s.sockets.add(client)
	client.logger.Debug("log socket connected", logging.String("remote", r.RemoteAddr))

	go client.writePump()
	s.readLoop(client)

	s.logs.Unsubscribe(client.id)
	client.close()
	<-client.pumpDone
	s.sockets.remove(client)
	client.logger.Debug("log socket disconnected")
}

func (s *apiServer) readLoop(c *socketClient) {
	c.conn.SetReadLimit(socketMaxMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(socketPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(socketPongWait))
	})

	for {
		messageType, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("log socket read failed", logging.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(socketPongWait))
		if messageType != websocket.TextMessage {
			continue
		}

		var msg api.SocketMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			c.reply(api.EventLogError, "", api.LogError{Error: "malformed message: " + err.Error()})
			continue
		}
		s.dispatchSocket(c, msg)
	}
}

func (s *apiServer) dispatchSocket(c *socketClient, msg api.SocketMessage) {
	var req api.MonitorRequest
	if len(msg.Data) > 0 && string(msg.Data) != "null" {
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			c.reply(api.EventAck, msg.Ref, api.Ack{Request: msg.Event, Status: api.AckError, Message: "malformed data: " + err.Error()})
			return
		}
	}

	switch msg.Event {
	case api.EventStartLogMonitor:
		opts := logtail.SubscribeOptions{MaxLines: req.MaxLines, IntervalSeconds: req.Interval}
		if err := s.logs.Subscribe(c.id, opts, c); err != nil {
			c.reply(api.EventAck, msg.Ref, api.Ack{Request: msg.Event, Status: api.AckError, Message: err.Error()})
			return
		}
		c.reply(api.EventAck, msg.Ref, api.Ack{Request: msg.Event, Status: api.AckSuccess, Message: "log monitoring started"})
	case api.EventStopLogMonitor:
		s.logs.Unsubscribe(c.id)
		c.reply(api.EventAck, msg.Ref, api.Ack{Request: msg.Event, Status: api.AckSuccess, Message: "log monitoring stopped"})
	case api.EventGetLog:
		snap, err := s.logs.Snapshot(req.MaxLines)
		if err != nil {
			c.reply(api.EventAck, msg.Ref, api.Ack{Request: msg.Event, Status: api.AckError, Message: err.Error()})
			return
		}
		c.reply(api.EventLogContent, msg.Ref, snap)
	default:
		c.reply(api.EventLogError, msg.Ref, api.LogError{Error: "unknown event: " + msg.Event})
	}
}

// socketSet tracks open sockets so shutdown can close them; hijacked
// connections are invisible to http.Server.Shutdown.
type socketSet struct {
	mu      sync.Mutex
	clients map[*socketClient]struct{}
}

func newSocketSet() *socketSet {
	return &socketSet{clients: make(map[*socketClient]struct{})}
}

func (s *socketSet) add(c *socketClient) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
}

func (s *socketSet) remove(c *socketClient) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}

func (s *socketSet) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// closeAll asks every tracked socket to close.
func (s *socketSet) closeAll() {
	s.mu.Lock()
	clients := make([]*socketClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}
