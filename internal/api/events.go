package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dgnsrekt/readaloud/internal/reader"
)

const (
	subscriberBuffer = 32
	writeWait        = 5 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Event is a message on the /v1/events stream.
type Event struct {
	Type     string           `json:"type"`
	Snapshot *reader.Snapshot `json:"snapshot,omitempty"`
	Update   *reader.Update   `json:"update,omitempty"`
}

type subscriber struct {
	events chan Event
	done   chan struct{}
}

// Publish fans an update out to every event subscriber. Slow subscribers
// miss updates rather than blocking the caller.
func (s *Server) Publish(u reader.Update) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for sub := range s.subscribers {
		select {
		case sub.events <- Event{Type: "update", Update: &u}:
		default:
			s.logger.Debug("event subscriber lagging, update dropped")
		}
	}
}

func (s *Server) subscribe() *subscriber {
	sub := &subscriber{
		events: make(chan Event, subscriberBuffer),
		done:   make(chan struct{}),
	}
	s.mu.Lock()
	s.subscribers[sub] = struct{}{}
	s.mu.Unlock()
	return sub
}

func (s *Server) unsubscribe(sub *subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscribers[sub]; ok {
		delete(s.subscribers, sub)
		close(sub.done)
	}
}

func (s *Server) closeSubscribers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subscribers {
		delete(s.subscribers, sub)
		close(sub.done)
	}
}

// handleEvents handles GET /v1/events: a websocket streaming a snapshot
// followed by every reader update.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	var snap reader.Snapshot
	if err := s.runner.Call(r.Context(), "api:events", func() { snap = s.reader.Snapshot() }); err != nil {
		s.writeLoopError(w, "api:events", err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := s.subscribe()
	defer s.unsubscribe(sub)

	s.logger.Info("event subscriber connected", "remote_addr", r.RemoteAddr)

	// Reader: handles pongs and notices the client going away.
	go func() {
		defer s.unsubscribe(sub)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.logger.Debug("event subscriber read ended", "error", err)
				}
				return
			}
		}
	}()

	if err := s.writeEvent(conn, Event{Type: "snapshot", Snapshot: &snap}); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-sub.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			s.logger.Info("event subscriber disconnected", "remote_addr", r.RemoteAddr)
			return
		case ev := <-sub.events:
			if err := s.writeEvent(conn, ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeEvent(conn *websocket.Conn, ev Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(ev); err != nil {
		s.logger.Debug("event write failed", "error", err)
		return err
	}
	return nil
}
