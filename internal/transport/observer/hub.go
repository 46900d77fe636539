// Package observer streams run events to websocket clients on loopback.
package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"naturalist.ai/internal/protocol"
)

// Hub keeps a bounded backlog of events and fans new ones out to
// subscribers. It implements agent.Sink.
type Hub struct {
	log *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
	dropped  atomic.Uint64

	mu         sync.Mutex
	backlog    []protocol.Event
	maxBacklog int
	subs       map[string]*subscriber
	closed     bool
}

type subscriber struct {
	conn  *websocket.Conn
	out   chan []byte
	kinds map[string]bool // nil means every kind
}

func (s *subscriber) wants(kind string) bool {
	return s.kinds == nil || s.kinds[kind]
}

func NewHub(backlog int, logger *log.Logger) *Hub {
	if backlog <= 0 {
		backlog = 4096
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Hub{
		log:        logger,
		maxBacklog: backlog,
		subs:       map[string]*subscriber{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Emit records ev and forwards it to every interested subscriber. Slow
// subscribers lose events rather than stall the run.
func (h *Hub) Emit(ev protocol.Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		h.log.Printf("observer: marshal event: %v", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.backlog = append(h.backlog, ev)
	if over := len(h.backlog) - h.maxBacklog; over > 0 {
		h.backlog = append(h.backlog[:0], h.backlog[over:]...)
	}
	for _, s := range h.subs {
		if !s.wants(ev.Kind) {
			continue
		}
		select {
		case s.out <- b:
		default:
			h.dropped.Add(1)
		}
	}
}

// Dropped counts events not delivered to a full subscriber queue.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects every subscriber. Later events are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, s := range h.subs {
		close(s.out)
		_ = s.conn.Close()
		delete(h.subs, id)
	}
}

type status struct {
	ProtocolVersion string `json:"protocol_version"`
	Subscribers     int    `json:"subscribers"`
	Backlog         int    `json:"backlog"`
	LastSeq         uint64 `json:"last_seq"`
	Dropped         uint64 `json:"dropped"`
}

// StatusHandler reports hub state as JSON.
func (h *Hub) StatusHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h.mu.Lock()
		st := status{
			ProtocolVersion: protocol.Version,
			Subscribers:     len(h.subs),
			Backlog:         len(h.backlog),
			Dropped:         h.dropped.Load(),
		}
		if n := len(h.backlog); n > 0 {
			st.LastSeq = h.backlog[n-1].Seq
		}
		h.mu.Unlock()

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(st)
	}
}

func (h *Hub) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := h.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := decodeSubscribe(msg)
		if !ok {
			_ = writeJSON(conn, protocol.ErrorMsg{
				Type:            protocol.TypeError,
				ProtocolVersion: protocol.Version,
				Code:            protocol.ErrProtoBadRequest,
				Message:         "expected SUBSCRIBE",
			})
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sid := fmt.Sprintf("O%d", h.nextID.Add(1))
		s := &subscriber{conn: conn, out: make(chan []byte, 1024), kinds: kindSet(sub.Kinds)}

		// Register and take the backlog under one lock so nothing falls between
		// the batch and the live stream.
		h.mu.Lock()
		if h.closed {
			h.mu.Unlock()
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(time.Second))
			return
		}
		batch := protocol.EventBatchMsg{
			Type:            protocol.TypeEventBatch,
			ProtocolVersion: protocol.Version,
			Events:          []protocol.Event{},
		}
		for _, ev := range h.backlog {
			if ev.Seq > sub.SinceSeq && s.wants(ev.Kind) {
				batch.Events = append(batch.Events, ev)
			}
			batch.NextSeq = ev.Seq + 1
			batch.RunID = ev.RunID
		}
		h.subs[sid] = s
		h.mu.Unlock()
		h.log.Printf("observer %s subscribed since=%d kinds=%v", sid, sub.SinceSeq, sub.Kinds)

		defer h.remove(sid)

		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := writeJSON(conn, batch); err != nil {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b, ok := <-s.out:
					if !ok {
						writeErr <- nil
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates to the kind filter.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			upd, ok := decodeSubscribe(msg)
			if !ok {
				h.reject(sid, s, "expected SUBSCRIBE update")
				continue
			}
			h.mu.Lock()
			s.kinds = kindSet(upd.Kinds)
			h.mu.Unlock()
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// reject queues an E_BAD_REQUEST reply behind any pending events. The
// connection stays open.
func (h *Hub) reject(sid string, s *subscriber, msg string) {
	b, err := json.Marshal(protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            protocol.ErrBadRequest,
		Message:         msg,
	})
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[sid] != s {
		return
	}
	select {
	case s.out <- b:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hub) remove(sid string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.subs[sid]; ok {
		close(s.out)
		delete(h.subs, sid)
	}
}

func decodeSubscribe(msg []byte) (protocol.SubscribeMsg, bool) {
	var sub protocol.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	if sub.Type != protocol.TypeSubscribe || sub.ProtocolVersion != protocol.Version {
		return sub, false
	}
	return sub, true
}

func kindSet(kinds []string) map[string]bool {
	if len(kinds) == 0 {
		return nil
	}
	m := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		m[strings.ToUpper(strings.TrimSpace(k))] = true
	}
	return m
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, b)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
