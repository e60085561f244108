package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	defaultPeerTTL = 2 * time.Minute
	writeTimeout   = 5 * time.Second
)

// Server is the signalling relay. It hands out peer ids and forwards link
// frames between connected peers. It does not read payloads.
type Server struct {
	presence Presence
	ttl      time.Duration
	metrics  *Metrics
	logger   *zap.Logger

	mu    sync.Mutex
	peers map[string]*serverPeer
	links map[string]*serverLink
}

type serverPeer struct {
	id      string
	conn    *websocket.Conn
	writeMu sync.Mutex
}

type serverLink struct {
	id   string
	from string
	to   string
}

func (l *serverLink) other(id string) string {
	if id == l.from {
		return l.to
	}
	return l.from
}

type ServerOption func(*Server)

func WithPeerTTL(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.ttl = d
		}
	}
}

func WithMetrics(m *Metrics) ServerOption { return func(s *Server) { s.metrics = m } }

func WithServerLogger(l *zap.Logger) ServerOption { return func(s *Server) { s.logger = l } }

func NewServer(presence Presence, opts ...ServerOption) *Server {
	s := &Server{
		presence: presence,
		ttl:      defaultPeerTTL,
		peers:    make(map[string]*serverPeer),
		links:    make(map[string]*serverLink),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Handler routes /id, /peer, /healthz and, when metrics are enabled, /metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /id", s.handleID)
	mux.HandleFunc("GET /peer", s.handlePeer)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return mux
}

func (s *Server) handleID(w http.ResponseWriter, r *http.Request) {
	for attempt := 0; attempt < 3; attempt++ {
		id := uuid.NewString()
		ok, err := s.presence.Reserve(r.Context(), id, s.ttl)
		if err != nil {
			s.logger.Error("presence_reserve_error", zap.Error(err))
			s.metrics.reject("presence")
			http.Error(w, "presence unavailable", http.StatusServiceUnavailable)
			return
		}
		if !ok {
			continue
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(idResponse{ID: id})
		s.logger.Debug("peer_id_issued", zap.String("peer_id", id))
		return
	}
	s.metrics.reject("id_collision")
	http.Error(w, "could not allocate id", http.StatusServiceUnavailable)
}

func (s *Server) handlePeer(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		s.metrics.reject("missing_id")
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}
	ok, err := s.presence.Exists(r.Context(), id)
	if err != nil {
		s.metrics.reject("presence")
		http.Error(w, "presence unavailable", http.StatusServiceUnavailable)
		return
	}
	if !ok {
		s.metrics.reject("unknown_id")
		http.Error(w, "unknown id", http.StatusForbidden)
		return
	}

	s.mu.Lock()
	_, taken := s.peers[id]
	s.mu.Unlock()
	if taken {
		s.metrics.reject("id_in_use")
		http.Error(w, "id in use", http.StatusConflict)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
		CompressionMode:    websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		s.logger.Warn("ws_accept_error", zap.String("peer_id", id), zap.Error(err))
		return
	}

	p := &serverPeer{id: id, conn: conn}
	s.mu.Lock()
	if _, dup := s.peers[id]; dup {
		s.mu.Unlock()
		_ = conn.Close(websocket.StatusPolicyViolation, "id in use")
		return
	}
	s.peers[id] = p
	s.mu.Unlock()
	s.metrics.peerUp()
	s.logger.Info("peer_connected", zap.String("peer_id", id))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go s.keepAlive(ctx, id)

	s.readLoop(ctx, p)
	s.drop(context.Background(), p)
}

func (s *Server) keepAlive(ctx context.Context, id string) {
	t := time.NewTicker(s.ttl / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := s.presence.Refresh(ctx, id, s.ttl); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Warn("presence_refresh_error", zap.String("peer_id", id), zap.Error(err))
			}
		}
	}
}

func (s *Server) readLoop(ctx context.Context, p *serverPeer) {
	for {
		var f Frame
		if err := wsjson.Read(ctx, p.conn, &f); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				s.logger.Debug("peer_read_end", zap.String("peer_id", p.id), zap.Error(err))
			}
			return
		}
		s.metrics.frame(f.Type)
		s.dispatch(ctx, p, f)
	}
}

func (s *Server) dispatch(ctx context.Context, p *serverPeer, f Frame) {
	switch f.Type {
	case FrameConnect:
		s.connect(ctx, p, f)
	case FrameData:
		s.forward(ctx, p, f)
	case FrameClose:
		s.closeLink(ctx, p.id, f.Conn)
	default:
		s.metrics.reject("bad_frame")
		s.write(ctx, p, Frame{Type: FrameError, Conn: f.Conn, Error: "unexpected frame " + string(f.Type)})
	}
}

func (s *Server) connect(ctx context.Context, p *serverPeer, f Frame) {
	dst := strings.TrimSpace(f.Dst)
	if f.Conn == "" {
		s.write(ctx, p, Frame{Type: FrameError, Error: "conn id required"})
		return
	}
	s.mu.Lock()
	target, ok := s.peers[dst]
	_, dup := s.links[f.Conn]
	if ok && !dup && dst != p.id {
		s.links[f.Conn] = &serverLink{id: f.Conn, from: p.id, to: dst}
	}
	s.mu.Unlock()

	switch {
	case dup:
		s.metrics.reject("conn_in_use")
		s.write(ctx, p, Frame{Type: FrameError, Conn: f.Conn, Dst: dst, Error: "conn id in use"})
		return
	case !ok || dst == p.id:
		s.metrics.reject("peer_unavailable")
		s.write(ctx, p, Frame{Type: FrameError, Conn: f.Conn, Dst: dst, Error: "peer unavailable"})
		return
	}

	s.metrics.linkUp()
	s.logger.Info("link_opened", zap.String("conn", f.Conn), zap.String("from", p.id), zap.String("to", dst))
	s.write(ctx, target, Frame{Type: FrameConnection, Src: p.id, Conn: f.Conn})
	s.write(ctx, target, Frame{Type: FrameOpen, Src: p.id, Conn: f.Conn})
	s.write(ctx, p, Frame{Type: FrameOpen, Src: dst, Conn: f.Conn})
}

func (s *Server) forward(ctx context.Context, p *serverPeer, f Frame) {
	s.mu.Lock()
	l, ok := s.links[f.Conn]
	var target *serverPeer
	if ok && (l.from == p.id || l.to == p.id) {
		target = s.peers[l.other(p.id)]
	}
	s.mu.Unlock()
	if target == nil {
		s.metrics.reject("unknown_conn")
		s.write(ctx, p, Frame{Type: FrameClose, Conn: f.Conn})
		return
	}
	s.write(ctx, target, Frame{Type: FrameData, Src: p.id, Conn: f.Conn, Payload: f.Payload})
}

func (s *Server) closeLink(ctx context.Context, from, connID string) {
	s.mu.Lock()
	l, ok := s.links[connID]
	var target *serverPeer
	if ok && (l.from == from || l.to == from) {
		delete(s.links, connID)
		target = s.peers[l.other(from)]
	} else {
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	s.metrics.linkDown()
	if target != nil {
		s.write(ctx, target, Frame{Type: FrameClose, Src: from, Conn: connID})
	}
}

// drop forgets a disconnected peer and closes every link it was part of.
func (s *Server) drop(ctx context.Context, p *serverPeer) {
	s.mu.Lock()
	if s.peers[p.id] == p {
		delete(s.peers, p.id)
	}
	var conns []string
	for id, l := range s.links {
		if l.from == p.id || l.to == p.id {
			conns = append(conns, id)
		}
	}
	s.mu.Unlock()

	for _, c := range conns {
		s.closeLink(ctx, p.id, c)
	}
	if err := s.presence.Release(ctx, p.id); err != nil {
		s.logger.Warn("presence_release_error", zap.String("peer_id", p.id), zap.Error(err))
	}
	_ = p.conn.Close(websocket.StatusNormalClosure, "bye")
	s.metrics.peerDown()
	s.logger.Info("peer_disconnected", zap.String("peer_id", p.id), zap.Int("links_closed", len(conns)))
}

func (s *Server) write(ctx context.Context, p *serverPeer, f Frame) {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	p.writeMu.Lock()
	err := wsjson.Write(wctx, p.conn, f)
	p.writeMu.Unlock()
	if err != nil {
		s.logger.Debug("peer_write_error", zap.String("peer_id", p.id), zap.String("type", string(f.Type)), zap.Error(err))
	}
}

// Peers reports the number of connected peers.
func (s *Server) Peers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}
