package relay

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/park285/stoneboard/internal/peersync"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

var (
	ErrNotOpen         = errors.New("relay peer not open")
	ErrPeerUnavailable = errors.New("remote peer unavailable")
)

type PeerState string

const (
	PeerDisconnected PeerState = "disconnected"
	PeerConnecting   PeerState = "connecting"
	PeerConnected    PeerState = "connected"
	PeerClosed       PeerState = "closed"
)

// Peer is a peersync.Peer backed by one WebSocket to the relay. All links
// are multiplexed over that socket. A lost socket is not redialed.
type Peer struct {
	ids    *IDClient
	wsURL  string
	logger *zap.Logger

	pingInterval time.Duration
	dialTimeout  time.Duration

	mu      sync.Mutex
	state   PeerState
	id      string
	conn    *websocket.Conn
	links   map[string]*Link
	pending map[string]chan error
	onConn  func(peersync.Link)

	writeMu  sync.Mutex
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc
}

type PeerOption func(*Peer)

func WithLogger(l *zap.Logger) PeerOption { return func(p *Peer) { p.logger = l } }

func WithPingInterval(d time.Duration) PeerOption {
	return func(p *Peer) {
		if d > 0 {
			p.pingInterval = d
		}
	}
}

func NewPeer(ids *IDClient, wsURL string, opts ...PeerOption) *Peer {
	p := &Peer{
		ids:          ids,
		wsURL:        strings.TrimRight(wsURL, "/"),
		pingInterval: 30 * time.Second,
		dialTimeout:  10 * time.Second,
		state:        PeerDisconnected,
		links:        make(map[string]*Link),
		pending:      make(map[string]chan error),
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	return p
}

func (p *Peer) State() PeerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Open reserves an id and attaches to the relay with it.
func (p *Peer) Open(ctx context.Context) (string, error) {
	p.mu.Lock()
	switch p.state {
	case PeerConnected:
		id := p.id
		p.mu.Unlock()
		return id, nil
	case PeerConnecting:
		p.mu.Unlock()
		return "", errors.New("relay peer already connecting")
	case PeerClosed:
		p.mu.Unlock()
		return "", ErrNotOpen
	}
	p.state = PeerConnecting
	p.mu.Unlock()

	id, conn, err := p.dial(ctx)
	if err != nil {
		p.setState(PeerDisconnected)
		return "", err
	}

	p.mu.Lock()
	p.id = id
	p.conn = conn
	p.state = PeerConnected
	p.rootCtx, p.rootCancel = context.WithCancel(context.Background())
	p.mu.Unlock()

	p.wg.Add(2)
	go p.listen(conn)
	go p.pingLoop(conn)
	p.logger.Info("relay_attached", zap.String("peer_id", id))
	return id, nil
}

func (p *Peer) dial(ctx context.Context) (string, *websocket.Conn, error) {
	id, err := p.ids.NewID(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("reserve id: %w", err)
	}
	dialCtx, cancel := context.WithTimeout(ctx, p.dialTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, p.wsURL+"/peer?id="+url.QueryEscape(id), &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		return "", nil, fmt.Errorf("dial relay: %w", err)
	}
	conn.SetReadLimit(1 << 20)
	return id, conn, nil
}

func (p *Peer) OnConnection(fn func(peersync.Link)) {
	p.mu.Lock()
	p.onConn = fn
	p.mu.Unlock()
}

// Connect dials remoteID and waits for the relay to accept or refuse.
func (p *Peer) Connect(ctx context.Context, remoteID string) (peersync.Link, error) {
	p.mu.Lock()
	if p.state != PeerConnected {
		p.mu.Unlock()
		return nil, ErrNotOpen
	}
	connID := uuid.NewString()
	link := newLink(p, connID, remoteID)
	ack := make(chan error, 1)
	p.links[connID] = link
	p.pending[connID] = ack
	p.mu.Unlock()

	if err := p.write(ctx, Frame{Type: FrameConnect, Dst: remoteID, Conn: connID}); err != nil {
		p.forget(connID)
		return nil, err
	}

	select {
	case err := <-ack:
		if err != nil {
			p.forget(connID)
			return nil, err
		}
		return link, nil
	case <-ctx.Done():
		p.forget(connID)
		return nil, ctx.Err()
	case <-p.stopCh:
		p.forget(connID)
		return nil, ErrNotOpen
	}
}

func (p *Peer) forget(connID string) {
	p.mu.Lock()
	delete(p.links, connID)
	delete(p.pending, connID)
	p.mu.Unlock()
}

func (p *Peer) listen(conn *websocket.Conn) {
	defer p.wg.Done()
	for {
		var f Frame
		if err := wsjson.Read(p.rootCtx, conn, &f); err != nil {
			if p.isStopping() {
				return
			}
			p.logger.Warn("relay_read_error", zap.Error(err))
			p.detach()
			return
		}
		p.handle(f)
	}
}

func (p *Peer) handle(f Frame) {
	switch f.Type {
	case FrameConnection:
		link := newLink(p, f.Conn, f.Src)
		p.mu.Lock()
		p.links[f.Conn] = link
		fn := p.onConn
		p.mu.Unlock()
		p.logger.Debug("relay_incoming", zap.String("conn", f.Conn), zap.String("remote_id", f.Src))
		if fn != nil {
			fn(link)
		}
	case FrameOpen:
		p.mu.Lock()
		link := p.links[f.Conn]
		ack, waiting := p.pending[f.Conn]
		delete(p.pending, f.Conn)
		p.mu.Unlock()
		if waiting {
			ack <- nil
		}
		if link != nil {
			link.markOpen()
		}
	case FrameData:
		p.mu.Lock()
		link := p.links[f.Conn]
		p.mu.Unlock()
		if link != nil {
			link.deliver([]byte(f.Payload))
		}
	case FrameClose:
		p.mu.Lock()
		link := p.links[f.Conn]
		delete(p.links, f.Conn)
		p.mu.Unlock()
		if link != nil {
			link.markClosed()
		}
	case FrameError:
		p.mu.Lock()
		ack, waiting := p.pending[f.Conn]
		delete(p.pending, f.Conn)
		p.mu.Unlock()
		if waiting {
			ack <- fmt.Errorf("%w: %s", ErrPeerUnavailable, f.Error)
			return
		}
		p.logger.Warn("relay_error_frame", zap.String("conn", f.Conn), zap.String("error", f.Error))
	default:
		p.logger.Debug("relay_unknown_frame", zap.String("type", string(f.Type)))
	}
}

func (p *Peer) pingLoop(conn *websocket.Conn) {
	defer p.wg.Done()
	t := time.NewTicker(p.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-p.stopCh:
			return
		case <-p.rootCtx.Done():
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(p.rootCtx, 3*time.Second)
			err := conn.Ping(ctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				if p.isStopping() {
					return
				}
				p.logger.Warn("relay_ping_failed", zap.Error(err))
				_ = conn.Close(websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

// detach drops the socket after a read failure. Every link reports closed.
func (p *Peer) detach() {
	p.mu.Lock()
	links := p.links
	pending := p.pending
	p.links = make(map[string]*Link)
	p.pending = make(map[string]chan error)
	conn := p.conn
	p.conn = nil
	if p.state != PeerClosed {
		p.state = PeerDisconnected
	}
	cancel := p.rootCancel
	p.mu.Unlock()

	for _, ack := range pending {
		ack <- ErrNotOpen
	}
	for _, l := range links {
		l.markClosed()
	}
	if conn != nil {
		_ = conn.Close(websocket.StatusGoingAway, "detach")
	}
	if cancel != nil {
		cancel()
	}
}

func (p *Peer) write(ctx context.Context, f Frame) error {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		return ErrNotOpen
	}
	wctx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, writeTimeout)
		defer cancel()
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return wsjson.Write(wctx, conn, f)
}

// Close leaves the relay. The relay tells remote ends their links closed.
func (p *Peer) Close(ctx context.Context) error {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.mu.Lock()
	p.state = PeerClosed
	conn := p.conn
	p.conn = nil
	links := p.links
	p.links = make(map[string]*Link)
	p.pending = make(map[string]chan error)
	cancel := p.rootCancel
	p.mu.Unlock()

	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "close")
	}
	for _, l := range links {
		l.markClosed()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		if cancel != nil {
			cancel()
		}
		return nil
	}
}

func (p *Peer) isStopping() bool {
	select {
	case <-p.stopCh:
		return true
	default:
		return false
	}
}

func (p *Peer) setState(s PeerState) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Link is one relayed connection to a remote peer.
type Link struct {
	peer   *Peer
	id     string
	remote string

	mu      sync.Mutex
	onMsg   func([]byte)
	onOpen  []func()
	onClose []func()
	opened  bool
	closed  bool
}

func newLink(p *Peer, id, remote string) *Link {
	return &Link{peer: p, id: id, remote: remote}
}

func (l *Link) ID() string       { return l.id }
func (l *Link) RemoteID() string { return l.remote }

func (l *Link) Send(ctx context.Context, data []byte) error {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return peersync.ErrLinkClosed
	}
	err := l.peer.write(ctx, Frame{Type: FrameData, Conn: l.id, Payload: string(data)})
	if errors.Is(err, ErrNotOpen) {
		return peersync.ErrLinkClosed
	}
	return err
}

// Close ends the link on both sides.
func (l *Link) Close(ctx context.Context) error {
	err := l.peer.write(ctx, Frame{Type: FrameClose, Conn: l.id})
	l.peer.forget(l.id)
	l.markClosed()
	if errors.Is(err, ErrNotOpen) {
		return nil
	}
	return err
}

func (l *Link) OnMessage(fn func([]byte)) {
	l.mu.Lock()
	l.onMsg = fn
	l.mu.Unlock()
}

func (l *Link) OnOpen(fn func()) {
	l.mu.Lock()
	if l.opened {
		l.mu.Unlock()
		fn()
		return
	}
	l.onOpen = append(l.onOpen, fn)
	l.mu.Unlock()
}

func (l *Link) OnClose(fn func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		fn()
		return
	}
	l.onClose = append(l.onClose, fn)
	l.mu.Unlock()
}

func (l *Link) deliver(data []byte) {
	l.mu.Lock()
	fn := l.onMsg
	l.mu.Unlock()
	if fn != nil {
		fn(data)
	}
}

func (l *Link) markOpen() {
	l.mu.Lock()
	if l.opened || l.closed {
		l.mu.Unlock()
		return
	}
	l.opened = true
	fns := l.onOpen
	l.onOpen = nil
	l.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (l *Link) markClosed() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	fns := l.onClose
	l.onClose = nil
	l.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

var (
	_ peersync.Peer = (*Peer)(nil)
	_ peersync.Link = (*Link)(nil)
)
