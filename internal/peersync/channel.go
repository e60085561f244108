package peersync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/park285/stoneboard/internal/board"
	"github.com/park285/stoneboard/internal/msgcat"
	"github.com/park285/stoneboard/internal/wire"
	"go.uber.org/zap"
)

var (
	ErrEmptyPeerID  = errors.New("remote peer id is empty")
	ErrNotListening = errors.New("channel is not listening")
)

type State int

const (
	StateIdle State = iota
	StateListening
	StateConnecting
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Poster schedules fn on the session goroutine. *eventloop.Loop satisfies it.
type Poster interface {
	Post(fn func())
}

type Config struct {
	Peer   Peer
	Poster Poster
	// Apply receives every decoded inbound state. It runs through Poster.
	Apply func(board.SessionState)
	// Status receives user-facing messages. Optional.
	Status  func(string)
	Catalog *msgcat.Catalog
	Logger  *zap.Logger
}

// Channel replicates session state to one remote peer by sending the whole
// state after every local change. Inbound messages replace local state
// outright; there is no merge and no ordering between peers.
//
// Only the link this side dialed is used for sending. Links dialed by others
// only deliver messages.
type Channel struct {
	peer   Peer
	poster Poster
	apply  func(board.SessionState)
	status func(string)
	cat    *msgcat.Catalog
	logger *zap.Logger

	mu       sync.Mutex
	state    State
	localID  string
	remoteID string
	out      Link
	open     bool
}

func New(cfg Config) *Channel {
	c := &Channel{
		peer:   cfg.Peer,
		poster: cfg.Poster,
		apply:  cfg.Apply,
		status: cfg.Status,
		cat:    cfg.Catalog,
		logger: cfg.Logger,
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.cat == nil {
		c.cat = msgcat.Default()
	}
	c.peer.OnConnection(c.accept)
	return c
}

// Listen obtains a local id from the network. Calling it again returns the
// existing id.
func (c *Channel) Listen(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		id := c.localID
		c.mu.Unlock()
		c.notify("status.already_listening", map[string]any{"PeerID": id})
		return id, nil
	}
	c.mu.Unlock()

	id, err := c.peer.Open(ctx)
	if err != nil {
		c.logger.Warn("peer_open_error", zap.Error(err))
		c.notify("status.listen_failed", map[string]any{"Err": err.Error()})
		return "", fmt.Errorf("open peer: %w", err)
	}

	c.mu.Lock()
	c.localID = id
	if c.state == StateIdle {
		c.state = StateListening
	}
	c.mu.Unlock()

	c.logger.Info("peer_open", zap.String("peer_id", id))
	c.notify("status.peer_id", map[string]any{"PeerID": id})
	return id, nil
}

// Connect dials remoteID. It returns once the dial was issued; the channel
// turns Open when the transport reports the link open.
func (c *Channel) Connect(ctx context.Context, remoteID string) error {
	remoteID = strings.TrimSpace(remoteID)
	if remoteID == "" {
		c.notify("status.empty_peer_id", nil)
		return ErrEmptyPeerID
	}

	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		c.notify("status.not_listening", nil)
		return ErrNotListening
	}
	prev := c.state
	if c.state != StateOpen {
		c.state = StateConnecting
	}
	c.remoteID = remoteID
	c.mu.Unlock()

	c.notify("status.connecting", map[string]any{"PeerID": remoteID})
	link, err := c.peer.Connect(ctx, remoteID)
	if err != nil {
		c.mu.Lock()
		if c.state == StateConnecting {
			c.state = prev
		}
		c.mu.Unlock()
		c.logger.Warn("peer_connect_error", zap.String("remote_id", remoteID), zap.Error(err))
		c.notify("status.connect_failed", map[string]any{"PeerID": remoteID, "Err": err.Error()})
		return fmt.Errorf("connect %s: %w", remoteID, err)
	}

	link.OnOpen(func() {
		c.mu.Lock()
		c.out = link
		c.open = true
		c.state = StateOpen
		c.mu.Unlock()
		c.logger.Info("link_open", zap.String("remote_id", link.RemoteID()))
		c.notify("status.connected", map[string]any{"PeerID": link.RemoteID()})
	})
	link.OnClose(func() {
		// The open flag stays set; later sends on this link are no-ops.
		c.logger.Info("link_closed", zap.String("remote_id", link.RemoteID()), zap.String("direction", "outbound"))
		c.notify("status.link_closed", map[string]any{"PeerID": link.RemoteID()})
	})
	return nil
}

func (c *Channel) accept(link Link) {
	c.logger.Info("link_accepted", zap.String("remote_id", link.RemoteID()))
	link.OnMessage(c.receive)
	link.OnOpen(func() {
		c.notify("status.incoming", map[string]any{"PeerID": link.RemoteID()})
	})
	link.OnClose(func() {
		c.logger.Info("link_closed", zap.String("remote_id", link.RemoteID()), zap.String("direction", "inbound"))
	})
}

func (c *Channel) receive(raw []byte) {
	st, err := wire.Decode(raw)
	if err != nil {
		c.logger.Warn("sync_message_rejected", zap.Error(err), zap.Int("bytes", len(raw)))
		return
	}
	if c.apply == nil || c.poster == nil {
		return
	}
	c.poster.Post(func() { c.apply(st) })
}

// Broadcast sends the full state over the dialed link. It is a no-op until
// the link has opened, and stays one after the link closes.
func (c *Channel) Broadcast(ctx context.Context, state board.SessionState) error {
	c.mu.Lock()
	link, open := c.out, c.open
	c.mu.Unlock()
	if !open || link == nil {
		return nil
	}
	raw, err := wire.Encode(state)
	if err != nil {
		return err
	}
	if err := link.Send(ctx, raw); err != nil {
		if errors.Is(err, ErrLinkClosed) {
			c.logger.Debug("broadcast_on_closed_link", zap.String("remote_id", link.RemoteID()))
			return nil
		}
		return fmt.Errorf("send state: %w", err)
	}
	return nil
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Channel) LocalID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.localID
}

func (c *Channel) RemoteID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remoteID
}

// Summary renders a one-line status.
func (c *Channel) Summary() string {
	c.mu.Lock()
	data := map[string]any{"PeerID": c.localID, "RemoteID": c.remoteID, "State": c.state.String()}
	c.mu.Unlock()
	return c.cat.Text("status.summary", data)
}

func (c *Channel) Close(ctx context.Context) error {
	return c.peer.Close(ctx)
}

func (c *Channel) notify(key string, data any) {
	if c.status == nil {
		return
	}
	c.status(c.cat.Text(key, data))
}
