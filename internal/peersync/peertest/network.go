// Package peertest provides an in-memory peersync transport for tests.
package peertest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/park285/stoneboard/internal/peersync"
)

var ErrUnknownPeer = errors.New("unknown peer")

// Network connects in-memory peers. Messages are delivered synchronously on
// the sender's goroutine.
type Network struct {
	mu    sync.Mutex
	peers map[string]*Peer
	seq   int
	// HoldOpen keeps new links closed until Link.Open is called.
	HoldOpen bool
}

func NewNetwork() *Network {
	return &Network{peers: make(map[string]*Peer)}
}

// NewPeer returns a peer that will register as id on Open.
func (n *Network) NewPeer(id string) *Peer {
	return &Peer{net: n, id: id}
}

type Peer struct {
	net *Network
	id  string

	mu      sync.Mutex
	onConn  func(peersync.Link)
	links   []*Link
	Dials   int
	OpenErr error
	DialErr error
}

func (p *Peer) Open(ctx context.Context) (string, error) {
	if p.OpenErr != nil {
		return "", p.OpenErr
	}
	p.net.mu.Lock()
	defer p.net.mu.Unlock()
	if p.id == "" {
		p.net.seq++
		p.id = fmt.Sprintf("peer-%d", p.net.seq)
	}
	p.net.peers[p.id] = p
	return p.id, nil
}

func (p *Peer) OnConnection(fn func(peersync.Link)) {
	p.mu.Lock()
	p.onConn = fn
	p.mu.Unlock()
}

func (p *Peer) Connect(ctx context.Context, remoteID string) (peersync.Link, error) {
	p.mu.Lock()
	p.Dials++
	dialErr := p.DialErr
	p.mu.Unlock()
	if dialErr != nil {
		return nil, dialErr
	}
	p.net.mu.Lock()
	remote, ok := p.net.peers[remoteID]
	hold := p.net.HoldOpen
	p.net.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPeer, remoteID)
	}

	local := &Link{remoteID: remoteID}
	far := &Link{remoteID: p.id}
	local.other, far.other = far, local

	p.mu.Lock()
	p.links = append(p.links, local)
	p.mu.Unlock()
	remote.mu.Lock()
	remote.links = append(remote.links, far)
	onConn := remote.onConn
	remote.mu.Unlock()

	if onConn != nil {
		onConn(far)
	}
	if !hold {
		local.Open()
	}
	return local, nil
}

func (p *Peer) Close(ctx context.Context) error {
	p.mu.Lock()
	links := append([]*Link(nil), p.links...)
	p.mu.Unlock()
	for _, l := range links {
		l.Close()
	}
	p.net.mu.Lock()
	delete(p.net.peers, p.id)
	p.net.mu.Unlock()
	return nil
}

// Link is one end of an in-memory link.
type Link struct {
	remoteID string
	other    *Link

	mu      sync.Mutex
	onMsg   func([]byte)
	onOpen  []func()
	onClose []func()
	opened  bool
	closed  bool
	Sent    [][]byte
}

func (l *Link) RemoteID() string { return l.remoteID }

func (l *Link) Send(ctx context.Context, data []byte) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return peersync.ErrLinkClosed
	}
	l.Sent = append(l.Sent, append([]byte(nil), data...))
	l.mu.Unlock()
	l.other.deliver(data)
	return nil
}

func (l *Link) deliver(data []byte) {
	l.mu.Lock()
	fn := l.onMsg
	l.mu.Unlock()
	if fn != nil {
		fn(append([]byte(nil), data...))
	}
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

// Open marks both ends open and fires their callbacks.
func (l *Link) Open() {
	l.markOpen()
	l.other.markOpen()
}

func (l *Link) markOpen() {
	l.mu.Lock()
	if l.opened {
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

// Close tears down both ends.
func (l *Link) Close() {
	l.markClosed()
	l.other.markClosed()
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

// Deliver injects raw bytes as if the remote end had sent them.
func (l *Link) Deliver(data []byte) { l.deliver(data) }

// SentCount reports how many messages were sent on this end.
func (l *Link) SentCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Sent)
}

// Links returns the links this peer holds, dialed and accepted.
func (p *Peer) Links() []*Link {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Link(nil), p.links...)
}
