package peersync

import (
	"context"
	"errors"
)

// ErrLinkClosed is returned by Link.Send once either end has gone away.
var ErrLinkClosed = errors.New("link closed")

// Link is one established data connection to a remote peer.
// Callbacks run on transport goroutines. OnOpen and OnClose registered after
// the event has already happened fire immediately.
type Link interface {
	RemoteID() string
	Send(ctx context.Context, data []byte) error
	OnMessage(fn func(data []byte))
	OnOpen(fn func())
	OnClose(fn func())
}

// Peer is a local endpoint on the signalling network.
type Peer interface {
	// Open registers with the network and returns the assigned id.
	Open(ctx context.Context) (string, error)
	// OnConnection is called for every link a remote peer dials to us.
	OnConnection(fn func(Link))
	// Connect dials remoteID. The returned link may not be open yet.
	Connect(ctx context.Context, remoteID string) (Link, error)
	Close(ctx context.Context) error
}
