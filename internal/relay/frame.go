package relay

// FrameType names the relay control and data frames.
type FrameType string

const (
	// FrameConnect is sent by a peer to dial Dst over link Conn.
	FrameConnect FrameType = "connect"
	// FrameConnection tells the dialed peer that Src opened link Conn.
	FrameConnection FrameType = "connection"
	// FrameOpen is sent to both ends once the link is usable.
	FrameOpen FrameType = "open"
	FrameData FrameType = "data"
	// FrameClose ends a link; the relay sends it to the surviving end.
	FrameClose FrameType = "close"
	FrameError FrameType = "error"
)

// Frame is one JSON message on the relay WebSocket.
type Frame struct {
	Type    FrameType `json:"type"`
	Src     string    `json:"src,omitempty"`
	Dst     string    `json:"dst,omitempty"`
	Conn    string    `json:"conn,omitempty"`
	Payload string    `json:"payload,omitempty"`
	Error   string    `json:"error,omitempty"`
}

type idResponse struct {
	ID string `json:"id"`
}
