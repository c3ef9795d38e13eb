package session

// PeerRef is the radio's opaque handle for the other end of a connection.
type PeerRef string

type RadioEventKind uint8

const (
	RadioAdvertising RadioEventKind = iota + 1
	RadioDiscovered
	RadioConnected
	RadioDisconnected
	RadioBlockReceived
	RadioBlockWritten
)

func (k RadioEventKind) String() string {
	switch k {
	case RadioAdvertising:
		return "advertising"
	case RadioDiscovered:
		return "discovered"
	case RadioConnected:
		return "connected"
	case RadioDisconnected:
		return "disconnected"
	case RadioBlockReceived:
		return "block_received"
	case RadioBlockWritten:
		return "block_written"
	default:
		return "unknown"
	}
}

// RadioEvent is one notification from the radio. Block is set for
// RadioBlockReceived; Err reports a failed write on RadioBlockWritten or a
// failed advertise/connect.
type RadioEvent struct {
	Kind  RadioEventKind
	Peer  PeerRef
	Block []byte
	Err   error
}

// Link is the part of the radio shared by both roles. WriteBlock sends at most
// one block and completion is signalled later by RadioBlockWritten.
type Link interface {
	Events() <-chan RadioEvent
	WriteBlock(peer PeerRef, block []byte) error
	Disconnect(peer PeerRef) error
	Close() error
}

type HostRadio interface {
	Link
	StartAdvertising() error
	StopAdvertising() error
}

type GuestRadio interface {
	Link
	StartDiscovery() error
	StopDiscovery() error
	Connect(peer PeerRef) error
}
