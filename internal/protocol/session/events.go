package session

type EventKind uint8

const (
	EventListening EventKind = iota + 1
	EventStopped
	EventDiscovered
	EventPeerConnected
	EventPeerDisconnected
	EventMessage
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventListening:
		return "listening"
	case EventStopped:
		return "stopped"
	case EventDiscovered:
		return "discovered"
	case EventPeerConnected:
		return "peer_connected"
	case EventPeerDisconnected:
		return "peer_disconnected"
	case EventMessage:
		return "message"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is delivered to the owning orchestrator. For EventPeerDisconnected,
// Err is ErrUnexpectedDisconnect unless the disconnect was requested locally;
// a link dropped because a send broke off mid-message counts as unexpected.
type Event struct {
	Kind    EventKind
	Peer    PeerRef
	Payload []byte
	Err     error
}

type ServerState uint8

const (
	ServerStopped ServerState = iota
	ServerStarting
	ServerWaitingForConnections
	ServerStopping
)

func (s ServerState) String() string {
	switch s {
	case ServerStopped:
		return "stopped"
	case ServerStarting:
		return "starting"
	case ServerWaitingForConnections:
		return "waiting_for_connections"
	case ServerStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

type ClientState uint8

const (
	ClientStopped ClientState = iota
	ClientDiscovering
	ClientConnecting
	ClientConnected
	ClientDisconnecting
)

func (s ClientState) String() string {
	switch s {
	case ClientStopped:
		return "stopped"
	case ClientDiscovering:
		return "discovering"
	case ClientConnecting:
		return "connecting"
	case ClientConnected:
		return "connected"
	case ClientDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// PeerState is the host's view of one connection.
type PeerState uint8

const (
	// PeerJoining is connected at the radio but has not sent JoinSign.
	PeerJoining PeerState = iota
	PeerConnected
	PeerDisconnecting
)
