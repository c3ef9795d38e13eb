package quiz

import (
	"github.com/danmuck/quizlink/internal/protocol"
	"github.com/danmuck/quizlink/internal/protocol/session"
)

// Player is one roster entry. IsLocal is display-only and never sent.
type Player struct {
	ID        protocol.PlayerID `json:"id"`
	Score     int               `json:"score"`
	Connected bool              `json:"connected"`
	IsLocal   bool              `json:"is_local"`
}

// PlayerRef says who a roster entry belongs to: the local player, or the
// guest behind a radio peer.
type PlayerRef struct {
	peer   session.PeerRef
	remote bool
}

func LocalRef() PlayerRef {
	return PlayerRef{}
}

func RemoteRef(peer session.PeerRef) PlayerRef {
	return PlayerRef{peer: peer, remote: true}
}

func (r PlayerRef) IsLocal() bool {
	return !r.remote
}

// Peer returns the radio peer for a remote ref.
func (r PlayerRef) Peer() (session.PeerRef, bool) {
	return r.peer, r.remote
}

func (r PlayerRef) String() string {
	if !r.remote {
		return "local"
	}
	return "remote:" + string(r.peer)
}
