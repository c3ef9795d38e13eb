package quiz

import (
	"slices"

	"github.com/danmuck/quizlink/internal/protocol"
	"github.com/danmuck/quizlink/internal/protocol/session"
)

type rosterEntry struct {
	ref      PlayerRef
	player   Player
	answered bool
}

// roster is the host's ordered player list. Position is the player number
// used on the wire, so entries are appended and never reordered. During a
// quiz a leaving player is marked disconnected instead of removed.
type roster struct {
	entries []rosterEntry
}

func (r *roster) add(ref PlayerRef, id protocol.PlayerID) int {
	r.entries = append(r.entries, rosterEntry{
		ref:    ref,
		player: Player{ID: id, Connected: true, IsLocal: ref.IsLocal()},
	})
	return len(r.entries) - 1
}

func (r *roster) index(ref PlayerRef) int {
	return slices.IndexFunc(r.entries, func(e rosterEntry) bool { return e.ref == ref })
}

func (r *roster) get(ref PlayerRef) *rosterEntry {
	if i := r.index(ref); i >= 0 {
		return &r.entries[i]
	}
	return nil
}

// number is the current positional player number of ref.
func (r *roster) number(ref PlayerRef) (int, bool) {
	i := r.index(ref)
	return i, i >= 0
}

func (r *roster) remove(ref PlayerRef) bool {
	i := r.index(ref)
	if i < 0 {
		return false
	}
	r.entries = slices.Delete(r.entries, i, i+1)
	return true
}

// disconnect marks ref as gone and returns its player number.
func (r *roster) disconnect(ref PlayerRef) (int, bool) {
	i := r.index(ref)
	if i < 0 || !r.entries[i].player.Connected {
		return i, false
	}
	r.entries[i].player.Connected = false
	return i, true
}

func (r *roster) resetAnswers() {
	for i := range r.entries {
		r.entries[i].answered = false
	}
}

// complete reports whether every connected player has answered.
func (r *roster) complete() bool {
	for _, e := range r.entries {
		if e.player.Connected && !e.answered {
			return false
		}
	}
	return true
}

func (r *roster) connectedGuests() int {
	n := 0
	for _, e := range r.entries {
		if !e.ref.IsLocal() && e.player.Connected {
			n++
		}
	}
	return n
}

func (r *roster) size() int {
	return len(r.entries)
}

func (r *roster) players() []Player {
	out := make([]Player, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.player
	}
	return out
}

func (r *roster) ids() []protocol.PlayerID {
	out := make([]protocol.PlayerID, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.player.ID
	}
	return out
}

func (r *roster) standings() []protocol.Standing {
	return standingsOf(r.players())
}

// ranking is every connected player, best score first. Ties keep roster
// order.
func (r *roster) ranking() []Player {
	out := make([]Player, 0, len(r.entries))
	for _, e := range r.entries {
		if e.player.Connected {
			out = append(out, e.player)
		}
	}
	slices.SortStableFunc(out, func(a, b Player) int { return b.Score - a.Score })
	return out
}

// peers lists connected guests in roster order.
func (r *roster) peers() []session.PeerRef {
	out := make([]session.PeerRef, 0, len(r.entries))
	for _, e := range r.entries {
		if peer, ok := e.ref.Peer(); ok && e.player.Connected {
			out = append(out, peer)
		}
	}
	return out
}

func standingsOf(players []Player) []protocol.Standing {
	out := make([]protocol.Standing, len(players))
	for i, p := range players {
		out[i] = protocol.Standing{ID: p.ID, Score: p.Score}
	}
	return out
}
