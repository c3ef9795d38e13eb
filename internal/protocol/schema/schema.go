package schema

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// Kind is the one-byte type tag leading every quiz message.
type Kind uint8

// Kind tags on the wire.
const (
	KindPlayerID           Kind = 0x01
	KindPlayerChanged      Kind = 0x02
	KindQuestion           Kind = 0x03
	KindPlayerAnswered     Kind = 0x04
	KindAnswer             Kind = 0x05
	KindCorrectAnswer      Kind = 0x06
	KindPlayersState       Kind = 0x07
	KindPlayerDisconnected Kind = 0x08
	KindResult             Kind = 0x09
)

var kindNames = map[Kind]string{
	KindPlayerID:           "player_id",
	KindPlayerChanged:      "player_changed",
	KindQuestion:           "question",
	KindPlayerAnswered:     "player_answered",
	KindAnswer:             "answer",
	KindCorrectAnswer:      "correct_answer",
	KindPlayersState:       "players_state",
	KindPlayerDisconnected: "player_disconnected",
	KindResult:             "result",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(0x%02x)", uint8(k))
}

func (k Kind) Known() bool {
	_, ok := kindNames[k]
	return ok
}

// Shape describes how a kind's body length relates to the player id width.
type Shape uint8

const (
	// ShapeID is exactly one player id.
	ShapeID Shape = iota + 1
	// ShapeIDs is zero or more player ids.
	ShapeIDs
	// ShapeText is free-form bytes.
	ShapeText
	// ShapeByte is a single byte.
	ShapeByte
	// ShapeStandings is zero or more (id, score) records.
	ShapeStandings
)

var shapes = map[Kind]Shape{
	KindPlayerID:           ShapeID,
	KindPlayerChanged:      ShapeIDs,
	KindQuestion:           ShapeText,
	KindPlayerAnswered:     ShapeByte,
	KindAnswer:             ShapeByte,
	KindCorrectAnswer:      ShapeByte,
	KindPlayersState:       ShapeStandings,
	KindPlayerDisconnected: ShapeByte,
	KindResult:             ShapeStandings,
}

func ShapeOf(k Kind) (Shape, bool) {
	s, ok := shapes[k]
	return s, ok
}

// StandingLen is the size of one (id, score) record.
func StandingLen(idWidth int) int {
	return idWidth + 1
}

type ValidationError struct {
	Kind   Kind
	Length int
	Reason string
}

func (e ValidationError) Error() string {
	if e.Length < 0 {
		return fmt.Sprintf("schema: kind=%s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("schema: kind=%s length=%d: %s", e.Kind, e.Length, e.Reason)
}

// Validate checks that bodyLen is consistent with kind for the given id width.
// bodyLen excludes the type tag.
func Validate(kind Kind, bodyLen int, idWidth int) error {
	shape, ok := shapes[kind]
	if !ok {
		log.Error().Str("component", "schema.Validate").Uint8("kind", uint8(kind)).Msg("unknown kind")
		return ValidationError{Kind: kind, Length: -1, Reason: "unknown kind"}
	}
	if idWidth <= 0 {
		return ValidationError{Kind: kind, Length: bodyLen, Reason: "invalid id width"}
	}

	var reason string
	switch shape {
	case ShapeID:
		if bodyLen != idWidth {
			reason = fmt.Sprintf("want exactly %d bytes", idWidth)
		}
	case ShapeIDs:
		if bodyLen%idWidth != 0 {
			reason = fmt.Sprintf("not a multiple of id width %d", idWidth)
		}
	case ShapeByte:
		if bodyLen != 1 {
			reason = "want exactly 1 byte"
		}
	case ShapeStandings:
		if bodyLen%StandingLen(idWidth) != 0 {
			reason = fmt.Sprintf("not a multiple of standing record %d", StandingLen(idWidth))
		}
	case ShapeText:
	}
	if reason != "" {
		log.Warn().
			Str("component", "schema.Validate").
			Stringer("kind", kind).
			Int("length", bodyLen).
			Msg(reason)
		return ValidationError{Kind: kind, Length: bodyLen, Reason: reason}
	}
	log.Trace().Str("component", "schema.Validate").Stringer("kind", kind).Int("length", bodyLen).Msg("ok")
	return nil
}
