package protocol

import (
	"fmt"
	"unicode/utf8"

	"github.com/danmuck/quizlink/internal/protocol/schema"
)

// Decode parses one complete payload. Any length that disagrees with the
// kind's arithmetic is rejected whole.
func (c Codec) Decode(payload []byte) (Message, error) {
	if len(payload) == 0 {
		return nil, ErrEmpty
	}
	kind := schema.Kind(payload[0])
	body := payload[1:]
	if !kind.Known() {
		return nil, &DecodeError{Kind: kind, Err: ErrUnknownKind}
	}
	if err := schema.Validate(kind, len(body), c.IDWidth); err != nil {
		return nil, &DecodeError{Kind: kind, Err: fmt.Errorf("%w: %w", ErrMalformed, err)}
	}

	switch kind {
	case schema.KindPlayerID:
		return PlayerIDMsg{ID: PlayerID(body)}, nil
	case schema.KindPlayerChanged:
		return PlayerChanged{Players: c.readIDs(body)}, nil
	case schema.KindQuestion:
		if !utf8.Valid(body) {
			return nil, &DecodeError{Kind: kind, Err: ErrInvalidText}
		}
		return QuestionMsg{Text: string(body)}, nil
	case schema.KindAnswer:
		choice, err := decodeChoice(kind, body[0])
		if err != nil {
			return nil, err
		}
		return AnswerMsg{Choice: choice}, nil
	case schema.KindPlayerAnswered:
		return PlayerAnswered{Number: int(body[0])}, nil
	case schema.KindCorrectAnswer:
		choice, err := decodeChoice(kind, body[0])
		if err != nil {
			return nil, err
		}
		return CorrectAnswer{Choice: choice}, nil
	case schema.KindPlayersState:
		return PlayersState{Standings: c.readStandings(body)}, nil
	case schema.KindPlayerDisconnected:
		return PlayerDisconnected{Number: int(body[0])}, nil
	case schema.KindResult:
		return Result{Standings: c.readStandings(body)}, nil
	}
	return nil, &DecodeError{Kind: kind, Err: ErrUnknownKind}
}

func decodeChoice(kind schema.Kind, b byte) (Choice, error) {
	c := Choice(b)
	if !c.Valid() {
		return 0, &DecodeError{Kind: kind, Err: fmt.Errorf("%w: %d", ErrInvalidChoice, b)}
	}
	return c, nil
}
