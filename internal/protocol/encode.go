package protocol

import (
	"fmt"
	"unicode/utf8"
)

// Encode serializes msg into one payload: kind tag then body.
func (c Codec) Encode(msg Message) ([]byte, error) {
	if msg == nil {
		return nil, ErrNilMessage
	}
	buf := []byte{byte(msg.Kind())}
	var err error
	switch m := msg.(type) {
	case PlayerIDMsg:
		buf, err = c.appendID(buf, m.ID)
	case PlayerChanged:
		for _, id := range m.Players {
			if buf, err = c.appendID(buf, id); err != nil {
				break
			}
		}
	case QuestionMsg:
		if !utf8.ValidString(m.Text) {
			return nil, ErrInvalidText
		}
		buf = append(buf, m.Text...)
	case AnswerMsg:
		buf, err = appendChoice(buf, m.Choice)
	case PlayerAnswered:
		buf, err = appendByte(buf, m.Number, "player_number")
	case CorrectAnswer:
		buf, err = appendChoice(buf, m.Choice)
	case PlayersState:
		buf, err = c.appendStandings(buf, m.Standings)
	case PlayerDisconnected:
		buf, err = appendByte(buf, m.Number, "player_number")
	case Result:
		buf, err = c.appendStandings(buf, m.Standings)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedMsg, msg)
	}
	if err != nil {
		return nil, err
	}
	return buf, nil
}
