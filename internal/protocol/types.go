package protocol

import (
	"fmt"
	"strings"

	"github.com/danmuck/quizlink/internal/protocol/schema"
)

// PlayerID is the fixed-width identifier the host assigns at join time.
type PlayerID string

// DefaultIDWidth fits "Player01" through "Player99".
const DefaultIDWidth = 8

const idPrefix = "Player"

// MintPlayerID formats the n-th id for the given width, e.g. Player01.
func MintPlayerID(n int, width int) (PlayerID, error) {
	digits := width - len(idPrefix)
	if digits < 1 || n < 0 {
		return "", fmt.Errorf("%w: width=%d", ErrIDWidth, width)
	}
	s := fmt.Sprintf("%s%0*d", idPrefix, digits, n)
	if len(s) != width {
		return "", fmt.Errorf("%w: %q overflows width %d", ErrOutOfRange, s, width)
	}
	return PlayerID(s), nil
}

// Choice is an answer code. Timeout is produced locally when the answer
// window lapses and is a legal submitted value.
type Choice uint8

const (
	ChoiceTimeout Choice = 0
	ChoiceA       Choice = 1
	ChoiceB       Choice = 2
	ChoiceC       Choice = 3
	ChoiceD       Choice = 4
)

func (c Choice) Valid() bool {
	return c <= ChoiceD
}

func (c Choice) String() string {
	switch c {
	case ChoiceTimeout:
		return "timeout"
	case ChoiceA:
		return "A"
	case ChoiceB:
		return "B"
	case ChoiceC:
		return "C"
	case ChoiceD:
		return "D"
	default:
		return fmt.Sprintf("choice(%d)", uint8(c))
	}
}

func ParseChoice(raw string) (Choice, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "a":
		return ChoiceA, nil
	case "b":
		return ChoiceB, nil
	case "c":
		return ChoiceC, nil
	case "d":
		return ChoiceD, nil
	case "timeout", "t":
		return ChoiceTimeout, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidChoice, raw)
	}
}

// Standing is one (id, score) record of PlayersState and Result.
type Standing struct {
	ID    PlayerID
	Score int
}

// Message is any quiz wire message.
type Message interface {
	Kind() schema.Kind
}

// PlayerIDMsg tells a freshly joined guest its id.
type PlayerIDMsg struct {
	ID PlayerID
}

// PlayerChanged is the full ordered roster.
type PlayerChanged struct {
	Players []PlayerID
}

// QuestionMsg carries question text only.
type QuestionMsg struct {
	Text string
}

// AnswerMsg is a guest's submission.
type AnswerMsg struct {
	Choice Choice
}

type PlayerAnswered struct {
	Number int
}

type CorrectAnswer struct {
	Choice Choice
}

type PlayersState struct {
	Standings []Standing
}

type PlayerDisconnected struct {
	Number int
}

// Result is the final ranking, best score first.
type Result struct {
	Standings []Standing
}

func (PlayerIDMsg) Kind() schema.Kind        { return schema.KindPlayerID }
func (PlayerChanged) Kind() schema.Kind      { return schema.KindPlayerChanged }
func (QuestionMsg) Kind() schema.Kind        { return schema.KindQuestion }
func (AnswerMsg) Kind() schema.Kind          { return schema.KindAnswer }
func (PlayerAnswered) Kind() schema.Kind     { return schema.KindPlayerAnswered }
func (CorrectAnswer) Kind() schema.Kind      { return schema.KindCorrectAnswer }
func (PlayersState) Kind() schema.Kind       { return schema.KindPlayersState }
func (PlayerDisconnected) Kind() schema.Kind { return schema.KindPlayerDisconnected }
func (Result) Kind() schema.Kind             { return schema.KindResult }

// Codec encodes and decodes messages for one id width.
type Codec struct {
	IDWidth int
}

func NewCodec(idWidth int) Codec {
	if idWidth <= 0 {
		idWidth = DefaultIDWidth
	}
	return Codec{IDWidth: idWidth}
}
