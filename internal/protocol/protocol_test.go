package protocol

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/danmuck/quizlink/internal/protocol/schema"
	"github.com/danmuck/quizlink/internal/testutil/testlog"
)

func TestRoundTripEveryKind(t *testing.T) {
	testlog.Start(t)
	codec := NewCodec(DefaultIDWidth)
	msgs := []Message{
		PlayerIDMsg{ID: "Player02"},
		PlayerChanged{Players: []PlayerID{"Player01", "Player02", "Player03"}},
		QuestionMsg{Text: "Which planet is known as the red planet? ¿Marte?"},
		QuestionMsg{Text: ""},
		AnswerMsg{Choice: ChoiceC},
		AnswerMsg{Choice: ChoiceTimeout},
		PlayerAnswered{Number: 2},
		CorrectAnswer{Choice: ChoiceD},
		PlayersState{Standings: []Standing{{"Player01", 3}, {"Player02", 0}}},
		PlayerDisconnected{Number: 1},
		Result{Standings: []Standing{{"Player02", 255}, {"Player01", 1}}},
	}
	for _, in := range msgs {
		raw, err := codec.Encode(in)
		if err != nil {
			t.Fatalf("encode %T: %v", in, err)
		}
		if schema.Kind(raw[0]) != in.Kind() {
			t.Fatalf("encode %T: tag 0x%02x", in, raw[0])
		}
		out, err := codec.Decode(raw)
		if err != nil {
			t.Fatalf("decode %T: %v", in, err)
		}
		if !reflect.DeepEqual(in, out) {
			t.Fatalf("round trip mismatch: in=%#v out=%#v", in, out)
		}
		again, err := codec.Encode(out)
		if err != nil || !bytes.Equal(raw, again) {
			t.Fatalf("re-encode %T mismatch: err=%v", in, err)
		}
	}
}

func TestEncodeWireLayout(t *testing.T) {
	testlog.Start(t)
	codec := NewCodec(DefaultIDWidth)
	raw, err := codec.Encode(PlayersState{Standings: []Standing{{"Player01", 1}}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := append([]byte{0x07}, []byte("Player01")...)
	want = append(want, 0x01)
	if !bytes.Equal(raw, want) {
		t.Fatalf("unexpected bytes: %v", raw)
	}

	raw, err = codec.Encode(AnswerMsg{Choice: ChoiceA})
	if err != nil || !bytes.Equal(raw, []byte{0x05, 0x01}) {
		t.Fatalf("unexpected answer bytes: %v err=%v", raw, err)
	}
}

func TestDecodeRejectsPlayerChangedPartialID(t *testing.T) {
	testlog.Start(t)
	codec := NewCodec(DefaultIDWidth)
	raw := append([]byte{byte(schema.KindPlayerChanged)}, []byte("Player01Play")...)
	_, err := codec.Decode(raw)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	var de *DecodeError
	if !errors.As(err, &de) || de.Kind != schema.KindPlayerChanged {
		t.Fatalf("expected DecodeError for player_changed, got %v", err)
	}
	var ve schema.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected wrapped ValidationError, got %v", err)
	}
}

func TestDecodeRejects(t *testing.T) {
	testlog.Start(t)
	codec := NewCodec(DefaultIDWidth)
	cases := []struct {
		name string
		raw  []byte
		want error
	}{
		{"empty", nil, ErrEmpty},
		{"unknown kind", []byte{0x42, 1}, ErrUnknownKind},
		{"answer too long", []byte{0x05, 1, 2}, ErrMalformed},
		{"answer bad code", []byte{0x05, 9}, ErrInvalidChoice},
		{"correct bad code", []byte{0x06, 5}, ErrInvalidChoice},
		{"short player id", []byte{0x01, 'P'}, ErrMalformed},
		{"bad utf8", []byte{0x03, 0xff, 0xfe}, ErrInvalidText},
		{"result partial record", append([]byte{0x09}, []byte("Player01")...), ErrMalformed},
	}
	for _, tc := range cases {
		if _, err := codec.Decode(tc.raw); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestEncodeValidatesFields(t *testing.T) {
	testlog.Start(t)
	codec := NewCodec(DefaultIDWidth)
	if _, err := codec.Encode(PlayerIDMsg{ID: "short"}); !errors.Is(err, ErrIDWidth) {
		t.Fatalf("expected ErrIDWidth, got %v", err)
	}
	if _, err := codec.Encode(PlayerAnswered{Number: 256}); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	if _, err := codec.Encode(Result{Standings: []Standing{{"Player01", -1}}}); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange for score, got %v", err)
	}
	if _, err := codec.Encode(AnswerMsg{Choice: Choice(7)}); !errors.Is(err, ErrInvalidChoice) {
		t.Fatalf("expected ErrInvalidChoice, got %v", err)
	}
	if _, err := codec.Encode(nil); !errors.Is(err, ErrNilMessage) {
		t.Fatalf("expected ErrNilMessage, got %v", err)
	}
}

func TestMintPlayerID(t *testing.T) {
	testlog.Start(t)
	id, err := MintPlayerID(1, DefaultIDWidth)
	if err != nil || id != "Player01" {
		t.Fatalf("unexpected id %q err=%v", id, err)
	}
	if _, err := MintPlayerID(100, DefaultIDWidth); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected overflow error, got %v", err)
	}
	if _, err := MintPlayerID(1, 6); !errors.Is(err, ErrIDWidth) {
		t.Fatalf("expected width error, got %v", err)
	}
}

func TestParseChoice(t *testing.T) {
	testlog.Start(t)
	for raw, want := range map[string]Choice{"a": ChoiceA, " B ": ChoiceB, "c": ChoiceC, "D": ChoiceD, "timeout": ChoiceTimeout} {
		got, err := ParseChoice(raw)
		if err != nil || got != want {
			t.Fatalf("ParseChoice(%q) = %v, %v", raw, got, err)
		}
	}
	if _, err := ParseChoice("e"); !errors.Is(err, ErrInvalidChoice) {
		t.Fatalf("expected ErrInvalidChoice, got %v", err)
	}
}
