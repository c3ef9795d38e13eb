package questions

import (
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/quizlink/internal/protocol"
	"github.com/danmuck/quizlink/internal/testutil/testlog"
)

func TestDeckDrawsUntilEmpty(t *testing.T) {
	testlog.Start(t)
	qs := []Question{{"one", protocol.ChoiceA}, {"two", protocol.ChoiceB}}
	d := NewDeck(qs, nil)
	if d.Len() != 2 {
		t.Fatalf("len=%d", d.Len())
	}
	for _, want := range qs {
		got, ok := d.Next()
		if !ok || got != want {
			t.Fatalf("got=%+v ok=%v want=%+v", got, ok, want)
		}
	}
	if _, ok := d.Next(); ok {
		t.Fatalf("expected empty deck")
	}
}

func TestDeckShuffleKeepsEveryQuestion(t *testing.T) {
	testlog.Start(t)
	d := NewDeck(Default(), rand.New(rand.NewPCG(1, 2)))
	seen := map[string]bool{}
	for {
		q, ok := d.Next()
		if !ok {
			break
		}
		seen[q.Text] = true
	}
	if len(seen) != len(Default()) {
		t.Fatalf("expected %d distinct questions, got %d", len(Default()), len(seen))
	}
}

func TestIsCorrect(t *testing.T) {
	testlog.Start(t)
	q := Question{Text: "?", Correct: protocol.ChoiceC}
	if !q.IsCorrect(protocol.ChoiceC) || q.IsCorrect(protocol.ChoiceA) || q.IsCorrect(protocol.ChoiceTimeout) {
		t.Fatalf("unexpected correctness evaluation")
	}
}

func TestLoadFile(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "deck.toml")
	data := `
[[questions]]
text = "Capital of Kanagawa?"
choices = ["Kawasaki", "Kamakura", "Machida", "Yokohama"]
answer = "d"

[[questions]]
text = "Is this a plain question?"
answer = "A"
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write deck: %v", err)
	}
	qs, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(qs) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(qs))
	}
	if qs[0].Correct != protocol.ChoiceD || !strings.Contains(qs[0].Text, "D: Yokohama") {
		t.Fatalf("unexpected first question: %+v", qs[0])
	}
	if qs[1].Text != "Is this a plain question?" || qs[1].Correct != protocol.ChoiceA {
		t.Fatalf("unexpected second question: %+v", qs[1])
	}
}

func TestParseRejectsBadEntries(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"missing answer": "[[questions]]\ntext = \"x\"\n",
		"timeout answer": "[[questions]]\ntext = \"x\"\nanswer = \"timeout\"\n",
		"three choices":  "[[questions]]\ntext = \"x\"\nchoices = [\"a\",\"b\",\"c\"]\nanswer = \"A\"\n",
		"no text":        "[[questions]]\nanswer = \"A\"\n",
	}
	for name, data := range cases {
		if _, err := Parse([]byte(data)); !errors.Is(err, ErrInvalidQuestion) {
			t.Fatalf("%s: expected ErrInvalidQuestion, got %v", name, err)
		}
	}
	if _, err := Parse([]byte("")); !errors.Is(err, ErrEmptyDeck) {
		t.Fatalf("expected ErrEmptyDeck, got %v", err)
	}
}
