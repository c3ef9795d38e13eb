// Package questions supplies the host with quiz questions.
package questions

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"sync"

	"github.com/danmuck/quizlink/internal/protocol"
	"github.com/pelletier/go-toml/v2"
)

var (
	ErrInvalidQuestion = errors.New("questions: invalid question")
	ErrEmptyDeck       = errors.New("questions: deck has no questions")
)

// Question is a host-side question. Correct never leaves the host.
type Question struct {
	Text    string
	Correct protocol.Choice
}

func (q Question) IsCorrect(c protocol.Choice) bool {
	return c == q.Correct
}

// Source hands out questions until it runs dry.
type Source interface {
	Next() (Question, bool)
}

// Deck is a Source over a fixed list, drawn front to back.
type Deck struct {
	mu    sync.Mutex
	items []Question
}

// NewDeck copies qs, shuffling the copy when rng is non-nil.
func NewDeck(qs []Question, rng *rand.Rand) *Deck {
	items := append([]Question(nil), qs...)
	if rng != nil {
		rng.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
	}
	return &Deck{items: items}
}

func (d *Deck) Next() (Question, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.items) == 0 {
		return Question{}, false
	}
	q := d.items[0]
	d.items = d.items[1:]
	return q, true
}

func (d *Deck) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}

type deckFile struct {
	Questions []questionEntry `toml:"questions"`
}

type questionEntry struct {
	Text    string   `toml:"text"`
	Choices []string `toml:"choices"`
	Answer  string   `toml:"answer"`
}

// LoadFile reads a TOML deck:
//
//	[[questions]]
//	text = "Capital of Kanagawa?"
//	choices = ["Kawasaki", "Kamakura", "Machida", "Yokohama"]
//	answer = "D"
func LoadFile(path string) ([]Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("questions: load failed (%s): %w", path, err)
	}
	qs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("questions: %s: %w", path, err)
	}
	return qs, nil
}

func Parse(data []byte) ([]Question, error) {
	var f deckFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("questions: parse failed: %w", err)
	}
	if len(f.Questions) == 0 {
		return nil, ErrEmptyDeck
	}
	out := make([]Question, 0, len(f.Questions))
	for i, e := range f.Questions {
		q, err := e.question()
		if err != nil {
			return nil, fmt.Errorf("questions[%d]: %w", i, err)
		}
		out = append(out, q)
	}
	return out, nil
}

func (e questionEntry) question() (Question, error) {
	text := strings.TrimSpace(e.Text)
	if text == "" {
		return Question{}, fmt.Errorf("%w: missing text", ErrInvalidQuestion)
	}
	correct, err := protocol.ParseChoice(e.Answer)
	if err != nil || correct == protocol.ChoiceTimeout {
		return Question{}, fmt.Errorf("%w: answer %q is not A-D", ErrInvalidQuestion, e.Answer)
	}
	switch len(e.Choices) {
	case 0:
	case 4:
		text = WithChoices(text, e.Choices)
	default:
		return Question{}, fmt.Errorf("%w: want 4 choices, got %d", ErrInvalidQuestion, len(e.Choices))
	}
	return Question{Text: text, Correct: correct}, nil
}

// WithChoices renders the four options beneath the question text.
func WithChoices(text string, choices []string) string {
	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\n")
	for i, c := range choices {
		fmt.Fprintf(&b, "\n%s: %s", protocol.Choice(i+1), c)
	}
	return b.String()
}

// Default is the built-in deck used when no file is configured.
func Default() []Question {
	return []Question{
		{WithChoices("What is the capital of Kanagawa prefecture?", []string{"Kawasaki", "Kamakura", "Machida", "Yokohama"}), protocol.ChoiceD},
		{WithChoices("Which prefecture's capital is written in hiragana?", []string{"Saitama", "Tochigi", "Ibaraki", "Fukushima"}), protocol.ChoiceA},
		{WithChoices("How many bytes does an IPv4 address take?", []string{"2", "4", "6", "16"}), protocol.ChoiceB},
		{WithChoices("Which planet is known as the red planet?", []string{"Venus", "Jupiter", "Mars", "Mercury"}), protocol.ChoiceC},
		{WithChoices("What does the G in GPS stand for?", []string{"General", "Global", "Geodetic", "Ground"}), protocol.ChoiceB},
		{WithChoices("Which ocean is the largest?", []string{"Atlantic", "Indian", "Arctic", "Pacific"}), protocol.ChoiceD},
		{WithChoices("How many sides does a hexagon have?", []string{"6", "5", "8", "7"}), protocol.ChoiceA},
	}
}
