package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/quizlink/internal/protocol"
	"github.com/danmuck/quizlink/internal/quiz"
	"github.com/rs/zerolog/log"
)

// player is the part of quiz.Host and quiz.Guest the console drives.
type player interface {
	Events() <-chan quiz.Event
	Answer(choice protocol.Choice) error
	Stop() error
}

type console struct {
	out    io.Writer
	player player
	window time.Duration
	// start and roster are only set for the host.
	start  func(n int) error
	roster func(ctx context.Context) ([]quiz.Player, error)
	rounds int

	mu       sync.Mutex
	deadline *time.Timer
}

// run prints events and applies typed commands until the session stops.
func (c *console) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	done := ctx.Done()
	events := c.player.Events()
	for {
		select {
		case <-done:
			done = nil
			_ = c.player.Stop()
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			c.command(ctx, line)
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			c.show(ev)
			if ev.Kind == quiz.EventStopped {
				c.cancelDeadline()
				return ev.Err
			}
		}
	}
}

func (c *console) command(ctx context.Context, line string) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return
	}
	switch fields[0] {
	case "a", "b", "c", "d":
		choice, _ := protocol.ParseChoice(fields[0])
		c.cancelDeadline()
		if err := c.player.Answer(choice); err != nil {
			fmt.Fprintf(c.out, "answer: %v\n", err)
		}
	case "start":
		if c.start == nil {
			fmt.Fprintln(c.out, "only the host starts the quiz")
			return
		}
		n := c.rounds
		if len(fields) > 1 {
			v, err := strconv.Atoi(fields[1])
			if err != nil {
				fmt.Fprintf(c.out, "start: bad count %q\n", fields[1])
				return
			}
			n = v
		}
		if err := c.start(n); err != nil {
			fmt.Fprintf(c.out, "start: %v\n", err)
		}
	case "players", "status":
		if c.roster == nil {
			return
		}
		players, err := c.roster(ctx)
		if err != nil {
			fmt.Fprintf(c.out, "roster: %v\n", err)
			return
		}
		printPlayers(c.out, players)
	case "quit", "q", "exit":
		_ = c.player.Stop()
	case "help", "?":
		fmt.Fprintln(c.out, "commands: a|b|c|d, start [n], players, quit")
	default:
		fmt.Fprintf(c.out, "unknown command %q\n", fields[0])
	}
}

func (c *console) show(ev quiz.Event) {
	switch ev.Kind {
	case quiz.EventWaitingStarted:
		fmt.Fprintf(c.out, "waiting for players as %s\n", ev.Player.ID)
	case quiz.EventJoined:
		fmt.Fprintf(c.out, "joined as %s\n", ev.Player.ID)
	case quiz.EventRosterChanged:
		printPlayers(c.out, ev.Players)
	case quiz.EventQuestion:
		fmt.Fprintf(c.out, "\nQ%d: %s\n", ev.Round, ev.Question)
		c.armDeadline()
	case quiz.EventPlayerAnswered:
		fmt.Fprintf(c.out, "player %d answered\n", ev.Number+1)
	case quiz.EventRoundResolved:
		c.cancelDeadline()
		verdict := "wrong"
		if ev.Correct {
			verdict = "correct"
		}
		fmt.Fprintf(c.out, "answer was %s, you were %s\n", ev.Choice, verdict)
	case quiz.EventPlayerDisconnected:
		fmt.Fprintf(c.out, "player %d left\n", ev.Number+1)
	case quiz.EventResult:
		fmt.Fprintln(c.out, "\nfinal standings")
		printPlayers(c.out, ev.Players)
	case quiz.EventStopped:
		if ev.Err != nil {
			fmt.Fprintf(c.out, "session ended: %v\n", ev.Err)
			return
		}
		fmt.Fprintln(c.out, "session ended")
	}
}

// armDeadline submits Timeout if nothing is typed within the answer window.
func (c *console) armDeadline() {
	if c.window <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deadline != nil {
		c.deadline.Stop()
	}
	c.deadline = time.AfterFunc(c.window, func() {
		log.Debug().Str("component", "quizctl.console").Msg("answer window elapsed")
		_ = c.player.Answer(protocol.ChoiceTimeout)
	})
}

func (c *console) cancelDeadline() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deadline != nil {
		c.deadline.Stop()
		c.deadline = nil
	}
}

func printPlayers(w io.Writer, players []quiz.Player) {
	for i, p := range players {
		marks := ""
		if p.IsLocal {
			marks += " (you)"
		}
		if !p.Connected {
			marks += " (left)"
		}
		fmt.Fprintf(w, "  %d. %s  %d%s\n", i+1, p.ID, p.Score, marks)
	}
}
