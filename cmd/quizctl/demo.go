package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/danmuck/quizlink/internal/protocol"
	"github.com/danmuck/quizlink/internal/questions"
	"github.com/danmuck/quizlink/internal/quiz"
	"github.com/danmuck/quizlink/internal/radio/loopback"
	"github.com/spf13/cobra"
)

type demoOptions struct {
	guests     int
	rounds     int
	roundDelay time.Duration
	think      time.Duration
}

func demoCmd() *cobra.Command {
	opts := demoOptions{guests: 2, rounds: 3, roundDelay: time.Second, think: 300 * time.Millisecond}

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Play a scripted quiz in-process over the loopback radio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDemo(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().IntVar(&opts.guests, "guests", opts.guests, "scripted guests (1-3)")
	cmd.Flags().IntVar(&opts.rounds, "questions", opts.rounds, "number of questions")
	cmd.Flags().DurationVar(&opts.roundDelay, "round-delay", opts.roundDelay, "pause between questions")
	cmd.Flags().DurationVar(&opts.think, "think", opts.think, "longest scripted answer delay")
	return cmd
}

var errDemoTimeout = errors.New("demo: timed out")

func runDemo(ctx context.Context, out io.Writer, opts demoOptions) error {
	if opts.guests < 1 || opts.guests > 3 {
		return fmt.Errorf("demo: guests must be 1-3, got %d", opts.guests)
	}

	medium := loopback.NewMedium()
	hostCfg := quiz.DefaultHostConfig()
	hostCfg.RoundDelay = opts.roundDelay
	host, err := quiz.NewHost(medium.Host(), questions.NewDeck(questions.Default(), newRand()), hostCfg)
	if err != nil {
		return err
	}
	defer host.Close()

	shown := &console{out: out, player: host}
	if err := host.StartWaiting(); err != nil {
		return err
	}

	var finished sync.WaitGroup
	for i := range opts.guests {
		g := quiz.NewGuest(medium.NewGuest(fmt.Sprintf("guest-%d", i+1)), quiz.DefaultGuestConfig())
		defer g.Close()
		finished.Add(1)
		go autoplay(g, opts.think, &finished)
		if err := g.DiscoverHost(); err != nil {
			return err
		}
	}

	events := host.Events()
	started := false
	deadline := time.NewTimer(time.Duration(opts.rounds+2) * (opts.roundDelay + opts.think + 5*time.Second))
	defer deadline.Stop()
	rng := newRand()

	for {
		select {
		case <-ctx.Done():
			_ = host.Stop()
			return ctx.Err()
		case <-deadline.C:
			_ = host.Stop()
			return errDemoTimeout
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			shown.show(ev)
			switch ev.Kind {
			case quiz.EventRosterChanged:
				if !started && len(ev.Players) == opts.guests+1 {
					started = true
					if err := host.StartQuiz(ctx, opts.rounds); err != nil {
						return err
					}
				}
			case quiz.EventQuestion:
				choice := randomChoice(rng)
				time.AfterFunc(randomDelay(rng, opts.think), func() { _ = host.Answer(choice) })
			case quiz.EventResult:
				waitGroup(&finished, 5*time.Second)
				_ = host.Stop()
			case quiz.EventStopped:
				return ev.Err
			}
		}
	}
}

// autoplay answers every question at random. done is released once the guest
// has seen the result or stopped; events are drained until Close.
func autoplay(g *quiz.Guest, think time.Duration, done *sync.WaitGroup) {
	var once sync.Once
	defer once.Do(done.Done)
	rng := newRand()
	for ev := range g.Events() {
		switch ev.Kind {
		case quiz.EventQuestion:
			choice := randomChoice(rng)
			time.AfterFunc(randomDelay(rng, think), func() { _ = g.Answer(choice) })
		case quiz.EventResult, quiz.EventStopped:
			once.Do(done.Done)
		}
	}
}

func randomChoice(rng *rand.Rand) protocol.Choice {
	return protocol.Choice(1 + rng.IntN(4))
}

func randomDelay(rng *rand.Rand, limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return time.Duration(rng.Int64N(int64(limit)))
}

func waitGroup(wg *sync.WaitGroup, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
}
