package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/danmuck/quizlink/internal/observability"
	"github.com/danmuck/quizlink/internal/questions"
	"github.com/danmuck/quizlink/internal/quiz"
	"github.com/danmuck/quizlink/internal/radio/wsradio"
	"github.com/danmuck/quizlink/internal/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	root := &cobra.Command{
		Use:           "quizctl",
		Short:         "Run a local multiplayer quiz over a short-range link",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			observability.InitLogger("quizctl")
		},
	}
	root.AddCommand(hostCmd(), guestCmd(), demoCmd(), initCmd(), versionCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "quizctl: %v\n", err)
		os.Exit(1)
	}
}

func hostCmd() *cobra.Command {
	var cfgPath string
	var rounds int

	cmd := &cobra.Command{
		Use:   "host",
		Short: "Host a quiz and serve the guest link",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadAppConfig(cfgPath)
			if err != nil {
				return err
			}
			if rounds > 0 {
				cfg.Questions = rounds
			}
			deck, err := loadDeck(cfg.Deck)
			if err != nil {
				return err
			}

			radio := wsradio.NewHost(cfg.Radio)
			host, err := quiz.NewHost(radio, deck, cfg.Host)
			if err != nil {
				return err
			}
			defer host.Close()

			srv := server.New(cfg.Server, host, radio)
			httpCtx, cancelHTTP := context.WithCancel(context.Background())
			defer cancelHTTP()
			httpErr := make(chan error, 1)
			go func() { httpErr <- srv.Serve(httpCtx) }()

			out := cmd.OutOrStdout()
			if cfg.AdvertiseURL != "" {
				if err := printJoinCode(out, cfg.AdvertiseURL); err != nil {
					log.Warn().Err(err).Msg("join code")
				}
			}
			if err := host.StartWaiting(); err != nil {
				return err
			}
			fmt.Fprintf(out, "type \"start\" once players have joined (%d questions)\n", cfg.Questions)

			con := &console{
				out:    out,
				player: host,
				window: cfg.AnswerWindow,
				rounds: cfg.Questions,
				start: func(n int) error {
					return host.StartQuiz(context.Background(), n)
				},
				roster: host.Roster,
			}
			runErr := con.run(cmd.Context(), cmd.InOrStdin())
			cancelHTTP()
			return errors.Join(runErr, <-httpErr)
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to a quizctl TOML config")
	cmd.Flags().IntVarP(&rounds, "questions", "n", 0, "number of questions (overrides config)")
	return cmd
}

func guestCmd() *cobra.Command {
	var cfgPath string
	var hosts []string

	cmd := &cobra.Command{
		Use:   "guest",
		Short: "Join a hosted quiz",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadAppConfig(cfgPath)
			if err != nil {
				return err
			}
			if len(hosts) > 0 {
				cfg.Hosts = normalizeList(hosts)
			}
			if len(cfg.Hosts) == 0 {
				return errors.New("no hosts configured; pass --host or set hosts in the config")
			}

			radioCfg := cfg.Radio
			radioCfg.Hosts = cfg.Hosts
			guest := quiz.NewGuest(wsradio.NewGuest(radioCfg), cfg.Guest)
			defer guest.Close()

			if err := guest.DiscoverHost(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "looking for a host at %v\n", cfg.Hosts)

			con := &console{
				out:    out,
				player: guest,
				window: cfg.AnswerWindow,
				roster: guest.Roster,
			}
			return con.run(cmd.Context(), cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to a quizctl TOML config")
	cmd.Flags().StringSliceVar(&hosts, "host", nil, "host link URL, e.g. http://10.0.0.5:9400/link (repeatable)")
	return cmd
}

func initCmd() *cobra.Command {
	var kind string
	var force bool

	cmd := &cobra.Command{
		Use:   "init <path>",
		Short: "Write a starter config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := writeTemplate(args[0], kind, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s config to %s\n", kind, args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "host", "config kind: host or guest")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "quizctl %s (%s)\n", version, commit)
			fmt.Fprintf(out, "  server:  %s\n", server.Version)
			fmt.Fprintf(out, "  go:      %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}

func loadDeck(path string) (*questions.Deck, error) {
	qs := questions.Default()
	if path != "" {
		loaded, err := questions.LoadFile(path)
		if err != nil {
			return nil, err
		}
		qs = loaded
	}
	return questions.NewDeck(qs, newRand()), nil
}

func newRand() *rand.Rand {
	seed := uint64(time.Now().UnixNano())
	return rand.New(rand.NewPCG(seed, seed>>1|1))
}
