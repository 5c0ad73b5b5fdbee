package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"sherpa/internal/chat"
	"sherpa/internal/config"
	"sherpa/internal/dialogue"
	"sherpa/internal/logging"
	"sherpa/internal/metrics"
	"sherpa/internal/session"
	"sherpa/internal/terminal"
	"sherpa/internal/ui"
	"sherpa/internal/voice"
)

const (
	version     = "0.1.0"
	redisPrefix = "sherpa:"
)

func main() {
	err := newApp().Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "sherpa",
		Usage:   "Talk with the caregiving assistant, by keyboard or by voice",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "Dialogue service base `URL`",
			},
			&cli.StringFlag{
				Name:    "lang",
				Aliases: []string{"l"},
				Usage:   "Conversation language (it, en, es)",
			},
			&cli.BoolFlag{
				Name:  "voice",
				Usage: "Read replies aloud",
			},
			&cli.StringFlag{
				Name:  "voice-command",
				Usage: "Text-to-speech program (espeak-ng, espeak, say)",
			},
			&cli.StringFlag{
				Name:  "store",
				Usage: "Session store backend (file, sqlite, redis, memory)",
			},
			&cli.StringFlag{
				Name:  "store-path",
				Usage: "Session file or database `PATH`",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on `ADDR` (host:port)",
			},
		},
		Action: runChat,
		Commands: []*cli.Command{
			contactCommand(),
			forgetCommand(),
			initCommand(),
		},
	}
}

// loadConfig layers command-line flags over the file and environment
// configuration, then configures logging.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}

	if c.IsSet("host") {
		cfg.API.Host = c.String("host")
	}
	if c.IsSet("lang") {
		cfg.Chat.Language = c.String("lang")
	}
	if c.IsSet("voice") {
		cfg.Voice.Enabled = c.Bool("voice")
	}
	if c.IsSet("voice-command") {
		cfg.Voice.Command = c.String("voice-command")
	}
	if c.IsSet("store") {
		cfg.Store.Backend = c.String("store")
	}
	if c.IsSet("store-path") {
		cfg.Store.Path = c.String("store-path")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("metrics-addr") {
		cfg.Metrics.Addr = c.String("metrics-addr")
	}
	cfg.API.Host = strings.TrimRight(cfg.API.Host, "/")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Pretty, os.Stderr); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openStore(ctx context.Context, cfg *config.Config) (session.Store, io.Closer, error) {
	return session.Open(ctx, session.OpenOptions{
		Backend:     cfg.Store.Backend,
		Path:        cfg.SessionPath(),
		RedisURL:    cfg.Store.Redis,
		RedisPrefix: redisPrefix,
	})
}

// newVoice wires the host speech engines. The terminal has no recognizer, so
// voice input is always unavailable here.
func newVoice(cfg *config.Config) *voice.Voice {
	var synth voice.Synthesizer
	if s, err := voice.DetectSynthesizer(cfg.Voice.Command); err == nil {
		log.Debug().Str("command", s.Command()).Msg("Speech synthesizer found")
		synth = s
	} else {
		log.Info().Err(err).Msg("No speech synthesizer found, replies will not be spoken")
	}

	v := voice.New(nil, synth, voice.Profile{
		Rate:   cfg.Voice.Rate,
		Pitch:  cfg.Voice.Pitch,
		Volume: 1,
	})
	v.Speaker.SetEnabled(cfg.Voice.Enabled)
	return v
}

func runChat(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closer, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer closer.Close()

	if cfg.Metrics.Addr != "" {
		srv, err := metrics.Listen(cfg.Metrics.Addr)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	color := terminal.IsTerminal()
	display := ui.NewDisplay(ui.Options{Out: os.Stdout, Color: color})
	client := dialogue.NewClient(cfg.API.Host, cfg.API.Timeout)

	// Health check (non-fatal)
	if err := client.HealthCheck(ctx); err != nil {
		display.PrintWarning(fmt.Sprintf("Dialogue service check failed: %v", err))
		display.PrintInfo("Messages will fail until the service at " + cfg.API.Host + " is reachable.")
	}

	sh := newShell(display, terminal.NewReader(os.Stdin), terminal.NewSpinner(os.Stdout, color))
	sh.interactive = terminal.IsInteractive()
	ctl, err := chat.New(chat.Options{
		Store:         store,
		Transport:     client,
		Voice:         newVoice(cfg),
		Observer:      sh,
		Language:      cfg.Language(os.Getenv),
		ThinkingDelay: cfg.Chat.Delay,
	})
	if err != nil {
		return err
	}
	defer ctl.Close()

	return sh.run(ctx, ctl)
}

func contactCommand() *cli.Command {
	return &cli.Command{
		Name:  "contact",
		Usage: "Send a message to the Sherpa team",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "Your name", Required: true},
			&cli.StringFlag{Name: "email", Usage: "Where to reach you", Required: true},
			&cli.StringFlag{Name: "message", Aliases: []string{"m"}, Usage: "What you want to tell us", Required: true},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			client := dialogue.NewClient(cfg.API.Host, cfg.API.Timeout)
			err = client.SubmitContact(c.Context, dialogue.ContactForm{
				Name:    c.String("name"),
				Email:   c.String("email"),
				Message: c.String("message"),
			})
			if err != nil {
				return fmt.Errorf("contact form not sent: %w", err)
			}

			fmt.Fprintln(c.App.Writer, "Message sent. Thank you!")
			return nil
		},
	}
}

func forgetCommand() *cli.Command {
	return &cli.Command{
		Name:  "forget",
		Usage: "Forget the saved name so the next chat starts from scratch",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			store, closer, err := openStore(c.Context, cfg)
			if err != nil {
				return fmt.Errorf("failed to open session store: %w", err)
			}
			defer closer.Close()

			if err := store.Clear(c.Context); err != nil {
				return fmt.Errorf("failed to forget session: %w", err)
			}
			fmt.Fprintln(c.App.Writer, "Saved name removed.")
			return nil
		},
	}
}

func initCommand() *cli.Command {
	return &cli.Command{
		Name:      "init",
		Usage:     "Write a sample configuration file",
		ArgsUsage: "[FILE]",
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				path = "sherpa.toml"
			}
			if err := config.InitConfig(path); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Configuration written to %s\n", path)
			return nil
		},
	}
}

// isQuit reports whether err only means the user is done.
func isQuit(err error) bool {
	return err == nil || errors.Is(err, io.EOF) || errors.Is(err, context.Canceled)
}
