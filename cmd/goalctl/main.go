package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"goaltracker/internal/analytics"
	"goaltracker/internal/apiclient"
	"goaltracker/internal/config"
	"goaltracker/internal/goals"
	"goaltracker/internal/progress"
	"goaltracker/internal/session"
	"goaltracker/internal/slogutil"
)

var Version = "dev"

// Command annotations read by the root pre-run hook.
const (
	annotationPublic = "public" // runs without a session
	annotationTUI    = "tui"    // logs to file only
)

type app struct {
	configFile string

	cfg      *config.Config
	log      *slog.Logger
	sessions *session.Store
	sess     session.Session
	client   *apiclient.Client
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(&app{}).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if errors.Is(err, goals.ErrUnauthorized) {
			fmt.Fprintln(os.Stderr, "your session is no longer valid, run `goalctl login`")
		}
		stop()
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "goalctl",
		Short:         "Track goals and their progress from the terminal",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (default ./goaltracker.yaml if present)")

	root.AddCommand(loginCmd(a))
	root.AddCommand(logoutCmd(a))
	root.AddCommand(whoamiCmd(a))
	root.AddCommand(statsCmd(a))
	root.AddCommand(goalsCmd(a))
	root.AddCommand(versionCmd())
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	var console io.Writer = cmd.ErrOrStderr()
	if cmd.Annotations[annotationTUI] == "true" {
		console = nil
	}
	a.log = slogutil.Setup(cfg.Log, console)
	slog.SetDefault(a.log)

	a.sessions = session.NewStore(cfg.Session.Path)
	a.sess, err = a.sessions.Load()
	if err != nil {
		a.log.Warn("ignoring unreadable session", "path", cfg.Session.Path, "err", err)
		a.sess = session.Session{}
	}

	env := analytics.NewEnvelope(cfg.API.Platform, cfg.API.AppVersion, cfg.API.Locale)
	a.client, err = apiclient.New(cfg.API.BaseURL,
		apiclient.WithTimeout(cfg.API.Timeout),
		apiclient.WithReadRetries(cfg.API.ReadRetries),
		apiclient.WithEnvelope(env),
		apiclient.WithToken(a.sess.Token),
		apiclient.WithLogger(a.log),
	)
	if err != nil {
		return err
	}

	if cmd.Annotations[annotationPublic] == "true" {
		return nil
	}
	if session.RouteFor(a.sess, time.Now()) == session.RouteLogin {
		return errors.New("not logged in, run `goalctl login` first")
	}
	return nil
}

func (a *app) controllerOptions() []progress.Option {
	return []progress.Option{
		progress.WithLogger(a.log),
		progress.WithRequestTimeout(a.cfg.API.Timeout),
		progress.WithPreserveProgress(a.cfg.UI.PreserveProgress),
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the goalctl version",
		Annotations: map[string]string{annotationPublic: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "goalctl", Version)
		},
	}
}
