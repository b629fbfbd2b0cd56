package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"disorder.dev/shandler"
	"github.com/alecthomas/kong"

	"github.com/rookery-io/rook/agent"
)

var VERSION = "development"

type CLI struct {
	Host string `arg:"" help:"Master host to connect to."`
	Port int    `arg:"" help:"Master port to connect to."`

	Quiet             bool             `short:"q" help:"Suppress log output."`
	Verbose           bool             `short:"v" help:"Enable debug logging."`
	HeartbeatInterval time.Duration    `default:"10s" help:"Heartbeat and reconnect cadence."`
	Version           kong.VersionFlag `help:"Print version and exit."`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("rook-agent"),
		kong.Description("Per-node rook agent | connects to a cluster master and runs processes on its behalf"),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Vars{"version": VERSION},
	)
	kctx.FatalIfErrorf(run(cli))
}

func run(cli CLI) error {
	logger := configureLogger(cli)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := agent.New(ctx,
		agent.WithLogger(logger),
		agent.WithHeartbeatInterval(cli.HeartbeatInterval),
	)

	if err := a.Connect(cli.Host, cli.Port); err != nil {
		logger.Error("initial connection failed; retrying on heartbeat cadence",
			slog.String("host", cli.Host), slog.Int("port", cli.Port), slog.Any("err", err))
	} else {
		logger.Info("agent connected", slog.String("host", cli.Host), slog.Int("port", cli.Port))
	}

	<-ctx.Done()
	return a.Close()
}

func configureLogger(cli CLI) *slog.Logger {
	handlerOpts := []shandler.HandlerOption{
		shandler.WithTimeFormat(time.DateTime),
		shandler.WithColor(),
	}

	switch {
	case cli.Quiet:
		handlerOpts = append(handlerOpts, shandler.WithLogLevel(shandler.LevelFatal))
	case cli.Verbose:
		handlerOpts = append(handlerOpts, shandler.WithLogLevel(slog.LevelDebug))
	default:
		handlerOpts = append(handlerOpts, shandler.WithLogLevel(slog.LevelInfo))
	}

	return slog.New(shandler.NewHandler(handlerOpts...))
}
