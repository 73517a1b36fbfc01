package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"go.uber.org/fx"

	"github.com/matheus3301/pimsync/internal/config"
	"github.com/matheus3301/pimsync/internal/daemon"
)

var opts struct {
	Config   string `short:"c" long:"config" description:"Config file location. Default: ~/.evolution/pimsync.toml"`
	Handheld string `long:"handheld" description:"Handheld image database. Overrides the config file"`
	Socket   string `long:"socket" description:"gRPC socket path"`
	Debug    bool   `short:"d" long:"debug" description:"Enable debug logs"`
	EnvFile  string `long:"env-file" default:".env" description:"dotenv file with PIMSYNC_* variables"`
}

func main() {
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}
	if err := config.LoadEnv(opts.EnvFile); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	p := daemon.Params{
		ConfigPath:   opts.Config,
		HandheldPath: opts.Handheld,
		SocketPath:   opts.Socket,
	}
	if opts.Debug {
		p.LogLevel = "debug"
	}

	app := fx.New(
		daemon.Module(p),
		fx.NopLogger,
	)

	app.Run()
}
