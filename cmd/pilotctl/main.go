package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/matheus3301/pimsync/internal/config"
	"github.com/matheus3301/pimsync/internal/paths"
)

type globalOptions struct {
	Config  string `short:"c" long:"config" description:"Config file location. Default: ~/.evolution/pimsync.toml"`
	Debug   bool   `short:"d" long:"debug" description:"Enable debug logs"`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	EnvFile string `long:"env-file" default:".env" description:"dotenv file with PIMSYNC_* variables"`
}

// conduitOptions selects one conduit of one device.
type conduitOptions struct {
	Kind    string `short:"k" long:"kind" choice:"todo" choice:"memo" default:"todo" description:"Conduit kind"`
	PilotID uint32 `short:"p" long:"pilot-id" required:"true" description:"Paired device ID"`
}

func (o conduitOptions) kind() config.Kind {
	return config.Kind(o.Kind)
}

var global globalOptions

func main() {
	parser := flags.NewParser(&global, flags.Default)
	parser.SubcommandsOptional = false
	mustAdd(parser.AddCommand("sync", "Run one sync session",
		"Runs the selected conduit against the handheld image and prints the outcome.", &syncCommand{}))
	mustAdd(parser.AddCommand("map", "Show the UID map",
		"Lists the desktop UID to device record ID map of a conduit.", &mapCommand{}))
	mustAdd(parser.AddCommand("config", "Show or change conduit settings",
		"Prints the conduit config; any --set-* option rewrites it first.", &configCommand{}))
	mustAdd(parser.AddCommand("status", "Query the daemon",
		"Asks pilotsyncd for the health of every configured conduit.", &statusCommand{}))

	if _, err := parser.Parse(); err != nil {
		if fe, ok := err.(*flags.Error); ok && fe.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

func mustAdd(_ *flags.Command, err error) {
	if err != nil {
		panic(err)
	}
}

func loadConfig() (*config.Config, error) {
	if err := config.LoadEnv(global.EnvFile); err != nil {
		return nil, err
	}
	path := global.Config
	if path == "" {
		path = paths.ConfigPath()
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	if global.Debug {
		cfg.LogLevel = "debug"
	}
	return cfg, cfg.Validate()
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
