package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/matheus3301/pimsync/internal/conduit"
	"github.com/matheus3301/pimsync/internal/config"
	"github.com/matheus3301/pimsync/internal/handheld"
	"github.com/matheus3301/pimsync/internal/logging"
	"github.com/matheus3301/pimsync/internal/paths"
	"github.com/matheus3301/pimsync/internal/pilotmap"
	"github.com/matheus3301/pimsync/internal/syncabs"
)

type syncCommand struct {
	conduitOptions
	Handheld string `long:"handheld" description:"Handheld image database. Overrides the config file"`
}

func (c *syncCommand) Execute(_ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.NewConsole("pilotctl", cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	path := c.Handheld
	if path == "" {
		path = cfg.Handheld
	}
	if path == "" {
		path = paths.HandheldPath()
	}
	img, err := handheld.Open(path, logger)
	if err != nil {
		return err
	}
	defer func() { _ = img.Close() }()

	sess, err := conduit.New(c.kind(), conduit.Options{
		PilotID:  c.PilotID,
		Timezone: cfg.Timezone,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	res, err := syncabs.Run(ctx, sess, img, logger)
	if err != nil {
		return err
	}
	if global.JSON {
		outputJSON(res)
		return nil
	}
	printResult(sess.Name(), res)
	return nil
}

func printResult(name string, res *syncabs.Result) {
	mode := "fast"
	if res.Slow {
		mode = "slow"
	}
	fmt.Printf("Conduit: %s (%s sync)\n", name, mode)
	fmt.Printf("Desktop: %d added, %d replaced, %d deleted, %d archived\n",
		res.DesktopAdded, res.DesktopReplaced, res.DesktopDeleted, res.Archived)
	fmt.Printf("Device:  %d written, %d deleted\n", res.DeviceWritten, res.DeviceDeleted)
	if res.Failed > 0 {
		fmt.Printf("Failed:  %d records\n", res.Failed)
	}
}

type mapCommand struct {
	conduitOptions
}

type mapEntry struct {
	PilotID  uint32 `json:"pilot_id"`
	UID      string `json:"uid"`
	Archived bool   `json:"archived"`
}

func (c *mapCommand) Execute(_ []string) error {
	m, err := pilotmap.Read(paths.MapPath(c.kind(), c.PilotID))
	if err != nil {
		return err
	}
	entries := m.Entries()
	if global.JSON {
		out := make([]mapEntry, 0, len(entries))
		for _, e := range entries {
			out = append(out, mapEntry{PilotID: e.PilotID, UID: e.UID, Archived: e.Archived})
		}
		outputJSON(out)
		return nil
	}
	if len(entries) == 0 {
		fmt.Println("Map is empty.")
		return nil
	}
	for _, e := range entries {
		flag := ""
		if e.Archived {
			flag = " (archived)"
		}
		fmt.Printf("%10d  %s%s\n", e.PilotID, e.UID, flag)
	}
	if !m.Since.IsZero() {
		fmt.Printf("Last written: %s\n", m.Since.Format(time.RFC3339))
	}
	return nil
}

type configCommand struct {
	conduitOptions
	SyncType string `long:"set-sync-type" choice:"synchronize" choice:"copy_from_pilot" choice:"copy_to_pilot" choice:"merge_from_pilot" choice:"merge_to_pilot" description:"Sync direction"`
	Source   string `long:"set-source" description:"Desktop store source"`
	Priority int    `long:"set-priority" description:"Default ToDo priority (1-5)"`
	Secret   string `long:"set-secret" choice:"true" choice:"false" description:"Mark new device records secret"`
}

func (c *configCommand) Execute(_ []string) error {
	path := paths.ConduitConfigPath(c.kind(), c.PilotID)
	cfg, err := config.LoadConduit(path, c.PilotID)
	if err != nil {
		return err
	}

	changed := false
	if c.SyncType != "" {
		cfg.SyncType = config.SyncType(c.SyncType)
		changed = true
	}
	if c.Source != "" {
		if err := paths.ValidateSource(c.Source); err != nil {
			return err
		}
		cfg.Source = c.Source
		changed = true
	}
	if c.Priority != 0 {
		cfg.Priority = c.Priority
		changed = true
	}
	if c.Secret != "" {
		cfg.Secret = c.Secret == "true"
		changed = true
	}
	if changed {
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := config.SaveConduit(path, cfg); err != nil {
			return err
		}
	}

	if global.JSON {
		outputJSON(cfg)
		return nil
	}
	fmt.Printf("Config:    %s\n", path)
	fmt.Printf("Sync type: %s\n", cfg.SyncType)
	fmt.Printf("Source:    %s\n", cfg.Source)
	fmt.Printf("Priority:  %d\n", cfg.Priority)
	fmt.Printf("Secret:    %v\n", cfg.Secret)
	return nil
}

type statusCommand struct {
	Socket string `long:"socket" description:"Daemon socket path"`
}

func (c *statusCommand) Execute(_ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	socket := c.Socket
	if socket == "" {
		socket = paths.SocketPath()
	}
	conn, err := grpc.NewClient("unix://"+socket, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("cannot connect to daemon: %w", err)
	}
	defer func() { _ = conn.Close() }()
	client := healthpb.NewHealthClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	statuses := make(map[string]any, len(cfg.Conduits))
	for _, ref := range cfg.Conduits {
		name := fmt.Sprintf("%s/%d", ref.Kind, ref.PilotID)
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: name})
		if err != nil {
			// Unknown until the first session of the conduit ends.
			statuses[name] = healthpb.HealthCheckResponse_UNKNOWN.String()
			continue
		}
		statuses[name] = resp.Status.String()
	}

	if global.JSON {
		st, err := structpb.NewStruct(statuses)
		if err != nil {
			return err
		}
		out, err := protojson.MarshalOptions{Multiline: true}.Marshal(st)
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}
	if len(cfg.Conduits) == 0 {
		fmt.Println("No conduits configured.")
		return nil
	}
	for _, ref := range cfg.Conduits {
		name := fmt.Sprintf("%s/%d", ref.Kind, ref.PilotID)
		fmt.Printf("%-12s %s\n", name, statuses[name])
	}
	return nil
}
