package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/matheus3301/pimsync/internal/bus"
	"github.com/matheus3301/pimsync/internal/config"
	"github.com/matheus3301/pimsync/internal/handheld"
	"github.com/matheus3301/pimsync/internal/pilot"
	"github.com/matheus3301/pimsync/internal/status"
)

// shortTempDir keeps socket paths under the 104-char Unix socket limit.
func shortTempDir(t *testing.T, pattern string) string {
	t.Helper()
	dir, err := os.MkdirTemp("/tmp", pattern)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return dir
}

func healthClient(t *testing.T, socketPath string) healthpb.HealthClient {
	t.Helper()
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func waitStatus(t *testing.T, client healthpb.HealthClient, service string, want healthpb.HealthCheckResponse_ServingStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var last healthpb.HealthCheckResponse_ServingStatus
	for time.Now().Before(deadline) {
		resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
		if err == nil {
			last = resp.Status
			if last == want {
				return
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("health of %q = %v, want %v", service, last, want)
}

func TestSchedulerSyncsConfiguredConduits(t *testing.T) {
	home := shortTempDir(t, "pimsync-sched-*")
	t.Setenv(config.EnvHome, home)

	img, err := handheld.Open(filepath.Join(home, "handheld.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = img.Close() }()
	task := (&pilot.ToDo{Indefinite: true, Priority: 2, Description: "Call home"}).Pack()
	if _, err := img.Edit(context.Background(), handheld.ToDoDB, &pilot.Record{Data: task}); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Conduits = []config.ConduitRef{
		{Kind: config.KindToDo, PilotID: 3},
		{Kind: config.KindMemo, PilotID: 3},
	}
	s := NewScheduler(cfg, img, bus.New(), zap.NewNop())
	s.SyncOnce(context.Background())

	for _, name := range []string{"todo/3", "memo/3"} {
		res, ok := s.LastResult(name)
		if !ok {
			t.Fatalf("no result recorded for %s", name)
		}
		if !res.Slow {
			t.Errorf("%s: first sync should be slow", name)
		}
	}

	if res, _ := s.LastResult("todo/3"); res.DesktopAdded != 1 {
		t.Errorf("todo desktop_added = %d, want 1", res.DesktopAdded)
	}

	// The second pass finds the map written by the first.
	res, err := s.SyncConduit(context.Background(), cfg.Conduits[0])
	if err != nil {
		t.Fatal(err)
	}
	if res.Slow {
		t.Error("second sync should be fast")
	}
}

func TestHealthFollowsConduitState(t *testing.T) {
	tmpDir := shortTempDir(t, "pimsync-health-*")
	socketPath := filepath.Join(tmpDir, "d.sock")

	b := bus.New()
	hs := health.NewServer()
	w := NewWatcher(b, hs, zap.NewNop())
	w.Start(context.Background())
	defer w.Stop()

	srv, err := NewServer(Params{SocketPath: socketPath}, zap.NewNop(), hs)
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = srv.Start() }()
	defer srv.Stop(context.Background())

	client := healthClient(t, socketPath)

	m := status.NewMachine("todo/9", b)
	for _, st := range []status.State{status.PreSync, status.FastSync, status.PostSync, status.Done} {
		if err := m.Transition(st); err != nil {
			t.Fatal(err)
		}
	}
	waitStatus(t, client, "todo/9", healthpb.HealthCheckResponse_SERVING)

	if err := m.Transition(status.PreSync); err != nil {
		t.Fatal(err)
	}
	m.Fail()
	waitStatus(t, client, "todo/9", healthpb.HealthCheckResponse_NOT_SERVING)
}

func TestSchedulerStopWithoutStart(t *testing.T) {
	s := NewScheduler(config.Default(), nil, nil, zap.NewNop())
	s.Stop()
}

// TestFxModuleWiring verifies the fx dependency graph resolves without errors.
func TestFxModuleWiring(t *testing.T) {
	if err := fx.ValidateApp(Module(Params{SocketPath: "/tmp/unused.sock"})); err != nil {
		t.Fatalf("fx graph invalid: %v", err)
	}
}

func TestServerCreatesSocket(t *testing.T) {
	tmpDir := shortTempDir(t, "pimsync-fx-*")
	socketPath := filepath.Join(tmpDir, "d.sock")

	srv, err := NewServer(Params{SocketPath: socketPath}, zap.NewNop(), health.NewServer())
	if err != nil {
		t.Fatalf("NewServer() failed: %v", err)
	}

	info, statErr := os.Stat(socketPath)
	if statErr != nil {
		t.Fatalf("socket not created at %s: %v", socketPath, statErr)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("socket mode = %v, want 0600", info.Mode().Perm())
	}

	srv.Stop(context.Background())
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Errorf("socket not removed on stop")
	}
}
