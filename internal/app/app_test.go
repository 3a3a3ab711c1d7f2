package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ahlev/Parlaybot/internal/config"
	"github.com/ahlev/Parlaybot/internal/platform/logging"
)

func httpOnlyConfig(t *testing.T) config.Config {
	t.Helper()

	return config.Config{
		ServiceName:          "parlaybot",
		DiscordCommandPrefix: "/",
		StoreDriver:          config.StoreDriverMemory,
		DataDir:              t.TempDir(),
		WeeklyResetInterval:  time.Hour,
		WeeklyResetDispatch:  config.DispatchLocal,
		HTTPEnabled:          true,
		HTTPAddr:             "127.0.0.1:0",
		ReadTimeout:          time.Second,
		WriteTimeout:         time.Second,
	}
}

func TestNew_HTTPOnly(t *testing.T) {
	cfg := httpOnlyConfig(t)
	cfg.WeeklyResetEnabled = true

	a, err := New(t.Context(), cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if a.bot != nil {
		t.Fatalf("discord bot must not be built when disabled")
	}
	if a.server == nil || a.scheduler == nil {
		t.Fatalf("expected http server and scheduler, got server=%v scheduler=%v", a.server, a.scheduler)
	}
}

func TestNew_DiscordRequiresToken(t *testing.T) {
	cfg := httpOnlyConfig(t)
	cfg.DiscordEnabled = true

	if _, err := New(t.Context(), cfg, logging.NewNop()); err == nil {
		t.Fatalf("expected error without discord token")
	}
}

func TestNew_FileStoreLoadsExistingPicks(t *testing.T) {
	cfg := httpOnlyConfig(t)
	cfg.StoreDriver = config.StoreDriverFile
	if err := os.WriteFile(filepath.Join(cfg.DataDir, "nfl_picks.json"), []byte(`{"111":"Chiefs -3"}`), 0o644); err != nil {
		t.Fatalf("seed nfl picks: %v", err)
	}

	a, err := New(t.Context(), cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	listing, err := a.ledger.ListPicks(t.Context(), "nfl")
	if err != nil {
		t.Fatalf("list picks: %v", err)
	}
	if listing.Len() != 1 {
		t.Fatalf("expected 1 loaded pick, got %d", listing.Len())
	}
}

func TestNew_UnknownStoreDriver(t *testing.T) {
	cfg := httpOnlyConfig(t)
	cfg.StoreDriver = "sqlite"

	if _, err := New(t.Context(), cfg, logging.NewNop()); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	cfg := httpOnlyConfig(t)
	cfg.WeeklyResetEnabled = true

	a, err := New(t.Context(), cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("app did not stop after cancel")
	}
}
