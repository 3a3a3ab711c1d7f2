package usecase

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ahlev/Parlaybot/internal/domain/pick"
	pickmock "github.com/ahlev/Parlaybot/internal/mocks/domain/pick"
	"github.com/ahlev/Parlaybot/internal/platform/logging"
	"github.com/stretchr/testify/mock"
)

func TestPickLedgerService_AddPick_PersistenceFailureKeepsMemoryUsingMockery(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := pickmock.NewStore(t)
	var logs bytes.Buffer
	service := NewPickLedgerService(store, logging.NewJSONWriter(logging.LevelInfo, &logs))

	store.On("Load", ctx).Return(pick.NewState(), nil).Once()
	store.
		On("Save", ctx, mock.MatchedBy(func(s pick.State) bool { return s.NFL["u1"] == "Chiefs -3" })).
		Return(errors.New("disk full")).
		Once()

	if err := service.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	_, err := service.AddPick(ctx, "u1", "nfl", "Chiefs -3")
	if !errors.Is(err, ErrPersistenceFailure) {
		t.Fatalf("expected ErrPersistenceFailure, got %v", err)
	}

	listing, err := service.ListPicks(ctx, "nfl")
	if err != nil {
		t.Fatalf("list picks: %v", err)
	}
	if !listing.Empty() {
		t.Fatalf("failed save must not change in-memory ledger")
	}
	if !strings.Contains(logs.String(), `"level":"WARN"`) || !strings.Contains(logs.String(), `"operation":"add_pick"`) {
		t.Fatalf("expected persistence warning in logs, got %s", logs.String())
	}
}

func TestPickLedgerService_Reset_PersistenceFailureKeepsPicksUsingMockery(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := pickmock.NewStore(t)
	service := NewPickLedgerService(store, logging.NewNop())

	seed := pick.NewState()
	seed.CFB["u2"] = "Georgia -7"
	store.On("Load", ctx).Return(seed, nil).Once()
	store.On("Save", ctx, mock.AnythingOfType("pick.State")).Return(errors.New("read-only file system")).Once()

	if err := service.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	if _, err := service.RunScheduledReset(ctx); !errors.Is(err, ErrPersistenceFailure) {
		t.Fatalf("expected ErrPersistenceFailure, got %v", err)
	}

	listing, _ := service.ListPicks(ctx, "cfb")
	if listing.Len() != 1 {
		t.Fatalf("failed reset must keep picks in memory")
	}
}

func TestPickLedgerService_Load_FailureUsingMockery(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := pickmock.NewStore(t)
	service := NewPickLedgerService(store, logging.NewNop())

	store.On("Load", ctx).Return(pick.State{}, errors.New("permission denied")).Once()

	if err := service.Load(ctx); !errors.Is(err, ErrPersistenceFailure) {
		t.Fatalf("expected ErrPersistenceFailure, got %v", err)
	}
}
