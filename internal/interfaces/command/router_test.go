package command

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ahlev/Parlaybot/internal/domain/pick"
	"github.com/ahlev/Parlaybot/internal/infrastructure/repository/memory"
	pickmock "github.com/ahlev/Parlaybot/internal/mocks/domain/pick"
	"github.com/ahlev/Parlaybot/internal/platform/logging"
	"github.com/ahlev/Parlaybot/internal/usecase"
	"github.com/stretchr/testify/mock"
)

func newTestRouter(t *testing.T, seed pick.State) (*Router, *usecase.PickLedgerService) {
	t.Helper()

	service := usecase.NewPickLedgerService(memory.NewPickStore(seed), logging.NewNop())
	if err := service.Load(t.Context()); err != nil {
		t.Fatalf("load ledger: %v", err)
	}
	return NewRouter(service, "/", logging.NewNop()), service
}

func allow(context.Context) (bool, error) { return true, nil }

func deny(context.Context) (bool, error) { return false, nil }

func mustHandle(t *testing.T, r *Router, req Request) string {
	t.Helper()

	reply, ok := r.Handle(t.Context(), req)
	if !ok {
		t.Fatalf("expected %q to be handled", req.Content)
	}
	return reply
}

func TestRouter_IgnoresNonCommands(t *testing.T) {
	router, _ := newTestRouter(t, pick.NewState())

	for _, content := range []string{"hello there", "", "/", "/unknowncommand nfl", "!addpick nfl x"} {
		if reply, ok := router.Handle(t.Context(), Request{AuthorID: "1", Content: content}); ok {
			t.Fatalf("expected %q to be ignored, got reply %q", content, reply)
		}
	}
}

func TestRouter_AddPickFlow(t *testing.T) {
	router, service := newTestRouter(t, pick.NewState())

	reply := mustHandle(t, router, Request{AuthorID: "111", Content: "/addpick nfl Chiefs  -3 ML"})
	if !strings.HasPrefix(reply, "NFL pick added: Chiefs  -3 ML. "+snarkyResponse) {
		t.Fatalf("unexpected add reply: %q", reply)
	}
	if !strings.Contains(reply, "Available commands:") {
		t.Fatalf("add reply must carry the command reminder: %q", reply)
	}

	reply = mustHandle(t, router, Request{AuthorID: "111", Content: "/add-pick NFL Bills +2"})
	if !strings.HasPrefix(reply, "You already have a NFL pick for this week.") {
		t.Fatalf("unexpected duplicate reply: %q", reply)
	}

	listing, err := service.ListPicks(t.Context(), "nfl")
	if err != nil {
		t.Fatalf("list picks: %v", err)
	}
	for _, text := range listing.All() {
		if text != "Chiefs  -3 ML" {
			t.Fatalf("duplicate add must not overwrite, got %q", text)
		}
	}
}

func TestRouter_EditAndDelete(t *testing.T) {
	router, _ := newTestRouter(t, pick.NewState())

	reply := mustHandle(t, router, Request{AuthorID: "111", Content: "/editpick cfb Georgia -7"})
	if !strings.HasPrefix(reply, "You don't have a CFB pick yet.") {
		t.Fatalf("unexpected edit-missing reply: %q", reply)
	}

	mustHandle(t, router, Request{AuthorID: "111", Content: "/addpick cfb Georgia -7"})
	reply = mustHandle(t, router, Request{AuthorID: "111", Content: "/edit-pick cfb Georgia -10"})
	if !strings.HasPrefix(reply, "CFB pick updated to: Georgia -10.") {
		t.Fatalf("unexpected edit reply: %q", reply)
	}

	reply = mustHandle(t, router, Request{AuthorID: "111", Content: "/deletepick cfb"})
	if !strings.HasPrefix(reply, "Your CFB pick has been deleted.") {
		t.Fatalf("unexpected delete reply: %q", reply)
	}

	reply = mustHandle(t, router, Request{AuthorID: "111", Content: "/delete-pick cfb"})
	if !strings.HasPrefix(reply, "You don't have a CFB pick to delete.") {
		t.Fatalf("unexpected delete-missing reply: %q", reply)
	}
}

func TestRouter_ShowPicks(t *testing.T) {
	router, _ := newTestRouter(t, pick.State{
		NFL: pick.Ledger{"222": "Bills +2", "111": "Chiefs -3"},
		CFB: pick.Ledger{},
	})

	reply := mustHandle(t, router, Request{AuthorID: "9", Content: "/showpicks nfl"})
	want := "Current NFL picks:\n<@111>: Chiefs -3\n<@222>: Bills +2 "
	if !strings.HasPrefix(reply, want) {
		t.Fatalf("unexpected listing reply:\n%q\nwant prefix\n%q", reply, want)
	}

	reply = mustHandle(t, router, Request{AuthorID: "9", Content: "/show-picks cfb"})
	if !strings.HasPrefix(reply, "No CFB picks have been submitted yet.") {
		t.Fatalf("unexpected empty listing reply: %q", reply)
	}
}

func TestRouter_InvalidLeagueAndUsage(t *testing.T) {
	router, _ := newTestRouter(t, pick.NewState())

	reply := mustHandle(t, router, Request{AuthorID: "1", Content: "/addpick nba Lakers"})
	if !strings.HasPrefix(reply, "Unknown league `nba`.") {
		t.Fatalf("unexpected invalid league reply: %q", reply)
	}

	reply = mustHandle(t, router, Request{AuthorID: "1", Content: "/addpick nfl"})
	if !strings.HasPrefix(reply, "Usage: `/addpick <league> <pick>`") {
		t.Fatalf("unexpected usage reply: %q", reply)
	}

	reply = mustHandle(t, router, Request{AuthorID: "1", Content: "/showpicks"})
	if !strings.HasPrefix(reply, "Usage: `/showpicks <league>`") {
		t.Fatalf("unexpected usage reply: %q", reply)
	}
}

func TestRouter_FinalizeParlay(t *testing.T) {
	t.Run("requires guild administrator", func(t *testing.T) {
		router, _ := newTestRouter(t, pick.NewState())

		reply := mustHandle(t, router, Request{AuthorID: "1", Content: "/finalizeparlay", IsAdmin: deny})
		if !strings.HasPrefix(reply, "You need administrator permission to use `/finalizeparlay`.") {
			t.Fatalf("unexpected denied reply: %q", reply)
		}

		reply = mustHandle(t, router, Request{AuthorID: "1", Content: "/finalizeparlay"})
		if !strings.HasPrefix(reply, "You need administrator permission") {
			t.Fatalf("missing checker must deny, got %q", reply)
		}
	})

	t.Run("permission lookup failure", func(t *testing.T) {
		router, _ := newTestRouter(t, pick.NewState())
		failing := func(context.Context) (bool, error) { return false, errors.New("discord unavailable") }

		reply := mustHandle(t, router, Request{AuthorID: "1", Content: "/finalizeparlay", IsAdmin: failing})
		if !strings.HasPrefix(reply, "Something went wrong") {
			t.Fatalf("unexpected reply: %q", reply)
		}
	})

	t.Run("empty week", func(t *testing.T) {
		router, _ := newTestRouter(t, pick.NewState())

		reply := mustHandle(t, router, Request{AuthorID: "1", Content: "/finalize-parlay", IsAdmin: allow})
		if !strings.HasPrefix(reply, "No picks to finalize. What a disappointing week!") {
			t.Fatalf("unexpected empty parlay reply: %q", reply)
		}
	})

	t.Run("renders both leagues", func(t *testing.T) {
		router, _ := newTestRouter(t, pick.State{
			NFL: pick.Ledger{"111": "Chiefs -3"},
			CFB: pick.Ledger{"222": "Georgia -7"},
		})

		reply := mustHandle(t, router, Request{AuthorID: "1", Content: "/finalizeparlay", IsAdmin: allow})
		want := "Parlay finalized with the following picks:\n" +
			"NFL Picks:\n<@111>: Chiefs -3\n\n" +
			"College Football Picks:\n<@222>: Georgia -7"
		if reply != want {
			t.Fatalf("unexpected parlay:\n%q\nwant\n%q", reply, want)
		}
	})

	t.Run("skips empty league", func(t *testing.T) {
		router, _ := newTestRouter(t, pick.State{CFB: pick.Ledger{"222": "Georgia -7"}})

		reply := mustHandle(t, router, Request{AuthorID: "1", Content: "/finalizeparlay", IsAdmin: allow})
		if strings.Contains(reply, "NFL Picks") {
			t.Fatalf("empty league must be omitted: %q", reply)
		}
	})
}

func TestRouter_SetAdminAndReset(t *testing.T) {
	router, service := newTestRouter(t, pick.State{
		NFL: pick.Ledger{"111": "Chiefs -3"},
		CFB: pick.Ledger{"222": "Georgia -7", "111": "Texas +3"},
	})

	reply := mustHandle(t, router, Request{AuthorID: "999", Content: "/adminreset"})
	if !strings.HasPrefix(reply, "You do not have permission to trigger the weekly reset.") {
		t.Fatalf("unset administrator must deny reset, got %q", reply)
	}

	reply = mustHandle(t, router, Request{AuthorID: "1", Content: "/setadmin <@999>", IsAdmin: deny})
	if !strings.HasPrefix(reply, "You need administrator permission to use `/setadmin`.") {
		t.Fatalf("unexpected denied reply: %q", reply)
	}

	reply = mustHandle(t, router, Request{AuthorID: "1", Content: "/set-admin <@!999>", IsAdmin: allow})
	if !strings.HasPrefix(reply, "Admin privileges have been granted to <@999> for managing weekly resets.") {
		t.Fatalf("unexpected grant reply: %q", reply)
	}
	if admin, ok := service.Administrator(t.Context()); !ok || admin != "999" {
		t.Fatalf("administrator not stored: %q %v", admin, ok)
	}

	reply = mustHandle(t, router, Request{AuthorID: "111", Content: "/adminreset"})
	if !strings.HasPrefix(reply, "You do not have permission") {
		t.Fatalf("non-admin reset must be denied, got %q", reply)
	}

	reply = mustHandle(t, router, Request{AuthorID: "999", Content: "/admin-reset"})
	want := "Weekly reset has been triggered. All previous picks have been cleared. <@111> <@222>, the new week has started!"
	if !strings.HasPrefix(reply, want) {
		t.Fatalf("unexpected reset reply:\n%q\nwant prefix\n%q", reply, want)
	}

	reply = mustHandle(t, router, Request{AuthorID: "999", Content: "/adminreset"})
	if reply != "No picks were found, but the weekly reset has been performed." {
		t.Fatalf("unexpected empty reset reply: %q", reply)
	}
}

func TestRouter_SetAdminPrefersResolvedMentions(t *testing.T) {
	router, service := newTestRouter(t, pick.NewState())

	mustHandle(t, router, Request{AuthorID: "1", Content: "/setadmin @Sam", Mentions: []string{"555"}, IsAdmin: allow})
	if admin, _ := service.Administrator(t.Context()); admin != "555" {
		t.Fatalf("expected resolved mention to win, got %q", admin)
	}

	reply := mustHandle(t, router, Request{AuthorID: "1", Content: "/setadmin someone", IsAdmin: allow})
	if !strings.HasPrefix(reply, "Usage: `/setadmin @user`") {
		t.Fatalf("unexpected usage reply: %q", reply)
	}
}

func TestRouter_PersistenceFailureReply(t *testing.T) {
	ctx := context.Background()
	store := pickmock.NewStore(t)
	store.On("Load", mock.Anything).Return(pick.NewState(), nil).Once()
	store.On("Save", mock.Anything, mock.AnythingOfType("pick.State")).Return(errors.New("disk full")).Once()

	service := usecase.NewPickLedgerService(store, logging.NewNop())
	if err := service.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	router := NewRouter(service, "/", logging.NewNop())

	reply, ok := router.Handle(ctx, Request{AuthorID: "1", Content: "/addpick nfl Chiefs -3"})
	if !ok || !strings.HasPrefix(reply, "Your change could not be saved") {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestRouter_CustomPrefixAndHelp(t *testing.T) {
	service := usecase.NewPickLedgerService(memory.NewPickStore(pick.NewState()), logging.NewNop())
	router := NewRouter(service, "!", logging.NewNop())

	if _, ok := router.Handle(t.Context(), Request{AuthorID: "1", Content: "/help"}); ok {
		t.Fatalf("default prefix must not match a custom prefix router")
	}

	reply := mustHandle(t, router, Request{AuthorID: "1", Content: "!help"})
	if !strings.Contains(reply, "!addpick <league> <pick>") || !strings.Contains(reply, "!adminreset") {
		t.Fatalf("help must use the configured prefix: %q", reply)
	}
}

func TestSplitFirstToken(t *testing.T) {
	cases := []struct {
		in, head, rest string
	}{
		{"nfl Chiefs -3", "nfl", "Chiefs -3"},
		{"  cfb\tGeorgia   -7 ", "cfb", "Georgia   -7"},
		{"nfl", "nfl", ""},
		{"", "", ""},
	}
	for _, tc := range cases {
		head, rest := splitFirstToken(tc.in)
		if head != tc.head || rest != tc.rest {
			t.Fatalf("splitFirstToken(%q)=(%q,%q) want (%q,%q)", tc.in, head, rest, tc.head, tc.rest)
		}
	}
}
