package usecase

import (
	"context"
	"fmt"
	"iter"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ahlev/Parlaybot/internal/domain/pick"
	"github.com/ahlev/Parlaybot/internal/platform/logging"
)

const (
	ResetTriggerCommand  = "command"
	ResetTriggerSchedule = "schedule"
	ResetTriggerJob      = "job"
)

type PickResult struct {
	League pick.League
	UserID string
	Text   string
}

// Listing is a point-in-time copy of one league's picks.
type Listing struct {
	League  pick.League
	entries []pick.Entry
}

func newListing(league pick.League, ledger pick.Ledger) Listing {
	entries := make([]pick.Entry, 0, len(ledger))
	for _, userID := range ledger.UserIDs() {
		entries = append(entries, pick.Entry{UserID: userID, Text: ledger[userID]})
	}
	return Listing{League: league, entries: entries}
}

func (l Listing) Empty() bool {
	return len(l.entries) == 0
}

func (l Listing) Len() int {
	return len(l.entries)
}

// All yields (user id, pick text) in ascending user id order. It can be
// ranged over any number of times.
func (l Listing) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, entry := range l.entries {
			if !yield(entry.UserID, entry.Text) {
				return
			}
		}
	}
}

// Parlay is the combined weekly view of both leagues.
type Parlay struct {
	Leagues []Listing
}

func (p Parlay) Empty() bool {
	for _, listing := range p.Leagues {
		if !listing.Empty() {
			return false
		}
	}
	return true
}

// ResetActor identifies who asked for a reset. Verified is set when an
// upstream gate (guild administrator permission, internal job token) already
// authorized the caller.
type ResetActor struct {
	UserID   string
	Verified bool
}

type ResetResult struct {
	Trigger       string
	NotifyUserIDs []string
	Cleared       bool
	ResetAt       time.Time
}

type PickLedgerService struct {
	mu     sync.Mutex
	store  pick.Store
	state  pick.State
	logger *logging.Logger
	now    func() time.Time
}

func NewPickLedgerService(store pick.Store, logger *logging.Logger) *PickLedgerService {
	if logger == nil {
		logger = logging.Default()
	}

	return &PickLedgerService{
		store:  store,
		state:  pick.NewState(),
		logger: logger,
		now:    time.Now,
	}
}

// Load replaces the in-memory state with what the store holds.
func (s *PickLedgerService) Load(ctx context.Context) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.PickLedgerService.Load")
	defer span.End()

	state, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: load picks: %w", ErrPersistenceFailure, err)
	}

	s.mu.Lock()
	s.state = state.Clone()
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "pick ledger loaded",
		"nfl_picks", len(state.NFL),
		"cfb_picks", len(state.CFB),
		"admin_set", state.AdminID != "",
	)
	return nil
}

func (s *PickLedgerService) AddPick(ctx context.Context, userID, rawLeague, text string) (PickResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.PickLedgerService.AddPick")
	defer span.End()

	league, userID, text, err := normalizePickInput(rawLeague, userID, text, true)
	if err != nil {
		return PickResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.state.Ledger(league)[userID]; exists {
		return PickResult{}, fmt.Errorf("%w: league=%s user=%s", ErrAlreadyExists, league, userID)
	}

	next := s.state.Clone()
	next.Ledger(league)[userID] = text
	if err := s.commit(ctx, "add_pick", league, userID, next); err != nil {
		return PickResult{}, err
	}

	return PickResult{League: league, UserID: userID, Text: text}, nil
}

func (s *PickLedgerService) EditPick(ctx context.Context, userID, rawLeague, text string) (PickResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.PickLedgerService.EditPick")
	defer span.End()

	league, userID, text, err := normalizePickInput(rawLeague, userID, text, true)
	if err != nil {
		return PickResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.state.Ledger(league)[userID]; !exists {
		return PickResult{}, fmt.Errorf("%w: league=%s user=%s", ErrNotFound, league, userID)
	}

	next := s.state.Clone()
	next.Ledger(league)[userID] = text
	if err := s.commit(ctx, "edit_pick", league, userID, next); err != nil {
		return PickResult{}, err
	}

	return PickResult{League: league, UserID: userID, Text: text}, nil
}

func (s *PickLedgerService) DeletePick(ctx context.Context, userID, rawLeague string) (PickResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.PickLedgerService.DeletePick")
	defer span.End()

	league, userID, _, err := normalizePickInput(rawLeague, userID, "", false)
	if err != nil {
		return PickResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	previous, exists := s.state.Ledger(league)[userID]
	if !exists {
		return PickResult{}, fmt.Errorf("%w: league=%s user=%s", ErrNotFound, league, userID)
	}

	next := s.state.Clone()
	delete(next.Ledger(league), userID)
	if err := s.commit(ctx, "delete_pick", league, userID, next); err != nil {
		return PickResult{}, err
	}

	return PickResult{League: league, UserID: userID, Text: previous}, nil
}

func (s *PickLedgerService) ListPicks(ctx context.Context, rawLeague string) (Listing, error) {
	_, span := startUsecaseSpan(ctx, "usecase.PickLedgerService.ListPicks")
	defer span.End()

	league, err := pick.ParseLeague(rawLeague)
	if err != nil {
		return Listing{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return newListing(league, s.state.Ledger(league)), nil
}

func (s *PickLedgerService) FinalizeParlay(ctx context.Context) (Parlay, error) {
	_, span := startUsecaseSpan(ctx, "usecase.PickLedgerService.FinalizeParlay")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	leagues := pick.Leagues()
	out := Parlay{Leagues: make([]Listing, 0, len(leagues))}
	for _, league := range leagues {
		out.Leagues = append(out.Leagues, newListing(league, s.state.Ledger(league)))
	}
	return out, nil
}

// SetAdministrator overwrites the administrator reference and returns the
// previous holder, empty when none was set.
func (s *PickLedgerService) SetAdministrator(ctx context.Context, userID string) (string, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.PickLedgerService.SetAdministrator")
	defer span.End()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", fmt.Errorf("%w: administrator user id is required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.state.AdminID
	next := s.state.Clone()
	next.AdminID = userID
	if err := s.commit(ctx, "set_admin", "", userID, next); err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "administrator assigned", "admin_id", userID, "previous_admin_id", previous)
	return previous, nil
}

func (s *PickLedgerService) Administrator(_ context.Context) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.AdminID, s.state.AdminID != ""
}

// TriggerWeeklyReset clears both ledgers on behalf of actor. Unverified actors
// must be the stored administrator.
func (s *PickLedgerService) TriggerWeeklyReset(ctx context.Context, actor ResetActor) (ResetResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.PickLedgerService.TriggerWeeklyReset")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	trigger := ResetTriggerJob
	if !actor.Verified {
		actorID := strings.TrimSpace(actor.UserID)
		if s.state.AdminID == "" || actorID != s.state.AdminID {
			return ResetResult{}, fmt.Errorf("%w: user=%s is not the weekly reset administrator", ErrUnauthorized, actorID)
		}
		trigger = ResetTriggerCommand
	}

	return s.reset(ctx, trigger)
}

// RunScheduledReset is the timer path; it does not depend on an administrator
// being set.
func (s *PickLedgerService) RunScheduledReset(ctx context.Context) (ResetResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.PickLedgerService.RunScheduledReset")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.reset(ctx, ResetTriggerSchedule)
}

// reset must be called with s.mu held.
func (s *PickLedgerService) reset(ctx context.Context, trigger string) (ResetResult, error) {
	notify := make(map[string]struct{}, len(s.state.NFL)+len(s.state.CFB))
	for _, league := range pick.Leagues() {
		for userID := range s.state.Ledger(league) {
			notify[userID] = struct{}{}
		}
	}

	next := pick.NewState()
	next.AdminID = s.state.AdminID
	if err := s.commit(ctx, "weekly_reset", "", "", next); err != nil {
		return ResetResult{}, err
	}

	result := ResetResult{
		Trigger:       trigger,
		NotifyUserIDs: slices.Sorted(maps.Keys(notify)),
		Cleared:       len(notify) > 0,
		ResetAt:       s.now().UTC(),
	}
	s.logger.InfoContext(ctx, "weekly reset performed",
		"trigger", trigger,
		"cleared", result.Cleared,
		"notified_users", len(result.NotifyUserIDs),
	)
	return result, nil
}

// commit saves next and only then makes it the live state, so a failed write
// never leaves memory ahead of disk. Must be called with s.mu held.
func (s *PickLedgerService) commit(ctx context.Context, operation string, league pick.League, userID string, next pick.State) error {
	if err := s.store.Save(ctx, next); err != nil {
		s.logger.WarnContext(ctx, "persist pick state failed, change discarded",
			"operation", operation,
			"league", league.String(),
			"user_id", userID,
			"error", err,
		)
		return fmt.Errorf("%w: %s: %w", ErrPersistenceFailure, operation, err)
	}

	s.state = next
	return nil
}

func normalizePickInput(rawLeague, userID, text string, requireText bool) (pick.League, string, string, error) {
	league, err := pick.ParseLeague(rawLeague)
	if err != nil {
		return "", "", "", err
	}

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", "", "", fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	if requireText && strings.TrimSpace(text) == "" {
		return "", "", "", fmt.Errorf("%w: pick text is required", ErrInvalidInput)
	}

	return league, userID, text, nil
}
