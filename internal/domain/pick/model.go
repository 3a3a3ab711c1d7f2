package pick

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

var ErrInvalidLeague = errors.New("invalid league")

// League is one of the two fixed competitions picks are tracked under.
type League string

const (
	LeagueNFL League = "NFL"
	LeagueCFB League = "CFB"
)

// Leagues lists the supported leagues in display order.
func Leagues() []League {
	return []League{LeagueNFL, LeagueCFB}
}

// ParseLeague case-folds raw into its canonical league.
func ParseLeague(raw string) (League, error) {
	switch League(strings.ToUpper(strings.TrimSpace(raw))) {
	case LeagueNFL:
		return LeagueNFL, nil
	case LeagueCFB:
		return LeagueCFB, nil
	default:
		return "", fmt.Errorf("%w: %q (valid values are %s, %s)", ErrInvalidLeague, raw, LeagueNFL, LeagueCFB)
	}
}

func (l League) String() string {
	return string(l)
}

// Title is the heading used when a league's picks are printed in a parlay.
func (l League) Title() string {
	switch l {
	case LeagueCFB:
		return "College Football"
	default:
		return string(l)
	}
}

// Ledger maps a user id to that user's pick text for one league.
type Ledger map[string]string

func (l Ledger) Clone() Ledger {
	if l == nil {
		return Ledger{}
	}
	return maps.Clone(l)
}

// UserIDs returns the keys in ascending order.
func (l Ledger) UserIDs() []string {
	return slices.Sorted(maps.Keys(l))
}

// State is everything the bot persists.
type State struct {
	NFL     Ledger
	CFB     Ledger
	AdminID string
}

func NewState() State {
	return State{
		NFL: Ledger{},
		CFB: Ledger{},
	}
}

// Clone deep-copies both ledgers so the result can be mutated freely.
func (s State) Clone() State {
	return State{
		NFL:     s.NFL.Clone(),
		CFB:     s.CFB.Clone(),
		AdminID: s.AdminID,
	}
}

// Ledger returns the ledger for league. The returned map aliases the state.
func (s *State) Ledger(league League) Ledger {
	switch league {
	case LeagueNFL:
		if s.NFL == nil {
			s.NFL = Ledger{}
		}
		return s.NFL
	case LeagueCFB:
		if s.CFB == nil {
			s.CFB = Ledger{}
		}
		return s.CFB
	default:
		return nil
	}
}

func (s State) Empty() bool {
	return len(s.NFL) == 0 && len(s.CFB) == 0
}

// Entry is one user's pick.
type Entry struct {
	UserID string
	Text   string
}
